package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"topupstore/internal/models"
	"topupstore/internal/orderflow"
)

// OrderHandler serves the checkout flow: order creation, the payment page
// snapshot and the client-driven status poll.
type OrderHandler struct {
	svc      *orderflow.Service
	validate *validator.Validate
	baseURL  string
	logger   *zap.Logger
}

func NewOrderHandler(svc *orderflow.Service, baseURL string, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

type orderSnapshot struct {
	OrderID         string     `json:"order_id"`
	Email           string     `json:"email"`
	ServiceID       int        `json:"service_id"`
	ServiceName     string     `json:"service_name"`
	Target          string     `json:"target"`
	Quantity        int        `json:"quantity"`
	Price           string     `json:"price"`
	Status          string     `json:"status"`
	ProviderOrderID *string    `json:"provider_order_id"`
	StartCount      *int       `json:"start_count"`
	Remains         *int       `json:"remains"`
	CreatedAt       time.Time  `json:"created_at"`
	Payment         *paySnap   `json:"payment"`
}

type paySnap struct {
	PaymentID     string     `json:"payment_id"`
	Method        string     `json:"method"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	QRImageURL    *string    `json:"qr_image_url"`
	VANumber      *string    `json:"va_number"`
	FailureReason *string    `json:"failure_reason"`
	PaidAt        *time.Time `json:"paid_at"`
	ExpiredAt     time.Time  `json:"expired_at"`
}

func snapshot(order *models.Order, payment *models.Payment) *orderSnapshot {
	return &orderSnapshot{
		OrderID:         order.OrderID,
		Email:           order.Email,
		ServiceID:       order.ServiceID,
		ServiceName:     order.ServiceName,
		Target:          order.Target,
		Quantity:        order.Quantity,
		Price:           order.Price.StringFixed(2),
		Status:          order.Status,
		ProviderOrderID: order.ProviderOrderID,
		StartCount:      order.StartCount,
		Remains:         order.Remains,
		CreatedAt:       order.CreatedAt,
		Payment: &paySnap{
			PaymentID:     payment.PaymentID,
			Method:        payment.Method,
			Amount:        payment.Amount.StringFixed(2),
			Status:        payment.Status,
			QRImageURL:    payment.QRImageURL,
			VANumber:      payment.VANumber,
			FailureReason: payment.FailureReason,
			PaidAt:        payment.PaidAt,
			ExpiredAt:     payment.ExpiredAt,
		},
	}
}

// Create handles checkout submission. Validation failures reject the
// request before any state exists.
func (h *OrderHandler) Create(c echo.Context) error {
	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "malformed request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status": "error",
			"errors": fieldErrors(err),
		})
	}

	order, payment, err := h.svc.Checkout(c.Request().Context(), &req)
	if err != nil {
		h.logger.Error("checkout failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "internal error",
		})
	}

	paymentURL := h.baseURL + "/order/" + order.OrderID

	// Browser checkouts get redirected to the payment page; API callers
	// get the JSON fallback.
	if !strings.Contains(c.Request().Header.Get("Accept"), "application/json") &&
		strings.Contains(c.Request().Header.Get("Content-Type"), "form") {
		return c.Redirect(http.StatusFound, paymentURL)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"order_id":    order.OrderID,
		"payment_url": paymentURL,
		"order":       snapshot(order, payment),
	})
}

type orderListItem struct {
	OrderID     string    `json:"order_id"`
	Email       string    `json:"email"`
	ServiceID   int       `json:"service_id"`
	ServiceName string    `json:"service_name"`
	Target      string    `json:"target"`
	Quantity    int       `json:"quantity"`
	Price       string    `json:"price"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func listItems(orders []models.Order) []orderListItem {
	items := make([]orderListItem, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderListItem{
			OrderID:     o.OrderID,
			Email:       o.Email,
			ServiceID:   o.ServiceID,
			ServiceName: o.ServiceName,
			Target:      o.Target,
			Quantity:    o.Quantity,
			Price:       o.Price.StringFixed(2),
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
		})
	}
	return items
}

// List returns recent orders: filtered to one purchaser when an email
// param is given, otherwise paged with an optional search term.
func (h *OrderHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	if email := c.QueryParam("email"); email != "" {
		orders, err := h.svc.OrdersByEmail(email, limit)
		if err != nil {
			h.logger.Error("order list by email failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": "internal error",
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"orders": listItems(orders),
			"total":  len(orders),
		})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	orders, total, err := h.svc.ListOrders(limit, page, c.QueryParam("q"))
	if err != nil {
		h.logger.Error("order list failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "internal error",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders": listItems(orders),
		"total":  total,
	})
}

// ShowByPayment renders the pair addressed by the public payment id, for
// payment pages linked before the order id is known.
func (h *OrderHandler) ShowByPayment(c echo.Context) error {
	order, payment, err := h.svc.SnapshotByPaymentID(c.Param("payment_id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot(order, payment))
}

// Show renders the current order/payment state, read-only.
func (h *OrderHandler) Show(c echo.Context) error {
	order, payment, err := h.svc.Snapshot(c.Param("order_id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot(order, payment))
}

// CheckStatus is the client-poll reconciliation endpoint: it refreshes the
// payment from the gateway while pending and fulfillment progress while
// processing, then returns the snapshot.
func (h *OrderHandler) CheckStatus(c echo.Context) error {
	order, payment, err := h.svc.RefreshStatus(c.Request().Context(), c.Param("order_id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot(order, payment))
}

// ForcePaid forces the paid transition without gateway involvement.
// Sandbox mode only.
func (h *OrderHandler) ForcePaid(c echo.Context) error {
	err := h.svc.ForcePaid(c.Request().Context(), c.Param("order_id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, orderflow.ErrSandboxDisabled):
		return c.JSON(http.StatusForbidden, map[string]string{
			"status":  "error",
			"message": "sandbox mode is disabled",
		})
	default:
		return h.lookupError(c, err)
	}
}

func (h *OrderHandler) lookupError(c echo.Context, err error) error {
	if errors.Is(err, orderflow.ErrOrderNotFound) || errors.Is(err, orderflow.ErrPaymentNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "order not found",
		})
	}
	h.logger.Error("order request failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"status":  "error",
		"message": "internal error",
	})
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[strings.ToLower(fe.Field())] = fe.Tag()
		}
		return out
	}
	out["request"] = "invalid"
	return out
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"topupstore/internal/callback"
	"topupstore/internal/gateway"
	"topupstore/internal/orderflow"
)

// CallbackHandler is the single entry point for all inbound provider
// callbacks. It classifies the payload, lets the payment-gateway branch
// mutate state, and acknowledges every other provider with the exact shape
// its integration expects.
type CallbackHandler struct {
	svc    *orderflow.Service
	logger *zap.Logger
}

func NewCallbackHandler(svc *orderflow.Service, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{svc: svc, logger: logger}
}

// Handle accepts any method and any payload shape.
func (h *CallbackHandler) Handle(c echo.Context) error {
	p := callback.FromRequest(c.Request())
	prov := callback.Classify(p, c.Request().URL.Path)

	h.logger.Info("callback received",
		zap.String("provider", string(prov)),
		zap.String("path", c.Request().URL.Path),
		zap.String("method", c.Request().Method))

	if prov == callback.ProviderMidtrans {
		return h.handleGatewayNotification(c, p)
	}

	if ack, ok := callback.Ack(prov); ok {
		return ack(c, p)
	}
	return callback.AckUnknown(c, p)
}

// handleGatewayNotification is the only branch allowed to reject: it
// mutates financial state and must refuse tampered or malformed
// notifications rather than optimistically acknowledging them.
func (h *CallbackHandler) handleGatewayNotification(c echo.Context, p *callback.Payload) error {
	n := &gateway.Notification{
		OrderID:           p.String("order_id"),
		StatusCode:        p.String("status_code"),
		GrossAmount:       p.String("gross_amount"),
		SignatureKey:      p.String("signature_key"),
		TransactionStatus: p.String("transaction_status"),
		TransactionID:     p.String("transaction_id"),
		Raw:               p.RawBody,
	}

	if n.OrderID == "" || n.TransactionStatus == "" || n.SignatureKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "incomplete notification payload",
		})
	}

	err := h.svc.HandleGatewayNotification(c.Request().Context(), n)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, orderflow.ErrBadSignature):
		// Security-relevant: a syntactically valid notification whose
		// signature does not verify may be a forgery attempt.
		h.logger.Warn("gateway notification rejected: signature mismatch",
			zap.String("gateway_order_id", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus),
			zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "invalid signature",
		})
	case errors.Is(err, orderflow.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "unknown order",
		})
	default:
		h.logger.Error("gateway notification processing failed",
			zap.String("gateway_order_id", n.OrderID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "internal error",
		})
	}
}

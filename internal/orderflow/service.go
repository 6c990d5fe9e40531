package orderflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"topupstore/internal/gateway"
	"topupstore/internal/models"
	"topupstore/internal/pkg/telegram"
	"topupstore/internal/provider"
	"topupstore/internal/repository"
)

var (
	// ErrBadSignature marks a notification whose signature did not verify.
	// Treated as a possible forgery attempt by callers.
	ErrBadSignature = errors.New("invalid notification signature")

	// ErrOrderNotFound is returned when no order matches the identifier.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentNotFound is returned when no payment matches the gateway
	// correlation id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrSandboxDisabled rejects force-paid outside sandbox mode.
	ErrSandboxDisabled = errors.New("sandbox mode is disabled")
)

// Service owns the order/payment lifecycle: checkout, gateway-driven
// payment transitions and fulfillment submission. The payment leads and the
// order follows; every transition site is idempotent and terminal states
// are guarded at the storage layer.
type Service struct {
	orders   *repository.OrderRepository
	payments *repository.PaymentRepository
	gateway  gateway.Gateway
	provider provider.Provider
	notifier *telegram.Notifier
	loc      *time.Location
	sandbox  bool
	logger   *zap.Logger
}

func New(
	orders *repository.OrderRepository,
	payments *repository.PaymentRepository,
	gw gateway.Gateway,
	prov provider.Provider,
	notifier *telegram.Notifier,
	loc *time.Location,
	sandbox bool,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		payments: payments,
		gateway:  gw,
		provider: prov,
		notifier: notifier,
		loc:      loc,
		sandbox:  sandbox,
		logger:   logger,
	}
}

// paymentExpiry is the local default; the gateway's charge response may
// overwrite it via artifact extraction.
const paymentExpiry = 24 * time.Hour

func newPublicID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// Checkout creates the order and its payment atomically, charges the
// gateway and attaches the resulting payment instrument. A failed charge
// marks the payment failed and leaves the order pending; the caller still
// receives the pair to render.
func (s *Service) Checkout(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, *models.Payment, error) {
	order := &models.Order{
		OrderID:     newPublicID("ORD"),
		Email:       req.Email,
		ServiceID:   req.ServiceID,
		ServiceName: req.ServiceName,
		Target:      req.Target,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Status:      models.OrderStatusPending,
	}
	if req.Comments != "" {
		order.Comments = &req.Comments
	}
	if req.Usernames != "" {
		order.Usernames = &req.Usernames
	}

	now := time.Now().In(s.loc)
	payment, err := s.orders.CreateWithPayment(order, func(orderID uint) (*models.Payment, error) {
		return &models.Payment{
			PaymentID: newPublicID("PAY"),
			// Embeds the order id plus a timestamp so a re-checkout of the
			// same order never reuses a correlation id at the gateway.
			GatewayOrderID: fmt.Sprintf("TPS-%d-%d", orderID, now.Unix()),
			OrderRef:       orderID,
			Method:         req.PaymentMethod,
			Amount:         req.Price,
			Status:         models.PaymentStatusPending,
			ExpiredAt:      now.Add(paymentExpiry),
		}, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create order: %w", err)
	}

	res := s.gateway.Charge(ctx, payment, order)
	if !res.OK {
		s.logger.Error("gateway charge failed",
			zap.String("order_id", order.OrderID),
			zap.String("message", res.Message))
		if _, ferr := s.payments.MarkFailed(payment.ID, "charge_failed", res.Raw); ferr != nil {
			return nil, nil, fmt.Errorf("record charge failure: %w", ferr)
		}
		payment.Status = models.PaymentStatusFailed
		reason := "charge_failed"
		payment.FailureReason = &reason
		return order, payment, nil
	}

	art := s.gateway.ExtractArtifacts(res.Raw)
	if err := s.payments.AttachArtifacts(payment.ID, res.Raw, art.QRImageURL, art.VANumber, art.ExpiredAt); err != nil {
		return nil, nil, fmt.Errorf("attach payment artifacts: %w", err)
	}
	payment.MidtransResponse = datatypes.JSON(res.Raw)
	payment.QRImageURL = art.QRImageURL
	payment.VANumber = art.VANumber
	if art.ExpiredAt != nil {
		payment.ExpiredAt = *art.ExpiredAt
	}

	return order, payment, nil
}

// HandleGatewayNotification applies a webhook-delivered transaction status.
// Replays are harmless: the paid/failed updates are conditional on the
// payment still being pending, and fulfillment submission is claimed with a
// conditional update on the order.
func (s *Service) HandleGatewayNotification(ctx context.Context, n *gateway.Notification) error {
	if !s.gateway.ValidateSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return ErrBadSignature
	}

	payment, err := s.payments.FindByGatewayOrderID(n.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("lookup payment %s: %w", n.OrderID, err)
	}

	switch gateway.MapTransactionStatus(n.TransactionStatus) {
	case gateway.StatusPaid:
		changed, err := s.payments.MarkPaid(payment.ID, n.TransactionID, n.Raw, time.Now().In(s.loc))
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if changed {
			s.logger.Info("payment confirmed by gateway notification",
				zap.String("payment_id", payment.PaymentID),
				zap.String("transaction_status", n.TransactionStatus))
		}
		return s.fulfillIfPaid(ctx, payment.OrderRef, changed)

	case gateway.StatusFailed:
		changed, err := s.payments.MarkFailed(payment.ID, strings.ToLower(n.TransactionStatus), n.Raw)
		if err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		if changed {
			s.logger.Info("payment failed by gateway notification",
				zap.String("payment_id", payment.PaymentID),
				zap.String("transaction_status", n.TransactionStatus))
		}
		return nil

	default:
		// Still pending at the gateway; nothing to apply.
		return nil
	}
}

// RefreshStatus is the client-poll reconciliation path: re-derive the
// payment status from the gateway while pending, retry a failed submission,
// and pull fulfillment progress while processing. Returns the fresh
// order/payment snapshot.
func (s *Service) RefreshStatus(ctx context.Context, publicOrderID string) (*models.Order, *models.Payment, error) {
	order, payment, err := s.lookup(publicOrderID)
	if err != nil {
		return nil, nil, err
	}

	if payment.Status == models.PaymentStatusPending {
		st, err := s.gateway.CheckStatus(ctx, payment.GatewayOrderID)
		if err != nil {
			// A gateway outage degrades to "still pending", never to a
			// corrupted state.
			s.logger.Warn("gateway status check failed",
				zap.String("payment_id", payment.PaymentID), zap.Error(err))
		} else {
			switch st.Status {
			case gateway.StatusPaid:
				changed, err := s.payments.MarkPaid(payment.ID, st.TransactionID, st.Raw, time.Now().In(s.loc))
				if err != nil {
					return nil, nil, fmt.Errorf("mark payment paid: %w", err)
				}
				if err := s.fulfillIfPaid(ctx, order.ID, changed); err != nil {
					return nil, nil, err
				}
			case gateway.StatusFailed:
				if _, err := s.payments.MarkFailed(payment.ID, strings.ToLower(st.TransactionStatus), st.Raw); err != nil {
					return nil, nil, fmt.Errorf("mark payment failed: %w", err)
				}
			}
		}
		if order, payment, err = s.lookup(publicOrderID); err != nil {
			return nil, nil, err
		}
	}

	if payment.Status == models.PaymentStatusPaid && order.Status == models.OrderStatusSubmissionFailed {
		if err := s.submitFulfillment(ctx, order, models.OrderStatusSubmissionFailed); err != nil {
			return nil, nil, err
		}
		if order, payment, err = s.lookup(publicOrderID); err != nil {
			return nil, nil, err
		}
	}

	if order.Status == models.OrderStatusProcessing && order.ProviderOrderID != nil {
		st, err := s.provider.CheckOrderStatus(ctx, *order.ProviderOrderID)
		if err != nil {
			s.logger.Warn("fulfillment status check failed",
				zap.String("order_id", order.OrderID), zap.Error(err))
		} else if st.Status != "" {
			if err := s.orders.UpdateProgress(order.ID, st.Status, st.StartCount, st.Remains); err != nil {
				return nil, nil, fmt.Errorf("update order progress: %w", err)
			}
			if order, payment, err = s.lookup(publicOrderID); err != nil {
				return nil, nil, err
			}
		}
	}

	return order, payment, nil
}

// ForcePaid bypasses the gateway and forces the paid transition plus
// fulfillment submission. Only available in sandbox mode; anywhere else it
// is an explicit rejection, not a silent no-op.
func (s *Service) ForcePaid(ctx context.Context, publicOrderID string) error {
	if !s.sandbox {
		return ErrSandboxDisabled
	}

	order, payment, err := s.lookup(publicOrderID)
	if err != nil {
		return err
	}

	changed, err := s.payments.MarkPaid(payment.ID, "sandbox-forced", nil, time.Now().In(s.loc))
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return s.fulfillIfPaid(ctx, order.ID, changed)
}

// Snapshot returns the current order/payment pair without side effects.
func (s *Service) Snapshot(publicOrderID string) (*models.Order, *models.Payment, error) {
	return s.lookup(publicOrderID)
}

// SnapshotByPaymentID resolves the order/payment pair from the public
// payment identifier.
func (s *Service) SnapshotByPaymentID(paymentID string) (*models.Order, *models.Payment, error) {
	payment, err := s.payments.FindByPaymentID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, fmt.Errorf("lookup payment %s: %w", paymentID, err)
	}
	order, err := s.orders.FindByID(payment.OrderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("lookup order %d: %w", payment.OrderRef, err)
	}
	return order, payment, nil
}

// ListOrders pages through orders, optionally filtered by a search term
// matching the public id, email or target.
func (s *Service) ListOrders(limit, page int, query string) ([]models.Order, int64, error) {
	return s.orders.FindAll(limit, page, query)
}

// OrdersByEmail returns a purchaser's recent orders, newest first.
func (s *Service) OrdersByEmail(email string, limit int) ([]models.Order, error) {
	return s.orders.FindByEmail(email, limit)
}

func (s *Service) lookup(publicOrderID string) (*models.Order, *models.Payment, error) {
	order, err := s.orders.FindByOrderID(publicOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("lookup order %s: %w", publicOrderID, err)
	}
	payment, err := s.payments.FindByOrderRef(order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, fmt.Errorf("lookup payment for order %s: %w", publicOrderID, err)
	}
	return order, payment, nil
}

// fulfillIfPaid submits fulfillment only when the payment actually stands
// at paid. MarkPaid reporting zero rows is ambiguous: a replay of an
// already-paid notification may still need the submission claim retried,
// but a payment that terminally failed first must never reach the provider.
func (s *Service) fulfillIfPaid(ctx context.Context, orderRef uint, justPaid bool) error {
	if !justPaid {
		current, err := s.payments.FindByOrderRef(orderRef)
		if err != nil {
			return fmt.Errorf("recheck payment for order %d: %w", orderRef, err)
		}
		if current.Status != models.PaymentStatusPaid {
			return nil
		}
	}
	order, err := s.orders.FindByID(orderRef)
	if err != nil {
		return fmt.Errorf("lookup order %d: %w", orderRef, err)
	}
	return s.submitFulfillment(ctx, order, models.OrderStatusPending)
}

// submitFulfillment claims the order with a single conditional update and,
// when the claim succeeds, forwards it to the provider. The claim is the
// only guard: whichever of the webhook and poll paths wins the update owns
// the submission, the other sees zero affected rows and backs off.
func (s *Service) submitFulfillment(ctx context.Context, order *models.Order, fromStatus string) error {
	claimed, err := s.orders.ClaimForSubmission(order.ID, fromStatus)
	if err != nil {
		return fmt.Errorf("claim order for submission: %w", err)
	}
	if !claimed {
		return nil
	}

	res, err := s.provider.SubmitOrder(ctx, order)
	if err != nil {
		s.logger.Error("fulfillment submission failed",
			zap.String("order_id", order.OrderID), zap.Error(err))
		if merr := s.orders.MarkSubmissionFailed(order.ID); merr != nil {
			return fmt.Errorf("mark submission failed: %w", merr)
		}
		return nil
	}

	if err := s.orders.SetSubmission(order.ID, res.ProviderOrderID, res.Raw); err != nil {
		return fmt.Errorf("record provider submission: %w", err)
	}

	s.logger.Info("order submitted to fulfillment provider",
		zap.String("order_id", order.OrderID),
		zap.String("provider_order_id", res.ProviderOrderID))
	s.reportPaid(order)

	return nil
}

func (s *Service) reportPaid(order *models.Order) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}
	text := fmt.Sprintf(
		"💵 New paid order\n\n🧾 Order: %s\n📦 Service: %s\n🎯 Target: %s\n🔢 Quantity: %d\n💰 Amount: %s",
		order.OrderID, order.ServiceName, order.Target, order.Quantity, order.Price.StringFixed(0),
	)
	if err := s.notifier.Send(text); err != nil {
		s.logger.Warn("telegram report failed", zap.Error(err))
	}
}

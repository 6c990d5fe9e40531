package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment statuses. paid and failed are terminal; failed covers denied,
// cancelled, expired and generic gateway failures, with the verbatim gateway
// status kept in FailureReason.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodQRIS         = "qris"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodGopay        = "gopay"
	PaymentMethodShopeePay    = "shopeepay"
)

// Payment maps to the `payments` table. One payment per order; OrderRef is
// the orders.id foreign key. GatewayOrderID is the correlation key sent to
// Midtrans; it embeds the internal order id plus a timestamp so retried
// checkouts never collide at the gateway.
type Payment struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentID      string `gorm:"column:payment_id;size:40;uniqueIndex;not null" json:"payment_id"`
	GatewayOrderID string `gorm:"column:gateway_order_id;size:60;uniqueIndex;not null" json:"gateway_order_id"`
	OrderRef       uint   `gorm:"column:order_id;uniqueIndex;not null" json:"order_id"`

	Method string          `gorm:"column:method;size:30;not null" json:"method"`
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(16,2);not null" json:"amount"`
	Status string          `gorm:"column:status;size:20;default:pending;index" json:"status"`

	MidtransResponse datatypes.JSON `gorm:"column:midtrans_response" json:"midtrans_response"`
	TransactionID    *string        `gorm:"column:transaction_id;size:100" json:"transaction_id"`
	QRImageURL       *string        `gorm:"column:qr_image_url;type:text" json:"qr_image_url"`
	VANumber         *string        `gorm:"column:va_number;size:50" json:"va_number"`
	FailureReason    *string        `gorm:"column:failure_reason;size:50" json:"failure_reason"`

	PaidAt    *time.Time `gorm:"column:paid_at" json:"paid_at"`
	ExpiredAt time.Time  `gorm:"column:expired_at;not null" json:"expired_at"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether the payment reached paid or failed.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFailed
}

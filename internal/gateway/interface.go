package gateway

import (
	"context"
	"time"

	"topupstore/internal/models"
)

// Credentials selects the key set for the Midtrans environment in use.
// Passed in explicitly at construction so both key sets can be exercised in
// tests without mutating process state.
type Credentials struct {
	ServerKey string
	ClientKey string
	Sandbox   bool
}

// ChargeResult is the outcome of a charge request. Network and gateway
// errors surface here as OK=false with a message; they never escape the
// adapter as errors.
type ChargeResult struct {
	OK      bool
	Message string
	Raw     []byte
}

// Artifacts are the customer-facing payment instruments extracted from a
// charge response. Nil fields mean the gateway did not supply them and the
// previously stored values stand.
type Artifacts struct {
	QRImageURL *string
	VANumber   *string
	ExpiredAt  *time.Time
}

// Status is the normalized payment status derived from the gateway's
// transaction_status vocabulary.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// StatusResult is a status-endpoint snapshot. TransactionStatus keeps the
// gateway's verbatim vocabulary for the failure-reason record.
type StatusResult struct {
	Status            Status
	TransactionStatus string
	TransactionID     string
	Raw               []byte
}

// Notification is a parsed gateway webhook payload.
type Notification struct {
	OrderID           string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	TransactionStatus string
	TransactionID     string
	Raw               []byte
}

// Gateway defines the payment gateway adapter surface.
type Gateway interface {
	// Charge creates a payment instrument at the gateway. It never returns
	// an error; failures come back as a ChargeResult with OK=false.
	Charge(ctx context.Context, payment *models.Payment, order *models.Order) ChargeResult

	// ExtractArtifacts pulls QR/VA/expiry data out of a raw charge response.
	ExtractArtifacts(raw []byte) Artifacts

	// ValidateSignature verifies a webhook signature.
	ValidateSignature(orderID, statusCode, grossAmount, signatureKey string) bool

	// CheckStatus queries the gateway's status endpoint by correlation id.
	CheckStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error)
}

package repository

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"topupstore/internal/models"
)

// PaymentRepository handles payment database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByOrderRef returns the payment belonging to an order row.
func (r *PaymentRepository) FindByOrderRef(orderRef uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("order_id = ?", orderRef).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByPaymentID returns a payment by its public payment identifier.
func (r *PaymentRepository) FindByPaymentID(paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByGatewayOrderID returns a payment by the gateway correlation id.
func (r *PaymentRepository) FindByGatewayOrderID(gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("gateway_order_id = ?", gatewayOrderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// AttachArtifacts stores the payment instrument extracted from a successful
// charge response. The payment stays pending; a charged instrument is not a
// completed payment.
func (r *PaymentRepository) AttachArtifacts(id uint, raw []byte, qrImageURL, vaNumber *string, expiredAt *time.Time) error {
	updates := map[string]interface{}{
		"midtrans_response": datatypes.JSON(raw),
	}
	if qrImageURL != nil {
		updates["qr_image_url"] = *qrImageURL
	}
	if vaNumber != nil {
		updates["va_number"] = *vaNumber
	}
	if expiredAt != nil {
		updates["expired_at"] = *expiredAt
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// MarkPaid transitions a pending payment to paid. The WHERE clause is the
// terminal-state guard: replayed notifications and racing polls see zero
// affected rows and change nothing.
func (r *PaymentRepository) MarkPaid(id uint, transactionID string, raw []byte, paidAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":  models.PaymentStatusPaid,
		"paid_at": paidAt,
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if raw != nil {
		updates["midtrans_response"] = datatypes.JSON(raw)
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed transitions a pending payment to failed, recording the verbatim
// gateway status as the failure reason.
func (r *PaymentRepository) MarkFailed(id uint, reason string, raw []byte) (bool, error) {
	updates := map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
	}
	if raw != nil {
		updates["midtrans_response"] = datatypes.JSON(raw)
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package repository

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"topupstore/internal/models"
)

// OrderRepository handles order database operations.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// DB exposes the underlying connection for transactional flows.
func (r *OrderRepository) DB() *gorm.DB {
	return r.db
}

// CreateWithPayment creates an order and its payment atomically. The build
// callback runs after the order row exists so the payment can reference the
// generated order id; if it fails nothing is persisted.
func (r *OrderRepository) CreateWithPayment(order *models.Order, build func(orderID uint) (*models.Payment, error)) (*models.Payment, error) {
	var payment *models.Payment
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		p, err := build(order.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		payment = p
		return nil
	})
	return payment, err
}

// FindByID returns an order by primary key.
func (r *OrderRepository) FindByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByOrderID returns an order by its public order identifier.
func (r *OrderRepository) FindByOrderID(orderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindAll returns orders with pagination and search.
func (r *OrderRepository) FindAll(limit, page int, query string) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	db := r.db.Model(&models.Order{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("order_id LIKE ? OR email LIKE ? OR target LIKE ?", search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// FindByEmail returns recent orders for a purchaser email.
func (r *OrderRepository) FindByEmail(email string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var orders []models.Order
	err := r.db.Where("email = ?", email).Order("created_at DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// ClaimForSubmission flips the order status from `from` to processing with a
// single conditional UPDATE. Exactly one concurrent caller observes one
// affected row and owns the fulfillment submission; everyone else backs off.
func (r *OrderRepository) ClaimForSubmission(id uint, from string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", models.OrderStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetSubmission records the provider order reference and raw response.
// The reference is write-once: rows that already carry one are untouched.
func (r *OrderRepository) SetSubmission(id uint, providerOrderID string, raw []byte) error {
	return r.db.Model(&models.Order{}).
		Where("id = ? AND provider_order_id IS NULL", id).
		Updates(map[string]interface{}{
			"provider_order_id":   providerOrderID,
			"medanpedia_response": datatypes.JSON(raw),
		}).Error
}

// MarkSubmissionFailed moves a claimed order into submission_failed so the
// failure is visible and retryable instead of silently logged.
func (r *OrderRepository) MarkSubmissionFailed(id uint) error {
	return r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusProcessing).
		Update("status", models.OrderStatusSubmissionFailed).Error
}

// UpdateProgress applies a fulfillment status poll result. Terminal orders
// are left untouched.
func (r *OrderRepository) UpdateProgress(id uint, status string, startCount, remains *int) error {
	updates := map[string]interface{}{"status": status}
	if startCount != nil {
		updates["start_count"] = *startCount
	}
	if remains != nil {
		updates["remains"] = *remains
	}
	return r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []string{
			models.OrderStatusProcessing,
			models.OrderStatusSubmissionFailed,
		}).
		Updates(updates).Error
}

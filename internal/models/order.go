package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order statuses. A failed payment never moves the order out of pending;
// submission_failed marks a paid order whose fulfillment submission did not
// go through and still needs operator attention or a resubmit.
const (
	OrderStatusPending          = "pending"
	OrderStatusProcessing       = "processing"
	OrderStatusCompleted        = "completed"
	OrderStatusPartial          = "partial"
	OrderStatusCancelled        = "cancelled"
	OrderStatusSubmissionFailed = "submission_failed"
)

// Order maps to the `orders` table. Price is a snapshot captured at order
// time and is never recomputed from a live price feed.
type Order struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID     string          `gorm:"column:order_id;size:40;uniqueIndex;not null" json:"order_id"`
	Email       string          `gorm:"column:email;size:255;index" json:"email"`
	ServiceID   int             `gorm:"column:service_id;not null" json:"service_id"`
	ServiceName string          `gorm:"column:service_name;size:255" json:"service_name"`
	Target      string          `gorm:"column:target;size:500;not null" json:"target"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(16,2);not null" json:"price"`
	Comments    *string         `gorm:"column:comments;type:text" json:"comments"`
	Usernames   *string         `gorm:"column:usernames;type:text" json:"usernames"`
	Status      string          `gorm:"column:status;size:30;default:pending;index" json:"status"`

	// Fulfillment provider linkage. ProviderOrderID is immutable once set.
	ProviderOrderID    *string        `gorm:"column:provider_order_id;size:60;index" json:"provider_order_id"`
	MedanpediaResponse datatypes.JSON `gorm:"column:medanpedia_response" json:"medanpedia_response"`
	StartCount         *int           `gorm:"column:start_count" json:"start_count"`
	Remains            *int           `gorm:"column:remains" json:"remains"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order can no longer change status.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusPartial, OrderStatusCancelled:
		return true
	}
	return false
}

package models

import "github.com/shopspring/decimal"

// CreateOrderRequest is the checkout submission payload.
type CreateOrderRequest struct {
	Email         string          `json:"email" form:"email" validate:"required,email"`
	ServiceID     int             `json:"service_id" form:"service_id" validate:"required,gt=0"`
	ServiceName   string          `json:"service_name" form:"service_name" validate:"required"`
	Target        string          `json:"target" form:"target" validate:"required"`
	Quantity      int             `json:"quantity" form:"quantity" validate:"required,gt=0"`
	Price         decimal.Decimal `json:"price" form:"price" validate:"required"`
	PaymentMethod string          `json:"payment_method" form:"payment_method" validate:"required,oneof=qris bank_transfer gopay shopeepay"`
	Comments      string          `json:"comments" form:"comments"`
	Usernames     string          `json:"usernames" form:"usernames"`
}

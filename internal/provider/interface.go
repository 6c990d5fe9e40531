package provider

import (
	"context"

	"topupstore/internal/models"
)

// SubmitResult is a successful fulfillment submission.
type SubmitResult struct {
	ProviderOrderID string
	Raw             []byte
}

// OrderStatus is a fulfillment status poll result. Status is the normalized
// order status, empty when the provider reported a vocabulary we do not
// recognize; RawStatus keeps the verbatim provider string for logging.
type OrderStatus struct {
	Status     string
	RawStatus  string
	StartCount *int
	Remains    *int
	Raw        []byte
}

// Provider defines the fulfillment provider adapter surface.
type Provider interface {
	// SubmitOrder forwards a paid order to the provider.
	SubmitOrder(ctx context.Context, order *models.Order) (*SubmitResult, error)

	// CheckOrderStatus polls the provider-side status of a submitted order.
	CheckOrderStatus(ctx context.Context, providerOrderID string) (*OrderStatus, error)
}

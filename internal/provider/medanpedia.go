package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"topupstore/internal/models"
	"topupstore/internal/pkg/httpclient"
)

// MedanpediaProvider implements the Provider interface for the Medanpedia
// SMM panel API.
type MedanpediaProvider struct {
	apiID  string
	apiKey string
	client *httpclient.Client
	logger *zap.Logger

	// overridable in tests
	baseURL string
}

func NewMedanpediaProvider(apiID, apiKey string, timeout time.Duration, logger *zap.Logger) *MedanpediaProvider {
	return &MedanpediaProvider{
		apiID:   apiID,
		apiKey:  apiKey,
		client:  httpclient.New().WithTimeout(timeout),
		logger:  logger,
		baseURL: "https://api.medanpedia.co.id",
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (m *MedanpediaProvider) WithBaseURL(base string) *MedanpediaProvider {
	m.baseURL = base
	return m
}

func (m *MedanpediaProvider) SubmitOrder(ctx context.Context, order *models.Order) (*SubmitResult, error) {
	form := map[string]string{
		"api_id":   m.apiID,
		"api_key":  m.apiKey,
		"service":  strconv.Itoa(order.ServiceID),
		"target":   order.Target,
		"quantity": strconv.Itoa(order.Quantity),
	}
	if order.Comments != nil && *order.Comments != "" {
		form["custom_comments"] = *order.Comments
	}
	if order.Usernames != nil && *order.Usernames != "" {
		form["custom_link"] = *order.Usernames
	}

	resp, err := m.client.PostForm(ctx, m.baseURL+"/order", form)
	if err != nil {
		return nil, fmt.Errorf("medanpedia order request failed: %w", err)
	}

	var result struct {
		Status bool   `json:"status"`
		Msg    string `json:"msg"`
		Data   struct {
			ID json.Number `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("medanpedia order parse error: %w", err)
	}
	if !result.Status {
		msg := result.Msg
		if msg == "" {
			msg = "order rejected"
		}
		return nil, fmt.Errorf("medanpedia order rejected: %s", msg)
	}
	if result.Data.ID.String() == "" {
		return nil, fmt.Errorf("medanpedia order: no order id returned")
	}

	return &SubmitResult{
		ProviderOrderID: result.Data.ID.String(),
		Raw:             resp,
	}, nil
}

func (m *MedanpediaProvider) CheckOrderStatus(ctx context.Context, providerOrderID string) (*OrderStatus, error) {
	form := map[string]string{
		"api_id":  m.apiID,
		"api_key": m.apiKey,
		"id":      providerOrderID,
	}

	resp, err := m.client.PostForm(ctx, m.baseURL+"/status", form)
	if err != nil {
		return nil, fmt.Errorf("medanpedia status request failed: %w", err)
	}

	var result struct {
		Status bool   `json:"status"`
		Msg    string `json:"msg"`
		Data   struct {
			Status     string      `json:"status"`
			StartCount json.Number `json:"start_count"`
			Remains    json.Number `json:"remains"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("medanpedia status parse error: %w", err)
	}
	if !result.Status {
		msg := result.Msg
		if msg == "" {
			msg = "status lookup rejected"
		}
		return nil, fmt.Errorf("medanpedia status rejected: %s", msg)
	}

	normalized, known := MapStatus(result.Data.Status)
	if !known {
		m.logger.Warn("medanpedia returned unknown order status",
			zap.String("provider_order_id", providerOrderID),
			zap.String("status", result.Data.Status))
	}

	status := &OrderStatus{
		Status:    normalized,
		RawStatus: result.Data.Status,
		Raw:       resp,
	}
	if v, err := result.Data.StartCount.Int64(); err == nil {
		n := int(v)
		status.StartCount = &n
	}
	if v, err := result.Data.Remains.Int64(); err == nil {
		n := int(v)
		status.Remains = &n
	}
	return status, nil
}

// MapStatus folds the provider's status vocabulary into the order status
// domain, case-insensitively. Unknown strings return ("", false) so the
// caller leaves the order untouched instead of widening the status set.
func MapStatus(providerStatus string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "pending":
		return models.OrderStatusPending, true
	case "processing", "in progress":
		return models.OrderStatusProcessing, true
	case "completed", "success":
		return models.OrderStatusCompleted, true
	case "partial":
		return models.OrderStatusPartial, true
	case "cancelled", "canceled", "error", "refunded":
		return models.OrderStatusCancelled, true
	default:
		return "", false
	}
}

package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"topupstore/internal/models"
	"topupstore/internal/pkg/httpclient"
)

const (
	midtransTimeLayout = "2006-01-02 15:04:05"

	// expiryWindow is mirrored into the charge request's custom_expiry so
	// the gateway-side expiry and the locally stored one stay consistent.
	expiryWindow = 24 * time.Hour
)

// MidtransGateway implements the Gateway interface for the Midtrans Core API.
type MidtransGateway struct {
	creds  Credentials
	loc    *time.Location
	client *httpclient.Client
	logger *zap.Logger

	// overridable in tests
	baseURL string
}

func NewMidtransGateway(creds Credentials, loc *time.Location, timeout time.Duration, logger *zap.Logger) *MidtransGateway {
	base := "https://api.midtrans.com"
	if creds.Sandbox {
		base = "https://api.sandbox.midtrans.com"
	}
	return &MidtransGateway{
		creds: creds,
		loc:   loc,
		client: httpclient.New().
			WithTimeout(timeout).
			WithBasicAuth(creds.ServerKey, "").
			WithHeader("Accept", "application/json"),
		logger:  logger,
		baseURL: base,
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (g *MidtransGateway) WithBaseURL(base string) *MidtransGateway {
	g.baseURL = base
	return g
}

func (g *MidtransGateway) Charge(ctx context.Context, payment *models.Payment, order *models.Order) ChargeResult {
	gross := payment.Amount.Round(0).IntPart()

	body := map[string]interface{}{
		"transaction_details": map[string]interface{}{
			"order_id":     payment.GatewayOrderID,
			"gross_amount": gross,
		},
		"customer_details": map[string]interface{}{
			"email": order.Email,
		},
		"item_details": []map[string]interface{}{
			{
				"id":       fmt.Sprintf("%d", order.ServiceID),
				"name":     order.ServiceName,
				"price":    gross,
				"quantity": 1,
			},
		},
		"custom_expiry": map[string]interface{}{
			"order_time":      time.Now().In(g.loc).Format(midtransTimeLayout + " -0700"),
			"expiry_duration": int(expiryWindow.Hours()),
			"unit":            "hour",
		},
	}

	switch payment.Method {
	case models.PaymentMethodQRIS:
		body["payment_type"] = "qris"
	case models.PaymentMethodBankTransfer:
		body["payment_type"] = "bank_transfer"
		body["bank_transfer"] = map[string]interface{}{"bank": "bca"}
	case models.PaymentMethodGopay:
		body["payment_type"] = "gopay"
	case models.PaymentMethodShopeePay:
		body["payment_type"] = "shopeepay"
	default:
		return ChargeResult{OK: false, Message: "unsupported payment method: " + payment.Method}
	}

	resp, err := g.client.Post(ctx, g.baseURL+"/v2/charge", body)
	if err != nil {
		g.logger.Error("midtrans charge request failed",
			zap.String("gateway_order_id", payment.GatewayOrderID), zap.Error(err))
		return ChargeResult{OK: false, Message: "gateway unreachable"}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		g.logger.Error("midtrans charge parse error", zap.Error(err))
		return ChargeResult{OK: false, Message: "invalid gateway response", Raw: resp}
	}

	code, _ := result["status_code"].(string)
	if code != "200" && code != "201" {
		return ChargeResult{OK: false, Message: chargeErrorMessage(result), Raw: resp}
	}

	return ChargeResult{OK: true, Raw: resp}
}

func chargeErrorMessage(result map[string]interface{}) string {
	if msgs, ok := result["error_messages"].([]interface{}); ok && len(msgs) > 0 {
		parts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			if s, ok := m.(string); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if msg, ok := result["status_message"].(string); ok && msg != "" {
		return msg
	}
	return "charge rejected"
}

// ExtractArtifacts pulls the payment instrument out of a charge response.
// QR lookup prefers the generate-qr-code action URL and falls back to the
// raw qr_string wrapped into a data URI. Expiry prefers the gateway's
// expiry_time, then transaction_time plus the expiry window; when the
// gateway supplies neither, ExpiredAt stays nil and the stored default is
// kept.
func (g *MidtransGateway) ExtractArtifacts(raw []byte) Artifacts {
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return Artifacts{}
	}

	var art Artifacts

	if actions, ok := result["actions"].([]interface{}); ok {
		for _, a := range actions {
			action, ok := a.(map[string]interface{})
			if !ok {
				continue
			}
			if name, _ := action["name"].(string); name == "generate-qr-code" {
				if u, _ := action["url"].(string); u != "" {
					art.QRImageURL = &u
					break
				}
			}
		}
	}
	if art.QRImageURL == nil {
		if qr, _ := result["qr_string"].(string); qr != "" {
			dataURI := "data:text/plain;charset=utf-8," + url.PathEscape(qr)
			art.QRImageURL = &dataURI
		}
	}

	if vas, ok := result["va_numbers"].([]interface{}); ok && len(vas) > 0 {
		if va, ok := vas[0].(map[string]interface{}); ok {
			if num, _ := va["va_number"].(string); num != "" {
				art.VANumber = &num
			}
		}
	}

	if expiry, _ := result["expiry_time"].(string); expiry != "" {
		if t, err := time.ParseInLocation(midtransTimeLayout, expiry, g.loc); err == nil {
			art.ExpiredAt = &t
		}
	}
	if art.ExpiredAt == nil {
		if txTime, _ := result["transaction_time"].(string); txTime != "" {
			if t, err := time.ParseInLocation(midtransTimeLayout, txTime, g.loc); err == nil {
				exp := t.Add(expiryWindow)
				art.ExpiredAt = &exp
			}
		}
	}

	return art
}

// ValidateSignature recomputes the SHA-512 digest of
// orderID + statusCode + grossAmount + serverKey and compares it against the
// supplied signature byte-for-byte in constant time. The gateway emits
// lowercase hex; any other rendering fails.
func (g *MidtransGateway) ValidateSignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + g.creds.ServerKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}

func (g *MidtransGateway) CheckStatus(ctx context.Context, gatewayOrderID string) (*StatusResult, error) {
	resp, err := g.client.Get(ctx, g.baseURL+"/v2/"+url.PathEscape(gatewayOrderID)+"/status")
	if err != nil {
		return nil, fmt.Errorf("midtrans status request failed: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("midtrans status parse error: %w", err)
	}

	txStatus, _ := result["transaction_status"].(string)
	txID, _ := result["transaction_id"].(string)

	return &StatusResult{
		Status:            MapTransactionStatus(txStatus),
		TransactionStatus: txStatus,
		TransactionID:     txID,
		Raw:               resp,
	}, nil
}

// MapTransactionStatus normalizes the gateway's transaction_status
// vocabulary. Anything outside the known terminal sets is treated as still
// pending.
func MapTransactionStatus(transactionStatus string) Status {
	switch strings.ToLower(transactionStatus) {
	case "capture", "settlement":
		return StatusPaid
	case "deny", "cancel", "expire", "failure":
		return StatusFailed
	default:
		return StatusPending
	}
}

package gateway

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"topupstore/internal/models"
)

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*3600)
	}
	return loc
}

func newTestGateway(t *testing.T, serverKey, baseURL string) *MidtransGateway {
	t.Helper()
	return NewMidtransGateway(
		Credentials{ServerKey: serverKey, Sandbox: true},
		testLocation(t),
		5*time.Second,
		zap.NewNop(),
	).WithBaseURL(baseURL)
}

func signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestValidateSignature(t *testing.T) {
	g := newTestGateway(t, "SB-server-key", "http://unused")

	sig := signature("TPS-7-1700000000", "200", "15000.00", "SB-server-key")
	assert.True(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.00", sig))

	// any single input off invalidates the digest
	assert.False(t, g.ValidateSignature("TPS-7-1700000001", "200", "15000.00", sig))
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "201", "15000.00", sig))
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.01", sig))
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.00", sig[:len(sig)-1]+"f"))
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.00", ""))

	// byte-for-byte: a re-cased rendering of the right digest is rejected
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.00", strings.ToUpper(sig)))
}

func TestValidateSignatureWrongServerKey(t *testing.T) {
	g := newTestGateway(t, "SB-other-key", "http://unused")
	sig := signature("TPS-7-1700000000", "200", "15000.00", "SB-server-key")
	assert.False(t, g.ValidateSignature("TPS-7-1700000000", "200", "15000.00", sig))
}

func TestMapTransactionStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
	}{
		{"capture", StatusPaid},
		{"settlement", StatusPaid},
		{"Settlement", StatusPaid},
		{"deny", StatusFailed},
		{"cancel", StatusFailed},
		{"expire", StatusFailed},
		{"failure", StatusFailed},
		{"pending", StatusPending},
		{"authorize", StatusPending},
		{"", StatusPending},
		{"refund", StatusPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapTransactionStatus(tc.in), "status %q", tc.in)
	}
}

func TestExtractArtifactsQRAction(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")

	raw := []byte(`{
		"actions": [
			{"name": "deeplink-redirect", "url": "https://gopay/redir"},
			{"name": "generate-qr-code", "url": "https://api.midtrans.com/qr/abc"}
		],
		"qr_string": "00020101021226",
		"expiry_time": "2026-08-29 10:00:00"
	}`)

	art := g.ExtractArtifacts(raw)
	require.NotNil(t, art.QRImageURL)
	assert.Equal(t, "https://api.midtrans.com/qr/abc", *art.QRImageURL)
	require.NotNil(t, art.ExpiredAt)
	assert.Equal(t, "2026-08-29 10:00:00", art.ExpiredAt.Format("2006-01-02 15:04:05"))
	assert.Equal(t, testLocation(t).String(), art.ExpiredAt.Location().String())
}

func TestExtractArtifactsQRStringFallback(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")

	art := g.ExtractArtifacts([]byte(`{"qr_string": "0002 01/21?26"}`))
	require.NotNil(t, art.QRImageURL)
	assert.True(t, strings.HasPrefix(*art.QRImageURL, "data:text/plain;charset=utf-8,"))
	assert.NotContains(t, *art.QRImageURL, " ")
}

func TestExtractArtifactsVANumber(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")

	art := g.ExtractArtifacts([]byte(`{"va_numbers": [{"bank": "bca", "va_number": "9888123456"}]}`))
	require.NotNil(t, art.VANumber)
	assert.Equal(t, "9888123456", *art.VANumber)
	assert.Nil(t, art.QRImageURL)
}

func TestExtractArtifactsExpiryFromTransactionTime(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")

	art := g.ExtractArtifacts([]byte(`{"transaction_time": "2026-08-28 09:30:00"}`))
	require.NotNil(t, art.ExpiredAt)
	assert.Equal(t, "2026-08-29 09:30:00", art.ExpiredAt.Format("2006-01-02 15:04:05"))
}

func TestExtractArtifactsNothingUsable(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")

	art := g.ExtractArtifacts([]byte(`{"status_code": "201"}`))
	assert.Nil(t, art.QRImageURL)
	assert.Nil(t, art.VANumber)
	assert.Nil(t, art.ExpiredAt)

	assert.Equal(t, Artifacts{}, g.ExtractArtifacts([]byte("not-json")))
}

func chargeFixtures(t *testing.T) (*models.Payment, *models.Order) {
	t.Helper()
	payment := &models.Payment{
		PaymentID:      "PAY-AB12CD34",
		GatewayOrderID: "TPS-7-1700000000",
		Method:         models.PaymentMethodQRIS,
		Amount:         decimal.NewFromInt(15000),
	}
	order := &models.Order{
		ID:          7,
		Email:       "buyer@example.com",
		ServiceID:   101,
		ServiceName: "Instagram Followers",
	}
	return payment, order
}

func TestChargeSuccess(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/charge", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "SB-server-key", user)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code": "201", "transaction_status": "pending", "qr_string": "000201"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, "SB-server-key", srv.URL)
	payment, order := chargeFixtures(t)

	res := g.Charge(context.Background(), payment, order)
	require.True(t, res.OK, res.Message)
	assert.NotEmpty(t, res.Raw)

	assert.Equal(t, "qris", captured["payment_type"])
	details := captured["transaction_details"].(map[string]interface{})
	assert.Equal(t, "TPS-7-1700000000", details["order_id"])
	assert.Equal(t, float64(15000), details["gross_amount"])
	expiry := captured["custom_expiry"].(map[string]interface{})
	assert.Equal(t, float64(24), expiry["expiry_duration"])
	assert.Equal(t, "hour", expiry["unit"])
}

func TestChargeOrderTimeFollowsLocation(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status_code": "201"}`))
	}))
	defer srv.Close()

	g := NewMidtransGateway(
		Credentials{ServerKey: "k", Sandbox: true},
		time.FixedZone("WITA", 8*3600),
		5*time.Second,
		zap.NewNop(),
	).WithBaseURL(srv.URL)
	payment, order := chargeFixtures(t)

	res := g.Charge(context.Background(), payment, order)
	require.True(t, res.OK)

	expiry := captured["custom_expiry"].(map[string]interface{})
	orderTime := expiry["order_time"].(string)
	assert.True(t, strings.HasSuffix(orderTime, "+0800"), orderTime)
	_, err := time.Parse("2006-01-02 15:04:05 -0700", orderTime)
	assert.NoError(t, err)
}

func TestChargeBankTransferBody(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"status_code": "201"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, "k", srv.URL)
	payment, order := chargeFixtures(t)
	payment.Method = models.PaymentMethodBankTransfer

	res := g.Charge(context.Background(), payment, order)
	require.True(t, res.OK)
	assert.Equal(t, "bank_transfer", captured["payment_type"])
	bank := captured["bank_transfer"].(map[string]interface{})
	assert.Equal(t, "bca", bank["bank"])
}

func TestChargeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code": "406", "error_messages": ["order_id has already been taken", "try another"]}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, "k", srv.URL)
	payment, order := chargeFixtures(t)

	res := g.Charge(context.Background(), payment, order)
	assert.False(t, res.OK)
	assert.Equal(t, "order_id has already been taken; try another", res.Message)
}

func TestChargeUnsupportedMethod(t *testing.T) {
	g := newTestGateway(t, "k", "http://unused")
	payment, order := chargeFixtures(t)
	payment.Method = "paypal"

	res := g.Charge(context.Background(), payment, order)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "unsupported payment method")
}

func TestCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/TPS-7-1700000000/status", r.URL.Path)
		w.Write([]byte(`{"transaction_status": "settlement", "transaction_id": "mid-tx-9"}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, "k", srv.URL)
	st, err := g.CheckStatus(context.Background(), "TPS-7-1700000000")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, st.Status)
	assert.Equal(t, "settlement", st.TransactionStatus)
	assert.Equal(t, "mid-tx-9", st.TransactionID)
}

package callback

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonRequest(t *testing.T, path, body string) *Payload {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return FromRequest(req)
}

func formRequest(t *testing.T, path, body string) *Payload {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return FromRequest(req)
}

func TestClassifySourceParamWinsVerbatim(t *testing.T) {
	p := jsonRequest(t, "/callback?source=MedanPedia", `{"code":1,"status":"ok","data":{}}`)
	assert.Equal(t, ProviderMedanpedia, Classify(p, "/callback"))

	// Unknown source values are returned verbatim; dispatch decides.
	p = jsonRequest(t, "/callback?source=SomeVendor", `{}`)
	assert.Equal(t, Provider("somevendor"), Classify(p, "/callback"))
}

func TestClassifyPathSlug(t *testing.T) {
	p := jsonRequest(t, "/callback/digiflazz", `{}`)
	assert.Equal(t, ProviderDigiflazz, Classify(p, "/callback/digiflazz"))

	// Case-insensitive slug match.
	p = jsonRequest(t, "/callback/MidTrans", `{}`)
	assert.Equal(t, ProviderMidtrans, Classify(p, "/callback/MidTrans"))

	// Trailing slash: last non-empty segment counts.
	p = jsonRequest(t, "/callback/jap/", `{}`)
	assert.Equal(t, ProviderJAP, Classify(p, "/callback/jap/"))
}

func TestClassifyGenericPathWordsAreSkipped(t *testing.T) {
	// "callback" or "webhook" as the final segment carries no identity;
	// the payload shape decides instead.
	p := jsonRequest(t, "/api/webhook", `{"trxid":"T1","status":"Success"}`)
	assert.Equal(t, ProviderMedanpedia, Classify(p, "/api/webhook"))
}

func TestClassifyStructural(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Provider
	}{
		{"remittance flat", `{"ref_id":"R1"}`, ProviderLinkqu},
		{"remittance nested", `{"data":{"tr_id":"T1","sign":"abc"}}`, ProviderLinkqu},
		{"smm code-status-data", `{"code":200,"status":"ok","data":{"id":1}}`, ProviderBuzzerPanel},
		{"smm trxid", `{"trxid":"TX1","status":"Partial"}`, ProviderMedanpedia},
		{"topup product_code", `{"status":"Sukses","price":1500,"message":"ok","product_code":"ML86"}`, ProviderVipayment},
		{"digiflazz topic", `{"data":{"buyer_sku_code":"ML86"},"topic":"transaction"}`, ProviderDigiflazz},
		{"crm", `{"module":"Leads","record_id":"42"}`, ProviderZoho},
		{"gateway full", `{"order_id":"TPS-1-1","transaction_status":"settlement","gross_amount":"50000.00","signature_key":"aa","transaction_id":"tx-1"}`, ProviderMidtrans},
		{"generic external_id", `{"external_id":"inv-1","status":"PAID"}`, ProviderGeneric},
		{"generic doku", `{"TRANSIDMERCHANT":"1","RESULTMSG":"SUCCESS"}`, ProviderGeneric},
		{"generic ipn", `{"txn_id":"1","payment_status":"Completed"}`, ProviderGeneric},
		{"generic invoice", `{"invoice":"INV-1","payment_status":"paid"}`, ProviderGeneric},
		{"nothing", `{"hello":"world"}`, ProviderUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := jsonRequest(t, "/callback", tc.body)
			assert.Equal(t, tc.want, Classify(p, "/callback"))
		})
	}
}

func TestClassifyDigiflazzRequiresNonRemittanceData(t *testing.T) {
	// data alone is not enough; topic or callback_url must accompany it,
	// and a remittance-shaped data object wins first.
	p := jsonRequest(t, "/callback", `{"data":{"rc":"00"}}`)
	assert.Equal(t, ProviderUnknown, Classify(p, "/callback"))
}

func TestClassifyPriorityOverlap(t *testing.T) {
	// Satisfies both the SMM code/status/data set and a generic payment
	// fingerprint; the SMM branch is earlier and wins.
	body := `{"code":1,"status":"ok","data":{"x":1},"external_id":"inv-9"}`
	p := jsonRequest(t, "/callback", body)
	assert.Equal(t, ProviderBuzzerPanel, Classify(p, "/callback"))

	// The dedicated gateway check outranks the generic duplicate of its
	// own signature.
	body = `{"order_id":"1","transaction_status":"settlement","gross_amount":"1","signature_key":"s","payment_type":"qris"}`
	p = jsonRequest(t, "/callback", body)
	assert.Equal(t, ProviderMidtrans, Classify(p, "/callback"))

	// Without the secondary gateway fields it degrades to generic.
	body = `{"order_id":"1","transaction_status":"settlement","gross_amount":"1","signature_key":"s"}`
	p = jsonRequest(t, "/callback", body)
	assert.Equal(t, ProviderGeneric, Classify(p, "/callback"))
}

func TestClassifyMidtransUserAgent(t *testing.T) {
	req := httptest.NewRequest("POST", "/callback", strings.NewReader(`{"transaction_status":"pending"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Midtrans-Notification/2.0")
	p := FromRequest(req)
	assert.Equal(t, ProviderMidtrans, Classify(p, "/callback"))
}

func TestClassifyFormFields(t *testing.T) {
	p := formRequest(t, "/callback", "trxid=TX9&status=Success")
	assert.Equal(t, ProviderMedanpedia, Classify(p, "/callback"))
}

func TestClassifyDeterministic(t *testing.T) {
	body := `{"code":1,"status":"ok","data":{"x":1},"external_id":"inv-9"}`
	first := Classify(jsonRequest(t, "/callback", body), "/callback")
	for i := 0; i < 50; i++ {
		got := Classify(jsonRequest(t, "/callback", body), "/callback")
		require.Equal(t, first, got)
	}
}

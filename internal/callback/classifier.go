package callback

import (
	"strings"
)

// Provider identifies the external system behind an inbound callback.
type Provider string

const (
	ProviderLinkqu      Provider = "linkqu"      // remittance
	ProviderBuzzerPanel Provider = "buzzerpanel" // SMM panel
	ProviderMedanpedia  Provider = "medanpedia"  // SMM panel
	ProviderJAP         Provider = "jap"         // SMM panel
	ProviderVipayment   Provider = "vipayment"   // game/mobile topup
	ProviderDigiflazz   Provider = "digiflazz"   // topup aggregator
	ProviderZoho        Provider = "zoho"        // CRM webhooks
	ProviderMidtrans    Provider = "midtrans"    // payment gateway
	ProviderGeneric     Provider = "payment"     // unidentified payment vendor
	ProviderUnknown     Provider = "unknown"
)

// knownSlugs maps URL path segments to provider identities.
var knownSlugs = map[string]Provider{
	"linkqu":      ProviderLinkqu,
	"buzzerpanel": ProviderBuzzerPanel,
	"medanpedia":  ProviderMedanpedia,
	"jap":         ProviderJAP,
	"vipayment":   ProviderVipayment,
	"digiflazz":   ProviderDigiflazz,
	"zoho":        ProviderZoho,
	"midtrans":    ProviderMidtrans,
	"payment":     ProviderGeneric,
}

// genericPathWords are path segments that carry no provider identity.
var genericPathWords = map[string]bool{
	"callback": true,
	"api":      true,
	"webhook":  true,
}

// Classify maps an inbound payload to a provider identity. Resolution
// degrades in fixed steps: an explicit source param, then a URL slug, then
// payload-shape sniffing, then unknown. The sniffing order is a deliberate
// tie-break policy; several field sets overlap and the first match wins.
func Classify(p *Payload, path string) Provider {
	// 1. Explicit self-identification. Trusted verbatim here; whether the
	// value names a known provider is the dispatcher's problem.
	if source := p.Query.Get("source"); source != "" {
		return Provider(strings.ToLower(source))
	}

	// 2. URL convention: last meaningful path segment.
	if slug := lastPathSegment(path); slug != "" && !genericPathWords[slug] {
		if prov, ok := knownSlugs[slug]; ok {
			return prov
		}
	}

	// 3. Structural sniffing, fixed priority.
	switch {
	case p.HasAny("ref_id", "tr_id", "sign"):
		return ProviderLinkqu
	case p.HasAll("code", "status", "data"):
		return ProviderBuzzerPanel
	case p.HasAll("trxid", "status"):
		return ProviderMedanpedia
	case p.HasAll("status", "price", "message", "product_code"):
		return ProviderVipayment
	case p.Has("data") && p.HasAny("topic", "callback_url"):
		return ProviderDigiflazz
	case p.HasAll("module", "record_id"):
		return ProviderZoho
	case isMidtrans(p):
		return ProviderMidtrans
	case isGenericPayment(p):
		return ProviderGeneric
	}

	return ProviderUnknown
}

func lastPathSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.ToLower(strings.TrimSpace(segments[i])); s != "" {
			return s
		}
	}
	return ""
}

// isMidtrans matches the gateway's notification shape, or its User-Agent
// for payloads that vary by payment type.
func isMidtrans(p *Payload) bool {
	if p.HasAll("order_id", "transaction_status", "gross_amount", "signature_key") &&
		p.HasAny("transaction_id", "payment_type", "merchant_id") {
		return true
	}
	ua := strings.ToLower(p.Headers.Get("User-Agent"))
	return strings.Contains(ua, "midtrans")
}

// isGenericPayment matches field-set fingerprints of payment vendors that
// do not self-identify. The first group duplicates the gateway signature as
// a fallback for notifications that failed the stricter check above.
func isGenericPayment(p *Payload) bool {
	switch {
	case p.HasAll("transaction_status", "order_id", "signature_key"):
		return true
	case p.Has("external_id") && p.HasAny("payment_method", "status"):
		return true
	case p.HasAll("TRANSIDMERCHANT", "RESULTMSG"):
		return true
	case p.HasAll("txn_id", "payment_status"):
		return true
	case p.HasAll("invoice", "payment_status"):
		return true
	}
	return false
}

package callback

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// AckFunc writes the acknowledgement a provider's integration expects.
// Every formatter answers 200: these callbacks are informational sinks and
// an unexpected shape or status would make the provider retry-storm or
// disable the integration. Only the payment gateway branch, which mutates
// financial state, may reject; that branch is handled by the dispatcher,
// not here.
type AckFunc func(c echo.Context, p *Payload) error

var ackTable = map[Provider]AckFunc{
	ProviderLinkqu:      ackLinkqu,
	ProviderBuzzerPanel: ackBuzzerPanel,
	ProviderMedanpedia:  ackMedanpedia,
	ProviderVipayment:   ackVipayment,
	ProviderJAP:         ackJAP,
	ProviderDigiflazz:   ackDigiflazz,
	ProviderZoho:        ackZoho,
	ProviderGeneric:     ackGenericPayment,
}

// Ack returns the acknowledgement formatter for a provider. Identities
// without a formatter (including arbitrary source-param values) fall back
// to AckUnknown at the dispatch site.
func Ack(provider Provider) (AckFunc, bool) {
	f, ok := ackTable[provider]
	return f, ok
}

func ackLinkqu(c echo.Context, p *Payload) error {
	data := interface{}(p.Echo())
	if p.JSON != nil {
		if d, ok := p.JSON["data"]; ok {
			data = d
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rc":      "00",
		"status":  true,
		"message": "Success",
		"data":    data,
	})
}

func ackBuzzerPanel(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Callback received",
		"data":    p.Echo(),
	})
}

func ackMedanpedia(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Callback processed successfully",
		"data":    p.Echo(),
	})
}

func ackVipayment(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  true,
		"message": "OK",
		"data":    p.Echo(),
	})
}

func ackJAP(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  200,
		"message": "Success",
		"data":    p.Echo(),
	})
}

func ackDigiflazz(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Callback received successfully",
		"data":    p.Echo(),
	})
}

func ackZoho(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"code":    200,
		"message": "Webhook received",
	})
}

func ackGenericPayment(c echo.Context, p *Payload) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "success",
		"message":   "Payment notification received",
		"timestamp": time.Now().Unix(),
	})
}

// AckUnknown acknowledges callbacks nothing could classify. JSON callers
// get a JSON body; browsers get a rendered fallback page echoing the
// payload.
func AckUnknown(c echo.Context, p *Payload) error {
	if wantsJSON(c.Request()) {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "success",
			"message":   "Callback received successfully",
			"data":      p.Echo(),
			"timestamp": time.Now().Unix(),
		})
	}
	return renderFallbackPage(c, p)
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

var fallbackTmpl = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Callback received</title>
    <style>
        body { font-family: Tahoma, sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; max-width: 600px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        pre { background: #fafafa; border: 1px solid #eee; border-radius: 4px; padding: 12px; overflow-x: auto; color: #555; }
    </style>
</head>
<body>
    <div class="box">
        <h1>Callback received successfully</h1>
        <pre>{{.Payload}}</pre>
    </div>
</body>
</html>`))

func renderFallbackPage(c echo.Context, p *Payload) error {
	pretty, err := json.MarshalIndent(p.Echo(), "", "  ")
	if err != nil {
		pretty = []byte("{}")
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return fallbackTmpl.Execute(c.Response().Writer, map[string]interface{}{
		"Payload": string(pretty),
	})
}

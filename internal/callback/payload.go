package callback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Payload is an inbound callback request decomposed into the pieces the
// classifier sniffs: query params, form fields, parsed JSON body and
// headers. RawBody keeps the unparsed body for snapshots.
type Payload struct {
	Query   url.Values
	Form    url.Values
	JSON    map[string]interface{}
	Headers http.Header
	RawBody []byte
}

// FromRequest decomposes an HTTP request. The body is read once and
// restored so downstream binds still work.
func FromRequest(r *http.Request) *Payload {
	p := &Payload{
		Query:   r.URL.Query(),
		Form:    url.Values{},
		Headers: r.Header,
	}

	if r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err == nil {
			p.RawBody = raw
			r.Body = io.NopCloser(bytes.NewReader(raw))
		}
	}
	if len(p.RawBody) == 0 {
		return p
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		if vals, err := url.ParseQuery(string(p.RawBody)); err == nil {
			p.Form = vals
		}
	case strings.Contains(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			p.Form = r.PostForm
			r.Body = io.NopCloser(bytes.NewReader(p.RawBody))
		}
	default:
		// Providers are sloppy about Content-Type; try JSON whenever the
		// body looks like it.
		trimmed := bytes.TrimSpace(p.RawBody)
		if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			var m map[string]interface{}
			if err := json.Unmarshal(trimmed, &m); err == nil {
				p.JSON = m
			}
		}
	}

	return p
}

// nested returns the one-level `data` object of the JSON body, if any.
// Several providers wrap their whole payload in it.
func (p *Payload) nested() map[string]interface{} {
	if p.JSON == nil {
		return nil
	}
	if data, ok := p.JSON["data"].(map[string]interface{}); ok {
		return data
	}
	return nil
}

// Has reports whether a field appears in the query params, form fields,
// flat JSON body or one level inside a `data` object. Lookup is
// case-sensitive; some vendors identify themselves with all-caps fields.
func (p *Payload) Has(name string) bool {
	if p.Query.Has(name) || p.Form.Has(name) {
		return true
	}
	if p.JSON != nil {
		if _, ok := p.JSON[name]; ok {
			return true
		}
	}
	if data := p.nested(); data != nil {
		if _, ok := data[name]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether every named field is present.
func (p *Payload) HasAll(names ...string) bool {
	for _, n := range names {
		if !p.Has(n) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one named field is present.
func (p *Payload) HasAny(names ...string) bool {
	for _, n := range names {
		if p.Has(n) {
			return true
		}
	}
	return false
}

// String returns the first non-empty string value of a field across all
// sources, formatting scalar JSON values as text.
func (p *Payload) String(name string) string {
	if v := p.Query.Get(name); v != "" {
		return v
	}
	if v := p.Form.Get(name); v != "" {
		return v
	}
	if p.JSON != nil {
		if v, ok := p.JSON[name]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	if data := p.nested(); data != nil {
		if v, ok := data[name]; ok {
			return stringify(v)
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers: render integers without a trailing .000000
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%v", t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Echo returns the payload as a single map for acknowledgement echoing:
// the JSON body when one was parsed, otherwise the merged query and form
// fields.
func (p *Payload) Echo() map[string]interface{} {
	if p.JSON != nil {
		return p.JSON
	}
	merged := make(map[string]interface{})
	for k, vs := range p.Query {
		if len(vs) > 0 {
			merged[k] = vs[0]
		}
	}
	for k, vs := range p.Form {
		if len(vs) > 0 {
			merged[k] = vs[0]
		}
	}
	return merged
}

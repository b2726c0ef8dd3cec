package monitor

import (
	"net/http"
	"strings"
)

// blockedHeaders is the deny-list of dangerous headers that must never be
// set from a check's custom request headers: hop-by-hop headers, forwarded
// headers, and pseudo-headers.
var blockedHeaders = map[string]bool{
	"host":                true,
	"transfer-encoding":   true,
	"content-length":      true,
	"content-encoding":    true,
	"accept-encoding":     true,
	"connection":          true,
	"upgrade":             true,
	"keep-alive":          true,
	"te":                  true,
	"trailer":             true,
	"proxy-connection":    true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"forwarded":           true,
	"x-forwarded-for":     true,
	"x-forwarded-host":    true,
	"x-forwarded-proto":   true,
	"x-forwarded-port":    true,
	"x-real-ip":           true,
	"via":                 true,
	":authority":          true,
	":method":             true,
	":path":               true,
	":scheme":             true,
	"expect":              true,
	"range":                true,
}

func isHeaderBlocked(name string) bool {
	lower := strings.ToLower(name)
	if blockedHeaders[lower] {
		return true
	}
	return strings.HasPrefix(lower, "proxy-")
}

// applyCustomHeaders sets every non-blocked header from headers on req.
func applyCustomHeaders(req *http.Request, headers []RequestHeader) {
	for _, h := range headers {
		if h.Key == "" || isHeaderBlocked(h.Key) {
			continue
		}
		req.Header.Set(h.Key, h.Value)
	}
}

package utils

import (
	"net/http"
	"strings"

	"uglink/internal/constants"
)

var HopByHopHeadersNames = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// IsStrippedHeader reports whether an inbound header must not reach the origin.
func IsStrippedHeader(name string) bool {
	lower := strings.ToLower(name)
	if lower == "host" {
		return true
	}
	for _, prefix := range constants.StrippedHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// FilterRequestHeaders copies src without host, edge-network and hop-by-hop
// headers. Upgrade headers survive when keepUpgrade is set.
func FilterRequestHeaders(src http.Header, keepUpgrade bool) http.Header {
	dst := make(http.Header, len(src))
	for key, values := range src {
		if IsStrippedHeader(key) {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
	for _, h := range HopByHopHeadersNames {
		if keepUpgrade && (h == "Connection" || h == "Upgrade") {
			continue
		}
		dst.Del(h)
	}
	return dst
}

// CopyResponseHeaders adds every header from src to dst.
func CopyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

package facade

import (
	"net"
	"net/http"
	"strings"
)

// checkAuth enforces spec §6's `XREGISTRY_<svc>_API_KEY`: when set, every
// request must carry `Authorization: Bearer <key>`, except a loopback
// request to `/model`. Returns true if the request may proceed.
func (e *Engine) checkAuth(r *http.Request) bool {
	if e.apiKey == "" {
		return true
	}
	if strings.HasSuffix(r.URL.Path, "/model") && isLoopback(r) {
		return true
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, prefix) && auth[len(prefix):] == e.apiKey
}

// isLoopback reports whether r originated from 127.0.0.1/::1.
func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

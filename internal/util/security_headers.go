package util

import "net/http"

const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; sandbox"

// WithSecurityHeaders stamps the API's response headers. JSON responses are
// never cached; handlers that stream artifacts overwrite Cache-Control
// themselves. HSTS is sent only on HTTPS, and a forwarded scheme counts only
// from a trusted proxy.
func WithSecurityHeaders(trusted *TrustedProxies, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-site")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Cache-Control", "no-store")
		if RequestIsHTTPS(r, trusted) {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

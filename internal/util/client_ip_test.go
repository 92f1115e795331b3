package util

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10", "fd00::/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trusted    *TrustedProxies
		want       string
	}{
		{
			name:       "untrusted peer ignores every forwarding header",
			remoteAddr: "198.51.100.10:1234",
			headers:    map[string]string{"Forwarded": "for=203.0.113.1", "X-Forwarded-For": "203.0.113.5", "X-Real-IP": "203.0.113.6"},
			trusted:    trusted,
			want:       "198.51.100.10",
		},
		{
			name:       "nil allowlist trusts nobody",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:       "10.0.0.20",
		},
		{
			name:       "forwarded header wins over x-forwarded-for",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"Forwarded": `for="203.0.113.1:4711";proto=https`, "X-Forwarded-For": "203.0.113.5"},
			trusted:    trusted,
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded ipv6 node is unbracketed",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"Forwarded": `for="[2001:db8::17]:4711", for=10.0.0.3`},
			trusted:    trusted,
			want:       "2001:db8::17",
		},
		{
			name:       "obfuscated forwarded node falls through to x-forwarded-for",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"Forwarded": "for=_hidden", "X-Forwarded-For": "203.0.113.5"},
			trusted:    trusted,
			want:       "203.0.113.5",
		},
		{
			name:       "chain picks first untrusted hop from the right",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.5, 10.0.0.10"},
			trusted:    trusted,
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip when no forwarded chain parses",
			remoteAddr: "192.168.1.10:443",
			headers:    map[string]string{"X-Forwarded-For": "invalid", "X-Real-IP": "203.0.113.7"},
			trusted:    trusted,
			want:       "203.0.113.7",
		},
		{
			name:       "all hops trusted returns leftmost",
			remoteAddr: "10.0.0.20:1234",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.10"},
			trusted:    trusted,
			want:       "10.0.0.5",
		},
		{
			name:       "ipv4-mapped peer matches ipv4 prefix",
			remoteAddr: "[::ffff:10.1.2.3]:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			trusted:    trusted,
			want:       "203.0.113.9",
		},
		{
			name:       "unparseable remote addr is returned as is",
			remoteAddr: "pipe",
			trusted:    trusted,
			want:       "pipe",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://api.meetai.test/api/webhook", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	set, err := NewTrustedProxies([]string{" ", ""})
	if err != nil || set != nil {
		t.Fatalf("blank entries should yield nil set, got %v, %v", set, err)
	}
	for _, bad := range []string{"bad-cidr", "10.0.0.0/33", "300.1.1.1"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected parse error for %q", bad)
		}
	}
}

func TestRequestIsHTTPS(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}
	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		tls     bool
		want    bool
	}{
		{"direct tls", "198.51.100.10:1", nil, true, true},
		{"plain http", "198.51.100.10:1", nil, false, false},
		{"spoofed proto from untrusted peer", "198.51.100.10:1", map[string]string{"X-Forwarded-Proto": "https"}, false, false},
		{"trusted proxy x-forwarded-proto", "10.0.0.2:1", map[string]string{"X-Forwarded-Proto": "HTTPS"}, false, true},
		{"trusted proxy forwarded proto", "10.0.0.2:1", map[string]string{"Forwarded": `for=203.0.113.1;proto="https"`}, false, true},
		{"trusted proxy says http", "10.0.0.2:1", map[string]string{"X-Forwarded-Proto": "http"}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/meetings", nil)
			req.RemoteAddr = tc.remote
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := RequestIsHTTPS(req, trusted); got != tc.want {
				t.Fatalf("RequestIsHTTPS = %v, want %v", got, tc.want)
			}
		})
	}
}

package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	cases := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"well-formed id is reused", "req-incoming_123.a:b", true},
		{"missing id is minted", "", false},
		{"header injection is replaced", "abc\r\nSet-Cookie: x=1", false},
		{"spaces are rejected", "two words", false},
		{"overlong id is replaced", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tc.incoming != "" {
				req.Header[RequestIDHeader] = []string{tc.incoming}
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			echoed := rec.Header().Get(RequestIDHeader)
			if echoed == "" || echoed != seen {
				t.Fatalf("response id %q does not match context id %q", echoed, seen)
			}
			if tc.reuse && echoed != tc.incoming {
				t.Fatalf("expected incoming id to be reused, got %q", echoed)
			}
			if !tc.reuse && echoed == strings.TrimSpace(tc.incoming) {
				t.Fatalf("expected a fresh id, got %q", echoed)
			}
		})
	}
}

func TestRequestLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		LoggerFromContext(r.Context()).Info("webhook accepted")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v\n%s", err, buf.String())
	}
	if line["request_id"] != "req-42" || line["msg"] != "webhook accepted" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

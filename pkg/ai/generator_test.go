package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAICompatSendsSystemAndHistory(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello there "}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL+"/v1/", "sk-test", "gpt-test")
	out, err := g.Generate(context.Background(), Request{
		System: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hey"},
			{Role: RoleUser, Content: "what happened?"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 4 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[2].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", got.Messages)
	}
}

func TestOpenAICompatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	g := NewOpenAICompatGenerator(srv.URL, "", "m")
	_, err := g.Generate(context.Background(), Prompt("", "x"))
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestGeminiMapsAssistantToModelRole(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("missing key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sum"},{"text":"mary"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGeminiGenerator(srv.URL, "g-key", "models/gemini-test")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := g.Generate(context.Background(), Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "summary" {
		t.Fatalf("out = %q", out)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "sys" {
		t.Fatalf("system instruction missing: %+v", got)
	}
	if got.Contents[1].Role != "model" {
		t.Fatalf("assistant role = %q", got.Contents[1].Role)
	}
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer srv.Close()

	out, err := NewOllamaGenerator(srv.URL, "llama").Generate(context.Background(), Prompt("s", "u"))
	if err != nil || out != "ok" {
		t.Fatalf("generate = %q, %v", out, err)
	}
	if got.Stream || len(got.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	if _, err := New(Config{Provider: "nope"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := New(Config{Provider: "gemini"}); err == nil {
		t.Fatalf("expected error for gemini without key")
	}
	g, err := New(Config{Provider: "ollama", Model: "m"})
	if err != nil {
		t.Fatalf("new ollama: %v", err)
	}
	if _, ok := g.(*OllamaGenerator); !ok {
		t.Fatalf("unexpected generator %T", g)
	}
	if _, err := g.Generate(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vitaeforge/internal/llm"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isGPT5(tt.model); got != tt.want {
				t.Fatalf("isGPT5(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func newTestClient(t *testing.T, model string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	oldURL := apiURL
	apiURL = server.URL
	t.Cleanup(func() { apiURL = oldURL })

	client, err := NewClient("test-key", model, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestRefineTextSendsPromptAndReturnsContent(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Led a high-performing team.  "}}]}`))
	})

	got, err := client.RefineText(context.Background(), llm.RefineInput{Text: "led team"})
	if err != nil {
		t.Fatalf("RefineText: %v", err)
	}
	if got != "Led a high-performing team." {
		t.Fatalf("unexpected refined text %q", got)
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	if content, _ := user["content"].(string); !strings.HasSuffix(content, "CV Content: led team") {
		t.Fatalf("unexpected user prompt %q", content)
	}
	if _, ok := payload["temperature"]; !ok {
		t.Fatalf("expected temperature for non gpt-5 model")
	}
}

func TestRefineTextOmitsTemperatureForGPT5(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, "gpt-5-mini", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	if _, err := client.RefineText(context.Background(), llm.RefineInput{Text: "x"}); err != nil {
		t.Fatalf("RefineText: %v", err)
	}
	if _, ok := payload["temperature"]; ok {
		t.Fatalf("temperature must be omitted for gpt-5 models")
	}
}

func TestRefineTextErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "provider error", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "not json", status: http.StatusBadGateway, body: `upstream down`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "gpt-4o-mini", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			if _, err := client.RefineText(context.Background(), llm.RefineInput{Text: "x"}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "gpt-4o-mini", 0); err == nil {
		t.Fatalf("expected error without key")
	}
	if _, err := NewClient("k", " ", 0); err == nil {
		t.Fatalf("expected error without model")
	}
}

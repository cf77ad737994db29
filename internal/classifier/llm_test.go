package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}, "finish_reason": "stop"},
			},
		})
	}
}

func newTestLLM(url string, opts ...Option) *LLM {
	opts = append([]Option{
		WithRetryBackoff(time.Millisecond, 4*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	return NewLLM(LLMConfig{APIKey: "test-key", BaseURL: url, Model: "test-model"}, opts...)
}

func TestLLMClassify(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, " Baseball.\n")(w, r)
	}))
	defer server.Close()

	label, err := newTestLLM(server.URL).Classify(context.Background(), "Top 10 Home Runs", strings.Repeat("x", 800))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if label != "baseball" {
		t.Fatalf("expected baseball, got %q", label)
	}

	if got.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", got.Model)
	}
	if got.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	user := got.Messages[1].Content
	if !strings.Contains(user, "Title: Top 10 Home Runs") {
		t.Errorf("prompt missing title: %q", user)
	}
	if strings.Contains(user, strings.Repeat("x", 501)) {
		t.Error("expected description to be truncated to 500 runes")
	}
}

func TestLLMClassifyRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}
		completionHandler(t, "gaming")(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestLLM(server.URL, WithSleeper(func(d time.Duration) { slept = append(slept, d) }))

	label, err := client.Classify(context.Background(), "Minecraft speedrun", "")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if label != "gaming" {
		t.Fatalf("expected gaming, got %q", label)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != time.Millisecond || slept[1] != 2*time.Millisecond {
		t.Errorf("unexpected backoff sequence %v", slept)
	}
}

func TestLLMClassifyHonorsRetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		completionHandler(t, "news")(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestLLM(server.URL,
		WithRetryBackoff(time.Millisecond, 10*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.Classify(context.Background(), "Evening headlines", ""); err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("expected a single 3s wait, got %v", slept)
	}
}

func TestLLMClassifyDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer server.Close()

	_, err := newTestLLM(server.URL).Classify(context.Background(), "title", "desc")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestLLMClassifyEmptyContentExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		completionHandler(t, "   ")(w, r)
	}))
	defer server.Close()

	_, err := newTestLLM(server.URL).Classify(context.Background(), "title", "desc")
	if !errors.Is(err, errEmptyContent) {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if calls != defaultRetryAttempts {
		t.Fatalf("expected %d calls, got %d", defaultRetryAttempts, calls)
	}
}

func TestLLMClassifyPunctuationOnly(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "?!."))
	defer server.Close()

	_, err := newTestLLM(server.URL).Classify(context.Background(), "title", "desc")
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestLLMClassifyRequiresAPIKey(t *testing.T) {
	client := NewLLM(LLMConfig{})
	if _, err := client.Classify(context.Background(), "t", "d"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCleanLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Baseball", "baseball"},
		{"sports.", "sports"},
		{"  News!\n", "news"},
		{"```\ngaming\n```", "gaming"},
		{"Theme: cooking", "cooking"},
		{"science fiction", "science"},
		{"e-sports", "e-sports"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := cleanLabel(tt.in); got != tt.want {
			t.Errorf("cleanLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

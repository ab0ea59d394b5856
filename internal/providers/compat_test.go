package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func compatResponse(content string) string {
	return `{
		"id": "chatcmpl-1",
		"model": "test-model-v2",
		"choices": [{"message": {"role": "assistant", "content": ` + strconvQuote(content) + `}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
	}`
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func testCompatClient(url string) *CompatClient {
	return NewCompatClient(CompatConfig{
		APIKey:       "sk-test",
		BaseURL:      url,
		DefaultModel: "test-model",
		RPM:          100000,
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
	})
}

func TestCompatChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotWire chatWireRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotWire); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(compatResponse("Bonjour le monde.")))
	}))
	defer srv.Close()

	c := testCompatClient(srv.URL)
	result, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You are a translator."},
			{Role: "user", Content: "Hello world."},
		},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotWire.Model != "test-model" {
		t.Errorf("model = %q, want client default", gotWire.Model)
	}
	if gotWire.Temperature != 0.3 || gotWire.MaxTokens != 512 {
		t.Errorf("generation params = %v / %d", gotWire.Temperature, gotWire.MaxTokens)
	}
	if len(gotWire.Messages) != 2 || gotWire.Messages[1].Content != "Hello world." {
		t.Errorf("messages = %+v", gotWire.Messages)
	}

	if !result.Success {
		t.Error("result not marked successful")
	}
	if result.Content != "Bonjour le monde." {
		t.Errorf("content = %q", result.Content)
	}
	if result.ModelUsed != "test-model-v2" {
		t.Errorf("model used = %q", result.ModelUsed)
	}
	if result.TotalTokens != 19 || result.PromptTokens != 12 || result.CompletionTokens != 7 {
		t.Errorf("token usage = %d/%d/%d", result.PromptTokens, result.CompletionTokens, result.TotalTokens)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d", result.Attempts)
	}
	if result.RequestID == "" {
		t.Error("request id not assigned")
	}
}

func TestCompatModelOverride(t *testing.T) {
	var gotWire chatWireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotWire)
		w.Write([]byte(compatResponse("ok")))
	}))
	defer srv.Close()

	_, err := testCompatClient(srv.URL).Chat(context.Background(), &ChatRequest{
		Model:    "other-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotWire.Model != "other-model" {
		t.Errorf("model = %q", gotWire.Model)
	}
}

func TestCompatRetry(t *testing.T) {
	t.Run("retries 429 then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(compatResponse("second try")))
		}))
		defer srv.Close()

		result, err := testCompatClient(srv.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err != nil {
			t.Fatalf("Chat: %v", err)
		}
		if result.Content != "second try" {
			t.Errorf("content = %q", result.Content)
		}
		if result.Attempts != 2 {
			t.Errorf("attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("retries 500 until exhausted", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "backend down", http.StatusInternalServerError)
		}))
		defer srv.Close()

		result, err := testCompatClient(srv.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "max retries") {
			t.Errorf("err = %v", err)
		}
		// MaxRetries 2 means three attempts total.
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
		if result.ErrorType != "http_error" {
			t.Errorf("error type = %q", result.ErrorType)
		}
	})

	t.Run("fails fast on 401", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := testCompatClient(srv.URL).Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1 (no retry on auth failure)", calls.Load())
		}
	})
}

func TestCompatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "chatcmpl-1", "model": "m", "choices": [], "usage": {}}`))
	}))
	defer srv.Close()

	result, err := testCompatClient(srv.URL).Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.ErrorType != "empty_response" {
		t.Errorf("error type = %q", result.ErrorType)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows burst up to capacity", func(t *testing.T) {
		r := NewRateLimiter(10)
		ctx := context.Background()
		start := time.Now()
		for i := 0; i < 10; i++ {
			if err := r.Wait(ctx); err != nil {
				t.Fatalf("Wait %d: %v", i, err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("burst took %v", elapsed)
		}
	})

	t.Run("blocks when drained and respects cancellation", func(t *testing.T) {
		r := NewRateLimiter(60)
		r.Record429()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := r.Wait(ctx)
		if err == nil {
			t.Fatal("expected context error while bucket is empty")
		}
	})

	t.Run("refills over time", func(t *testing.T) {
		// 6000 rpm refills one token in 10ms.
		r := NewRateLimiter(6000)
		r.Record429()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := r.Wait(ctx); err != nil {
			t.Fatalf("Wait after refill: %v", err)
		}
	})
}

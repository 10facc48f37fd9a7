package classifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"meddoc/internal/classifier"
	"meddoc/internal/taxonomy"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func completionBody(t *testing.T, content string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	if err != nil {
		t.Fatalf("marshal completion: %v", err)
	}
	return string(data)
}

func newTestClient(t *testing.T, url string, sleeper *recordingSleeper) *classifier.Client {
	t.Helper()
	return classifier.NewClient(classifier.Config{
		APIKey:    "secret",
		BaseURL:   url + "/v1/",
		Model:     "test-model",
		RateLimit: 0,
	},
		classifier.WithSleeper(sleeper.sleep),
		classifier.WithExtractor(func(string, int) (string, error) { return "GE Optima XR220 spec", nil }),
		classifier.WithCategories("chan_doan_hinh_anh/x_quang\n"),
	)
}

func TestClassifySendsExpectedRequest(t *testing.T) {
	answer := `{"doc_type":"ky_thuat","vendor":"GE Healthcare","model":"Optima XR220","category_slug":"chan_doan_hinh_anh/x_quang","summary":"Thông số kỹ thuật","confidence":0.92}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model          string            `json:"model"`
			Temperature    float64           `json:"temperature"`
			ResponseFormat map[string]string `json:"response_format"`
			Messages       []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Temperature != 0.1 || req.ResponseFormat["type"] != "json_object" {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected one user message, got %+v", req.Messages)
		} else {
			content := req.Messages[0].Content
			for _, want := range []string{"IncomingScan.pdf", "GE Optima XR220 spec", "chan_doan_hinh_anh/x_quang", "category_slug"} {
				if !strings.Contains(content, want) {
					t.Errorf("prompt missing %q", want)
				}
			}
		}
		_, _ = io.WriteString(w, completionBody(t, answer))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, sleeper)
	result, err := client.Classify(context.Background(), "/inbox/IncomingScan.pdf")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.DocType != taxonomy.DocTechnical || result.Vendor != "GE Healthcare" || result.Model != "Optima XR220" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Category() != "chan_doan_hinh_anh" || result.Group() != "x_quang" {
		t.Fatalf("unexpected placement %q", result.CategorySlug)
	}
	if result.Confidence != 0.92 || result.ConfidenceEstimated || result.Fallback {
		t.Fatalf("unexpected confidence %+v", result)
	}
	if len(sleeper.delays) != 0 {
		t.Fatalf("expected no retries, got %v", sleeper.delays)
	}
}

func TestClassifyRetriesRateLimitWithBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, sleeper)
	_, err := client.ClassifyText(context.Background(), "a.pdf", "")
	var rateErr *classifier.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.Attempts != 5 || calls.Load() != 5 {
		t.Fatalf("expected 5 attempts, got %d (server saw %d)", rateErr.Attempts, calls.Load())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("unexpected delays %v", sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, sleeper.delays[i], want[i])
		}
	}
}

func TestClassifyHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "20")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, completionBody(t, `{"doc_type":"bao_gia","confidence":0.7}`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, sleeper)
	result, err := client.ClassifyText(context.Background(), "quote.pdf", "")
	if err != nil {
		t.Fatalf("ClassifyText: %v", err)
	}
	if result.DocType != taxonomy.DocQuotation {
		t.Fatalf("unexpected doc type %q", result.DocType)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 20*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", sleeper.delays)
	}
}

func TestClassifyStatusErrorIsImmediate(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, sleeper)
	_, err := client.ClassifyText(context.Background(), "a.pdf", "")
	var statusErr *classifier.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if calls.Load() != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("expected a single attempt, got %d calls", calls.Load())
	}
}

func TestClassifyConnectionFailureBecomesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, url, sleeper)
	_, err := client.ClassifyText(context.Background(), "a.pdf", "")
	var transportErr *classifier.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if len(sleeper.delays) != 4 {
		t.Fatalf("expected 4 backoff sleeps, got %v", sleeper.delays)
	}
}

func TestClassifyToleratesPrefixedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: "+completionBody(t, "```json\n{\"doc_type\":\"hop_dong\",\"vendor\":\"Siemens\"}\n```")+"\n[DONE]")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &recordingSleeper{})
	result, err := client.ClassifyText(context.Background(), "hd.pdf", "")
	if err != nil {
		t.Fatalf("ClassifyText: %v", err)
	}
	if result.DocType != taxonomy.DocContract || result.Vendor != "Siemens" || result.Model != classifier.UnknownValue {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.ConfidenceEstimated || result.Confidence != 0.5 {
		t.Fatalf("expected estimated confidence 0.5, got %+v", result)
	}
}

func TestClassifyUnparseableEnvelopeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "gateway warming up")
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	client := newTestClient(t, server.URL, sleeper)
	_, err := client.ClassifyText(context.Background(), "a.pdf", "")
	if !errors.Is(err, classifier.ErrResponseParse) {
		t.Fatalf("expected ErrResponseParse, got %v", err)
	}
	if len(sleeper.delays) != 0 {
		t.Fatalf("parse failures must not retry")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completionBody(t, `{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &recordingSleeper{})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

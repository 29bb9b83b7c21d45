package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clipsight/internal/services"
)

func completionPayload(content string, tokens int) map[string]any {
	return map[string]any{
		"model": "demo-model",
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"total_tokens": tokens,
		},
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewEncoder(w).Encode(completionPayload(`{"ok":true}`, 5)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionPayload("```json\n{\"ok\":true}\n```", 5)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent marker on 401, got %v", err)
	}
}

func TestClientDescribeSendsImagePart(t *testing.T) {
	var requestBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestBody, _ = io.ReadAll(r.Body)
		if err := json.NewEncoder(w).Encode(completionPayload("A sunny street scene.", 321)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", MaxTokens: 500})
	desc, err := client.Describe(context.Background(), []byte{0xff, 0xd8, 0xff}, 2.0, 3)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if !desc.Success {
		t.Fatalf("expected success, got %+v", desc)
	}
	if desc.Description != "A sunny street scene." {
		t.Fatalf("unexpected description %q", desc.Description)
	}
	if desc.TokensUsed != 321 {
		t.Fatalf("expected 321 tokens, got %d", desc.TokensUsed)
	}
	if desc.Timestamp != 2.0 || desc.FrameNumber != 3 {
		t.Fatalf("expected frame identity preserved, got %+v", desc)
	}
	if desc.Model != "demo-model" {
		t.Fatalf("expected model recorded, got %q", desc.Model)
	}

	body := string(requestBody)
	if !strings.Contains(body, "data:image/jpeg;base64,") {
		t.Fatalf("expected base64 image part in request, got %s", body)
	}
	if !strings.Contains(body, "Scene Overview") {
		t.Fatal("expected frame analysis prompt in request")
	}
	if !strings.Contains(body, `"max_tokens":500`) {
		t.Fatalf("expected max_tokens in request, got %s", body)
	}
}

func TestClientDescribeIsRepeatable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionPayload("A parked red car.", 87)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	image := []byte{0xff, 0xd8, 0xff, 0x10}

	first, err := client.Describe(context.Background(), image, 4.5, 2)
	if err != nil {
		t.Fatalf("first Describe: %v", err)
	}
	second, err := client.Describe(context.Background(), image, 4.5, 2)
	if err != nil {
		t.Fatalf("second Describe: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical results for the same frame, got %+v and %+v", first, second)
	}
	if !first.Success || first.Description != "A parked red car." || first.TokensUsed != 87 {
		t.Fatalf("unexpected description payload %+v", first)
	}
}

func TestClientDescribeCapturesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad image"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	desc, err := client.Describe(context.Background(), []byte{0x01}, 0, 1)
	if err != nil {
		t.Fatalf("Describe must not return API failures as errors, got %v", err)
	}
	if desc.Success {
		t.Fatal("expected failed description")
	}
	if desc.Error == "" || !strings.Contains(desc.Error, "400") {
		t.Fatalf("expected captured failure reason, got %q", desc.Error)
	}
	if !strings.HasPrefix(desc.Description, "Error analyzing frame:") {
		t.Fatalf("unexpected placeholder description %q", desc.Description)
	}
}

func TestClientDescribeReturnsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionPayload("ignored", 1))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	_, err := client.Describe(ctx, []byte{0x01}, 0, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation to surface, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(completionPayload("Summary text.", 40))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	result, err := client.Complete(context.Background(), "summarize this", 0)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "Summary text." {
		t.Fatalf("unexpected content %q", result.Content)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s honoring Retry-After, got %v", slept)
	}
}

func TestClientRetryAttemptsBound(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "down"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(3),
	)
	_, err := client.Complete(context.Background(), "summarize this", 0)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker after exhaustion, got %v", err)
	}
}

func TestClientDoesNotRetryHTTP400(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	_, err := client.Complete(context.Background(), "summarize this", 0)
	if err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected single attempt for client error, got %d", calls)
	}
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent marker, got %v", err)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = "Recovered content."
		}
		_ = json.NewEncoder(w).Encode(completionPayload(content, 10))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	result, err := client.Complete(context.Background(), "summarize this", 0)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "Recovered content." {
		t.Fatalf("unexpected content %q", result.Content)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestCompleteJSONSetsResponseFormat(t *testing.T) {
	var requestBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(completionPayload(`{"score":7}`, 12))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	result, err := client.CompleteJSON(context.Background(), "Respond with JSON.", "compare these", 0)
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	var parsed struct {
		Score int `json:"score"`
	}
	if err := DecodeModelJSON(result.Content, &parsed); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if parsed.Score != 7 {
		t.Fatalf("expected score 7, got %d", parsed.Score)
	}
	if !strings.Contains(string(requestBody), jsonResponseType) {
		t.Fatalf("expected json response_format in request, got %s", requestBody)
	}
}

func TestDecodeModelJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON("Here you go: {\"ok\": true} as requested.", &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected embedded object to decode")
	}
}

func TestClientRequestIDSpansRetries(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		if len(ids) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := json.NewEncoder(w).Encode(completionPayload("done", 5)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.Complete(context.Background(), "hello", 0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ids))
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("expected one correlation id across retries, got %q and %q", ids[0], ids[1])
	}
}

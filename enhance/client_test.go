package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"murmur/snapshot"
)

// testClient returns a client whose sleeps are recorded instead of executed.
func testClient(t *testing.T) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient()
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func remoteConfig(url string) Config {
	return Config{
		Enabled:     true,
		Provider:    ProviderOpenAI,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		BaseURL:     url,
		MinInterval: time.Nanosecond, // keep the limiter out of delay assertions
	}
}

func openAIBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestEnhanceRateLimitedThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1, 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(openAIBody("cleaned up text")))
		}
	}))
	defer srv.Close()

	c, slept := testClient(t)
	got, err := c.Enhance(context.Background(), "raw transcript", snapshot.Snapshot{}, remoteConfig(srv.URL))
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got != "cleaned up text" {
		t.Errorf("got %q, want %q", got, "cleaned up text")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
	if c.Attempts() != 3 {
		t.Errorf("Attempts = %d, want 3", c.Attempts())
	}
	// Flat 1s before retry 1, then 2s before retry 2.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("delay %d = %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestEnhanceAuthFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, slept := testClient(t)
	_, err := c.Enhance(context.Background(), "raw transcript", snapshot.Snapshot{}, remoteConfig(srv.URL))

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindAuth {
		t.Fatalf("err = %v, want KindAuth", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1 (no retries)", n)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %v, want no back-off", *slept)
	}
}

func TestEnhanceRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := testClient(t)
	_, err := c.Enhance(context.Background(), "raw transcript", snapshot.Snapshot{}, remoteConfig(srv.URL))

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindRetriesExhausted {
		t.Fatalf("err = %v, want KindRetriesExhausted", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("provider calls = %d, want 3 (attempt cap)", n)
	}
	// The terminal error still carries the retryable cause.
	var cause *Error
	if !errors.As(pe.Cause, &cause) || cause.Kind != KindServer {
		t.Errorf("cause = %v, want KindServer", pe.Cause)
	}
}

func TestEnhanceParseErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"unexpected": "shape"}`))
	}))
	defer srv.Close()

	c, _ := testClient(t)
	_, err := c.Enhance(context.Background(), "raw transcript", snapshot.Snapshot{}, remoteConfig(srv.URL))

	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindParse {
		t.Fatalf("err = %v, want KindParse", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestEnhanceNotConfigured(t *testing.T) {
	c, _ := testClient(t)

	_, err := c.Enhance(context.Background(), "text", snapshot.Snapshot{}, Config{Enabled: false})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindNotConfigured {
		t.Errorf("disabled: err = %v, want KindNotConfigured", err)
	}

	// Enabled but remote provider without a key.
	_, err = c.Enhance(context.Background(), "text", snapshot.Snapshot{}, Config{
		Enabled: true, Provider: ProviderOpenAI,
	})
	if !errors.As(err, &pe) || pe.Kind != KindNotConfigured {
		t.Errorf("keyless: err = %v, want KindNotConfigured", err)
	}
}

func TestEnhanceEmptyInput(t *testing.T) {
	c, _ := testClient(t)
	_, err := c.Enhance(context.Background(), "   \n", snapshot.Snapshot{}, Config{
		Enabled: true, Provider: ProviderOllama, Model: "llama3",
	})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindEmptyInput {
		t.Errorf("err = %v, want KindEmptyInput", err)
	}
}

func TestRetryDelay(t *testing.T) {
	base := time.Second
	if d := retryDelay(1, base); d != time.Second {
		t.Errorf("retry 1 delay = %v, want flat 1s", d)
	}
	if d := retryDelay(2, base); d != 2*time.Second {
		t.Errorf("retry 2 delay = %v, want 2s", d)
	}
	if d := retryDelay(3, base); d != 4*time.Second {
		t.Errorf("retry 3 delay = %v, want 4s", d)
	}
	// A custom flat delay only affects the first retry.
	if d := retryDelay(1, 500*time.Millisecond); d != 500*time.Millisecond {
		t.Errorf("retry 1 custom delay = %v, want 500ms", d)
	}
}

func TestRateLimiterWait(t *testing.T) {
	fakeNow := time.Unix(1000, 0)
	rl := &rateLimiter{now: func() time.Time { return fakeNow }}

	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		fakeNow = fakeNow.Add(d)
		return nil
	}

	// First call: no previous timestamp, no wait.
	if err := rl.wait(context.Background(), time.Second, sleep); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 0 {
		t.Fatalf("first call slept %v, want none", slept)
	}

	// Second call 300ms later: waits out the remaining 700ms.
	fakeNow = fakeNow.Add(300 * time.Millisecond)
	if err := rl.wait(context.Background(), time.Second, sleep); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 700*time.Millisecond {
		t.Errorf("slept %v, want [700ms]", slept)
	}

	// Third call after the full interval: no wait.
	fakeNow = fakeNow.Add(2 * time.Second)
	if err := rl.wait(context.Background(), time.Second, sleep); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 {
		t.Errorf("slept %v, want no additional wait", slept)
	}
}

func TestRateLimiterRechecksAfterSleep(t *testing.T) {
	fakeNow := time.Unix(2000, 0)
	rl := &rateLimiter{now: func() time.Time { return fakeNow }}
	rl.last = fakeNow // a call just went out

	var slept []time.Duration
	stolen := false
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		fakeNow = fakeNow.Add(d)
		if !stolen {
			// Another caller claims the slot while this one was asleep.
			stolen = true
			rl.mu.Lock()
			rl.last = fakeNow
			rl.mu.Unlock()
		}
		return nil
	}

	if err := rl.wait(context.Background(), time.Second, sleep); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != time.Second {
		t.Errorf("slept %v, want a second full wait after losing the slot", slept)
	}
	if got := fakeNow.Sub(rl.last); got != 0 {
		t.Errorf("stamp lags now by %v after wait returned", got)
	}
}

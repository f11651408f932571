// Package enhance sends transcripts to a text-enhancement provider and
// returns the cleaned-up result. One client instance is shared process-wide;
// outbound calls serialize through a single rate limiter regardless of
// provider.
package enhance

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"murmur/log"
	"murmur/snapshot"
)

// Request describes one provider call. Attempt is 0-based and never exceeds
// the configured maximum.
type Request struct {
	ProviderID    string
	SystemMessage string
	UserMessage   string
	Attempt       int
}

// provider is one response-shape variant. send returns the extracted text or
// a classified *Error.
type provider interface {
	name() string
	send(ctx context.Context, req Request, cfg Config) (string, error)
	// local providers skip the outbound rate limiter.
	local() bool
}

type Client struct {
	http    *http.Client
	limiter *rateLimiter

	// Attempts reports how many provider calls the last Enhance made.
	// Read by the controller for session metrics.
	lastAttempts int
	attemptsMu   sync.Mutex

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewClient() *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		now:   time.Now,
		sleep: sleepCtx,
	}
	c.limiter = &rateLimiter{now: func() time.Time { return c.now() }}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rateLimiter serializes outbound calls: a single shared timestamp tracks the
// last call, and a new call under the minimum interval waits out the
// remainder. Deliberately not a token bucket.
type rateLimiter struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (r *rateLimiter) wait(ctx context.Context, minInterval time.Duration, sleep func(context.Context, time.Duration) error) error {
	for {
		r.mu.Lock()
		now := r.now()
		if r.last.IsZero() || now.Sub(r.last) >= minInterval {
			r.last = now
			r.mu.Unlock()
			return nil
		}
		remaining := minInterval - now.Sub(r.last)
		r.mu.Unlock()

		// Another caller may claim the slot during the sleep; re-check
		// before stamping.
		if err := sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

// Attempts returns the provider-call count of the most recent Enhance.
func (c *Client) Attempts() int {
	c.attemptsMu.Lock()
	defer c.attemptsMu.Unlock()
	return c.lastAttempts
}

func (c *Client) setAttempts(n int) {
	c.attemptsMu.Lock()
	c.lastAttempts = n
	c.attemptsMu.Unlock()
}

// Enhance sends text through the configured provider, retrying classified-
// retryable failures up to cfg.MaxAttempts total attempts. Auth and parse
// failures surface immediately.
func (c *Client) Enhance(ctx context.Context, text string, snap snapshot.Snapshot, cfg Config) (string, error) {
	cfg = cfg.withDefaults()
	c.setAttempts(0)

	if !cfg.Enabled || !cfg.Configured() {
		return "", newError(KindNotConfigured, cfg.Provider, "enhancement disabled or provider not configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", newError(KindEmptyInput, cfg.Provider, "transcript is empty")
	}

	p, err := c.providerFor(cfg)
	if err != nil {
		return "", err
	}

	system, user := buildMessages(text, snap, cfg)
	req := Request{
		ProviderID:    p.name(),
		SystemMessage: system,
		UserMessage:   user,
	}

	var lastErr *Error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		req.Attempt = attempt
		c.setAttempts(attempt + 1)

		if !p.local() {
			if err := c.limiter.wait(ctx, cfg.MinInterval, c.sleep); err != nil {
				return "", &Error{Kind: KindNetwork, Provider: p.name(), Message: "cancelled while rate limited", Cause: err}
			}
		}

		// Per-call timeout doubles with each retry.
		callCtx, cancel := context.WithTimeout(ctx, cfg.BaseTimeout<<attempt)
		result, err := p.send(callCtx, req, cfg)
		cancel()
		if err == nil {
			return strings.TrimSpace(result), nil
		}

		pe, ok := err.(*Error)
		if !ok {
			pe = &Error{Kind: KindNetwork, Provider: p.name(), Cause: err}
		}
		if !pe.Retryable() {
			return "", pe
		}
		lastErr = pe

		if attempt+1 < cfg.MaxAttempts {
			delay := retryDelay(attempt+1, cfg.BaseDelay)
			log.EnhanceRetry(p.name(), attempt+1, delay, string(pe.Kind))
			if err := c.sleep(ctx, delay); err != nil {
				return "", &Error{Kind: KindNetwork, Provider: p.name(), Message: "cancelled during back-off", Cause: err}
			}
		}
	}

	return "", &Error{
		Kind:     KindRetriesExhausted,
		Provider: p.name(),
		Message:  "max retries exceeded",
		Cause:    lastErr,
	}
}

// retryDelay computes the back-off before the n-th retry (1-based). The first
// retry waits a flat base delay; later retries double from there, so the
// common transient case is not penalized with a long wait.
func retryDelay(retry int, base time.Duration) time.Duration {
	if retry <= 1 {
		return base
	}
	return time.Duration(1<<(retry-1)) * time.Second
}

func (c *Client) providerFor(cfg Config) (provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return &openAIProvider{http: c.http}, nil
	case ProviderGemini:
		return &geminiProvider{http: c.http}, nil
	case ProviderAnthropic:
		return &anthropicProvider{http: c.http}, nil
	case ProviderOllama:
		return &ollamaProvider{http: c.http}, nil
	}
	return nil, newError(KindNotConfigured, cfg.Provider, "unknown provider %q", cfg.Provider)
}

// postJSON runs one HTTP round trip. Transport-level failures (DNS, connect,
// timeout) come back as KindNetwork.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, newError(KindAPI, provider, "build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Provider: provider, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Provider: provider, Message: "read response", Cause: err}
	}
	return resp.StatusCode, respBody, nil
}

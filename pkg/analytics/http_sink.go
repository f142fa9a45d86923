package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tourflow/tourflow/pkg/urlvalidation"
)

// ErrCircuitOpen is returned while the sink's breaker is open.
var ErrCircuitOpen = errors.New("analytics sink circuit open")

// HTTPSinkConfig configures the remote logEvent endpoint.
type HTTPSinkConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Breaker BreakerConfig
}

// HTTPSink posts each event as JSON and expects a {"success": bool} reply.
type HTTPSink struct {
	url          string
	secret       string
	validateOpts []urlvalidation.Option
	httpClient   *http.Client
	breaker      *Breaker
}

// StatusError is a non-2xx reply from the sink.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics sink: HTTP %d", e.Code)
}

// Retryable reports whether the reply is worth another attempt. Client
// errors other than 429 are not.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code < 400 || e.Code >= 500
}

type logEventResponse struct {
	Success bool `json:"success"`
}

// NewHTTPSink validates the endpoint and creates the sink.
func NewHTTPSink(cfg HTTPSinkConfig, validateOpts ...urlvalidation.Option) (*HTTPSink, error) {
	if err := urlvalidation.ValidateEndpoint(cfg.URL, validateOpts...); err != nil {
		return nil, fmt.Errorf("analytics sink url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSink{
		url:          cfg.URL,
		secret:       cfg.Secret,
		validateOpts: validateOpts,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker: NewBreaker(cfg.Breaker),
	}, nil
}

// Breaker exposes the sink's circuit breaker.
func (s *HTTPSink) Breaker() *Breaker { return s.breaker }

// LogEvent delivers one event. Client errors, an open breaker and an
// endpoint that now resolves to a private address are permanent; transport
// errors and 5xx replies are retryable.
func (s *HTTPSink) LogEvent(ctx context.Context, ev Event) error {
	// DNS may have changed since construction.
	if err := urlvalidation.ValidateEndpoint(s.url, s.validateOpts...); err != nil {
		return backoff.Permanent(fmt.Errorf("analytics sink url: %w", err))
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal event: %w", err))
	}

	if err := s.breaker.Allow(); err != nil {
		return backoff.Permanent(err)
	}
	err = s.post(ctx, ev, body)
	s.breaker.Done(err)

	var se *StatusError
	if errors.As(err, &se) && !se.Retryable() {
		return backoff.Permanent(err)
	}
	return err
}

func (s *HTTPSink) post(ctx context.Context, ev Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tourflow-Event", string(ev.Type))
	req.Header.Set("X-Tourflow-Session", ev.SessionID)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.secret, body))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	var out logEventResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("analytics sink: decode reply: %w", err)
	}
	if !out.Success {
		return errors.New("analytics sink: success=false")
	}
	return nil
}

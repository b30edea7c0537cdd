package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UserAgent is sent with every delivery
const UserAgent = "nodetasks-webhook/1.0"

// Result describes one delivery attempt
type Result struct {
	StatusCode int
	Duration   time.Duration
}

// Sender posts JSON payloads. It makes a single attempt per call; retries
// belong to the task runner.
type Sender struct {
	client  *http.Client
	timeout time.Duration
}

// NewSender creates a sender. A nil client selects a pooled default client.
func NewSender(client *http.Client, timeout time.Duration) *Sender {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{client: client, timeout: timeout}
}

// Timeout returns the per-request timeout
func (s *Sender) Timeout() time.Duration {
	return s.timeout
}

// Post delivers payload to target. Extra headers are set after the defaults.
//
// The error wraps ErrPermanentFailure for 4xx answers other than 408, 425 and
// 429, ErrTimeout when the request deadline passed, and ErrTemporaryFailure
// otherwise.
func (s *Sender) Post(ctx context.Context, target string, payload []byte, headers http.Header) (Result, error) {
	if err := ValidateURL(target); err != nil {
		return Result{}, err
	}
	if len(payload) == 0 {
		return Result{}, ErrInvalidPayload
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return Result{}, errors.Join(ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	res := Result{Duration: time.Since(start)}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return res, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return res, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	statusErr := fmt.Errorf("%w: status %d%s", ErrDeliveryFailed, resp.StatusCode, excerpt(body))
	if permanentStatus(resp.StatusCode) {
		return res, fmt.Errorf("%w: %w", ErrPermanentFailure, statusErr)
	}
	return res, fmt.Errorf("%w: %w", ErrTemporaryFailure, statusErr)
}

// ValidateURL accepts absolute http and https URLs only
func ValidateURL(target string) error {
	if target == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(target)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func permanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

// excerpt flattens a response body for log-safe error messages
func excerpt(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return ": " + s
}

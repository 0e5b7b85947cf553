package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/logging"
)

const (
	DefaultMaxRetries     = 3
	DefaultRateLimitDelay = 15 * time.Second
	DefaultRetryDelay     = time.Second
	DefaultTimeout        = 20 * time.Second

	DefaultMaxBodyBytes = 8 << 20
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a Requester. Zero values take the defaults.
type Config struct {
	Component      string
	HTTPClient     *http.Client
	Timeout        time.Duration
	MaxRetries     int
	RateLimitDelay time.Duration
	RetryDelay     time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	Logger         *logging.Logger
	Sleep          SleepFunc
}

// Requester performs GET requests with a bounded retry budget.
type Requester struct {
	component      string
	httpClient     *http.Client
	maxRetries     int
	rateLimitDelay time.Duration
	retryDelay     time.Duration
	userAgent      string
	maxBodyBytes   int64
	logger         *logging.Logger
	sleep          SleepFunc
}

// New creates a Requester from cfg.
func New(cfg Config) *Requester {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	rateLimitDelay := cfg.RateLimitDelay
	if rateLimitDelay <= 0 {
		rateLimitDelay = DefaultRateLimitDelay
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = contextSleep
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	component := cfg.Component
	if component == "" {
		component = "request"
	}

	return &Requester{
		component:      component,
		httpClient:     httpClient,
		maxRetries:     maxRetries,
		rateLimitDelay: rateLimitDelay,
		retryDelay:     retryDelay,
		userAgent:      strings.TrimSpace(cfg.UserAgent),
		maxBodyBytes:   maxBodyBytes,
		logger:         logger.With("component", component),
		sleep:          sleep,
	}
}

// Get fetches url and returns the body of a 200 response. Non-200 responses
// and transport errors are retried up to MaxRetries times: 429 waits the
// rate-limit delay, everything else the plain retry delay. A body larger
// than MaxBodyBytes is a parse error and is not retried.
func (r *Requester) Get(ctx context.Context, url string) ([]byte, error) {
	var (
		lastStatus int
		lastErr    error
	)

	for attempt := 0; ; attempt++ {
		body, status, err := r.do(ctx, url)
		if err == nil && status == http.StatusOK {
			return body, nil
		}
		if ingest.IsParseError(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastStatus, lastErr = status, err

		if attempt >= r.maxRetries {
			return nil, errors.WithStack(&ingest.RequestFailure{
				Component: r.component,
				Endpoint:  url,
				Status:    lastStatus,
				Attempts:  attempt + 1,
				Cause:     lastErr,
			})
		}

		r.logger.Warn("request failed, retrying",
			"status", status,
			"url", url,
			"attempt", attempt+1,
			"error", err,
		)
		if err := r.sleep(ctx, r.delayFor(status)); err != nil {
			return nil, err
		}
	}
}

// GetJSON fetches url and decodes the body into target. A body that fails
// to decode is a parse error and is not retried.
func (r *Requester) GetJSON(ctx context.Context, url string, target any) error {
	body, err := r.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(body, target); err != nil {
		return ingest.WrapParseError(err, r.component, "decode json body", url)
	}
	return nil
}

// GetHTML fetches url and parses the body as an HTML document.
func (r *Requester) GetHTML(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := r.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ingest.WrapParseError(err, r.component, "parse html body", url)
	}
	return doc, nil
}

func (r *Requester) delayFor(status int) time.Duration {
	if status == http.StatusTooManyRequests {
		return r.rateLimitDelay
	}
	return r.retryDelay
}

func (r *Requester) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, r.maxBodyBytes))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "read response body")
	}
	if int64(len(body)) > r.maxBodyBytes {
		return nil, resp.StatusCode, ingest.NewParseError(r.component,
			fmt.Sprintf("response body exceeds %d bytes", r.maxBodyBytes), url)
	}
	return body, resp.StatusCode, nil
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

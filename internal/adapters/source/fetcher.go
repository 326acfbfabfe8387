// Package source retrieves season leaderboard documents over HTTP or from
// disk.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultRetries  = 3
	maxDocumentSize = 64 << 20
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRetries sets how many times a failed HTTP fetch is retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(f *Fetcher) {
		if minWait > 0 && maxWait >= minWait {
			f.waitMin, f.waitMax = minWait, maxWait
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// Fetcher loads season documents from http(s) URLs, file:// URLs or plain
// filesystem paths.
type Fetcher struct {
	client  *retryablehttp.Client
	timeout time.Duration
	retries int
	waitMin time.Duration
	waitMax time.Duration
	logger  logger.Logger
}

// NewFetcher builds a fetcher with a retrying HTTP client.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout: defaultTimeout,
		retries: defaultRetries,
		waitMin: 500 * time.Millisecond,
		waitMax: 5 * time.Second,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}

	c := retryablehttp.NewClient()
	c.Logger = leveledLogger{l: f.logger}
	c.RetryMax = f.retries
	c.RetryWaitMin = f.waitMin
	c.RetryWaitMax = f.waitMax
	c.HTTPClient.Timeout = f.timeout
	c.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, _ int) {
		metrics.RecordFetchAttempt()
	}
	f.client = c
	return f
}

// Load fetches location and parses it as a season dataset.
func (f *Fetcher) Load(ctx context.Context, location string) (model.Dataset, error) {
	data, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return ds, nil
}

// Fetch returns the raw bytes at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, location)
	case "file":
		return readFile(u.Path)
	case "":
		return readFile(location)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, location, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return data, nil
}

// leveledLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l logger.Logger
}

func (a leveledLogger) Error(msg string, kv ...interface{}) {
	a.l.Error(context.Background(), msg, fields(kv)...)
}

func (a leveledLogger) Info(msg string, kv ...interface{}) {
	a.l.Debug(context.Background(), msg, fields(kv)...)
}

func (a leveledLogger) Debug(msg string, kv ...interface{}) {
	a.l.Debug(context.Background(), msg, fields(kv)...)
}

func (a leveledLogger) Warn(msg string, kv ...interface{}) {
	a.l.Warn(context.Background(), msg, fields(kv)...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}

// Package fetcher retrieves result documents over HTTP using gocolly, with
// jittered exponential retry on transient failures. Locators that name an
// existing local file are read directly, which is how manually downloaded
// documents enter the pipeline.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/metrics"
	"github.com/ttstats/rrimport/internal/policy/ratelimit"
	"github.com/ttstats/rrimport/internal/rr"
)

// Config controls collector behavior.
type Config struct {
	// BaseURL is the results site root that relative locators resolve
	// against, e.g. "https://www.berkeleytabletennis.org/results/".
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond paces requests against the source site; zero
	// disables pacing.
	RequestsPerSecond float64
}

// Fetcher implements rr.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	retry         *retryPolicy
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

var _ rr.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	// Synchronous collection is the default; colly v2.1.0's Async option
	// ignores its argument and would force async mode.
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		retry:         newRetryPolicy(cfg.MaxRetries),
		limiter:       ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond}),
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves the document behind a locator. The kind only matters for
// error reporting; content negotiation is the parser's problem.
func (f *Fetcher) Fetch(ctx context.Context, locator string, kind rr.DocumentKind) ([]byte, error) {
	if isLocalPath(locator) {
		data, err := os.ReadFile(locator)
		if err != nil {
			return nil, &rr.FetchError{Locator: locator, Err: err}
		}
		return data, nil
	}

	target, err := f.resolve(locator)
	if err != nil {
		return nil, &rr.FetchError{Locator: locator, Err: err}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &rr.FetchError{Locator: locator, Err: err}
		}
		data, err := f.fetchOnce(ctx, target)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !f.retry.shouldRetry(err, attempt) {
			break
		}
		delay := f.retry.backoff(attempt)
		metrics.ObserveFetchRetry()
		f.logger.Debug("retrying fetch",
			zap.String("locator", locator),
			zap.String("kind", string(kind)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, &rr.FetchError{Locator: locator, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	return nil, &rr.FetchError{Locator: locator, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
}

// resolve joins a relative locator onto the configured base URL. Absolute
// locators pass through untouched.
func (f *Fetcher) resolve(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator, nil
	}
	if f.cfg.BaseURL == "" {
		return "", fmt.Errorf("relative locator %q with no base url configured", locator)
	}
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.ReplaceAll(locator, " ", "%20"))
	if err != nil {
		return "", fmt.Errorf("parse locator: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func isLocalPath(locator string) bool {
	if strings.Contains(locator, "://") {
		return false
	}
	_, err := os.Stat(locator)
	return err == nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

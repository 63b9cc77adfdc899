package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
	"github.com/donbonifacio/scavenger8/internal/stage"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Default fetch settings.
const (
	// DefaultTimeout is the timeout of each request.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "scavenger8"

	// DefaultMaxBodySize is the largest body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger for the fetcher.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithTimeout sets the timeout of each request. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets how many body bytes are read. Non-positive values are ignored.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithProxy routes every request through the SOCKS5 proxy at address
// ("host:port"). An empty address disables the proxy.
func WithProxy(address string) Option {
	return func(f *Fetcher) {
		f.proxyAddress = address
	}
}

// WithRateLimit caps the request rate of the fetcher across all workers.
// 0 disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		f.rateLimit = perSecond
	}
}

// WithTransport replaces the HTTP transport. It takes precedence over WithProxy.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// Fetcher downloads page bodies. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	timeout      time.Duration
	userAgent    string
	maxBodySize  int64
	proxyAddress string
	rateLimit    float64
	transport    http.RoundTripper
}

// New creates a Fetcher. It fails with ErrInvalidProxyAddress when the
// proxy address is malformed; the proxy itself is not contacted.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	transport := f.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone() //nolint:errcheck,forcetypeassert // DefaultTransport is always *http.Transport
		t.MaxIdleConnsPerHost = 2
		t.IdleConnTimeout = 30 * time.Second
		if f.proxyAddress != "" {
			dialer, err := newSOCKS5Dialer(f.proxyAddress)
			if err != nil {
				return nil, fmt.Errorf("failed to configure proxy %s: %w", f.proxyAddress, err)
			}
			t.Proxy = nil
			t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			}
		}
		transport = t
	}

	if f.rateLimit > 0 {
		burst := max(1, int(f.rateLimit))
		f.limiter = rate.NewLimiter(rate.Limit(f.rateLimit), burst)
	}

	f.client = &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		// Redirects are handled by Fetch so that only one hop is taken.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return f, nil
}

// Fetch returns the decoded body of url.
//
// A 301 or 302 response is followed once, with the Location resolved
// against the request URL. Any status of 400 or above, a second redirect or
// a transport failure is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}

	if isRedirect(resp.StatusCode) {
		target, err := redirectTarget(resp)
		drainAndClose(resp)
		if err != nil {
			return "", err
		}

		f.logger.Debug("redirecting", "from", url, "to", target)
		resp, err = f.get(ctx, target)
		if err != nil {
			return "", err
		}
		if isRedirect(resp.StatusCode) {
			drainAndClose(resp)
			return "", fmt.Errorf("%w: %s redirected twice", ErrTooManyRedirects, url)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &StatusError{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("got response", "url", url, "status", resp.StatusCode, "location", resp.Header.Get("Location"))
	return resp, nil
}

// readBody decodes at most maxBodySize bytes of the body to UTF-8 using the
// declared or sniffed charset.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, f.maxBodySize)

	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset: keep the raw bytes.
		reader = limited
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Task returns the fetch stage task. It attaches the body to each item.
func (f *Fetcher) Task() stage.TaskFunc {
	return func(ctx context.Context, item model.Item) (model.Item, error) {
		body, err := f.Fetch(ctx, item.Key())
		if err != nil {
			return model.Item{}, err
		}
		return item.WithBody(body), nil
	}
}

func isRedirect(code int) bool {
	return code == http.StatusMovedPermanently || code == http.StatusFound
}

func redirectTarget(resp *http.Response) (string, error) {
	loc := strings.TrimSpace(resp.Header.Get("Location"))
	if loc == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingLocation, resp.Request.URL)
	}
	target, err := resp.Request.URL.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", loc, err)
	}
	return target.String(), nil
}

// drainAndClose lets the connection be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // best effort
	_ = resp.Body.Close()                                            //nolint:errcheck // best effort
}

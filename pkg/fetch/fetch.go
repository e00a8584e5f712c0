// Package fetch retrieves the raw source dataset.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
)

// DefaultTimeout bounds a whole HTTP fetch, body included.
const DefaultTimeout = 60 * time.Second

// Fetcher opens a source for reading. The caller closes the returned reader.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (io.ReadCloser, error)
}

// Client fetches http(s) URLs over the network and file:// URLs or plain
// paths from the local filesystem. It makes a single attempt and never
// retries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. with an httptest server's.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithLogger sets the logger used for request logging.
func WithLogger(l log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a Client whose HTTP requests time out after timeout
// (DefaultTimeout when zero or negative).
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "diamondprep",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLogger()
	}
	c.logger = c.logger.With(log.ComponentKey, "fetch")
	return c
}

// Fetch opens source. Transport failures and non-2xx responses are
// reported as *errors.FetchError.
func (c *Client) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		return c.open(source, source)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return c.get(ctx, source)
	case "file":
		return c.open(source, u.Path)
	default:
		return nil, errors.NewFetchError(source, 0, errors.Newf("unsupported scheme %q", u.Scheme))
	}
}

func (c *Client) get(ctx context.Context, source string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.NewFetchError(source, 0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	c.logger.Debug("requesting source", log.SourceURLKey, source)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(source, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, errors.NewFetchError(source, resp.StatusCode, nil)
	}
	c.logger.Debug("source responded",
		log.SourceURLKey, source,
		log.HTTPStatusKey, resp.StatusCode,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &fetchBody{ReadCloser: resp.Body, source: source}, nil
}

func (c *Client) open(source, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFetchError(source, 0, err)
	}
	c.logger.Debug("reading local source", log.SourceURLKey, path)
	return f, nil
}

// fetchBody reports body read failures (timeouts mid-transfer) as fetch errors.
type fetchBody struct {
	io.ReadCloser
	source string
}

func (b *fetchBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, errors.NewFetchError(b.source, 0, err)
	}
	return n, err
}

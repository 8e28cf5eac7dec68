package dav

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/retry"
	"github.com/davsync/davsync/internal/version"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
)

const (
	HeaderRequestID   = "X-Request-Id"
	HeaderDepth       = "Depth"
	HeaderContentType = "Content-Type"
	HeaderIfMatch     = "If-Match"

	RequestTimeout = 30 * time.Second
	ConnectTimeout = 10 * time.Second

	methodPropfind = "PROPFIND"
	methodMkcol    = "MKCOL"
)

var UserAgent = version.UserAgent()

// Client talks to a single WebDAV endpoint with basic auth.
// All network operations go through one retry path.
type Client struct {
	cfg     Config
	baseURL string
	http    *req.Client
	exec    *retry.Executor
	once    *retry.Executor
	stats   *httpStats
}

type Option func(*Client)

// WithRetry sets the backoff schedule of retried operations.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) {
		c.exec = retry.New(cfg)
	}
}

// WithExecutor sets the executor used for retried operations.
func WithExecutor(exec *retry.Executor) Option {
	return func(c *Client) {
		c.exec = exec
	}
}

// WithTimeout overrides the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// New creates a client for cfg. The config is validated first.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: ConnectTimeout, KeepAlive: 30 * time.Second}
	httpClient := req.C().
		SetTimeout(RequestTimeout).
		SetDial(dialer.DialContext).
		SetTLSHandshakeTimeout(ConnectTimeout).
		SetUserAgent(UserAgent).
		SetCommonRetryCount(0)

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL(cfg.ServerURL),
		http:    httpClient,
		exec:    retry.New(retry.Network()),
		once:    retry.New(retry.Config{MaxRetries: 0}),
		stats:   newHTTPStats(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the connection parameters of the client.
func (c *Client) Config() Config {
	return c.cfg
}

// Stats returns a snapshot of the traffic of the client.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

func (c *Client) url(remotePath string) string {
	return joinURL(c.baseURL, remotePath)
}

// request is one HTTP exchange.
type request struct {
	method  string
	url     string
	body    []byte
	headers map[string]string
}

// send performs a single attempt. Transport failures are classified, HTTP
// statuses are left to the caller.
func (c *Client) send(ctx context.Context, r request) (*req.Response, error) {
	rq := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.Username, c.cfg.Password).
		SetHeader(HeaderRequestID, uuid.NewString())
	for k, v := range r.headers {
		rq.SetHeader(k, v)
	}
	if r.body != nil {
		rq.SetBodyBytes(r.body)
	}

	c.stats.onRequest()
	resp, err := rq.Send(r.method, r.url)
	if err != nil {
		c.stats.setLastError(err)
		return nil, daverr.FromTransport(err)
	}
	c.stats.onSend(len(r.body))
	c.stats.onRecv(len(resp.Bytes()))
	return resp, nil
}

// statusError maps a non success response to the error taxonomy.
func (c *Client) statusError(resp *req.Response, op string) error {
	err := daverr.FromStatus(resp.GetStatusCode(), fmt.Sprintf("%s %s", op, resp.Status))
	c.stats.setLastError(err)
	return err
}

// run executes fn through the retry executor, or once when retryable is false.
func run[T any](ctx context.Context, c *Client, retryable bool, fn func(ctx context.Context) (T, error)) (T, error) {
	return runWithProgress(ctx, c, retryable, fn, nil)
}

func runWithProgress[T any](ctx context.Context, c *Client, retryable bool, fn func(ctx context.Context) (T, error), report func(retry.Progress)) (T, error) {
	exec := c.exec
	if !retryable {
		exec = c.once
	}
	return retry.DoWithProgress(ctx, exec, fn, report)
}

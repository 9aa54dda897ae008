package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wesleyorama2/surge/internal/request"
)

// HTTPConfig contains HTTP client configuration.
type HTTPConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPConfig returns sensible defaults for load testing.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0, // Unlimited
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates an HTTP client tuned for many concurrent requests
// to a single host.
func NewHTTPClient(cfg HTTPConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		// Object payloads are opaque; never let the transport inflate them.
		DisableCompression: true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// HTTPTransport issues requests against REST-style object URLs of the form
// {endpoint}/{container}/{object}.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	throttle *Throttle
	headers  map[string]string
}

// NewHTTPTransport creates a transport for endpoint. A nil client uses
// NewHTTPClient(DefaultHTTPConfig()).
func NewHTTPTransport(endpoint string, client *http.Client, throttle *Throttle, headers map[string]string) *HTTPTransport {
	if client == nil {
		client = NewHTTPClient(DefaultHTTPConfig())
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		throttle: throttle,
		headers:  headers,
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	var body io.Reader
	if req.Operation == request.OpWrite {
		body = t.throttle.Reader(ctx, NewPayload(req.Size))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), t.endpoint+req.Path(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		httpReq.ContentLength = req.Size
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	started := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	// Drain the body so the connection can be reused.
	n, err := io.Copy(io.Discard, t.throttle.Reader(ctx, httpResp.Body))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp := &request.Response{
		StatusCode: httpResp.StatusCode,
		Started:    started,
		Latency:    time.Since(started),
		RequestID:  requestID(httpResp.Header),
		Bytes:      n,
	}
	if req.Operation == request.OpWrite && resp.Success() {
		resp.Bytes = req.Size
	}
	return resp, nil
}

func requestID(h http.Header) string {
	for _, k := range []string{"X-Amz-Request-Id", "X-Request-Id", "X-Trans-Id"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

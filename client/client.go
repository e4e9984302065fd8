package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/nspteam/httpclient/client/download"
	"github.com/nspteam/httpclient/client/throttle"
)

// Default backoff bounds between retries.
const (
	DefaultRetryWaitMin = 50 * time.Millisecond
	DefaultRetryWaitMax = time.Second
)

// Client sends [Call]s over a shared connection pool.
// Retry and backoff are delegated to go-retryablehttp; every call gets its
// own retrying client assembled from the call's settings, so no call
// configuration outlives the call. Client is safe for concurrent use.
type Client struct {
	rt            http.RoundTripper
	jar           http.CookieJar
	checkRedirect func(*http.Request, []*http.Request) error
	timeout       time.Duration
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration
	logger        *slog.Logger
}

// Build constructs a [Client]. Without options it dials through a clone of
// [http.DefaultTransport], has no default timeout and never retries.
func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		logger:       slog.Default(),
		retryWaitMin: DefaultRetryWaitMin,
		retryWaitMax: DefaultRetryWaitMax,
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.jar = opts.client.Jar
		client.checkRedirect = opts.client.CheckRedirect
		client.timeout = opts.client.Timeout
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.timeout = *opts.timeout
	}

	if opts.retryWaitMin != nil {
		client.retryWaitMin = *opts.retryWaitMin
		client.retryWaitMax = *opts.retryWaitMax
	}

	if opts.noFollowRedirects {
		client.checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = newBaseTransport()
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.rt = transport

	return client, nil
}

// Send executes call and returns the fully read response. A non-2xx status
// is not an error. Transport errors are returned as produced by net/http.
func (c *Client) Send(ctx context.Context, call Call) (*Response, error) {
	resp, attempts, err := c.do(ctx, call)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp, false)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		Attempts:   attempts,
	}, nil
}

// Download executes call and streams a 2xx response body to destPath.
// A destPath ending in [download.WildcardExt] takes its extension from the
// response, see [download.ResolvePath]. Any other status yields an
// [UnexpectedStatusError] and no file.
func (c *Client) Download(ctx context.Context, destPath string, call Call, opts ...download.Option) (*Response, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}

	resp, attempts, err := c.do(ctx, call)
	if err != nil {
		return nil, err
	}

	drain := true
	defer func() { c.closeBody(resp, drain) }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		return nil, newUnexpectedStatusError(resp.StatusCode, b)
	}

	body := bufio.NewReaderSize(resp.Body, download.SniffLen)

	var head []byte
	if strings.HasSuffix(destPath, download.WildcardExt) {
		// Short bodies yield fewer bytes along with io.EOF; what was read is enough.
		head, _ = body.Peek(download.SniffLen)
	}
	path := download.ResolvePath(destPath, resp.Header.Get("Content-Type"), head)

	// A HEAD response advertises the length of a body it never sends.
	length := resp.ContentLength
	if req := resp.Request; req != nil && req.Method == http.MethodHead {
		length = -1
	}

	if err := download.Handle(ctx, body, length, path, c.logger, opts...); err != nil {
		drain = false
		return nil, fmt.Errorf("download: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Attempts:   attempts,
		Path:       path,
	}, nil
}

// do runs call through a retrying client and reports the attempts made.
func (c *Client) do(ctx context.Context, call Call) (*http.Response, int, error) {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return nil, 0, err
	}

	var attempts int
	rc := c.retrying(call, &attempts)

	traceID := traceIDFrom(ctx)
	log := c.logger.With("trace_id", traceID, "method", req.Method, "url", req.URL.Redacted())

	start := time.Now()
	log.Debug("http request started", "retry", call.Retry)

	resp, err := rc.Do(req)
	if err != nil {
		if resp != nil {
			c.closeBody(resp, true)
		}
		log.Warn("http request failed", "attempts", attempts, "elapsed", time.Since(start), "error", err)
		return nil, attempts, err
	}

	log.Info("http request completed", "status", resp.StatusCode, "attempts", attempts, "elapsed", time.Since(start))

	return resp, attempts, nil
}

// retrying assembles the retryablehttp client for one call. attempts is
// updated before every attempt.
func (c *Client) retrying(call Call, attempts *int) *retryablehttp.Client {
	timeout := c.timeout
	if call.Timeout > 0 {
		timeout = call.Timeout
	}

	return &retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport:     c.rt,
			Jar:           c.jar,
			CheckRedirect: c.checkRedirect,
			Timeout:       timeout,
		},
		Logger:       c.logger,
		RetryWaitMin: c.retryWaitMin,
		RetryWaitMax: c.retryWaitMax,
		RetryMax:     max(call.Retry, 0),
		RequestLogHook: func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
			*attempts = attempt + 1
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
}

// newRequest renders call into a rewindable request. GET and HEAD carry
// their body in the query string; other methods encode it as payload.
func (c *Client) newRequest(ctx context.Context, call Call) (*retryablehttp.Request, error) {
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	rawURL := call.URL
	var payload any
	var contentType string

	switch method {
	case http.MethodGet, http.MethodHead:
		u, err := appendQuery(rawURL, call.Body)
		if err != nil {
			return nil, err
		}
		rawURL = u
	default:
		b, ct, err := encodeBody(call.Body, call.ContentType)
		if err != nil {
			return nil, err
		}
		if b != nil {
			payload = b
		}
		contentType = ct
	}

	ctx = withConnectTimeout(ctx, call.ConnectTimeout)

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range call.Header {
		req.Header.Set(k, v)
	}
	for _, name := range slices.Sorted(maps.Keys(call.Cookies)) {
		req.AddCookie(&http.Cookie{Name: name, Value: call.Cookies[name]})
	}

	return req, nil
}

// closeBody optionally drains the body so the connection can be reused.
func (c *Client) closeBody(resp *http.Response, drain bool) {
	if drain {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Error("failed to discard unused body", "error", err)
		}
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// traceIDFrom returns the active span's trace id, or a fresh uuid so
// log lines of one call can still be correlated.
func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

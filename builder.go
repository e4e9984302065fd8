package httpclient

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/textproto"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nspteam/httpclient/client"
	"github.com/nspteam/httpclient/client/download"
)

// Defaults applied by [Create] and [New].
const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = time.Second
)

const tracerName = "github.com/nspteam/httpclient"

// Transport executes the calls a [Builder] dispatches. [*client.Client]
// is the standard implementation.
type Transport interface {
	Send(ctx context.Context, call client.Call) (*client.Response, error)
	Download(ctx context.Context, destPath string, call client.Call, opts ...download.Option) (*client.Response, error)
}

// Builder accumulates request configuration and dispatches requests with
// it. A Builder must not be mutated concurrently; use [Builder.Clone] to
// give each goroutine its own.
type Builder struct {
	transport      Transport
	headers        map[string]string
	cookies        map[string]string
	retry          int
	content        any
	timeout        time.Duration
	connectTimeout time.Duration
	downloadConfig bool
	tracer         trace.Tracer
	err            error
}

// Create returns a Builder with default configuration over a freshly built
// [client.Client]. A failure to build the client is reported by [Builder.Err]
// and by every dispatch.
func Create(opts ...client.Option) *Builder {
	c, err := client.Build(opts...)
	if err != nil {
		b := New(nil)
		b.err = fmt.Errorf("building transport: %w", err)
		return b
	}

	return New(c)
}

// New returns a Builder with default configuration over t. A nil t is
// recorded as the sticky error.
func New(t Transport) *Builder {
	b := &Builder{
		transport:      t,
		headers:        map[string]string{},
		cookies:        map[string]string{},
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		tracer:         otel.Tracer(tracerName),
	}
	if t == nil {
		b.err = &ArgumentError{Field: "transport", Message: "transport is required"}
	}

	return b
}

// Err returns the first error recorded by a setter or by [Create].
func (b *Builder) Err() error {
	return b.err
}

// Clone returns an independent copy sharing only the transport.
func (b *Builder) Clone() *Builder {
	cpy := *b
	cpy.headers = maps.Clone(b.headers)
	cpy.cookies = maps.Clone(b.cookies)
	return &cpy
}

// WithHeader sets a request header, replacing any value of the same name.
// Names are case-insensitive.
func (b *Builder) WithHeader(name, value string) *Builder {
	if err := check(headerArgs{Name: name}); err != nil {
		return b.fail(err)
	}

	b.headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	return b
}

// WithHeaders merges headers into the configuration, later values
// replacing earlier ones.
func (b *Builder) WithHeaders(headers map[string]string) *Builder {
	for name, value := range headers {
		b.WithHeader(name, value)
	}
	return b
}

// WithCookie sets a request cookie, replacing any cookie of the same name.
func (b *Builder) WithCookie(name, value string) *Builder {
	if err := check(cookieArgs{Name: name}); err != nil {
		return b.fail(err)
	}

	b.cookies[name] = value
	return b
}

// WithCookies merges cookies into the configuration, later values
// replacing earlier ones.
func (b *Builder) WithCookies(cookies map[string]string) *Builder {
	for name, value := range cookies {
		b.WithCookie(name, value)
	}
	return b
}

// WithRetry sets how many times a failed request is retried.
func (b *Builder) WithRetry(count int) *Builder {
	if err := check(retryArgs{Count: count}); err != nil {
		return b.fail(err)
	}

	b.retry = count
	return b
}

// WithContent sets the body sent when a dispatch passes none. An
// [io.Reader] is read to the end here so every dispatch sends the same
// bytes.
func (b *Builder) WithContent(body any) *Builder {
	if r, ok := body.(io.Reader); ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return b.fail(&ArgumentError{
				Field:   "content",
				Message: fmt.Sprintf("reading content: %v", err),
			})
		}
		body = data
	}

	b.content = body
	return b
}

// WithTimeout sets the total and, optionally, the connect timeout. The
// connect timeout falls back to [DefaultConnectTimeout] when omitted.
func (b *Builder) WithTimeout(total time.Duration, connect ...time.Duration) *Builder {
	if len(connect) > 1 {
		return b.fail(&ArgumentError{
			Field:   "connect_timeout",
			Message: "at most one connect timeout may be given",
		})
	}

	args := timeoutArgs{Total: total, Connect: DefaultConnectTimeout}
	if len(connect) == 1 {
		args.Connect = connect[0]
	}
	if err := check(args); err != nil {
		return b.fail(err)
	}

	b.timeout = args.Total
	b.connectTimeout = args.Connect
	return b
}

// WithDownloadConfig controls whether headers, cookies, retry, timeouts and
// the default body also apply to [Builder.DownloadFile].
func (b *Builder) WithDownloadConfig(apply bool) *Builder {
	b.downloadConfig = apply
	return b
}

// WithTracerProvider sets the provider dispatch spans are created with,
// in place of the global one.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	if tp == nil {
		return b.fail(&ArgumentError{
			Field:   "tracer_provider",
			Message: "tracer_provider is required",
		})
	}

	b.tracer = tp.Tracer(tracerName)
	return b
}

// fail records err unless an earlier error is already recorded.
func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}


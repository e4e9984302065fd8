package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nspteam/httpclient/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	retryWaitMin      *time.Duration
	retryWaitMax      *time.Duration
}

// WithClient takes the transport, redirect policy, cookie jar and timeout
// of hc as the [Client]'s defaults. hc itself is never mutated.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
// Per-call connect timeouts are only honoured by the default base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the per-attempt timeout used when a [Call] sets none.
// Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables per-host token-bucket rate limiting with the given
// requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		c.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *options) error {
		if minWait <= 0 || maxWait < minWait {
			return fmt.Errorf("retry wait min[%v] must be positive and not above max[%v]", minWait, maxWait)
		}
		c.retryWaitMin = &minWait
		c.retryWaitMax = &maxWait
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
// A User-Agent set on the request itself wins.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return ua.base.RoundTrip(r)
	}

	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

package client

import (
	"context"
	"net"
	"net/http"
	"time"
)

// defaultConnectTimeout applies when a call does not set one.
const defaultConnectTimeout = 30 * time.Second

type ctxKey int

const connectTimeoutKey ctxKey = 1

// withConnectTimeout stores d in ctx for the dialer of the base transport.
func withConnectTimeout(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, connectTimeoutKey, d)
}

func connectTimeout(ctx context.Context) time.Duration {
	if d, ok := ctx.Value(connectTimeoutKey).(time.Duration); ok {
		return d
	}
	return defaultConnectTimeout
}

// dialContext dials with the connect timeout carried by the request context.
func dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   connectTimeout(ctx),
		KeepAlive: 30 * time.Second,
	}
	return d.DialContext(ctx, network, addr)
}

// newBaseTransport clones the default transport and swaps in dialContext,
// so one connection pool serves calls with differing connect timeouts.
func newBaseTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = dialContext
	return t
}

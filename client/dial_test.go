package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

// blackhole is a non-routable address: a SYN to it is never answered.
const blackhole = "10.255.255.1:81"

func TestConnectTimeout_Context(t *testing.T) {
	testCases := []struct {
		name string
		ctx  context.Context
		exp  time.Duration
	}{
		{name: "unset", ctx: context.Background(), exp: defaultConnectTimeout},
		{name: "set", ctx: withConnectTimeout(context.Background(), 250*time.Millisecond), exp: 250 * time.Millisecond},
		{name: "zero keeps default", ctx: withConnectTimeout(context.Background(), 0), exp: defaultConnectTimeout},
		{name: "negative keeps default", ctx: withConnectTimeout(context.Background(), -time.Second), exp: defaultConnectTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := connectTimeout(tc.ctx); got != tc.exp {
				t.Errorf("expected %v, got %v", tc.exp, got)
			}
		})
	}
}

func TestDialContext_HonoursConnectTimeout(t *testing.T) {
	ctx := withConnectTimeout(t.Context(), 100*time.Millisecond)

	start := time.Now()
	conn, err := dialContext(ctx, "tcp", blackhole)
	elapsed := time.Since(start)

	if err == nil {
		conn.Close()
		t.Skip("non-routable address answered, network is not isolated")
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the dial to give up after ~100ms, took %v", elapsed)
	}
}

func TestSend_ConnectTimeoutReachesDialer(t *testing.T) {
	c, err := Build(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	call := Call{
		Method:         http.MethodGet,
		URL:            "http://" + blackhole + "/",
		Timeout:        20 * time.Second,
		ConnectTimeout: 100 * time.Millisecond,
	}

	start := time.Now()
	resp, err := c.Send(t.Context(), call)
	elapsed := time.Since(start)

	if err == nil {
		t.Skipf("non-routable address answered with %d, network is not isolated", resp.StatusCode)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the connect timeout to end the call after ~100ms, took %v", elapsed)
	}
}

// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound HTTP requests per target host using token buckets from
// [golang.org/x/time/rate].
//
// # Usage
//
// Wrap an existing transport with [NewRoundTripper]:
//
//	rt, err := throttle.NewRoundTripper(
//		10,  // requests per second, per host
//		5,   // burst capacity, per host
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// When a host's budget is exhausted, requests to that host block until
// a token becomes available or the request context is cancelled.
// Requests to other hosts are not delayed.
package throttle

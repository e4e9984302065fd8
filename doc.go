// Package httpclient is a fluent request builder over [client.Client].
//
// A [Builder] accumulates headers, cookies, a retry count, timeouts and a
// default body across chained calls, then dispatches any number of
// requests with that configuration:
//
//	b := httpclient.Create().
//		WithHeader("X-Token", "abc").
//		WithCookie("session", "s1").
//		WithRetry(3).
//		WithTimeout(10*time.Second, 2*time.Second)
//
//	resp, err := b.Post(ctx, "https://api.example.com/v1/users",
//		map[string]any{"name": "x"}, client.ContentTypeJSON)
//
// Each dispatch hands the transport a fresh snapshot of the configuration,
// so nothing one request does can change the next. A setter given a bad
// argument records an error wrapping [ErrInvalidArgument]; the first such
// error is returned by [Builder.Err] and by every later dispatch.
//
// Files are fetched with [Builder.DownloadFile]. By default a download
// only uses the method, URL and body it is given; [Builder.WithDownloadConfig]
// applies the accumulated configuration to downloads too.
package httpclient

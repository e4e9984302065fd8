// Package client sends HTTP calls over [net/http] with retries delegated to
// [github.com/hashicorp/go-retryablehttp].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithThrottle(20, 5),
//	)
//
// # Sending Calls
//
// A [Call] carries everything one request needs. Nothing about it is
// remembered by the [Client] afterwards:
//
//	resp, err := c.Send(ctx, client.Call{
//		Method:         http.MethodPost,
//		URL:            "https://api.example.com/v1/users",
//		Header:         map[string]string{"X-Token": "abc"},
//		Body:           map[string]any{"name": "alice"},
//		ContentType:    client.ContentTypeJSON,
//		Timeout:        5 * time.Second,
//		ConnectTimeout: time.Second,
//		Retry:          3,
//	})
//
// GET and HEAD carry a body in the query string. For other methods a body is
// encoded by its type: maps become form data, maps holding a [File] become
// multipart form data, strings, byte slices and readers are sent as-is and
// anything else is encoded as JSON.
//
// A non-2xx status is not an error from [Client.Send]; use [Response.Expect]
// or [Response.Success].
//
// # Downloading Files
//
// [Client.Download] streams a 2xx response body to disk with optional
// checksum verification and progress reporting. A destination ending in
// ".*" takes its extension from the response:
//
//	resp, err := c.Download(ctx, "/tmp/logo.*", call,
//		client.WithChecksum(sha256.New(), expectedHex),
//		client.WithProgress(),
//	)
//	fmt.Println(resp.Path) // /tmp/logo.png
//
// For lower-level control see the
// [github.com/nspteam/httpclient/client/download] package.
package client

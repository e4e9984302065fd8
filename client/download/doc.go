// Package download streams HTTP response bodies to disk with optional
// checksum validation and progress reporting.
//
// # Single Download
//
// [Handle] writes the response body to a temporary file alongside the
// destination path, then renames it on success:
//
//	err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// # Extension Inference
//
// A destination ending in [WildcardExt] (".*") has its extension derived
// from the response Content-Type, or from the leading body bytes when the
// header is missing. See [ResolvePath].
//
// # Batches
//
// [Queue] runs several downloads with a concurrency limit and joins
// their errors:
//
//	q := download.NewQueue(4)
//	q.Start(ctx, "/tmp/a.bin", fetchA)
//	q.Start(ctx, "/tmp/b.bin", fetchB)
//	err := q.Wait()
//
// Most callers should use the higher-level
// [github.com/nspteam/httpclient/client] package, which invokes
// Handle internally.
package download

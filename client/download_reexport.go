package client

import (
	"hash"

	"github.com/nspteam/httpclient/client/download"
)

// DownloadOption configures [Client.Download].
type DownloadOption = download.Option

// DownloadError wraps a download sentinel error with additional detail.
type DownloadError = download.Error

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrDownloadCancelled indicates the download was cancelled via context.
	ErrDownloadCancelled = download.ErrDownloadCancelled
)

// WithChecksum enables checksum validation of the downloaded file.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) DownloadOption {
	return download.WithChecksum(h, expected)
}

// WithProgress enables periodic download progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithSkipExisting causes a download to return nil immediately when
// the destination file already exists.
func WithSkipExisting() DownloadOption { return download.WithSkipExisting() }

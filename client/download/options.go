package download

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// Option configures a single [Handle] call.
type Option func(*options) error

type options struct {
	checksum     *checksumVerifier
	progress     bool
	skipExisting bool
}

func applyOptions(fns []Option) (options, error) {
	var opts options
	for _, fn := range fns {
		if err := fn(&opts); err != nil {
			return options{}, fmt.Errorf("applying option: %w", err)
		}
	}
	return opts, nil
}

// WithChecksum verifies the saved bytes against expected, a hex digest of
// h (upper or lower case). The digest is checked for length when the
// option is applied, and h is reset before use.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("checksum hash is required")
		}
		if expected == "" {
			return errors.New("checksum digest is required")
		}

		want, err := hex.DecodeString(expected)
		if err != nil {
			return fmt.Errorf("checksum digest is not hex: %w", err)
		}
		if len(want) != h.Size() {
			return fmt.Errorf("checksum digest has %d bytes, hash produces %d", len(want), h.Size())
		}

		h.Reset()
		opts.checksum = &checksumVerifier{hash: h, want: want}
		return nil
	}
}

// WithProgress logs transferred bytes at intervals while the body is copied.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithSkipExisting leaves an existing destination untouched and reports
// success without reading the body.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

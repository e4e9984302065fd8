package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
)

// checksumVerifier is fed the body alongside the temp file.
type checksumVerifier struct {
	hash hash.Hash
	want []byte
}

func (v *checksumVerifier) Write(p []byte) (int, error) {
	return v.hash.Write(p)
}

// Verify is a no-op on a nil verifier so Handle can call it unconditionally.
func (v *checksumVerifier) Verify() error {
	if v == nil {
		return nil
	}

	if got := v.hash.Sum(nil); !bytes.Equal(got, v.want) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("want %x, got %s", v.want, hex.EncodeToString(got)),
		}
	}

	return nil
}

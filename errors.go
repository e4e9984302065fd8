package httpclient

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every error a setter records.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError describes a rejected setter or dispatch argument.
type ArgumentError struct {
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidArgument, e.Message)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	// Body is nil for downloads, whose body went to Path.
	Body []byte
	// Attempts counts the requests made, retries included.
	Attempts int
	// Path is the file a download was written to, with any
	// wildcard extension resolved.
	Path string
}

// Success reports whether the status code is 2xx.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Cookies parses the Set-Cookie headers of the response.
func (r *Response) Cookies() []*http.Cookie {
	resp := http.Response{Header: r.Header}
	return resp.Cookies()
}

// String returns the body as text.
func (r *Response) String() string {
	return string(r.Body)
}

// Expect returns an [UnexpectedStatusError] unless the status code is expCode.
func (r *Response) Expect(expCode int) error {
	if r.StatusCode == expCode {
		return nil
	}
	return newUnexpectedStatusError(r.StatusCode, r.Body)
}

// Decode unmarshals the JSON body into dest, which must be a pointer.
func (r *Response) Decode(dest any, opts ...DecodeOption) error {
	var settings decodeOpts
	for _, opt := range opts {
		opt(&settings)
	}

	d := json.NewDecoder(bytes.NewReader(r.Body))
	if settings.useJSONNum {
		d.UseNumber()
	}

	if err := d.Decode(dest); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	return nil
}

// DecodeOption is a functional option for [Response.Decode].
type DecodeOption func(*decodeOpts)

type decodeOpts struct {
	useJSONNum bool
}

// WithJSONNumber tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumber() DecodeOption {
	return func(opts *decodeOpts) {
		opts.useJSONNum = true
	}
}

package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"reflect"
	"strings"
)

// ErrUnsupportedBody is returned when a body cannot be placed in a query string.
var ErrUnsupportedBody = errors.New("unsupported body type")

// IsEmptyBody reports whether body carries nothing to send: nil, an empty
// string, or an empty slice or map.
func IsEmptyBody(body any) bool {
	switch b := body.(type) {
	case nil:
		return true
	case string:
		return b == ""
	case []byte:
		return len(b) == 0
	case url.Values:
		return len(b) == 0
	case map[string]string:
		return len(b) == 0
	case map[string]any:
		return len(b) == 0
	}

	v := reflect.ValueOf(body)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}

	return false
}

// encodeBody renders body for methods that carry a payload and returns the
// bytes together with the Content-Type header to send, if any.
func encodeBody(body any, contentType string) ([]byte, string, error) {
	if IsEmptyBody(body) {
		return nil, literalContentType(contentType, ""), nil
	}

	if contentType == ContentTypeJSON {
		return encodeJSON(body)
	}

	switch b := body.(type) {
	case string:
		return []byte(b), literalContentType(contentType, ""), nil
	case []byte:
		return b, literalContentType(contentType, ""), nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("reading body: %w", err)
		}
		return data, literalContentType(contentType, ""), nil
	case url.Values:
		return []byte(b.Encode()), literalContentType(contentType, formContentType), nil
	case map[string]string:
		return []byte(stringValues(b).Encode()), literalContentType(contentType, formContentType), nil
	case map[string]any:
		if hasFiles(b) {
			data, ct, err := encodeMultipart(b)
			if err != nil {
				return nil, "", err
			}
			return data, ct, nil
		}
		return []byte(anyValues(b).Encode()), literalContentType(contentType, formContentType), nil
	}

	data, ct, err := encodeJSON(body)
	if err != nil {
		return nil, "", err
	}
	return data, literalContentType(contentType, ct), nil
}

const (
	formContentType = "application/x-www-form-urlencoded"
	jsonContentType = "application/json"
)

// literalContentType prefers an explicit, non-hint content type over fallback.
func literalContentType(contentType, fallback string) string {
	if contentType != ContentTypeNone && contentType != ContentTypeJSON {
		return contentType
	}
	return fallback
}

func encodeJSON(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case string:
		return []byte(b), jsonContentType, nil
	case []byte:
		return b, jsonContentType, nil
	case json.RawMessage:
		return b, jsonContentType, nil
	}

	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(body); err != nil {
		return nil, "", fmt.Errorf("encoding request payload: %w", err)
	}

	// Encoder appends a newline; the wire body should be the bare document.
	return bytes.TrimRight(payload.Bytes(), "\n"), jsonContentType, nil
}

func hasFiles(fields map[string]any) bool {
	for _, v := range fields {
		if _, ok := v.(*File); ok {
			return true
		}
	}
	return false
}

func encodeMultipart(fields map[string]any) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, v := range fields {
		f, ok := v.(*File)
		if !ok {
			for _, s := range fieldStrings(v) {
				if err := w.WriteField(name, s); err != nil {
					return nil, "", fmt.Errorf("writing field %s: %w", name, err)
				}
			}
			continue
		}

		if err := writeFilePart(w, name, f); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, name string, f *File) error {
	r := f.Reader
	if r == nil {
		file, err := os.Open(f.Path)
		if err != nil {
			return fmt.Errorf("opening upload %s: %w", name, err)
		}
		defer file.Close()
		r = file
	}

	fileName := f.FileName
	if fileName == "" && f.Path != "" {
		fileName = f.Path[strings.LastIndexAny(f.Path, `/\`)+1:]
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, fileName))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating part %s: %w", name, err)
	}

	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copying upload %s: %w", name, err)
	}

	return nil
}

// appendQuery merges a GET/HEAD body into the query string of rawURL.
func appendQuery(rawURL string, body any) (string, error) {
	if IsEmptyBody(body) {
		return rawURL, nil
	}

	var query string
	switch b := body.(type) {
	case string:
		query = strings.TrimPrefix(b, "?")
	case []byte:
		query = strings.TrimPrefix(string(b), "?")
	case url.Values:
		query = b.Encode()
	case map[string]string:
		query = stringValues(b).Encode()
	case map[string]any:
		query = anyValues(b).Encode()
	default:
		return "", fmt.Errorf("%w for query string: %T", ErrUnsupportedBody, body)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if query == "" {
		return rawURL, nil
	}

	if u.RawQuery == "" {
		u.RawQuery = query
	} else {
		u.RawQuery += "&" + query
	}

	return u.String(), nil
}

func stringValues(m map[string]string) url.Values {
	values := make(url.Values, len(m))
	for k, v := range m {
		values.Set(k, v)
	}
	return values
}

func anyValues(m map[string]any) url.Values {
	values := make(url.Values, len(m))
	for k, v := range m {
		values[k] = fieldStrings(v)
	}
	return values
}

// fieldStrings flattens a form value; slices become repeated fields.
func fieldStrings(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{x}
	case []byte:
		return []string{string(x)}
	case []string:
		return x
	case fmt.Stringer:
		return []string{x.String()}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, rv.Len())
		for i := range rv.Len() {
			out[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		return out
	}

	return []string{fmt.Sprint(v)}
}

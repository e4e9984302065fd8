package client

import (
	"io"
	"time"
)

// Content type hints understood by [Client.Send]. Any other non-empty
// value is sent verbatim as the Content-Type header.
const (
	// ContentTypeNone leaves encoding to the body's Go type.
	ContentTypeNone = ""
	// ContentTypeJSON encodes structured bodies as JSON.
	ContentTypeJSON = "json"
)

// Call is one request handed to the transport. Zero-valued fields leave
// the transport's own defaults in effect.
type Call struct {
	Method      string
	URL         string
	Header      map[string]string
	Cookies     map[string]string
	Body        any
	ContentType string

	// Timeout bounds each attempt, connect and body read included.
	Timeout time.Duration
	// ConnectTimeout bounds dialing a new connection.
	ConnectTimeout time.Duration
	// Retry is the number of retries after the first attempt.
	Retry int
}

// File is an upload field within a structured body. A body map holding
// a *File is sent as multipart/form-data.
type File struct {
	// FileName is reported to the server as the part's file name.
	FileName string
	// ContentType of the part, application/octet-stream when empty.
	ContentType string
	// Path is read when Reader is nil.
	Path   string
	Reader io.Reader
}

// UploadFile describes the file at path as an upload field.
func UploadFile(fileName, contentType, path string) *File {
	return &File{
		FileName:    fileName,
		ContentType: contentType,
		Path:        path,
	}
}

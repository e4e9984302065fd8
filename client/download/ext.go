package download

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// WildcardExt is the destination suffix asking for the extension to be
// derived from the response.
const WildcardExt = ".*"

// SniffLen is the number of leading body bytes [Extension] inspects when
// the Content-Type header is missing or unknown.
const SniffLen = 3072

// ResolvePath replaces a trailing [WildcardExt] in destPath with the
// extension matching contentType, or the sniffed type of head. Paths
// without the wildcard are returned unchanged.
func ResolvePath(destPath, contentType string, head []byte) string {
	if !strings.HasSuffix(destPath, WildcardExt) {
		return destPath
	}

	return strings.TrimSuffix(destPath, WildcardExt) + Extension(contentType, head)
}

// Extension returns the file extension, dot included, for the given
// Content-Type value. When the header does not name a known type, the
// content of head is sniffed. An empty string means no type was found.
func Extension(contentType string, head []byte) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}

	if len(head) == 0 {
		return ""
	}

	return mimetype.Detect(head).Extension()
}

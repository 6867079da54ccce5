// internal/matchers/contenttype.go
package matchers

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

/*
 * Content sniffing for the content-type matcher. The first 512 bytes go
 * through the WHATWG sniffing algorithm; plain text is then refined to the
 * common structured text types (JSON, XML, HTML) by inspecting the content.
 * Only the media type (type/subtype) is compared, parameters such as the
 * charset are ignored.
 */

// DetectContentType sniffs the media type of data.
func DetectContentType(data []byte) string {
	detected := baseMediaType(http.DetectContentType(data))
	if detected == "text/plain" || detected == "application/octet-stream" && isText(data) {
		if ct := detectTextContentType(data); ct != "" {
			return ct
		}
		return "text/plain"
	}
	if detected == "text/xml" {
		return "application/xml"
	}
	return detected
}

func detectTextContentType(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	switch {
	case bytes.HasPrefix(trimmed, []byte("<?xml")):
		return "application/xml"
	case bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")), bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html")):
		return "text/html"
	case trimmed[0] == '{' || trimmed[0] == '[':
		if _, err := jsondoc.Parse(trimmed); err == nil {
			return "application/json"
		}
	}
	return ""
}

func isText(data []byte) bool {
	for _, b := range data {
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			return false
		}
	}
	return true
}

func baseMediaType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mediaType
}

func contentBytes(actual any) []byte {
	switch t := actual.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return []byte(safeToString(actual))
	}
}

func matchContentType(contentType string, path []string, actual any) []Mismatch {
	detected := DetectContentType(contentBytes(actual))
	expected := baseMediaType(contentType)
	if expected == detected {
		return nil
	}
	return mismatch(path, contentType, actual,
		"Expected binary contents to have content type '%s' but detected contents was '%s'", contentType, detected)
}

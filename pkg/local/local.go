// Package local reads resources that never touch the network: files and data URLs.
package local

import (
	"os"
	"strings"

	"github.com/always-cache/textfetch/fetcherr"
)

// DefaultFile is read when a file URL has an empty path.
const DefaultFile = "./test.html"

// ReadFile returns the contents of the file at path.
func ReadFile(path string) ([]byte, error) {
	if path == "" {
		path = DefaultFile
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &fetcherr.IOError{Path: path, Err: err}
	}
	return b, nil
}

// DecodeData returns the text of a data URL payload, i.e. everything after
// the media type and its comma. The media type itself is ignored and the text
// is returned as is, base64 payloads are not decoded.
func DecodeData(payload string) (string, error) {
	_, text, ok := strings.Cut(payload, ",")
	if !ok {
		return "", &fetcherr.ParseError{Input: "data:" + payload, Reason: "missing comma"}
	}
	return text, nil
}

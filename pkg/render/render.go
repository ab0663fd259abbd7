// Package render prints the text of an HTML body.
package render

import (
	"bufio"
	"io"
	"strings"
)

var entities = map[string]byte{
	"&lt;": '<',
	"&gt;": '>',
}

// Render writes body to w with all markup removed: everything between '<'
// and the next '>' is dropped, and "&lt;" and "&gt;" outside of tags are
// written as the characters they stand for. With viewSource the body is
// written unchanged.
func Render(w io.Writer, body string, viewSource bool) error {
	if viewSource {
		_, err := io.WriteString(w, body)
		return err
	}
	out := bufio.NewWriter(w)
	inTag := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
		case inTag:
		case c == '&' && i+4 <= len(body):
			if r, ok := entities[body[i:i+4]]; ok {
				out.WriteByte(r)
				i += 3
				continue
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}
	return out.Flush()
}

// String is Render into a string.
func String(body string, viewSource bool) string {
	var b strings.Builder
	Render(&b, body, viewSource)
	return b.String()
}

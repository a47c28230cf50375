// Package protocol implements the small HTTP/1.x subset the server speaks:
// one bounded read per connection, a request line split into three
// width-limited tokens, and a handful of fixed responses.
package protocol

import (
	"fmt"
	"io"
)

// Field width limits for the request line tokens
const (
	MaxMethodLen  = 7
	MaxPathLen    = 255
	MaxVersionLen = 15
)

// Request is the parsed request line. Headers and body are never read.
type Request struct {
	Method  string
	Path    string
	Version string
}

// ReadRequest performs exactly one read of at most bufSize bytes from r.
// Anything beyond the buffer is left unread and the request is truncated.
func ReadRequest(r io.Reader, bufSize int) ([]byte, error) {
	buf := make([]byte, bufSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			return nil, ErrEmptyRequest
		}
		return nil, fmt.Errorf("receive failed: %w", err)
	}
	// A short read with an error still carries a usable request line
	return buf[:n], nil
}

// ParseRequestLine splits raw into method, path and version.
//
// Each token skips leading whitespace and then takes at most its width
// limit of non-whitespace bytes; an overlong token spills into the next
// field. Missing tokens are left empty and the token count is not
// validated. A NUL byte ends the input.
func ParseRequestLine(raw []byte) Request {
	s := scanner{buf: raw}
	return Request{
		Method:  s.token(MaxMethodLen),
		Path:    s.token(MaxPathLen),
		Version: s.token(MaxVersionLen),
	}
}

type scanner struct {
	buf []byte
	pos int
}

func (s *scanner) token(width int) string {
	for s.pos < len(s.buf) && isSpace(s.buf[s.pos]) {
		s.pos++
	}
	start := s.pos
	for s.pos < len(s.buf) && s.pos-start < width {
		c := s.buf[s.pos]
		if c == 0 {
			// treat the rest of the buffer as absent
			s.buf = s.buf[:s.pos]
			break
		}
		if isSpace(c) {
			break
		}
		s.pos++
	}
	return string(s.buf[start:s.pos])
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

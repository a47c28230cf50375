package protocol

import (
	"fmt"
	"io"
)

// Fixed wire responses
const (
	NotFoundResponse   = "HTTP/1.1 404 Not Found\r\nContent-Length: 13\r\n\r\n404 Not Found"
	BadRequestResponse = "HTTP/1.1 400 Bad Request\r\nContent-Length: 15\r\n\r\n400 Bad Request"

	// HTMLHeader starts a 200 response whose body is delimited by connection close
	HTMLHeader = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n"
)

// Status codes reported by handlers
const (
	StatusOK         = 200
	StatusBadRequest = 400
	StatusNotFound   = 404
)

// FileHeader builds the header block for a static file response
func FileHeader(contentType string, size int64) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", contentType, size)
}

// WriteNotFound writes the fixed 404 response
func WriteNotFound(w io.Writer) (int, error) {
	_, err := io.WriteString(w, NotFoundResponse)
	return StatusNotFound, err
}

// WriteBadRequest writes the fixed 400 response
func WriteBadRequest(w io.Writer) (int, error) {
	_, err := io.WriteString(w, BadRequestResponse)
	return StatusBadRequest, err
}

package protocol

import "errors"

// errors for reading requests
var (
	// ErrEmptyRequest is returned when the peer closed before sending anything
	ErrEmptyRequest = errors.New("empty request")
)

package protocol

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Request
	}{
		{
			name: "simple get",
			raw:  "GET /stats HTTP/1.1\r\nHost: localhost\r\n\r\n",
			want: Request{Method: "GET", Path: "/stats", Version: "HTTP/1.1"},
		},
		{
			name: "query kept in path",
			raw:  "GET /calc?a=1&b=2 HTTP/1.0\r\n\r\n",
			want: Request{Method: "GET", Path: "/calc?a=1&b=2", Version: "HTTP/1.0"},
		},
		{
			name: "leading and repeated whitespace",
			raw:  "  \tPOST \t /stats   HTTP/1.1",
			want: Request{Method: "POST", Path: "/stats", Version: "HTTP/1.1"},
		},
		{
			name: "overlong method spills into path",
			raw:  "GETTINGLONG /x HTTP/1.1",
			want: Request{Method: "GETTING", Path: "LONG", Version: "/x"},
		},
		{
			name: "missing version",
			raw:  "GET /stats",
			want: Request{Method: "GET", Path: "/stats"},
		},
		{
			name: "empty",
			raw:  "",
			want: Request{},
		},
		{
			name: "nul terminates input",
			raw:  "GET /st\x00ats HTTP/1.1",
			want: Request{Method: "GET", Path: "/st"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRequestLine([]byte(tt.raw)); got != tt.want {
				t.Errorf("ParseRequestLine(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseRequestLineTruncatesLongPath(t *testing.T) {
	path := "/" + strings.Repeat("a", 300)
	got := ParseRequestLine([]byte("GET " + path + " HTTP/1.1"))

	if len(got.Path) != MaxPathLen {
		t.Errorf("Expected path of %d bytes, got %d", MaxPathLen, len(got.Path))
	}
	if got.Version != strings.Repeat("a", MaxVersionLen) {
		t.Errorf("Expected path overflow to spill into version, got %q", got.Version)
	}
}

func TestReadRequestSingleBoundedRead(t *testing.T) {
	payload := "GET /stats HTTP/1.1\r\n" + strings.Repeat("X", 100)
	r := strings.NewReader(payload)

	buf, err := ReadRequest(r, 64)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(buf) != 64 {
		t.Errorf("Expected 64 bytes, got %d", len(buf))
	}
	if r.Len() != len(payload)-64 {
		t.Errorf("Expected the rest of the request to stay unread, %d bytes left", r.Len())
	}
}

type errReader struct{ err error }

func (e errReader) Read(p []byte) (int, error) { return 0, e.err }

func TestReadRequestErrors(t *testing.T) {
	if _, err := ReadRequest(strings.NewReader(""), 4096); !errors.Is(err, ErrEmptyRequest) {
		t.Errorf("Expected ErrEmptyRequest on EOF, got %v", err)
	}

	boom := errors.New("connection reset")
	_, err := ReadRequest(errReader{boom}, 4096)
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped read error, got %v", err)
	}
	if errors.Is(err, ErrEmptyRequest) {
		t.Error("Transport error should not be reported as an empty request")
	}

	buf, err := ReadRequest(io.MultiReader(strings.NewReader("GET / HTTP/1.1")), 4096)
	if err != nil || string(buf) != "GET / HTTP/1.1" {
		t.Errorf("Expected full short request, got %q, %v", buf, err)
	}
}

func TestFixedResponseBodiesMatchContentLength(t *testing.T) {
	tests := []struct {
		name     string
		response string
		body     string
	}{
		{"not found", NotFoundResponse, "404 Not Found"},
		{"bad request", BadRequestResponse, "400 Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, body, ok := strings.Cut(tt.response, "\r\n\r\n")
			if !ok {
				t.Fatalf("Response has no header terminator: %q", tt.response)
			}
			if body != tt.body {
				t.Errorf("Expected body %q, got %q", tt.body, body)
			}
			want := "Content-Length: " + strconv.Itoa(len(body))
			if !strings.Contains(head, want) {
				t.Errorf("Expected header %q in %q", want, head)
			}
		})
	}
}

func TestFixedResponses(t *testing.T) {
	var buf bytes.Buffer

	status, err := WriteNotFound(&buf)
	if err != nil || status != StatusNotFound {
		t.Fatalf("WriteNotFound returned %d, %v", status, err)
	}
	if !strings.HasSuffix(buf.String(), "\r\n\r\n404 Not Found") {
		t.Errorf("Unexpected 404 response: %q", buf.String())
	}
	if len(NotFoundResponse) != 59 {
		t.Errorf("Expected 59-byte 404 response, got %d", len(NotFoundResponse))
	}

	buf.Reset()
	status, err = WriteBadRequest(&buf)
	if err != nil || status != StatusBadRequest {
		t.Fatalf("WriteBadRequest returned %d, %v", status, err)
	}
	if buf.String() != BadRequestResponse || len(BadRequestResponse) != 65 {
		t.Errorf("Unexpected 400 response: %q", buf.String())
	}

	header := FileHeader("text/css", 42)
	if header != "HTTP/1.1 200 OK\r\nContent-Type: text/css\r\nContent-Length: 42\r\n\r\n" {
		t.Errorf("Unexpected file header: %q", header)
	}
}

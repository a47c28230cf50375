package handler

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/niels/minihttpd/pkg/logging"
	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
)

// writeStaticFile creates root/static/name with content and returns root
func writeStaticFile(t *testing.T, root, name string, content []byte) {
	t.Helper()
	full := filepath.Join(root, "static", filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("Failed to create static dir: %v", err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		t.Fatalf("Failed to write static file: %v", err)
	}
}

func TestResolveStaticPath(t *testing.T) {
	tests := []struct {
		name           string
		requestPath    string
		allowTraversal bool
		want           string
		wantErr        bool
	}{
		{"plain file", "/static/index.html", false, filepath.Join("root", "static", "index.html"), false},
		{"nested file", "/static/css/site.css", false, filepath.Join("root", "static", "css", "site.css"), false},
		{"dot segments inside", "/static/a/../b.png", false, filepath.Join("root", "static", "b.png"), false},
		{"static dir itself", "/static/", false, filepath.Join("root", "static"), false},
		{"escape root", "/static/../../etc/passwd", false, "", true},
		{"escape static dir", "/static/../secret.txt", false, "", true},
		{"verbatim when allowed", "/static/../secret.txt", true, "root/static/../secret.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveStaticPath("root", tt.requestPath, tt.allowTraversal)
			if tt.wantErr {
				if !errors.Is(err, ErrTraversal) {
					t.Errorf("Expected ErrTraversal, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveStaticPath(%q) = %q, want %q", tt.requestPath, got, tt.want)
			}
		})
	}
}

func TestStaticHandlerServesFile(t *testing.T) {
	root := t.TempDir()
	// Larger than one chunk so streaming loops more than once
	content := bytes.Repeat([]byte("0123456789abcdef"), 700)
	writeStaticFile(t, root, "app.js", content)

	registry := stats.NewRegistry()
	h := NewStaticHandler(root, false, 4096, registry)

	var buf bytes.Buffer
	status, err := h.Serve(&buf, "/static/app.js")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status != protocol.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}

	wantHeader := protocol.FileHeader("application/javascript", int64(len(content)))
	if !strings.HasPrefix(buf.String(), wantHeader) {
		t.Errorf("Expected header %q, got %q", wantHeader, buf.String()[:len(wantHeader)])
	}
	if !bytes.Equal(buf.Bytes()[len(wantHeader):], content) {
		t.Error("Response body differs from file contents")
	}
	if got := registry.Snapshot().BytesSent; got != int64(len(content)) {
		t.Errorf("Expected %d bytes sent, got %d", len(content), got)
	}
}

func TestStaticHandlerNotFound(t *testing.T) {
	root := t.TempDir()
	writeStaticFile(t, root, "sub/file.txt", []byte("x"))
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to write secret file: %v", err)
	}

	registry := stats.NewRegistry()
	h := NewStaticHandler(root, false, 4096, registry)

	paths := []string{
		"/static/missing.html",
		"/static/sub",
		"/static/../secret.txt",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			var buf bytes.Buffer
			status, err := h.Serve(&buf, p)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if status != protocol.StatusNotFound || buf.String() != protocol.NotFoundResponse {
				t.Errorf("Expected 404 response, got %d %q", status, buf.String())
			}
		})
	}

	if got := registry.Snapshot().BytesSent; got != 0 {
		t.Errorf("Error responses should not count as sent bytes, got %d", got)
	}
}

func TestStaticHandlerDirectoryIsNotTraversal(t *testing.T) {
	root := t.TempDir()
	writeStaticFile(t, root, "index.html", []byte("<html></html>"))

	var logBuf bytes.Buffer
	logging.SetGlobalLogger(logging.NewLogger(true, &logBuf))
	defer logging.SetGlobalLogger(logging.NewLogger(false, os.Stderr))

	h := NewStaticHandler(root, false, 4096, stats.NewRegistry())
	var buf bytes.Buffer
	status, err := h.Serve(&buf, "/static/")
	if err != nil || status != protocol.StatusNotFound {
		t.Fatalf("Expected 404 for the static directory, got %d, %v", status, err)
	}
	if buf.String() != protocol.NotFoundResponse {
		t.Errorf("Unexpected response: %q", buf.String())
	}
	if strings.Contains(logBuf.String(), "Rejected static path") {
		t.Errorf("Static directory should not be logged as traversal, got: %s", logBuf.String())
	}
}

func TestStaticHandlerAllowTraversal(t *testing.T) {
	root := t.TempDir()
	writeStaticFile(t, root, "placeholder", nil)
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to write secret file: %v", err)
	}

	h := NewStaticHandler(root, true, 4096, stats.NewRegistry())

	var buf bytes.Buffer
	status, err := h.Serve(&buf, "/static/../secret.txt")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if status != protocol.StatusOK || !strings.HasSuffix(buf.String(), "\r\n\r\nsecret") {
		t.Errorf("Expected verbatim path to reach the file, got %d %q", status, buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStaticHandlerWriteError(t *testing.T) {
	root := t.TempDir()
	writeStaticFile(t, root, "index.html", []byte("<html></html>"))

	h := NewStaticHandler(root, false, 4096, stats.NewRegistry())
	if _, err := h.Serve(failingWriter{}, "/static/index.html"); err == nil {
		t.Error("Expected write error, got nil")
	}
}

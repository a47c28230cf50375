package handler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/niels/minihttpd/pkg/logging"
	"github.com/niels/minihttpd/pkg/mime"
	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
)

// StaticPrefix is the path prefix routed to the static file handler
const StaticPrefix = "/static/"

var staticDir = path.Clean(StaticPrefix)

// ErrTraversal is returned when a static path escapes the static directory
var ErrTraversal = errors.New("path escapes static directory")

// ResolveStaticPath maps a request path onto the filesystem below root.
//
// With allowTraversal the request path is appended to root verbatim, so
// parent-directory segments can reach any file the process can read.
// Otherwise the path is cleaned first and must still lie under StaticPrefix.
func ResolveStaticPath(root, requestPath string, allowTraversal bool) (string, error) {
	if allowTraversal {
		return root + requestPath, nil
	}

	cleaned := path.Clean("/" + requestPath)
	if cleaned != staticDir && !strings.HasPrefix(cleaned, StaticPrefix) {
		return "", fmt.Errorf("%w: %s", ErrTraversal, requestPath)
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}

// StaticHandler streams files from below a root directory
type StaticHandler struct {
	root           string
	allowTraversal bool
	chunkSize      int
	stats          *stats.Registry
}

// NewStaticHandler creates a static file handler
func NewStaticHandler(root string, allowTraversal bool, chunkSize int, registry *stats.Registry) *StaticHandler {
	return &StaticHandler{
		root:           root,
		allowTraversal: allowTraversal,
		chunkSize:      chunkSize,
		stats:          registry,
	}
}

// Serve writes the file named by requestPath to w, or a 404 when it cannot be opened.
// Only file bytes are counted as sent, not the header.
func (h *StaticHandler) Serve(w io.Writer, requestPath string) (int, error) {
	fullPath, err := ResolveStaticPath(h.root, requestPath, h.allowTraversal)
	if err != nil {
		logging.WarnWith("Rejected static path", map[string]interface{}{
			"path":  requestPath,
			"error": err,
		})
		return protocol.WriteNotFound(w)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return protocol.WriteNotFound(w)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil || info.IsDir() {
		return protocol.WriteNotFound(w)
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return protocol.WriteNotFound(w)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return protocol.WriteNotFound(w)
	}

	header := protocol.FileHeader(mime.TypeByPath(fullPath), size)
	if _, err := io.WriteString(w, header); err != nil {
		return protocol.StatusOK, fmt.Errorf("failed to send header: %w", err)
	}

	buf := make([]byte, h.chunkSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return protocol.StatusOK, fmt.Errorf("failed to send file chunk: %w", err)
			}
			h.stats.AddSent(n)
		}
		if readErr == io.EOF {
			return protocol.StatusOK, nil
		}
		if readErr != nil {
			return protocol.StatusOK, fmt.Errorf("failed to read %s: %w", fullPath, readErr)
		}
	}
}

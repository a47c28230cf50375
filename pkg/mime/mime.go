// Package mime maps file extensions to the content types the server advertises.
package mime

import "strings"

// DefaultType is returned for unknown or missing extensions
const DefaultType = "application/octet-stream"

var types = map[string]string{
	"html": "text/html",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"css":  "text/css",
	"js":   "application/javascript",
}

// TypeByPath returns the content type for the extension after the last '.'
// in path. Matching is case-sensitive.
func TypeByPath(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return DefaultType
	}
	if t, ok := types[path[i+1:]]; ok {
		return t
	}
	return DefaultType
}

package handler

import (
	"fmt"
	"io"

	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
)

// StatsPath is the exact path of the statistics page
const StatsPath = "/stats"

// RenderStats renders a full response, header included, for snap
func RenderStats(snap stats.Snapshot) string {
	return protocol.HTMLHeader + fmt.Sprintf(
		"<html><body><h1>Server Stats</h1>"+
			"<p>Requests: %d</p><p>Bytes Received: %d</p>"+
			"<p>Bytes Sent: %d</p></body></html>",
		snap.Requests, snap.BytesReceived, snap.BytesSent)
}

// StatsHandler reports the registry counters as HTML
type StatsHandler struct {
	stats *stats.Registry
}

// NewStatsHandler creates a stats handler over registry
func NewStatsHandler(registry *stats.Registry) *StatsHandler {
	return &StatsHandler{stats: registry}
}

// Serve renders a snapshot and sends it in one write. The page's own size
// is added to the sent counter afterwards, so it shows up in the next report.
func (h *StatsHandler) Serve(w io.Writer) (int, error) {
	page := RenderStats(h.stats.Snapshot())

	n, err := io.WriteString(w, page)
	h.stats.AddSent(n)
	if err != nil {
		return protocol.StatusOK, fmt.Errorf("failed to send stats: %w", err)
	}
	return protocol.StatusOK, nil
}

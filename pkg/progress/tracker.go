package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/niels/minihttpd/pkg/stats"
)

// Tracker is an interface for tracking the connections a server handles
type Tracker interface {
	// Start is called once the listener is bound
	Start(addr string)
	// Accepted marks a connection as handed to a worker
	Accepted(remote string)
	// Completed marks a connection as answered with status
	Completed(remote, method, path string, status int, duration time.Duration)
	// Failed marks a connection that could not be served
	Failed(remote string, message string)
	// Finish is called after the last worker has returned
	Finish(snap stats.Snapshot)
}

// NoopTracker discards all events
type NoopTracker struct{}

func (NoopTracker) Start(string) {}
func (NoopTracker) Accepted(string) {}
func (NoopTracker) Completed(string, string, string, int, time.Duration) {}
func (NoopTracker) Failed(string, string) {}
func (NoopTracker) Finish(stats.Snapshot) {}

// ConsoleTracker implements Tracker for console output
type ConsoleTracker struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
	active    int
	completed int
	failed    int
}

// NewConsoleTracker creates a new console connection tracker
func NewConsoleTracker() *ConsoleTracker {
	return &ConsoleTracker{
		writer: os.Stdout,
	}
}

// WithWriter sets the writer for the console tracker
func (t *ConsoleTracker) WithWriter(writer io.Writer) *ConsoleTracker {
	t.writer = writer
	return t
}

// Start prints the listening banner
func (t *ConsoleTracker) Start(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = time.Now()
	t.active = 0
	t.completed = 0
	t.failed = 0

	fmt.Fprintf(t.writer, "Server running on %s\n", color.CyanString(addr))
}

// Accepted counts a connection in flight
func (t *ConsoleTracker) Accepted(remote string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active++
}

// Completed prints one line for an answered connection
func (t *ConsoleTracker) Completed(remote, method, path string, status int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	t.completed++

	fmt.Fprintf(t.writer, "%s %s %s %s %s (%s) [%d active]\n",
		time.Now().Format("15:04:05"), remote, method, path,
		statusString(status), duration.Round(time.Microsecond), t.active)
}

// Failed prints one line for a connection that was abandoned
func (t *ConsoleTracker) Failed(remote string, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active--
	t.failed++

	fmt.Fprintf(t.writer, "%s %s %s\n",
		time.Now().Format("15:04:05"), remote, color.RedString("failed: %s", message))
}

// Finish prints the shutdown summary
func (t *ConsoleTracker) Finish(snap stats.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := time.Since(t.startTime).Round(time.Second)
	fmt.Fprintf(t.writer, "\nServer stopped after %s\n", duration)
	fmt.Fprintf(t.writer, "Handled %d connections: %d completed, %d failed\n",
		t.completed+t.failed, t.completed, t.failed)
	fmt.Fprintf(t.writer, "Requests: %d, bytes received: %d, bytes sent: %d\n",
		snap.Requests, snap.BytesReceived, snap.BytesSent)
}

// statusString colours a status code by class
func statusString(status int) string {
	switch {
	case status >= 500:
		return color.RedString("%d", status)
	case status >= 400:
		return color.YellowString("%d", status)
	default:
		return color.GreenString("%d", status)
	}
}

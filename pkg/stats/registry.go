package stats

import "sync"

// Snapshot is a consistent copy of the registry counters
type Snapshot struct {
	Requests      int64
	BytesReceived int64
	BytesSent     int64
}

// Registry holds the process-wide request and byte counters.
// Every update is its own critical section; two updates made for the
// same request are not atomic with respect to each other.
type Registry struct {
	mu            sync.Mutex
	requests      int64
	bytesReceived int64
	bytesSent     int64
}

// NewRegistry creates a registry with all counters at zero
func NewRegistry() *Registry {
	return &Registry{}
}

// RecordRequest counts one received request and the bytes it arrived with
func (r *Registry) RecordRequest(bytesReceived int) {
	r.mu.Lock()
	r.bytesReceived += int64(bytesReceived)
	r.requests++
	r.mu.Unlock()
}

// AddSent adds n to the bytes sent counter
func (r *Registry) AddSent(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.bytesSent += int64(n)
	r.mu.Unlock()
}

// Snapshot returns the three counters read under a single lock
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Requests:      r.requests,
		BytesReceived: r.bytesReceived,
		BytesSent:     r.bytesSent,
	}
}

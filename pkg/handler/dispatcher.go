package handler

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/niels/minihttpd/pkg/config"
	"github.com/niels/minihttpd/pkg/logging"
	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
)

// Result describes how one connection was handled
type Result struct {
	Request       protocol.Request
	Status        int
	BytesReceived int
	Duration      time.Duration
	// Err is a receive error (nothing was dispatched) or a send error
	Err error
}

// Dispatcher reads one request from a connection and routes it
type Dispatcher struct {
	stats          *stats.Registry
	static         *StaticHandler
	statsHandler   *StatsHandler
	calc           *CalcHandler
	recvBufferSize int
	readTimeout    time.Duration
	writeTimeout   time.Duration
}

// NewDispatcher creates a dispatcher whose handlers share registry
func NewDispatcher(cfg *config.Config, registry *stats.Registry) *Dispatcher {
	return &Dispatcher{
		stats:          registry,
		static:         NewStaticHandler(cfg.Static.Root, cfg.Static.AllowTraversal, cfg.Server.ChunkSize, registry),
		statsHandler:   NewStatsHandler(registry),
		calc:           NewCalcHandler(registry),
		recvBufferSize: cfg.Server.RecvBufferSize,
		readTimeout:    cfg.ReadTimeoutDuration(),
		writeTimeout:   cfg.WriteTimeoutDuration(),
	}
}

// ServeConn handles exactly one request on conn and always closes it
func (d *Dispatcher) ServeConn(conn net.Conn) Result {
	start := time.Now()
	defer conn.Close()

	if d.readTimeout > 0 {
		if err := conn.SetReadDeadline(start.Add(d.readTimeout)); err != nil {
			logging.DebugWith("Failed to set read deadline", map[string]interface{}{
				"remote": conn.RemoteAddr().String(),
				"error":  err,
			})
		}
	}

	raw, err := protocol.ReadRequest(conn, d.recvBufferSize)
	if err != nil {
		return Result{Err: err, Duration: time.Since(start)}
	}
	d.stats.RecordRequest(len(raw))

	req := protocol.ParseRequestLine(raw)

	if d.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			logging.DebugWith("Failed to set write deadline", map[string]interface{}{
				"remote": conn.RemoteAddr().String(),
				"error":  err,
			})
		}
	}

	status, err := d.Dispatch(conn, req)
	return Result{
		Request:       req,
		Status:        status,
		BytesReceived: len(raw),
		Duration:      time.Since(start),
		Err:           err,
	}
}

// Dispatch routes req to a handler and returns the status written to w
func (d *Dispatcher) Dispatch(w io.Writer, req protocol.Request) (int, error) {
	if req.Method != "GET" {
		return protocol.WriteBadRequest(w)
	}

	p := req.Path
	switch {
	case strings.HasPrefix(p, StaticPrefix):
		return d.static.Serve(w, p)
	case p == StatsPath:
		return d.statsHandler.Serve(w)
	case p == CalcPath:
		return protocol.WriteBadRequest(w)
	case strings.HasPrefix(p, CalcPath+"?"):
		return d.calc.Serve(w, p[len(CalcPath)+1:])
	default:
		return protocol.WriteNotFound(w)
	}
}

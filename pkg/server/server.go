// Package server runs the accept loop and hands every connection to a
// worker from a bounded, supervised set.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/niels/minihttpd/pkg/config"
	"github.com/niels/minihttpd/pkg/handler"
	"github.com/niels/minihttpd/pkg/logging"
	"github.com/niels/minihttpd/pkg/progress"
	"github.com/niels/minihttpd/pkg/protocol"
	"github.com/niels/minihttpd/pkg/stats"
	"github.com/rs/zerolog"
)

const maxAcceptBackoff = time.Second

// Server accepts connections and dispatches each one exactly once
type Server struct {
	config     *config.Config
	registry   *stats.Registry
	dispatcher *handler.Dispatcher
	tracker    progress.Tracker
	logger     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server for cfg that records into registry
func New(cfg *config.Config, registry *stats.Registry) *Server {
	return &Server{
		config:     cfg,
		registry:   registry,
		dispatcher: handler.NewDispatcher(cfg, registry),
		tracker:    progress.NoopTracker{},
		logger:     logging.WithComponent("server"),
	}
}

// WithTracker sets a custom connection tracker
func (s *Server) WithTracker(tracker progress.Tracker) *Server {
	s.tracker = tracker
	return s
}

// Listen binds the listening socket. Failure here is fatal for the caller.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
	s.tracker.Start(ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds and then serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is cancelled or the listener is closed,
// then waits for every in-flight worker before returning.
//
// At most MaxWorkers connections are handled at once; while all slots are
// busy the loop stops accepting and new connections queue in the kernel.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	semaphore := make(chan struct{}, s.config.Concurrency.MaxWorkers)
	var wg sync.WaitGroup
	var backoff time.Duration

acceptLoop:
	for {
		// Acquire a worker slot before accepting
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			break acceptLoop
		}

		conn, err := ln.Accept()
		if err != nil {
			<-semaphore
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break acceptLoop
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.logger.Error().Err(err).Dur("backoff", backoff).Msg("Accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			defer func() { <-semaphore }()

			s.handle(conn)
		}(conn)
	}

	s.logger.Info().Msg("Waiting for in-flight connections")
	wg.Wait()

	snap := s.registry.Snapshot()
	s.logger.Info().
		Int64("requests", snap.Requests).
		Int64("bytes_received", snap.BytesReceived).
		Int64("bytes_sent", snap.BytesSent).
		Msg("Server stopped")
	s.tracker.Finish(snap)

	return nil
}

// Close stops the accept loop; in-flight connections finish normally
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// handle runs one worker: dispatch the connection, then report the outcome
func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.tracker.Accepted(remote)

	res := s.dispatcher.ServeConn(conn)

	if res.Status == 0 {
		// Nothing was received, so nothing was dispatched
		if errors.Is(res.Err, protocol.ErrEmptyRequest) {
			s.logger.Debug().Str("remote", remote).Msg("Connection closed without a request")
		} else {
			s.logger.Error().Err(res.Err).Str("remote", remote).Msg("Receive failed")
		}
		s.tracker.Failed(remote, res.Err.Error())
		return
	}

	if res.Err != nil {
		s.logger.Warn().
			Err(res.Err).
			Str("remote", remote).
			Str("path", res.Request.Path).
			Msg("Send failed")
		s.tracker.Failed(remote, res.Err.Error())
		return
	}

	s.logger.Debug().
		Str("remote", remote).
		Str("method", res.Request.Method).
		Str("path", res.Request.Path).
		Int("status", res.Status).
		Int("bytes_received", res.BytesReceived).
		Dur("duration", res.Duration).
		Msg("Request served")
	s.tracker.Completed(remote, res.Request.Method, res.Request.Path, res.Status, res.Duration)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type logger = zerolog.Logger

// Server wires the two registries, the framed TCP listener, the websocket
// gateway and the match archive together. Both registries are built once
// here and passed down explicitly; nothing is process-global.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	clients *ClientRegistry
	matches *MatchRegistry
	archive *MatchArchive

	tcpLn    net.Listener
	httpSrv  *http.Server
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer builds a server from configuration. archive may be nil, in
// which case finished matches are not recorded.
func NewServer(cfg Config, log zerolog.Logger, archive *MatchArchive) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		clients: NewClientRegistry(cfg.MaxClients),
		archive: archive,
	}
	s.matches = NewMatchRegistry(cfg.MaxGames, cfg.RematchTimeout, s)
	if archive != nil {
		s.matches.SetFinishedHook(archive.Record)
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return s
}

// SendEvent delivers an event to one logged-in player. It implements the
// Notifier interface consumed by the match registry.
func (s *Server) SendEvent(username string, ev Event) error {
	conn, err := s.clients.FindByUsername(username)
	if err != nil {
		return err
	}
	return conn.send(ev)
}

// broadcastEvent sends an event to every connected client except the
// excluded usernames. Delivery is best-effort: failures are logged and the
// slow peer's own receive loop will clean it up.
func (s *Server) broadcastEvent(event string, data any, exclude ...string) {
	ev := newEvent(event, data)
	for _, conn := range s.clients.Others(exclude...) {
		if err := conn.send(ev); err != nil {
			s.log.Warn().Err(err).Str("conn", conn.ID).Str("event", event).Msg("broadcast delivery failed")
		}
	}
}

// Start opens the TCP listener and the HTTP gateway. It returns once both
// are accepting; Shutdown stops them.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.TCPPort))
	if err != nil {
		return fmt.Errorf("listening on tcp port %d: %w", s.cfg.TCPPort, err)
	}
	s.tcpLn = ln
	s.log.Info().Int("tcp_port", s.cfg.TCPPort).Int("http_port", s.cfg.HTTPPort).Msg("server listening")

	s.wg.Add(1)
	go s.acceptLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http gateway failed")
		}
	}()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return
			}
			s.log.Error().Err(err).Msg("accept failed")
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleEndpoint(newTCPEndpoint(conn))
		}()
	}
}

// Shutdown stops accepting, closes every client connection and waits for
// the per-connection workers to drain their disconnect cascades.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)

	if s.tcpLn != nil {
		_ = s.tcpLn.Close()
	}
	// Close client connections first: websocket sessions run inside HTTP
	// handlers, and the gateway's Shutdown waits for those to return.
	for _, conn := range s.clients.Others() {
		conn.close()
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("http gateway shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

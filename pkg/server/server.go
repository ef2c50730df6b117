package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/StoreStation/orbit/pkg/logger"
)

// Server owns the listening socket and serves each accepted connection on its
// own goroutine. There is no limit on concurrent connections.
type Server struct {
	config   Config
	metrics  *Metrics
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// New creates a new server with the given configuration. metrics may be nil.
func New(config Config, metrics *Metrics) *Server {
	return &Server{
		config:  config,
		metrics: metrics,
		conns:   make(map[net.Conn]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	log.Info().
		Str("addr", s.listener.Addr().String()).
		Int32("protocol", s.config.ProtocolVersion).
		Str("version", s.config.VersionName).
		Msg("server listening")

	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done is closed when the accept loop exits, either through Stop or because
// the listener failed.
func (s *Server) Done() <-chan struct{} {
	return s.doneCh
}

// Stop closes the listener and every open connection, then waits for the
// connection goroutines to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			s.listener.Close()
			<-s.doneCh
		}
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer close(s.doneCh)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Warn().Err(err).Msg("accept timeout")
				continue
			}
			log.Error().Err(err).Msg("listener failed, accept loop stopping")
			return
		}
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer s.track(conn, false)

	connLog := logger.Component("conn").With().
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	connLog.Info().Msg("client connected")
	s.metrics.connOpened()

	var src io.Reader = conn
	if s.config.ReadTimeout > 0 {
		src = &deadlineReader{conn: conn, timeout: s.config.ReadTimeout}
	}
	rw := struct {
		io.Reader
		io.Writer
	}{bufio.NewReader(src), conn}

	c := NewConn(&s.config, rw, connLog, s.metrics)
	err := c.Serve()
	if err != nil {
		connLog.Error().Err(err).Msg("connection error")
	}
	s.metrics.connClosed(err != nil)
	connLog.Info().Msg("client disconnected")
}

// deadlineReader refreshes the read deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
		return 0, err
	}
	return d.conn.Read(p)
}

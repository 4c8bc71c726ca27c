package collector

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/your-username/syslog-sender/internal/monitoring"
)

const (
	maxDatagramSize = 65536
	pollInterval    = 1 * time.Second
)

// Handler receives every decoded datagram
type Handler func(Entry)

// Server receives syslog datagrams over UDP
type Server struct {
	addr     string
	handler  Handler
	metrics  *monitoring.Metrics
	conn     net.PacketConn
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithMetrics counts received datagrams in m
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new collector listening on addr once started
func New(addr string, handler Handler, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the UDP socket and starts the receive loop
func (s *Server) Start() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return err
	}

	s.conn = conn
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("Syslog collector started")

	s.wg.Add(1)
	go s.receiveMessages()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) receiveMessages() {
	defer s.wg.Done()

	buffer := make([]byte, maxDatagramSize)

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(pollInterval))

		n, addr, err := s.conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("Error reading syslog datagram")
			continue
		}

		s.process(string(buffer[:n]), addr.String())
	}
}

func (s *Server) process(raw, source string) {
	entry := Parse(raw)
	entry.ID = uuid.New().String()
	entry.ReceivedAt = time.Now().UTC()
	entry.Source = source

	s.metrics.RecordReceived(entry.Format)

	log.Debug().
		Str("id", entry.ID).
		Str("source", source).
		Str("format", entry.Format).
		Int("priority", entry.Priority).
		Msg("Received syslog datagram")

	if s.handler != nil {
		s.handler(entry)
	}
}

// Stop closes the socket and waits for the receive loop to exit
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.conn != nil {
			err = s.conn.Close()
		}
		s.wg.Wait()
	})
	return err
}

package syslog

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the standard syslog UDP port
const DefaultPort = 514

// Client sends RFC3164 messages as UDP datagrams to one server.
//
// A Client is not safe for concurrent Send calls; callers sharing one
// must serialize access themselves.
type Client struct {
	server   string
	port     int
	conn     net.Conn
	closed   bool
	clock    func() time.Time
	hostname string
	logger   zerolog.Logger
}

type clientOptions struct {
	port     int
	clock    func() time.Time
	hostname *string
	logger   *zerolog.Logger
}

// Option configures a Client
type Option func(*clientOptions)

// WithPort sets the destination port (default 514)
func WithPort(port int) Option {
	return func(o *clientOptions) {
		o.port = port
	}
}

// WithClock sets the time source used to stamp messages
func WithClock(clock func() time.Time) Option {
	return func(o *clientOptions) {
		o.clock = clock
	}
}

// WithHostname overrides the HOSTNAME field, which otherwise is the local
// machine name
func WithHostname(hostname string) Option {
	return func(o *clientOptions) {
		o.hostname = &hostname
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = &logger
	}
}

// NewClient creates a client bound to address on the default port unless
// WithPort is given. UDP has no handshake, so success does not mean the
// server is reachable.
func NewClient(address string, opts ...Option) (*Client, error) {
	o := clientOptions{port: DefaultPort}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(address) == "" {
		return nil, &ArgumentError{Arg: "address", Value: address, Reason: "must not be blank"}
	}
	if o.port < 0 {
		return nil, &ArgumentError{Arg: "port", Value: o.port, Reason: "must not be negative"}
	}
	if o.port == 0 || o.port > 65535 {
		return nil, &ArgumentError{Arg: "port", Value: o.port, Reason: "out of range"}
	}

	c := &Client{
		server: address,
		port:   o.port,
		clock:  o.clock,
		logger: log.Logger,
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if o.hostname != nil {
		c.hostname = *o.hostname
	} else {
		c.hostname = localHostname()
	}
	if o.logger != nil {
		c.logger = *o.logger
	}

	conn, err := net.Dial("udp", net.JoinHostPort(address, strconv.Itoa(o.port)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial syslog server: %w", err)
	}
	c.conn = conn

	return c, nil
}

// Dial creates a client bound to address:port
func Dial(address string, port int, opts ...Option) (*Client, error) {
	return NewClient(address, append(opts, WithPort(port))...)
}

// Server returns the configured server name or address
func (c *Client) Server() string {
	return c.server
}

// Port returns the destination port
func (c *Client) Port() int {
	return c.port
}

// Hostname returns the HOSTNAME field stamped on messages
func (c *Client) Hostname() string {
	return c.hostname
}

// LocalAddr returns the local end of the UDP association
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the resolved destination
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends text with an enumerated facility and level
func (c *Client) Send(facility Facility, level Level, text string) error {
	return c.SendCode(int(facility), int(level), text)
}

// SendCode sends text with integer facility and level codes
func (c *Client) SendCode(facility, level int, text string) error {
	if err := checkFacility(facility); err != nil {
		return err
	}
	if err := checkLevel(level); err != nil {
		return err
	}

	msg, err := NewMessageAt(c.clock(), c.hostname, facility, level, text)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// SendMessage writes msg as a single datagram
func (c *Client) SendMessage(msg *Message) error {
	if msg == nil {
		return &ArgumentError{Arg: "message", Reason: "must not be nil"}
	}
	if c.closed {
		return ErrClosed
	}

	payload := msg.Bytes()
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("failed to send syslog datagram: %w", err)
	}

	c.logger.Debug().
		Str("server", c.server).
		Int("port", c.port).
		Int("priority", msg.Priority()).
		Int("bytes", len(payload)).
		Msg("Sent syslog datagram")

	return nil
}

// Close releases the UDP socket. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Send sends one message to address on the default port
func Send(address string, facility, level int, text string, opts ...Option) error {
	return SendTo(address, DefaultPort, facility, level, text, opts...)
}

// SendTo sends one message through a short-lived client that is closed
// before returning
func SendTo(address string, port, facility, level int, text string, opts ...Option) (err error) {
	if err := checkFacility(facility); err != nil {
		return err
	}
	if err := checkLevel(level); err != nil {
		return err
	}

	c, err := Dial(address, port, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return c.SendCode(facility, level, text)
}

// SendSyslogMessage is the entry point for command-line front ends. All
// arguments are mandatory.
func SendSyslogMessage(computerName string, port, facility, level int, text string, opts ...Option) error {
	if strings.TrimSpace(text) == "" {
		return &ArgumentError{Arg: "text", Value: text, Reason: "must not be blank"}
	}
	return SendTo(computerName, port, facility, level, text, opts...)
}

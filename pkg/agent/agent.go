package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/your-username/syslog-sender/pkg/syslog"
)

// Config holds the agent configuration
type Config struct {
	// Server and Port locate the syslog collector
	Server string
	Port   int
	// Facility is stamped on every message
	Facility syslog.Facility
	// Hostname overrides the HOSTNAME field when set
	Hostname string
	// BatchSize is the number of messages buffered before a flush
	BatchSize int
	// FlushInterval is how often to flush messages
	FlushInterval time.Duration
	// Fields are appended to every message as key=value pairs
	Fields map[string]interface{}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server:        "localhost",
		Port:          syslog.DefaultPort,
		Facility:      syslog.User,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		Fields:        make(map[string]interface{}),
	}
}

// Agent buffers messages and ships them to a syslog server from a
// background goroutine. Its logging methods are safe for concurrent use.
//
// Datagrams are written once. The first transport error stops delivery:
// it is returned by every later Log call and by Stop.
type Agent struct {
	config    *Config
	client    *syslog.Client
	buffer    []*syslog.Message
	bufferMu  sync.Mutex
	stopped   bool
	err       error
	stopChan  chan struct{}
	flushChan chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New dials the configured server and creates an agent
func New(config *Config) (*Agent, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if !config.Facility.Valid() {
		return nil, &syslog.ArgumentError{Arg: "facility", Value: int(config.Facility), Reason: "out of range"}
	}

	var opts []syslog.Option
	if config.Hostname != "" {
		opts = append(opts, syslog.WithHostname(config.Hostname))
	}
	client, err := syslog.Dial(config.Server, config.Port, opts...)
	if err != nil {
		return nil, err
	}

	return &Agent{
		config:    config,
		client:    client,
		buffer:    make([]*syslog.Message, 0, config.BatchSize),
		stopChan:  make(chan struct{}),
		flushChan: make(chan struct{}, 1),
	}, nil
}

// Start starts the agent
func (a *Agent) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop flushes pending messages and closes the connection. It returns the
// first transport error seen by the agent, if any. Logging after Stop
// returns ErrClosed.
func (a *Agent) Stop() error {
	a.stopOnce.Do(func() {
		a.bufferMu.Lock()
		a.stopped = true
		a.bufferMu.Unlock()

		close(a.stopChan)
		a.wg.Wait()
		a.flush()

		closeErr := a.client.Close()
		a.bufferMu.Lock()
		if a.err == nil {
			a.err = closeErr
		}
		a.bufferMu.Unlock()
	})
	return a.Err()
}

// Err returns the first transport error, or nil
func (a *Agent) Err() error {
	a.bufferMu.Lock()
	defer a.bufferMu.Unlock()
	return a.err
}

// Log queues a message at the given level
func (a *Agent) Log(level syslog.Level, message string) error {
	return a.LogWithFields(level, message, nil)
}

// LogWithFields queues a message with additional key=value pairs appended
func (a *Agent) LogWithFields(level syslog.Level, message string, fields map[string]interface{}) error {
	text := message
	if suffix := formatFields(a.config.Fields, fields); suffix != "" {
		text += " " + suffix
	}

	msg, err := syslog.NewMessageAt(time.Now(), a.client.Hostname(), int(a.config.Facility), int(level), text)
	if err != nil {
		return err
	}

	return a.addToBuffer(msg)
}

// LogError logs err at error level
func (a *Agent) LogError(err error, message string) error {
	return a.LogWithFields(syslog.Error, message, map[string]interface{}{
		"error": err.Error(),
	})
}

func (a *Agent) addToBuffer(msg *syslog.Message) error {
	a.bufferMu.Lock()
	if a.stopped {
		a.bufferMu.Unlock()
		return syslog.ErrClosed
	}
	if a.err != nil {
		err := a.err
		a.bufferMu.Unlock()
		return err
	}
	a.buffer = append(a.buffer, msg)
	shouldFlush := len(a.buffer) >= a.config.BatchSize
	a.bufferMu.Unlock()

	if shouldFlush {
		select {
		case a.flushChan <- struct{}{}:
		default:
		}
	}
	return nil
}

func (a *Agent) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.flush()
		case <-a.flushChan:
			a.flush()
		}
	}
}

// flush sends the buffered messages, one datagram each. After a transport
// error the rest of the batch is discarded.
func (a *Agent) flush() {
	a.bufferMu.Lock()
	if len(a.buffer) == 0 || a.err != nil {
		a.buffer = a.buffer[:0]
		a.bufferMu.Unlock()
		return
	}

	batch := make([]*syslog.Message, len(a.buffer))
	copy(batch, a.buffer)
	a.buffer = a.buffer[:0]
	a.bufferMu.Unlock()

	for i, msg := range batch {
		if err := a.client.SendMessage(msg); err != nil {
			log.Error().
				Err(err).
				Int("batch_size", len(batch)).
				Int("dropped", len(batch)-i).
				Msg("Failed to send syslog message")

			a.bufferMu.Lock()
			if a.err == nil {
				a.err = err
			}
			a.bufferMu.Unlock()
			return
		}
	}
}

func formatFields(defaults, fields map[string]interface{}) string {
	merged := make(map[string]interface{}, len(defaults)+len(fields))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, merged[k])
	}
	return strings.Join(pairs, " ")
}

// Convenience functions for different levels

func (a *Agent) Debug(message string) error {
	return a.Log(syslog.Debug, message)
}

func (a *Agent) Info(message string) error {
	return a.Log(syslog.Info, message)
}

func (a *Agent) Warn(message string) error {
	return a.Log(syslog.Warning, message)
}

func (a *Agent) Error(message string) error {
	return a.Log(syslog.Error, message)
}

func (a *Agent) Critical(message string) error {
	return a.Log(syslog.Critical, message)
}

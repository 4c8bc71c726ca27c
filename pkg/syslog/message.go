package syslog

import (
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// TimestampLayout is the RFC3164 TIMESTAMP field. The hour uses a 12-hour
// clock without a meridiem marker.
const TimestampLayout = "Jan 02 03:04:05"

// Message is a single RFC3164 log event. It is immutable once constructed.
type Message struct {
	timestamp time.Time
	hostname  string
	facility  Facility
	level     Level
	text      string
}

// NewMessage creates a message stamped with the current UTC time and the
// local machine name
func NewMessage(facility, level int, text string) (*Message, error) {
	return NewMessageAt(time.Now().UTC(), localHostname(), facility, level, text)
}

// NewMessageAt creates a message with an explicit timestamp and hostname
func NewMessageAt(timestamp time.Time, hostname string, facility, level int, text string) (*Message, error) {
	if timestamp.IsZero() {
		return nil, &ArgumentError{Arg: "timestamp", Reason: "must be set"}
	}
	if err := checkFacility(facility); err != nil {
		return nil, err
	}
	if err := checkLevel(level); err != nil {
		return nil, err
	}

	return &Message{
		timestamp: timestamp.UTC(),
		hostname:  hostname,
		facility:  Facility(facility),
		level:     Level(level),
		text:      text,
	}, nil
}

func (m *Message) Timestamp() time.Time { return m.timestamp }
func (m *Message) Hostname() string     { return m.hostname }
func (m *Message) Facility() Facility   { return m.facility }
func (m *Message) Level() Level         { return m.level }
func (m *Message) Text() string         { return m.text }

// Priority returns facility*8 + level
func (m *Message) Priority() int {
	return Priority(m.facility, m.level)
}

// String renders the wire form "<PRI>TIMESTAMP HOSTNAME TEXT"
func (m *Message) String() string {
	var b strings.Builder
	b.Grow(len(TimestampLayout) + len(m.hostname) + len(m.text) + 8)

	b.WriteByte('<')
	b.WriteString(strconv.Itoa(m.Priority()))
	b.WriteByte('>')
	b.WriteString(m.timestamp.UTC().Format(TimestampLayout))
	b.WriteByte(' ')
	b.WriteString(m.hostname)
	b.WriteByte(' ')
	b.WriteString(m.text)

	return b.String()
}

// Bytes returns the wire form encoded as US-ASCII. Runes outside the ASCII
// range are replaced by '?'.
func (m *Message) Bytes() []byte {
	return asciiBytes(m.String())
}

func asciiBytes(s string) []byte {
	out, _, err := transform.String(toASCII(), s)
	if err != nil {
		// the mapping transformer never fails on string input
		return []byte(s)
	}
	return []byte(out)
}

func toASCII() transform.Transformer {
	return runes.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		return r
	})
}

func localHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

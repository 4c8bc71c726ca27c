package collector

import (
	"regexp"
	"strconv"
	"time"

	"github.com/your-username/syslog-sender/pkg/syslog"
)

// Detected datagram formats
const (
	FormatRFC3164 = "rfc3164"
	FormatBare    = "bare"
	FormatUnknown = "unknown"
)

// Entry is one decoded datagram
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source,omitempty"`
	Priority   int       `json:"priority"`
	Facility   string    `json:"facility,omitempty"`
	Level      string    `json:"level,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
	Text       string    `json:"text"`
	Raw        string    `json:"raw"`
	Format     string    `json:"format"`

	facility syslog.Facility
	level    syslog.Level
}

// Severity returns the decoded level. ok is false for unknown datagrams.
func (e Entry) Severity() (syslog.Level, bool) {
	return e.level, e.Format != FormatUnknown
}

// FacilityCode returns the decoded facility. ok is false for unknown datagrams.
func (e Entry) FacilityCode() (syslog.Facility, bool) {
	return e.facility, e.Format != FormatUnknown
}

var (
	// <PRI>Mmm dd hh:mm:ss HOSTNAME TEXT
	rfc3164Pattern = regexp.MustCompile(`^<(\d{1,3})>([A-Z][a-z]{2} [ 0-9]\d \d{2}:\d{2}:\d{2}) (\S*) ((?s).*)$`)
	// <PRI>TEXT
	barePattern = regexp.MustCompile(`^<(\d{1,3})>((?s).*)$`)
)

// Parse decodes a datagram. It never fails: anything without a valid PRI
// header is returned with FormatUnknown and the whole datagram as text.
func Parse(raw string) Entry {
	entry := Entry{
		Priority: -1,
		Text:     raw,
		Raw:      raw,
		Format:   FormatUnknown,
	}

	if matches := rfc3164Pattern.FindStringSubmatch(raw); matches != nil {
		if entry.setPriority(matches[1]) {
			entry.Timestamp = matches[2]
			entry.Hostname = matches[3]
			entry.Text = matches[4]
			entry.Format = FormatRFC3164
			return entry
		}
	}

	if matches := barePattern.FindStringSubmatch(raw); matches != nil {
		if entry.setPriority(matches[1]) {
			entry.Text = matches[2]
			entry.Format = FormatBare
		}
	}

	return entry
}

func (e *Entry) setPriority(s string) bool {
	pri, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	facility, level, err := syslog.Decode(pri)
	if err != nil {
		return false
	}

	e.Priority = pri
	e.facility = facility
	e.level = level
	e.Facility = facility.String()
	e.Level = level.String()
	return true
}

// Time parses the TIMESTAMP field. RFC3164 carries neither year nor
// meridiem, so the year of ref is used and the hour is ambiguous.
func (e Entry) Time(ref time.Time) (time.Time, error) {
	ts, err := time.Parse("Jan _2 03:04:05", e.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	return ts.AddDate(ref.UTC().Year(), 0, 0), nil
}

package syslog

import (
	"fmt"
	"strconv"
	"strings"
)

// Facility is an RFC3164 facility code
type Facility int

// Syslog facility codes
const (
	Kern Facility = iota
	User
	Mail
	Daemon
	Auth
	Syslog
	LPR
	News
	UUCP
	Cron
	AuthPriv
	FTP
	NTP
	LogAudit
	LogAlert
	Clock
	Local0
	Local1
	Local2
	Local3
	Local4
	Local5
	Local6
	Local7
)

// Level is an RFC3164 severity code
type Level int

// Syslog severity levels
const (
	Emergency Level = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
)

const (
	maxFacility = Local7
	maxLevel    = Debug
)

var facilityNames = [...]string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "audit", "alert", "clock",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

var levelNames = [...]string{
	"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug",
}

var facilityAliases = map[string]Facility{
	"kernel":   Kern,
	"security": Auth,
}

var levelAliases = map[string]Level{
	"emergency":   Emergency,
	"panic":       Emergency,
	"critical":    Critical,
	"error":       Error,
	"warn":        Warning,
	"information": Info,
}

// Valid reports whether f is one of the RFC3164 facility codes
func (f Facility) Valid() bool {
	return f >= Kern && f <= maxFacility
}

func (f Facility) String() string {
	if !f.Valid() {
		return "facility(" + strconv.Itoa(int(f)) + ")"
	}
	return facilityNames[f]
}

// Valid reports whether l is one of the RFC3164 severity codes
func (l Level) Valid() bool {
	return l >= Emergency && l <= maxLevel
}

func (l Level) String() string {
	if !l.Valid() {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// ParseFacility accepts a facility keyword (case-insensitive) or its decimal code
func ParseFacility(s string) (Facility, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if f := Facility(n); f.Valid() {
			return f, nil
		}
		return 0, &ArgumentError{Arg: "facility", Value: n, Reason: "out of range"}
	}
	for i, name := range facilityNames {
		if name == s {
			return Facility(i), nil
		}
	}
	if f, ok := facilityAliases[s]; ok {
		return f, nil
	}
	return 0, &ArgumentError{Arg: "facility", Value: s, Reason: "unknown facility"}
}

// ParseLevel accepts a severity keyword (case-insensitive) or its decimal code
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if l := Level(n); l.Valid() {
			return l, nil
		}
		return 0, &ArgumentError{Arg: "level", Value: n, Reason: "out of range"}
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	if l, ok := levelAliases[s]; ok {
		return l, nil
	}
	return 0, &ArgumentError{Arg: "level", Value: s, Reason: "unknown level"}
}

// Priority returns the PRI value facility*8 + level
func Priority(f Facility, l Level) int {
	return int(f)*8 + int(l)
}

// Decode splits a PRI value back into its facility and level
func Decode(priority int) (Facility, Level, error) {
	if priority < 0 || priority > Priority(maxFacility, maxLevel) {
		return 0, 0, fmt.Errorf("priority %d: %w", priority, ErrInvalidArgument)
	}
	return Facility(priority >> 3), Level(priority & 0x07), nil
}

func checkFacility(facility int) error {
	if facility < 0 {
		return &ArgumentError{Arg: "facility", Value: facility, Reason: "must not be negative"}
	}
	if !Facility(facility).Valid() {
		return &ArgumentError{Arg: "facility", Value: facility, Reason: "out of range"}
	}
	return nil
}

func checkLevel(level int) error {
	if level < 0 {
		return &ArgumentError{Arg: "level", Value: level, Reason: "must not be negative"}
	}
	if !Level(level).Valid() {
		return &ArgumentError{Arg: "level", Value: level, Reason: "out of range"}
	}
	return nil
}

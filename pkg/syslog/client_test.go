package syslog

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) (net.PacketConn, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().(*net.UDPAddr).Port
}

func readDatagram(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 65536)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		address string
		opts    []Option
		arg     string
	}{
		{"empty address", "", nil, "address"},
		{"blank address", "  \t", nil, "address"},
		{"negative port", "127.0.0.1", []Option{WithPort(-1)}, "port"},
		{"port zero", "127.0.0.1", []Option{WithPort(0)}, "port"},
		{"port too large", "127.0.0.1", []Option{WithPort(65536)}, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.address, tt.opts...)
			requireArgumentError(t, err, tt.arg)
			assert.Nil(t, c)
		})
	}

	_, err := Dial("127.0.0.1", -1)
	requireArgumentError(t, err, "port")
}

func TestNewClientDefaultPort(t *testing.T) {
	c, err := NewClient("127.0.0.1")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 514, c.Port())
	assert.Equal(t, "127.0.0.1", c.Server())
	assert.Equal(t, "127.0.0.1:514", c.RemoteAddr().String())
}

func TestClientSend(t *testing.T) {
	pc, port := listenUDP(t)

	c, err := Dial("127.0.0.1", port, WithClock(fixedClock(fixedTime)), WithHostname("web01"), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(User, Info, "service started"))

	got := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(got, "<14>"), got)
	assert.Equal(t, "<14>Mar 05 02:07:09 web01 service started", got)
}

func TestClientSendPreservesSpaces(t *testing.T) {
	pc, port := listenUDP(t)

	c, err := Dial("127.0.0.1", port, WithHostname("web01"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendCode(3, 4, "disk usage at 95%"))

	got := readDatagram(t, pc)
	assert.True(t, strings.HasSuffix(got, " web01 disk usage at 95%"), got)
}

func TestClientSendDiffersOnlyInTimestamp(t *testing.T) {
	pc, port := listenUDP(t)
	later := fixedTime.Add(3*time.Hour + 17*time.Second)

	first, err := Dial("127.0.0.1", port, WithClock(fixedClock(fixedTime)), WithHostname("web01"))
	require.NoError(t, err)
	defer first.Close()
	second, err := Dial("127.0.0.1", port, WithClock(fixedClock(later)), WithHostname("web01"))
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Send(Daemon, Notice, "heartbeat"))
	p1 := readDatagram(t, pc)
	require.NoError(t, second.Send(Daemon, Notice, "heartbeat"))
	p2 := readDatagram(t, pc)

	start := len("<29>")
	end := start + len(TimestampLayout)
	assert.Equal(t, p1[:start], p2[:start])
	assert.Equal(t, p1[end:], p2[end:])
	assert.NotEqual(t, p1[start:end], p2[start:end])
}

func TestClientSendValidation(t *testing.T) {
	c, err := NewClient("127.0.0.1")
	require.NoError(t, err)
	defer c.Close()

	requireArgumentError(t, c.SendCode(-1, 0, "x"), "facility")
	requireArgumentError(t, c.SendCode(0, -1, "x"), "level")
	requireArgumentError(t, c.Send(Facility(30), Info, "x"), "facility")
	requireArgumentError(t, c.SendMessage(nil), "message")
}

func TestClientSendReturnsTransportError(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, pc.Close())

	c, err := Dial("127.0.0.1", port, WithHostname("web01"))
	require.NoError(t, err)
	defer c.Close()

	// The first write succeeds; the ICMP port-unreachable it triggers is
	// reported on the next one.
	require.NoError(t, c.SendCode(1, 6, "first"))
	time.Sleep(20 * time.Millisecond)

	err = c.SendCode(1, 6, "second")
	require.Error(t, err)

	var opErr *net.OpError
	require.True(t, errors.As(err, &opErr), "%v", err)
	assert.Equal(t, "write", opErr.Op)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "failed to send syslog datagram")
}

func TestClientClose(t *testing.T) {
	c, err := NewClient("127.0.0.1")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(User, Info, "x"), ErrClosed)
}

func TestSendTo(t *testing.T) {
	pc, port := listenUDP(t)

	require.NoError(t, SendTo("127.0.0.1", port, int(Local0), int(Alert), "failover"))

	got := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(got, "<129>"), got)
	assert.True(t, strings.HasSuffix(got, " failover"), got)
}

func TestSendToValidatesBeforeDialing(t *testing.T) {
	requireArgumentError(t, SendTo("127.0.0.1", 514, -1, 0, "x"), "facility")
	requireArgumentError(t, SendTo("", 514, 1, 6, "x"), "address")
	requireArgumentError(t, Send("127.0.0.1", 1, 9, "x"), "level")
}

func TestSendSyslogMessage(t *testing.T) {
	pc, port := listenUDP(t)

	requireArgumentError(t, SendSyslogMessage("127.0.0.1", port, 1, 6, "  "), "text")
	requireArgumentError(t, SendSyslogMessage("", port, 1, 6, "x"), "address")
	requireArgumentError(t, SendSyslogMessage("127.0.0.1", -1, 1, 6, "x"), "port")

	require.NoError(t, SendSyslogMessage("127.0.0.1", port, 1, 6, "service started"))
	got := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(got, "<14>"), got)
}

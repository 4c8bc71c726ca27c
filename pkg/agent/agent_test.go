package agent

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-username/syslog-sender/pkg/syslog"
)

func listen(t *testing.T) (net.PacketConn, int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().(*net.UDPAddr).Port
}

func readDatagram(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func testConfig(port int) *Config {
	cfg := DefaultConfig()
	cfg.Server = "127.0.0.1"
	cfg.Port = port
	cfg.Facility = syslog.Local0
	cfg.Hostname = "agent-test"
	cfg.BatchSize = 2
	cfg.FlushInterval = time.Hour
	return cfg
}

func TestAgentFlushesOnBatchSize(t *testing.T) {
	pc, port := listen(t)

	a, err := New(testConfig(port))
	require.NoError(t, err)
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Info("first"))
	require.NoError(t, a.Error("second"))

	first := readDatagram(t, pc)
	second := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(first, "<134>"), first)
	assert.True(t, strings.HasSuffix(first, " agent-test first"), first)
	assert.True(t, strings.HasPrefix(second, "<131>"), second)
}

func TestAgentStopFlushesPending(t *testing.T) {
	pc, port := listen(t)

	cfg := testConfig(port)
	cfg.BatchSize = 10
	a, err := New(cfg)
	require.NoError(t, err)
	a.Start()

	require.NoError(t, a.Warn("pending"))
	require.NoError(t, a.Stop())

	got := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(got, "<132>"), got)
	assert.True(t, strings.HasSuffix(got, "pending"), got)

	assert.ErrorIs(t, a.Debug("late"), syslog.ErrClosed)
	assert.NoError(t, a.Stop())
}

func TestAgentFlushesOnInterval(t *testing.T) {
	pc, port := listen(t)

	cfg := testConfig(port)
	cfg.BatchSize = 10
	cfg.FlushInterval = 20 * time.Millisecond
	a, err := New(cfg)
	require.NoError(t, err)
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Critical("tick"))
	got := readDatagram(t, pc)
	assert.True(t, strings.HasPrefix(got, "<130>"), got)
}

func TestAgentSurfacesTransportError(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, pc.Close())

	cfg := testConfig(port)
	cfg.BatchSize = 1
	a, err := New(cfg)
	require.NoError(t, err)
	a.Start()

	var logErr error
	for i := 0; i < 50 && logErr == nil; i++ {
		logErr = a.Info("unreachable")
		time.Sleep(5 * time.Millisecond)
	}

	stopErr := a.Stop()
	require.Error(t, stopErr)
	var opErr *net.OpError
	assert.True(t, errors.As(stopErr, &opErr), "%v", stopErr)

	if logErr != nil {
		assert.Equal(t, stopErr, logErr)
	}
	assert.Equal(t, stopErr, a.Stop())
	assert.ErrorIs(t, a.Info("late"), syslog.ErrClosed)
}

func TestAgentStopRacesLog(t *testing.T) {
	pc, port := listen(t)

	cfg := testConfig(port)
	cfg.BatchSize = 1000
	a, err := New(cfg)
	require.NoError(t, err)
	a.Start()

	accepted := make(chan int, 8)
	start := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			<-start
			n := 0
			for i := 0; i < 10; i++ {
				if a.Debug("race") == nil {
					n++
				}
			}
			accepted <- n
		}()
	}
	close(start)
	require.NoError(t, a.Stop())

	total := 0
	for g := 0; g < 8; g++ {
		total += <-accepted
	}

	buf := make([]byte, 2048)
	for i := 0; i < total; i++ {
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, _, err := pc.ReadFrom(buf)
		require.NoError(t, err, "accepted %d messages, received %d", total, i)
	}

	a.bufferMu.Lock()
	assert.Empty(t, a.buffer)
	a.bufferMu.Unlock()
}

func TestAgentFields(t *testing.T) {
	pc, port := listen(t)

	cfg := testConfig(port)
	cfg.BatchSize = 1
	cfg.Fields = map[string]interface{}{"env": "prod", "app": "billing"}
	a, err := New(cfg)
	require.NoError(t, err)
	a.Start()
	defer a.Stop()

	require.NoError(t, a.LogError(errors.New("timeout"), "charge failed"))
	got := readDatagram(t, pc)
	assert.True(t, strings.HasSuffix(got, " agent-test charge failed app=billing env=prod error=timeout"), got)
}

func TestAgentRejectsBadInput(t *testing.T) {
	_, port := listen(t)

	cfg := testConfig(port)
	cfg.Facility = syslog.Facility(24)
	_, err := New(cfg)
	assert.ErrorIs(t, err, syslog.ErrInvalidArgument)

	cfg = testConfig(port)
	cfg.Port = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, syslog.ErrInvalidArgument)

	a, err := New(testConfig(port))
	require.NoError(t, err)
	defer a.Stop()
	assert.ErrorIs(t, a.Log(syslog.Level(8), "x"), syslog.ErrInvalidArgument)
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "", formatFields(nil, nil))
	assert.Equal(t, "a=1 b=x", formatFields(map[string]interface{}{"b": "x"}, map[string]interface{}{"a": 1}))
	assert.Equal(t, "k=override", formatFields(map[string]interface{}{"k": "default"}, map[string]interface{}{"k": "override"}))
}

package collector

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-username/syslog-sender/internal/monitoring"
	"github.com/your-username/syslog-sender/pkg/syslog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Entry
	}{
		{
			name: "rfc3164 header",
			raw:  "<14>Mar 05 02:07:09 web01 service started",
			want: Entry{Priority: 14, Facility: "user", Level: "info", Timestamp: "Mar 05 02:07:09", Hostname: "web01", Text: "service started", Format: FormatRFC3164},
		},
		{
			name: "space padded day",
			raw:  "<13>Oct  7 11:00:00 host hi",
			want: Entry{Priority: 13, Facility: "user", Level: "notice", Timestamp: "Oct  7 11:00:00", Hostname: "host", Text: "hi", Format: FormatRFC3164},
		},
		{
			name: "empty hostname",
			raw:  "<28>Mar 05 02:07:09  disk usage at 95%",
			want: Entry{Priority: 28, Facility: "daemon", Level: "warning", Timestamp: "Mar 05 02:07:09", Hostname: "", Text: "disk usage at 95%", Format: FormatRFC3164},
		},
		{
			name: "bare priority and text",
			raw:  "<191>just text",
			want: Entry{Priority: 191, Facility: "local7", Level: "debug", Text: "just text", Format: FormatBare},
		},
		{
			name: "priority out of range",
			raw:  "<192>Mar 05 02:07:09 web01 nope",
			want: Entry{Priority: -1, Text: "<192>Mar 05 02:07:09 web01 nope", Format: FormatUnknown},
		},
		{
			name: "no header",
			raw:  "hello",
			want: Entry{Priority: -1, Text: "hello", Format: FormatUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw)
			assert.Equal(t, tt.want.Priority, got.Priority)
			assert.Equal(t, tt.want.Facility, got.Facility)
			assert.Equal(t, tt.want.Level, got.Level)
			assert.Equal(t, tt.want.Timestamp, got.Timestamp)
			assert.Equal(t, tt.want.Hostname, got.Hostname)
			assert.Equal(t, tt.want.Text, got.Text)
			assert.Equal(t, tt.want.Format, got.Format)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestEntryTime(t *testing.T) {
	e := Parse("<14>Mar 05 02:07:09 web01 x")
	ts, err := e.Time(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 5, 2, 7, 9, 0, time.UTC), ts)

	_, err = Parse("<14>bare").Time(time.Now())
	assert.Error(t, err)
}

func TestServerReceivesClientDatagrams(t *testing.T) {
	entries := make(chan Entry, 4)
	reg := prometheus.NewRegistry()
	srv := New("127.0.0.1:0", func(e Entry) { entries <- e }, WithMetrics(monitoring.NewMetrics(reg)))
	require.NoError(t, srv.Start())
	defer srv.Stop()

	port := srv.Addr().(*net.UDPAddr).Port
	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	client, err := syslog.Dial("127.0.0.1", port,
		syslog.WithClock(func() time.Time { return ts }),
		syslog.WithHostname("web01"))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(syslog.User, syslog.Info, "service started"))

	select {
	case e := <-entries:
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, FormatRFC3164, e.Format)
		assert.Equal(t, 14, e.Priority)
		assert.Equal(t, "web01", e.Hostname)
		assert.Equal(t, "service started", e.Text)
		assert.Equal(t, client.LocalAddr().String(), e.Source)

		level, ok := e.Severity()
		assert.True(t, ok)
		assert.Equal(t, syslog.Info, level)
		facility, ok := e.FacilityCode()
		assert.True(t, ok)
		assert.Equal(t, syslog.User, facility)
	case <-time.After(3 * time.Second):
		t.Fatal("no datagram received")
	}
}

func TestServerStop(t *testing.T) {
	srv := New("127.0.0.1:0", nil)
	require.NoError(t, srv.Start())
	require.NotNil(t, srv.Addr())

	require.NoError(t, srv.Stop())
	assert.NoError(t, srv.Stop())
}

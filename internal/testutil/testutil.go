// Package testutil provides shared test helpers for code that publishes
// telemetry samples.
package testutil

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// ReadTimeout bounds each read from a sink.
const ReadTimeout = 2 * time.Second

// UDPSink is a loopback UDP listener that collects published samples.
type UDPSink struct {
	conn *net.UDPConn
}

// NewUDPSink listens on an ephemeral loopback port. The socket is closed
// when the test finishes.
func NewUDPSink(t testing.TB) *UDPSink {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &UDPSink{conn: conn}
}

// Endpoint returns the sink address in publisher endpoint form.
func (s *UDPSink) Endpoint() string {
	return "udp://" + s.conn.LocalAddr().String()
}

// ReadRaw returns the next datagram.
func (s *UDPSink) ReadRaw(t testing.TB) []byte {
	t.Helper()
	buf := make([]byte, 65536)
	if err := s.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}
	return buf[:n]
}

// Received reports whether any datagram arrives within d.
func (s *UDPSink) Received(d time.Duration) bool {
	if err := s.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return false
	}
	_, _, err := s.conn.ReadFromUDP(make([]byte, 64))
	return err == nil
}

// ReadSamples decodes the next n datagrams as samples.
func (s *UDPSink) ReadSamples(t testing.TB, n int) []telemetry.Sample {
	t.Helper()
	out := make([]telemetry.Sample, 0, n)
	for len(out) < n {
		var sample telemetry.Sample
		if err := json.Unmarshal(s.ReadRaw(t), &sample); err != nil {
			t.Fatalf("decode sample %d: %v", len(out), err)
		}
		out = append(out, sample)
	}
	return out
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

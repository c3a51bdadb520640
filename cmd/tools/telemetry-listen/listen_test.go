package main

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReceiver struct {
	msgs [][]byte
}

func (s *scriptedReceiver) Recv() ([]byte, error) {
	if len(s.msgs) == 0 {
		return nil, io.EOF
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func (s *scriptedReceiver) Close() error { return nil }

func TestConsume_CountsAndEchoes(t *testing.T) {
	r := &scriptedReceiver{msgs: [][]byte{
		[]byte(`{"stream_id":"flight_position","timestamp":1.0,"rel_lat":0,"rel_lon":0}`),
		[]byte(`not json`),
		[]byte(`{"stream_id":"flight_altitude","timestamp":1.0,"altitude":3.048}`),
		[]byte(`{"stream_id":"flight_position","timestamp":1.1,"rel_lat":1,"rel_lon":2}`),
	}}
	c := NewCounter()
	var out bytes.Buffer

	err := Consume(r, &out, c)
	assert.True(t, errors.Is(err, io.EOF))

	total, bad := c.Totals()
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, bad)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"stream_id":"flight_altitude","timestamp":1.0,"altitude":3.048}`, lines[1])

	report := c.Report(time.Second)
	assert.Contains(t, report, "flight_position=2.0/s")
	assert.Contains(t, report, "flight_altitude=1.0/s")
	assert.Contains(t, report, "<invalid>=1.0/s")
	assert.Equal(t, "", c.Report(time.Second), "window resets after a report")
}

func TestOpen_UnknownTransport(t *testing.T) {
	_, err := Open("carrier-pigeon", "connect", "x")
	assert.Error(t, err)
}

func TestUDPReceiver(t *testing.T) {
	r, err := Open("udp", "", "udp://127.0.0.1:0")
	require.NoError(t, err)
	defer r.Close()

	addr := r.(*udpReceiver).conn.LocalAddr().String()
	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(`{"stream_id":"sine_wave","timestamp":0.1,"value":0.5}`))
	require.NoError(t, err)

	got, err := r.Recv()
	require.NoError(t, err)
	assert.JSONEq(t, `{"stream_id":"sine_wave","timestamp":0.1,"value":0.5}`, string(got))
}

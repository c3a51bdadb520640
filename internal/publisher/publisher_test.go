package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/telemetry.replay/internal/metrics"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
	sinks "github.com/banshee-data/telemetry.replay/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// mockTransport records messages and fails according to errs.
type mockTransport struct {
	mu     sync.Mutex
	msgs   [][]byte
	errs   []error
	calls  int
	block  chan struct{}
	closes int
}

func (m *mockTransport) Send(ctx context.Context, msg []byte) error {
	m.mu.Lock()
	m.calls++
	var err error
	if len(m.errs) > 0 {
		err, m.errs = m.errs[0], m.errs[1:]
	}
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, append([]byte(nil), msg...))
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
	return nil
}

func (m *mockTransport) String() string { return "mock" }

func sample() telemetry.Sample {
	return telemetry.Sample{
		StreamID:  "sine_wave",
		Timestamp: 0.1,
		Fields:    []telemetry.Field{{Name: "value", Value: 0.5}},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SendTimeout = 50 * time.Millisecond
	return cfg
}

func TestPublish_SendsOneJSONMessage(t *testing.T) {
	mt := &mockTransport{}
	p := New(mt, testConfig(), nil)

	require.NoError(t, p.Publish(context.Background(), sample()))
	require.Len(t, mt.msgs, 1)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(mt.msgs[0], &got))
	assert.Equal(t, map[string]interface{}{"stream_id": "sine_wave", "timestamp": 0.1, "value": 0.5}, got)
	assert.Equal(t, Stats{Sent: 1}, p.Stats())
}

func TestPublish_RetriesImmediateFailures(t *testing.T) {
	mt := &mockTransport{errs: []error{errors.New("eagain"), errors.New("eagain")}}
	reg := prometheus.NewRegistry()
	p := New(mt, testConfig(), metrics.New(reg))

	require.NoError(t, p.Publish(context.Background(), sample()))
	assert.Equal(t, 3, mt.calls)
	assert.Equal(t, Stats{Sent: 1, Retries: 2}, p.Stats())

	count, err := testutil.GatherAndCount(reg, "telemetry_send_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPublish_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("connection refused")
	mt := &mockTransport{errs: []error{boom, boom, boom, boom}}
	p := New(mt, testConfig(), nil)

	err := p.Publish(context.Background(), sample())
	require.Error(t, err)
	assert.True(t, telemetry.IsKind(err, telemetry.Transport))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, mt.calls, "one attempt plus two retries")
	assert.Equal(t, Stats{Failed: 1, Retries: 2}, p.Stats())
	assert.Empty(t, mt.msgs)
}

func TestPublish_TimeoutIsNotRetried(t *testing.T) {
	mt := &mockTransport{errs: []error{errSendTimeout}}
	p := New(mt, testConfig(), nil)

	err := p.Publish(context.Background(), sample())
	require.Error(t, err)
	assert.True(t, telemetry.IsKind(err, telemetry.Transport))
	assert.ErrorIs(t, err, errSendTimeout)
	assert.Equal(t, 1, mt.calls)
	assert.Equal(t, Stats{Failed: 1}, p.Stats())
}

func TestPublish_CancelledContext(t *testing.T) {
	mt := &mockTransport{block: make(chan struct{})}
	p := New(mt, testConfig(), nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := p.Publish(ctx, sample())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mt.calls, "cancellation is not retried")
}

func TestPublish_InvalidSampleIsNeverSent(t *testing.T) {
	mt := &mockTransport{}
	p := New(mt, testConfig(), nil)

	bad := sample()
	bad.Fields = append(bad.Fields, telemetry.Field{Name: "stream_id", Value: 1})
	err := p.Publish(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, 0, mt.calls)
}

func TestClose_ReleasesOnce(t *testing.T) {
	mt := &mockTransport{}
	p := New(mt, testConfig(), nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, mt.closes)

	err := p.Publish(context.Background(), sample())
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, telemetry.IsKind(err, telemetry.Transport))
}

func TestConfig_Validate(t *testing.T) {
	ok := DefaultConfig()
	require.NoError(t, ok.Validate())
	assert.Equal(t, DefaultBindEndpoint, ok.ResolvedEndpoint())

	connect := DefaultConfig()
	connect.Mode = ModeConnect
	assert.Equal(t, DefaultConnectEndpoint, connect.ResolvedEndpoint())

	cases := map[string]func(*Config){
		"bad mode":       func(c *Config) { c.Mode = "listen" },
		"bad transport":  func(c *Config) { c.Transport = "carrier-pigeon" },
		"udp bind":       func(c *Config) { c.Transport = TransportUDP; c.Endpoint = "localhost:1" },
		"udp no address": func(c *Config) { c.Transport = TransportUDP; c.Mode = ModeConnect },
		"neg retries":    func(c *Config) { c.MaxRetries = -1 },
		"neg timeout":    func(c *Config) { c.SendTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := OpenTransport(cfg)
			assert.True(t, telemetry.IsKind(err, telemetry.Transport))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("CONNECT")
	require.NoError(t, err)
	assert.Equal(t, ModeConnect, m)
	_, err = ParseMode("")
	assert.Error(t, err)
}

// publishUntilReceived keeps publishing until pull receives a message.
// PUSH sockets hold or drop messages until the peer handshake completes.
func publishUntilReceived(t *testing.T, ctx context.Context, p *Publisher, pull zmq4.Socket) zmq4.Msg {
	t.Helper()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			_ = p.Publish(ctx, sample())
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	msg, err := pull.Recv()
	close(stop)
	wg.Wait()
	require.NoError(t, err)
	require.Len(t, msg.Frames, 1)
	return msg
}

func TestZMQ_ConnectToPull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pull := zmq4.NewPull(ctx)
	defer pull.Close()
	require.NoError(t, pull.Listen("tcp://127.0.0.1:0"))

	cfg := DefaultConfig()
	cfg.Mode = ModeConnect
	cfg.Endpoint = "tcp://" + pull.Addr().String()
	p, err := Open(cfg, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Contains(t, p.Transport().String(), "zmq connect")

	msg := publishUntilReceived(t, ctx, p, pull)

	var got telemetry.Sample
	require.NoError(t, json.Unmarshal(msg.Frames[0], &got))
	assert.Equal(t, sample(), got)
}

func TestZMQ_BindAcceptsPull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Endpoint = "tcp://127.0.0.1:0"
	p, err := Open(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	addr := p.Transport().(*zmqTransport).Addr().String()
	pull := zmq4.NewPull(ctx)
	defer pull.Close()
	require.NoError(t, pull.Dial("tcp://"+addr))

	msg := publishUntilReceived(t, ctx, p, pull)
	assert.JSONEq(t, `{"stream_id":"sine_wave","timestamp":0.1,"value":0.5}`, string(msg.Frames[0]))
}

func TestZMQ_BindWaitsForLateConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Endpoint = "tcp://127.0.0.1:0"
	cfg.SendTimeout = 50 * time.Millisecond
	p, err := Open(cfg, nil)
	require.NoError(t, err)
	defer p.Close()
	addr := p.Transport().(*zmqTransport).Addr().String()

	pull := zmq4.NewPull(ctx)
	defer pull.Close()
	received := make(chan zmq4.Msg, 1)
	go func() {
		time.Sleep(300 * time.Millisecond)
		if err := pull.Dial("tcp://" + addr); err != nil {
			return
		}
		if msg, err := pull.Recv(); err == nil {
			received <- msg
		}
	}()

	start := time.Now()
	require.NoError(t, p.Publish(ctx, sample()))
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "first send waits for the consumer")
	assert.Equal(t, Stats{Sent: 1}, p.Stats())

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"stream_id":"sine_wave","timestamp":0.1,"value":0.5}`, string(msg.Frames[0]))
	case <-ctx.Done():
		t.Fatal("consumer never received the first sample")
	}
}

func TestZMQ_BindCancelledWhileWaiting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint = "tcp://127.0.0.1:0"
	p, err := Open(cfg, nil)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = p.Publish(ctx, sample())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, telemetry.IsKind(err, telemetry.Transport))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Stats{Failed: 1}, p.Stats())

	err = p.Publish(context.Background(), sample())
	assert.Error(t, err, "transport is closed after a cancelled wait")
	require.NoError(t, p.Close())
}

type deadlineConn struct {
	deadline time.Time
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	return 0, &net.OpError{Op: "write", Net: "udp", Err: os.ErrDeadlineExceeded}
}

func (c *deadlineConn) SetWriteDeadline(t time.Time) error {
	c.deadline = t
	return nil
}

func (c *deadlineConn) Close() error { return nil }

func TestUDP_WriteDeadline(t *testing.T) {
	conn := &deadlineConn{}
	u := &udpTransport{conn: conn, address: "test", timeout: time.Second}

	before := time.Now()
	err := u.Send(context.Background(), []byte("{}"))
	assert.ErrorIs(t, err, errSendTimeout)
	assert.WithinDuration(t, before.Add(time.Second), conn.deadline, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = u.Send(ctx, []byte("{}"))
	ctxDeadline, _ := ctx.Deadline()
	assert.Equal(t, ctxDeadline, conn.deadline, "earlier context deadline wins")
}

func TestUDP_SendsDatagrams(t *testing.T) {
	sink := sinks.NewUDPSink(t)

	cfg := DefaultConfig()
	cfg.Transport = TransportUDP
	cfg.Mode = ModeConnect
	cfg.Endpoint = sink.Endpoint()
	p, err := Open(cfg, nil)
	require.NoError(t, err)
	assert.Contains(t, p.Transport().String(), "udp connect")

	require.NoError(t, p.Publish(context.Background(), sample()))
	require.NoError(t, p.Close())

	assert.JSONEq(t, `{"stream_id":"sine_wave","timestamp":0.1,"value":0.5}`, string(sink.ReadRaw(t)))
}

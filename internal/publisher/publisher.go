package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/telemetry.replay/internal/metrics"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("publisher closed")

	errSendTimeout = errors.New("send timed out")
)

// Stats is a snapshot of publisher counters.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retries uint64
}

// Publisher owns one transport and serialises samples onto it.
type Publisher struct {
	cfg       Config
	transport Transport
	metrics   *metrics.Metrics
	logf      func(format string, v ...interface{})

	sent    atomic.Uint64
	failed  atomic.Uint64
	retries atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New wraps an open transport. m may be nil.
func New(t Transport, cfg Config, m *metrics.Metrics) *Publisher {
	return &Publisher{
		cfg:       cfg,
		transport: t,
		metrics:   m,
		logf:      monitoring.Tagged("Publisher"),
	}
}

// Open creates the configured transport and a Publisher around it.
func Open(cfg Config, m *metrics.Metrics) (*Publisher, error) {
	t, err := OpenTransport(cfg)
	if err != nil {
		return nil, err
	}
	p := New(t, cfg, m)
	p.logf("opened %s", t)
	return p, nil
}

// Transport returns the underlying transport.
func (p *Publisher) Transport() Transport {
	return p.transport
}

// Publish encodes s and sends it as one message. Encoding happens before
// any send so a sample is either sent whole or not at all. Immediate send
// errors are retried up to MaxRetries times; a send that exceeds the
// transport's SendTimeout is not retried.
func (p *Publisher) Publish(ctx context.Context, s telemetry.Sample) error {
	const op = "publish"
	if p.closed.Load() {
		return telemetry.Wrap(telemetry.Transport, op, ErrClosed)
	}

	msg, err := json.Marshal(s)
	if err != nil {
		return telemetry.Wrap(telemetry.Transform, "encode sample", err)
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := p.transport.Send(ctx, msg)
		if err == nil {
			p.sent.Add(1)
			p.metrics.ObserveSend(s.StreamID, time.Since(start), nil)
			monitoring.Debugf("[Publisher] sent %s", msg)
			return nil
		}

		retryable := !errors.Is(err, errSendTimeout) && ctx.Err() == nil && !p.closed.Load()
		if !retryable || attempt >= p.cfg.MaxRetries {
			p.failed.Add(1)
			p.metrics.ObserveSend(s.StreamID, 0, err)
			return telemetry.Wrap(telemetry.Transport, op,
				fmt.Errorf("%s after %d attempt(s): %w", s.StreamID, attempt+1, err))
		}
		p.retries.Add(1)
		p.metrics.IncRetries()
		p.logf("send of %s failed (attempt %d of %d): %v", s.StreamID, attempt+1, p.cfg.MaxRetries+1, err)
	}
}

// Stats returns the current counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Sent:    p.sent.Load(),
		Failed:  p.failed.Load(),
		Retries: p.retries.Load(),
	}
}

// Close releases the transport. Only the first call has any effect; later
// calls return the first result.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.closeErr = p.transport.Close()
		st := p.Stats()
		p.logf("closed %s: sent=%d failed=%d retries=%d", p.transport, st.Sent, st.Failed, st.Retries)
	})
	return p.closeErr
}

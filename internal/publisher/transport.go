package publisher

import (
	"context"

	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// Transport delivers one discrete message per Send. Implementations own a
// single socket and release it in Close. Send returns ctx.Err() when ctx
// ends first, and errSendTimeout when the configured send bound expires.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
	String() string
}

// OpenTransport creates the transport named by cfg. Failures are Transport
// errors.
func OpenTransport(cfg Config) (Transport, error) {
	const op = "open transport"
	if err := cfg.Validate(); err != nil {
		return nil, telemetry.Wrap(telemetry.Transport, op, err)
	}
	var (
		t   Transport
		err error
	)
	switch cfg.Transport {
	case TransportUDP:
		t, err = openUDP(cfg)
	default:
		t, err = openZMQ(cfg)
	}
	if err != nil {
		return nil, telemetry.Wrap(telemetry.Transport, op, err)
	}
	return t, nil
}

// Package publisher sends telemetry samples to a downstream consumer over
// a push-style transport, one JSON object per message.
package publisher

import (
	"fmt"
	"strings"
	"time"
)

// Transport names.
const (
	TransportZMQ = "zmq"
	TransportUDP = "udp"
)

// Mode chooses whether the socket listens for the consumer or dials it.
// The wire format is the same either way.
type Mode string

const (
	ModeBind    Mode = "bind"
	ModeConnect Mode = "connect"
)

// Default endpoints for each mode.
const (
	DefaultBindEndpoint    = "tcp://*:5555"
	DefaultConnectEndpoint = "tcp://localhost:5555"
)

// Config holds publisher settings.
type Config struct {
	// Transport is "zmq" or "udp".
	Transport string

	// Mode is bind or connect. UDP only supports connect.
	Mode Mode

	// Endpoint is the socket address. Empty selects the mode's default.
	Endpoint string

	// SendTimeout bounds a single send attempt: the UDP write deadline, or
	// the wait for a ready peer in ZMQ connect mode. A ZMQ bind socket
	// waits for its first consumer until the run is cancelled. Zero
	// disables the bound.
	SendTimeout time.Duration

	// MaxRetries is the number of immediate retries after a failed send.
	MaxRetries int

	// DialRetry is the reconnect interval used by connect mode.
	DialRetry time.Duration
}

// DefaultConfig returns a ZMQ PUSH socket bound to tcp://*:5555.
func DefaultConfig() Config {
	return Config{
		Transport:   TransportZMQ,
		Mode:        ModeBind,
		SendTimeout: time.Second,
		MaxRetries:  2,
		DialRetry:   250 * time.Millisecond,
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeBind:
		return ModeBind, nil
	case ModeConnect:
		return ModeConnect, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeBind, ModeConnect)
	}
}

// ResolvedEndpoint returns Endpoint or the default for the mode.
func (c Config) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Mode == ModeConnect {
		return DefaultConnectEndpoint
	}
	return DefaultBindEndpoint
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.SendTimeout < 0 {
		return fmt.Errorf("send timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	switch c.Transport {
	case TransportZMQ:
	case TransportUDP:
		if c.Mode != ModeConnect {
			return fmt.Errorf("udp transport only supports connect mode")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("udp transport needs an endpoint")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Transport, TransportZMQ, TransportUDP)
	}
	return nil
}

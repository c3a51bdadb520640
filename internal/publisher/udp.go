package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// UDPConn is the part of *net.UDPConn the UDP transport uses.
type UDPConn interface {
	Write(b []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// udpTransport sends one datagram per message to a fixed peer.
type udpTransport struct {
	conn    UDPConn
	address string
	timeout time.Duration
}

func openUDP(cfg Config) (*udpTransport, error) {
	address := strings.TrimPrefix(cfg.Endpoint, "udp://")
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve udp address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create udp connection: %w", err)
	}
	return &udpTransport{conn: conn, address: address, timeout: cfg.SendTimeout}, nil
}

// Send writes msg as one datagram. The write deadline is SendTimeout or
// the context deadline, whichever comes first.
func (u *udpTransport) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var deadline time.Time
	if u.timeout > 0 {
		deadline = time.Now().Add(u.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := u.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	n, err := u.conn.Write(msg)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errSendTimeout
	}
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(msg))
	}
	return nil
}

func (u *udpTransport) Close() error {
	return u.conn.Close()
}

func (u *udpTransport) String() string {
	return "udp connect " + u.address
}

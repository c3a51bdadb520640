package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
)

// noDeadline is the socket timeout used when sends must not be bounded.
const noDeadline = time.Duration(math.MaxInt64)

// zmqTransport is a PUSH socket. The socket's context plays the role of the
// ZMQ context and is cancelled when the transport closes.
//
// zmq4 applies the socket timeout only while a send waits for a peer, and
// gives up on the message silently when it expires. A bind socket is
// therefore created without a timeout: the first send waits for the first
// consumer until its context is cancelled. A connect socket has its peer
// once Dial returns, so SendTimeout is passed through.
type zmqTransport struct {
	sock     zmq4.Socket
	cancel   context.CancelFunc
	mode     Mode
	endpoint string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func openZMQ(cfg Config) (*zmqTransport, error) {
	timeout := cfg.SendTimeout
	if cfg.Mode == ModeBind || timeout <= 0 {
		timeout = noDeadline
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts := []zmq4.Option{
		zmq4.WithLogger(log.New(os.Stderr, "[zmq] ", log.LstdFlags)),
		zmq4.WithTimeout(timeout),
	}
	if cfg.DialRetry > 0 {
		opts = append(opts, zmq4.WithDialerRetry(cfg.DialRetry))
	}
	sock := zmq4.NewPush(ctx, opts...)

	endpoint := cfg.ResolvedEndpoint()
	var err error
	switch cfg.Mode {
	case ModeConnect:
		err = sock.Dial(endpoint)
	default:
		err = sock.Listen(endpoint)
	}
	if err != nil {
		sock.Close()
		cancel()
		return nil, fmt.Errorf("zmq %s %s: %w", cfg.Mode, endpoint, err)
	}

	return &zmqTransport{sock: sock, cancel: cancel, mode: cfg.Mode, endpoint: endpoint}, nil
}

// Send queues msg on the socket. Cancelling ctx while the send waits for a
// peer closes the transport, and the message is reported as not sent.
func (z *zmqTransport) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if z.closed.Load() {
		return net.ErrClosed
	}

	stop := context.AfterFunc(ctx, func() { z.Close() })
	err := z.sock.Send(zmq4.NewMsg(msg))
	if !stop() {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errSendTimeout
	}
	return err
}

func (z *zmqTransport) Close() error {
	z.closeOnce.Do(func() {
		z.closed.Store(true)
		z.closeErr = z.sock.Close()
		z.cancel()
	})
	return z.closeErr
}

// Addr returns the bound address in bind mode.
func (z *zmqTransport) Addr() net.Addr {
	return z.sock.Addr()
}

func (z *zmqTransport) String() string {
	return fmt.Sprintf("zmq %s %s", z.mode, z.endpoint)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/banshee-data/telemetry.replay/internal/telemetry"
)

// Receiver yields one message payload per call.
type Receiver interface {
	Recv() ([]byte, error)
	Close() error
}

// Open creates a receiver for the named transport. mode only applies to zmq.
func Open(transport, mode, endpoint string) (Receiver, error) {
	switch transport {
	case "zmq":
		return openPull(mode, endpoint)
	case "udp":
		return openUDP(endpoint)
	default:
		return nil, fmt.Errorf("unknown transport %q (want zmq or udp)", transport)
	}
}

type pullReceiver struct {
	sock     zmq4.Socket
	cancel   context.CancelFunc
	endpoint string
}

func openPull(mode, endpoint string) (*pullReceiver, error) {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewPull(ctx, zmq4.WithDialerRetry(250*time.Millisecond))
	var err error
	switch mode {
	case "connect":
		err = sock.Dial(endpoint)
	case "bind":
		err = sock.Listen(endpoint)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		sock.Close()
		cancel()
		return nil, fmt.Errorf("zmq pull %s: %w", endpoint, err)
	}
	return &pullReceiver{sock: sock, cancel: cancel, endpoint: endpoint}, nil
}

func (p *pullReceiver) Recv() ([]byte, error) {
	msg, err := p.sock.Recv()
	if err != nil {
		return nil, err
	}
	if len(msg.Frames) == 0 {
		return nil, nil
	}
	return msg.Frames[0], nil
}

func (p *pullReceiver) Close() error {
	err := p.sock.Close()
	p.cancel()
	return err
}

func (p *pullReceiver) String() string { return "zmq pull " + p.endpoint }

type udpReceiver struct {
	conn *net.UDPConn
	buf  []byte
}

func openUDP(endpoint string) (*udpReceiver, error) {
	endpoint = strings.TrimPrefix(endpoint, "udp://")
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", endpoint, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", endpoint, err)
	}
	return &udpReceiver{conn: conn, buf: make([]byte, 65536)}, nil
}

func (u *udpReceiver) Recv() ([]byte, error) {
	n, _, err := u.conn.ReadFromUDP(u.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, u.buf[:n])
	return out, nil
}

func (u *udpReceiver) Close() error { return u.conn.Close() }

func (u *udpReceiver) String() string { return "udp " + u.conn.LocalAddr().String() }

// Counter tallies received samples per stream between reports.
type Counter struct {
	mu       sync.Mutex
	window   map[string]int
	bytes    int
	total    int
	badTotal int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{window: make(map[string]int)}
}

// Add records one message. Undecodable payloads are counted separately.
func (c *Counter) Add(streamID string, size int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.bytes += size
	if !ok {
		c.badTotal++
		streamID = "<invalid>"
	}
	c.window[streamID]++
}

// Report formats and resets the current window. It returns "" when
// nothing arrived.
func (c *Counter) Report(window time.Duration) string {
	c.mu.Lock()
	counts := c.window
	bytes := c.bytes
	c.window = make(map[string]int)
	c.bytes = 0
	c.mu.Unlock()

	if len(counts) == 0 {
		return ""
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	secs := window.Seconds()
	if secs <= 0 {
		secs = 1
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%.1f/s", id, float64(counts[id])/secs)
	}
	return fmt.Sprintf("Received: %s, %.1f KB/s", strings.Join(parts, " "), float64(bytes)/1024/secs)
}

// Totals returns the number of messages and undecodable messages seen.
func (c *Counter) Totals() (total, bad int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.badTotal
}

// Consume reads until the receiver fails. Each decodable sample is written
// to w as a JSON line when w is non-nil.
func Consume(r Receiver, w io.Writer, c *Counter) error {
	for {
		payload, err := r.Recv()
		if err != nil {
			return err
		}
		var s telemetry.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			c.Add("", len(payload), false)
			continue
		}
		c.Add(s.StreamID, len(payload), true)
		if w != nil {
			line, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				return err
			}
		}
	}
}

// Command telemetry-listen is a consumer for the telemetry stream. It pulls
// samples from a ZMQ PUSH socket (or UDP), prints per-stream rates once a
// second and optionally echoes each sample as a JSON line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	transport := flag.String("transport", "zmq", "transport: zmq or udp")
	mode := flag.String("mode", "connect", "zmq mode: connect (to a bound publisher) or bind")
	endpoint := flag.String("endpoint", "tcp://localhost:5555", "zmq endpoint, or host:port for udp")
	echo := flag.Bool("echo", false, "print every sample as a JSON line")
	interval := flag.Duration("stats", time.Second, "rate report interval (0 disables)")
	flag.Parse()

	recv, err := Open(*transport, *mode, *endpoint)
	if err != nil {
		log.Fatalf("open receiver: %v", err)
	}
	log.Printf("listening: %s", recv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	counter := NewCounter()
	if *interval > 0 {
		go func() {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if line := counter.Report(*interval); line != "" {
						fmt.Fprintln(os.Stderr, line)
					}
				}
			}
		}()
	}

	go func() {
		<-ctx.Done()
		recv.Close()
	}()

	var out io.Writer
	if *echo {
		out = os.Stdout
	}
	if err := Consume(recv, out, counter); err != nil && ctx.Err() == nil {
		log.Fatalf("receive failed: %v", err)
	}
	total, bad := counter.Totals()
	log.Printf("received %d samples (%d undecodable)", total, bad)
}

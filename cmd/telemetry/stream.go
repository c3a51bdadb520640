package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/banshee-data/telemetry.replay/internal/health"
	"github.com/banshee-data/telemetry.replay/internal/metrics"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/publisher"
	"github.com/banshee-data/telemetry.replay/internal/stream"
)

// streamFlags are shared by the synthetic and replay commands.
type streamFlags struct {
	transport     string
	mode          string
	endpoint      string
	sendTimeout   time.Duration
	retries       int
	interval      time.Duration
	count         int
	metricsListen string
	healthListen  string
}

func (f *streamFlags) register(cmd *cobra.Command) {
	pdef := publisher.DefaultConfig()
	sdef := stream.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.transport, "transport", pdef.Transport, "Transport: zmq or udp")
	fl.StringVar(&f.mode, "mode", string(pdef.Mode), "Socket mode: bind or connect")
	fl.StringVar(&f.endpoint, "endpoint", "", "Socket endpoint (default tcp://*:5555 for bind, tcp://localhost:5555 for connect)")
	fl.DurationVar(&f.sendTimeout, "send-timeout", pdef.SendTimeout, "Bound on a single send attempt (0 disables)")
	fl.IntVar(&f.retries, "retries", pdef.MaxRetries, "Immediate retries after a failed send")
	fl.DurationVar(&f.interval, "interval", sdef.Interval, "Pause between emitted samples")
	fl.IntVar(&f.count, "count", 0, "Stop after this many source samples (0 runs until stopped)")
	fl.StringVar(&f.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9102")
	fl.StringVar(&f.healthListen, "health-listen", "", "Serve gRPC health checks on this address, e.g. :50052")
}

func (f *streamFlags) publisherConfig() (publisher.Config, error) {
	mode, err := publisher.ParseMode(f.mode)
	if err != nil {
		return publisher.Config{}, err
	}
	cfg := publisher.DefaultConfig()
	cfg.Transport = f.transport
	cfg.Mode = mode
	cfg.Endpoint = f.endpoint
	cfg.SendTimeout = f.sendTimeout
	cfg.MaxRetries = f.retries
	if err := cfg.Validate(); err != nil {
		return publisher.Config{}, err
	}
	return cfg, nil
}

func (f *streamFlags) streamConfig() (stream.Config, error) {
	if f.count < 0 {
		return stream.Config{}, fmt.Errorf("--count must not be negative")
	}
	if f.interval < 0 {
		return stream.Config{}, fmt.Errorf("--interval must not be negative")
	}
	cfg := stream.DefaultConfig()
	cfg.Interval = f.interval
	cfg.MaxSamples = f.count
	return cfg, nil
}

// runStream wires metrics, health and the publisher around setup and runs
// the stream until it stops or ctx is cancelled.
func runStream(ctx context.Context, cmd *cobra.Command, f *streamFlags, cfg stream.Config, setup stream.Setup) error {
	pcfg, err := f.publisherConfig()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logf := monitoring.Tagged("Telemetry")
	logf("run %s: %s, %s %s %s", runID, cmd.Name(), pcfg.Transport, pcfg.Mode, pcfg.ResolvedEndpoint())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	auxCtx, cancelAux := context.WithCancel(ctx)
	defer cancelAux()

	if f.metricsListen != "" {
		srv, err := metrics.Listen(f.metricsListen, reg)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		go func() {
			if err := srv.Serve(auxCtx); err != nil {
				logf("metrics server: %v", err)
			}
		}()
	}

	opts := []stream.Option{stream.WithMetrics(m), stream.WithRunID(runID)}
	if f.healthListen != "" {
		hs := health.NewServer(f.healthListen)
		if err := hs.Start(); err != nil {
			return fmt.Errorf("health listener: %w", err)
		}
		defer hs.Stop()
		opts = append(opts, stream.WithObserver(func(_, to stream.State) {
			hs.SetServing(to.Active())
		}))
	}

	setup.Publisher = func() (stream.Publisher, error) {
		p, err := publisher.Open(pcfg, m)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	runner, err := stream.Start(cmd.InOrStdin(), setup, cfg, opts...)
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil {
		return err
	}
	st := runner.Stats()
	logf("run %s finished: emitted=%d published=%d passes=%d", runID, st.Emitted, st.Published, st.Passes)
	return nil
}

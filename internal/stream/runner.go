package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/telemetry.replay/internal/metrics"
	"github.com/banshee-data/telemetry.replay/internal/monitoring"
	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
	"github.com/banshee-data/telemetry.replay/internal/timeutil"
)

// Config holds pacing and looping settings.
type Config struct {
	// Interval is the pause after each emitted raw sample.
	Interval time.Duration

	// Loop rewinds a finite source when it is exhausted.
	Loop bool

	// LoopPause is an extra pause before a rewound pass starts.
	LoopPause time.Duration

	// MaxSamples stops the run after this many raw samples. Zero is
	// unlimited.
	MaxSamples int

	// MaxLoops stops a looping run after this many complete passes. Zero
	// is unlimited.
	MaxLoops int
}

// DefaultConfig paces emission at 10ms with looping off.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Millisecond,
	}
}

// Publisher is the sink a Runner owns. Close must release the transport.
type Publisher interface {
	Publish(ctx context.Context, s telemetry.Sample) error
	Close() error
}

// Transformer maps one raw sample to the samples to publish.
type Transformer interface {
	Apply(raw source.Raw) ([]telemetry.Sample, error)
}

// Stats counts a run's progress.
type Stats struct {
	Emitted   int // raw samples taken from the source
	Published int // samples handed to the publisher
	Passes    int // completed passes over a finite source
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the clock used for pacing.
func WithClock(c timeutil.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithMetrics records state and loop counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithObserver adds a transition callback.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithRunID tags log lines with id.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// Runner owns a source, a transform stage and a publisher for one run.
type Runner struct {
	cfg     Config
	src     source.Source
	stage   Transformer
	pub     Publisher
	clock   timeutil.Clock
	metrics *metrics.Metrics
	runID   string
	logf    func(format string, v ...interface{})

	observers []Observer

	mu    sync.Mutex
	state State
	cause error
	stats Stats

	releaseOnce sync.Once
	releaseErr  error
}

func newRunner(cfg Config, opts []Option) *Runner {
	r := &Runner{
		cfg:   cfg,
		clock: timeutil.RealClock{},
		state: Starting,
	}
	for _, opt := range opts {
		opt(r)
	}
	tag := "Stream"
	if r.runID != "" {
		tag = "Stream " + shortID(r.runID)
	}
	r.logf = monitoring.Tagged(tag)
	r.metrics.SetState(int(Starting))
	return r
}

// NewRunner wraps already built components and enters RUNNING.
func NewRunner(cfg Config, src source.Source, stage Transformer, pub Publisher, opts ...Option) *Runner {
	r := newRunner(cfg, opts)
	r.attach(src, stage, pub)
	return r
}

func (r *Runner) attach(src source.Source, stage Transformer, pub Publisher) {
	r.src = src
	r.stage = stage
	r.pub = pub
	r.logf("streaming from %s", src.Name())
	r.transition(Running)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the cause of a failed run, or nil for a clean stop.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

// Stats returns progress counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Runner) transition(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	if from != to {
		r.logf("%s -> %s", from, to)
	}
	r.metrics.SetState(int(to))
	for _, o := range r.observers {
		o(from, to)
	}
}

// fail records the first error and moves to DRAINING.
func (r *Runner) fail(err error) State {
	r.mu.Lock()
	if r.cause == nil {
		r.cause = err
	}
	r.mu.Unlock()
	r.logf("error: %v", err)
	r.transition(Draining)
	return Draining
}

// stop moves to DRAINING without an error.
func (r *Runner) stop(reason string) State {
	r.logf("stopping: %s", reason)
	r.transition(Draining)
	return Draining
}

// Step performs the work of the current state and returns the state the
// runner is in afterwards. It is safe to call after STOPPED.
func (r *Runner) Step(ctx context.Context) State {
	switch r.State() {
	case Starting:
		if r.pub == nil {
			r.transition(Stopped)
			return Stopped
		}
		r.transition(Running)
		return Running
	case Running:
		return r.stepRunning(ctx)
	case Looping:
		return r.stepLooping(ctx)
	case Draining:
		r.release()
		r.transition(Stopped)
		st := r.Stats()
		r.logf("stopped: emitted=%d published=%d passes=%d", st.Emitted, st.Published, st.Passes)
		return Stopped
	default:
		return Stopped
	}
}

func (r *Runner) stepRunning(ctx context.Context) State {
	if ctx.Err() != nil {
		return r.stop("cancelled")
	}

	raw, err := r.src.Next()
	if errors.Is(err, io.EOF) {
		r.mu.Lock()
		r.stats.Passes++
		passes := r.stats.Passes
		r.mu.Unlock()
		if r.cfg.Loop && (r.cfg.MaxLoops == 0 || passes < r.cfg.MaxLoops) {
			r.transition(Looping)
			return Looping
		}
		return r.stop("source exhausted")
	}
	if err != nil {
		return r.fail(telemetry.Wrap(telemetry.DataLoad, "next sample", err))
	}

	samples, err := r.stage.Apply(raw)
	if err != nil {
		return r.fail(err)
	}
	for _, s := range samples {
		if err := r.pub.Publish(ctx, s); err != nil {
			if ctx.Err() != nil {
				return r.stop("cancelled during send")
			}
			return r.fail(err)
		}
	}

	r.mu.Lock()
	r.stats.Emitted++
	r.stats.Published += len(samples)
	emitted := r.stats.Emitted
	r.mu.Unlock()

	if r.cfg.MaxSamples > 0 && emitted >= r.cfg.MaxSamples {
		return r.stop("sample limit reached")
	}

	if err := timeutil.Wait(ctx, r.clock, r.cfg.Interval); err != nil {
		return r.stop("cancelled")
	}
	return Running
}

func (r *Runner) stepLooping(ctx context.Context) State {
	if err := r.src.Rewind(); err != nil {
		return r.fail(telemetry.Wrap(telemetry.DataLoad, "rewind", err))
	}
	r.metrics.IncLoops()
	if err := timeutil.Wait(ctx, r.clock, r.cfg.LoopPause); err != nil {
		return r.stop("cancelled")
	}
	r.transition(Running)
	return Running
}

// release closes the publisher exactly once.
func (r *Runner) release() error {
	r.releaseOnce.Do(func() {
		if r.pub == nil {
			return
		}
		if err := r.pub.Close(); err != nil {
			r.releaseErr = err
			r.logf("release failed: %v", err)
		}
	})
	return r.releaseErr
}

// Run steps until STOPPED and returns the cause of a failed run. A
// cancelled context is a clean stop.
func (r *Runner) Run(ctx context.Context) error {
	for r.Step(ctx) != Stopped {
	}
	return r.Err()
}

// Close releases the publisher if the run did not reach DRAINING. It is
// safe to call at any time and more than once.
func (r *Runner) Close() error {
	return r.release()
}

package stream

import (
	"fmt"
	"io"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/source"
	"github.com/banshee-data/telemetry.replay/internal/telemetry"
	"github.com/banshee-data/telemetry.replay/internal/transform"
)

// Setup builds the components of a run once the startup state is known.
type Setup struct {
	// Source builds the data source from the startup state.
	Source func(state *appstate.AppState) (source.Source, error)

	// Channels is applied to every raw sample.
	Channels []transform.Channel

	// Publisher opens the outbound transport. It is called last so that
	// nothing is sent when intake or loading fails.
	Publisher func() (Publisher, error)
}

// originer is implemented by sources with a reference first row.
type originer interface {
	Origin() source.Raw
}

// Start performs the STARTING state: it reads the startup state from in,
// builds the source, the transform stage and the publisher, and returns a
// RUNNING runner. On failure the runner goes to STOPPED and the error is
// returned; no publisher is left open.
func Start(in io.Reader, setup Setup, cfg Config, opts ...Option) (*Runner, error) {
	r := newRunner(cfg, opts)
	r.transition(Starting)

	src, stage, pub, err := r.build(in, setup)
	if err != nil {
		r.mu.Lock()
		r.cause = err
		r.mu.Unlock()
		r.logf("startup failed: %v", err)
		r.transition(Stopped)
		return nil, err
	}
	r.attach(src, stage, pub)
	return r, nil
}

func (r *Runner) build(in io.Reader, setup Setup) (source.Source, *transform.Stage, Publisher, error) {
	if setup.Source == nil || setup.Publisher == nil {
		return nil, nil, nil, fmt.Errorf("stream setup needs a source and a publisher")
	}

	state, err := appstate.Read(in)
	if err != nil {
		return nil, nil, nil, err
	}
	r.logf("received initial app state: %s", state)

	src, err := setup.Source(state)
	if err != nil {
		return nil, nil, nil, err
	}

	var origin source.Raw
	if o, ok := src.(originer); ok {
		origin = o.Origin()
	}
	stage, err := transform.NewStage(setup.Channels, origin)
	if err != nil {
		return nil, nil, nil, err
	}

	pub, err := setup.Publisher()
	if err != nil {
		return nil, nil, nil, telemetry.Wrap(telemetry.Transport, "open publisher", err)
	}
	return src, stage, pub, nil
}

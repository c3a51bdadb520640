package harness

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
	"github.com/banshee-data/telemetry.replay/internal/timeutil"
)

// Status is a single-line check result.
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Neutral Status = "neutral"
)

// StepDelay is the pause after each circuit step.
const StepDelay = 100 * time.Millisecond

// StatusHandler prints status and then waits delay on clock.
func StatusHandler(status Status, clock timeutil.Clock, delay time.Duration) Handler {
	return func(ctx context.Context, _ *appstate.AppState, out io.Writer) error {
		if _, err := fmt.Fprintln(out, status); err != nil {
			return err
		}
		return timeutil.Wait(ctx, clock, delay)
	}
}

// EchoHandler prints a greeting followed by the startup state.
func EchoHandler(greeting string) Handler {
	return func(_ context.Context, state *appstate.AppState, out io.Writer) error {
		if _, err := fmt.Fprintln(out, greeting); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "App state: %s\n", state)
		return err
	}
}

// EchoSuite prints the startup state twice.
func EchoSuite() *Registry {
	r := NewRegistry("echo")
	r.MustRegister("echo_one", EchoHandler("Echo One!"))
	r.MustRegister("echo_two", EchoHandler("Echo Two!"))
	return r
}

// CircuitSuite is a fixture board test: power up, program over JTAG,
// probe eight pogo pin circuits, power down.
func CircuitSuite(clock timeutil.Clock) *Registry {
	steps := []struct {
		name   string
		status Status
	}{
		{"power_up", Fail},
		{"run_jtag", Fail},
		{"pogo_pin_circuit_1", Pass},
		{"pogo_pin_circuit_2", Neutral},
		{"pogo_pin_circuit_3", Fail},
		{"pogo_pin_circuit_4", Pass},
		{"pogo_pin_circuit_5", Pass},
		{"pogo_pin_circuit_6", Fail},
		{"pogo_pin_circuit_7", Neutral},
		{"pogo_pin_circuit_8", Pass},
		{"power_down", Pass},
	}
	r := NewRegistry("circuit")
	for _, s := range steps {
		r.MustRegister(s.name, StatusHandler(s.status, clock, StepDelay))
	}
	return r
}

var suites = map[string]func(timeutil.Clock) *Registry{
	"echo":    func(timeutil.Clock) *Registry { return EchoSuite() },
	"circuit": CircuitSuite,
}

// SuiteNames lists the built-in suites.
func SuiteNames() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadSuite returns a built-in suite by name.
func LoadSuite(name string, clock timeutil.Clock) (*Registry, error) {
	build, ok := suites[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (available: %v)", name, SuiteNames())
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return build(clock), nil
}

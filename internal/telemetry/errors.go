package telemetry

import (
	"errors"
	"fmt"
)

// Kind classifies a streaming failure. Every kind is fatal for the run.
type Kind int

const (
	// MalformedInput is a startup state payload that is not a JSON object.
	MalformedInput Kind = iota + 1
	// DataLoad is a dataset that is missing, unreadable or unparsable.
	DataLoad
	// Transform is a row missing a field a channel needs.
	Transform
	// Transport is a send or socket failure.
	Transport
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "MalformedInputError"
	case DataLoad:
		return "DataLoadError"
	case Transform:
		return "TransformError"
	case Transport:
		return "TransportError"
	default:
		return "UnknownError"
	}
}

// Error wraps a failure with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err stays nil, and an error that is already
// classified keeps its original kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or zero if there is none.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

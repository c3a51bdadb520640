// Package source produces raw samples for the streaming loop, either from
// a closed-form generator or from a recorded dataset.
package source

// Raw is one unprocessed sample. Values holds the named numeric inputs the
// transform stage reads; Timestamp is in seconds.
type Raw struct {
	Index     int
	Loop      int
	Timestamp float64
	Values    map[string]float64
}

// Get returns the named value and whether it is present.
func (r Raw) Get(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Source is a restartable sequence of raw samples. Next returns io.EOF
// once a finite source is exhausted; Rewind restarts it from the first
// sample.
type Source interface {
	Next() (Raw, error)
	Rewind() error
	Name() string
}

package ports

import "github.com/aretw0/tempo/pkg/domain"

// WorkingState is the live, mutable data structure a run operates on
// (array, DP table, graph distances, string pointers).
//
// It is exclusively owned by the run holding the current token; the sequencer
// is its sole writer.
type WorkingState interface {
	// Apply performs one Step. It must either apply fully or return an error
	// without partial mutation.
	Apply(step domain.Step) error

	// Clone returns a deep copy that shares no memory with the receiver.
	Clone() WorkingState
}

// StepSource yields Steps lazily and deterministically.
// It cannot be rewound; replaying requires a new instance from the Definition.
type StepSource interface {
	// Next returns the next step, or ok=false once the source is exhausted.
	// A non-nil error terminates the run as a definition failure.
	Next() (step domain.Step, ok bool, err error)

	// Stop releases resources held by a partially consumed source.
	// It is safe to call more than once.
	Stop()
}

// Definition is the pluggable source of Steps for one algorithm.
type Definition interface {
	// Name is the catalog key (e.g. "bubble").
	Name() string

	// Describe is a one-line human description.
	Describe() string

	// Prepare validates input and builds a fresh working state and step source.
	// Invalid input must be reported with an error wrapping domain.ErrInvalidInput.
	Prepare(input map[string]any) (WorkingState, StepSource, error)
}

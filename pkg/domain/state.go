package domain

// PlaybackState defines the current mode of a playback controller.
type PlaybackState string

const (
	StateIdle      PlaybackState = "idle"      // No run in flight, ready for Start
	StateRunning   PlaybackState = "running"   // A run is emitting steps
	StatePaused    PlaybackState = "paused"    // A run is parked at a suspension point
	StateCancelled PlaybackState = "cancelled" // Terminal for a run; reported in outcomes only
	StateCompleted PlaybackState = "completed" // Step source exhausted normally
)

// Active reports whether a run currently owns a token.
func (s PlaybackState) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Valid reports whether s is one of the known states.
func (s PlaybackState) Valid() bool {
	switch s {
	case StateIdle, StateRunning, StatePaused, StateCancelled, StateCompleted:
		return true
	}
	return false
}

// Outcome is the terminal report of a single run.
// Exactly one Outcome is produced per started run.
type Outcome struct {
	RunID      string        `json:"run_id"`
	Generation uint64        `json:"generation"`
	Algorithm  string        `json:"algorithm,omitempty"`
	Status     PlaybackState `json:"status"`
	Steps      int           `json:"steps"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// Failed reports whether the run ended with a definition error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

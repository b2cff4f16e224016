package domain

import "maps"

// Snapshot is an immutable, externally observable copy of the working state
// plus display metadata. Snapshots of one run are totally ordered by Seq.
//
// State holds a value owned by the snapshot (a deep clone); observers may keep
// and even modify it without synchronizing with the run that produced it.
type Snapshot struct {
	RunID      string         `json:"run_id"`
	Generation uint64         `json:"generation"`
	Seq        uint64         `json:"seq"`
	Algorithm  string         `json:"algorithm,omitempty"`
	Op         Op             `json:"op,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Marks      Marks          `json:"marks,omitempty"`
	Counters   map[string]int `json:"counters,omitempty"`
	State      any            `json:"state"`
	Final      bool           `json:"final,omitempty"`
}

// StateCloner is implemented by snapshot states backed by mutable memory.
type StateCloner interface {
	CloneState() any
}

// Clone copies the metadata maps and, when it implements StateCloner, the
// state. Other states are treated as immutable and shared.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Marks = s.Marks.Clone()
	out.Counters = maps.Clone(s.Counters)
	if c, ok := s.State.(StateCloner); ok {
		out.State = c.CloneState()
	}
	return out
}

// IsZero reports whether no snapshot has been published.
func (s Snapshot) IsZero() bool {
	return s.RunID == "" && s.Seq == 0
}

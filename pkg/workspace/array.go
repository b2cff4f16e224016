package workspace

import (
	"fmt"
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Array is a flat list of integers (sorting and searching).
type Array struct {
	Values []int `json:"values"`
}

// NewArray copies values into a new Array.
func NewArray(values []int) *Array {
	return &Array{Values: slices.Clone(values)}
}

func (a *Array) inRange(idx []int) error {
	for _, i := range idx {
		if i < 0 || i >= len(a.Values) {
			return fmt.Errorf("index %d out of range [0,%d)", i, len(a.Values))
		}
	}
	return nil
}

// Apply performs one step.
func (a *Array) Apply(step domain.Step) error {
	if err := a.inRange(step.Indices); err != nil {
		return err
	}
	switch step.Op {
	case domain.OpCompare, domain.OpMark, domain.OpNote, domain.OpVisit:
		return nil
	case domain.OpSwap:
		if err := step.Arity(2); err != nil {
			return err
		}
		i, j := step.Indices[0], step.Indices[1]
		a.Values[i], a.Values[j] = a.Values[j], a.Values[i]
		return nil
	case domain.OpSet:
		if len(step.Values) != len(step.Indices) {
			return fmt.Errorf("set step has %d indices but %d values", len(step.Indices), len(step.Values))
		}
		for k, i := range step.Indices {
			a.Values[i] = step.Values[k]
		}
		return nil
	}
	return fmt.Errorf("array does not support %q steps", step.Op)
}

// CloneState lets snapshots hand out private copies.
func (a *Array) CloneState() any { return a.Clone() }

// Clone returns a deep copy.
func (a *Array) Clone() ports.WorkingState {
	return NewArray(a.Values)
}

package workspace

import (
	"fmt"
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Text tracks a pattern search over a text.
//
// Steps: compare/match [i, j] move the text and pattern pointers; set [k]
// with Values [v] writes the failure table; visit [pos] records a match.
type Text struct {
	Text    string `json:"text"`
	Pattern string `json:"pattern"`
	I       int    `json:"i"`
	J       int    `json:"j"`
	Failure []int  `json:"failure"`
	Matches []int  `json:"matches"`
}

// NewText prepares a search of pattern within text.
func NewText(text, pattern string) *Text {
	return &Text{
		Text:    text,
		Pattern: pattern,
		Failure: make([]int, len(pattern)),
		Matches: []int{},
	}
}

// Apply performs one step.
func (t *Text) Apply(step domain.Step) error {
	switch step.Op {
	case domain.OpNote, domain.OpMark:
		return nil
	case domain.OpCompare, domain.OpMatch:
		if err := step.Arity(2); err != nil {
			return err
		}
		i, j := step.Indices[0], step.Indices[1]
		if i < 0 || i > len(t.Text) || j < 0 || j > len(t.Pattern) {
			return fmt.Errorf("pointers (%d,%d) outside text %d / pattern %d", i, j, len(t.Text), len(t.Pattern))
		}
		t.I, t.J = i, j
		return nil
	case domain.OpSet:
		if err := step.Arity(1); err != nil {
			return err
		}
		if len(step.Values) < 1 {
			return fmt.Errorf("set step needs a value")
		}
		k := step.Indices[0]
		if k < 0 || k >= len(t.Failure) {
			return fmt.Errorf("failure index %d out of range [0,%d)", k, len(t.Failure))
		}
		t.Failure[k] = step.Values[0]
		return nil
	case domain.OpVisit:
		if err := step.Arity(1); err != nil {
			return err
		}
		pos := step.Indices[0]
		if pos < 0 || pos+len(t.Pattern) > len(t.Text) {
			return fmt.Errorf("match position %d out of range", pos)
		}
		t.Matches = append(t.Matches, pos)
		return nil
	}
	return fmt.Errorf("text does not support %q steps", step.Op)
}

// CloneState lets snapshots hand out private copies.
func (t *Text) CloneState() any { return t.Clone() }

// Clone returns a deep copy.
func (t *Text) Clone() ports.WorkingState {
	out := *t
	out.Failure = slices.Clone(t.Failure)
	out.Matches = slices.Clone(t.Matches)
	return &out
}

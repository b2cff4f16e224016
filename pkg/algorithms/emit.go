package algorithms

import (
	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/steps"
)

type yieldFunc = func(domain.Step, error) bool

// delegate re-yields a nested sequence. It reports false once the consumer
// has stopped, so callers unwind instead of continuing.
func delegate(seq steps.Seq, yield yieldFunc) bool {
	for s, err := range seq {
		if !yield(s, err) {
			return false
		}
	}
	return true
}

func span(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func compareStep(i, j int, marks domain.Marks) domain.Step {
	m := marks.Clone()
	if m == nil {
		m = domain.Marks{}
	}
	m["compare"] = []int{i, j}
	return domain.Step{Op: domain.OpCompare, Indices: []int{i, j}, Marks: m}
}

func swapStep(i, j int, marks domain.Marks) domain.Step {
	m := marks.Clone()
	if m == nil {
		m = domain.Marks{}
	}
	m["swap"] = []int{i, j}
	return domain.Step{Op: domain.OpSwap, Indices: []int{i, j}, Marks: m}
}

func doneStep(role string, idx []int) domain.Step {
	return domain.Step{Op: domain.OpMark, Marks: domain.Marks{role: idx}, Phase: "done"}
}

package algorithms

import (
	"fmt"
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/aretw0/tempo/pkg/workspace"
)

// BinarySearch halves a sorted range until the target is found or the range
// is empty.
func BinarySearch() ports.Definition {
	return &definition[searchInput]{
		name: "binary-search",
		desc: "Binary search over a sorted list",
		sample: func() searchInput {
			target := 9
			return searchInput{Values: []int{1, 3, 4, 5, 7, 9, 11, 15}, Target: &target}
		},
		check: checkSearch,
		build: func(in searchInput) (ports.WorkingState, steps.Seq) {
			return workspace.NewArray(in.Values), binarySearch(slices.Clone(in.Values), *in.Target)
		},
	}
}

func binarySearch(a []int, target int) steps.Seq {
	return func(yield yieldFunc) {
		lo, hi := 0, len(a)-1
		for lo <= hi {
			mid := lo + (hi-lo)/2
			probe := domain.Step{
				Op:      domain.OpCompare,
				Indices: []int{mid},
				Marks:   domain.Marks{"range": span(lo, hi), "compare": {mid}},
				Phase:   fmt.Sprintf("probe a[%d]=%d", mid, a[mid]),
			}
			if !yield(probe, nil) {
				return
			}
			switch {
			case a[mid] == target:
				yield(domain.Step{Op: domain.OpMark, Indices: []int{mid}, Marks: domain.Marks{"found": {mid}}, Phase: "found"}, nil)
				return
			case a[mid] < target:
				lo = mid + 1
			default:
				hi = mid - 1
			}
		}
		yield(domain.Step{Op: domain.OpNote, Phase: "not found"}, nil)
	}
}

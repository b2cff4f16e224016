package algorithms

import (
	"slices"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/aretw0/tempo/pkg/workspace"
)

func sortDefinition(name, desc string, gen func(a []int) steps.Seq) ports.Definition {
	return &definition[listInput]{
		name:   name,
		desc:   desc,
		sample: sampleList,
		check:  checkList,
		build: func(in listInput) (ports.WorkingState, steps.Seq) {
			a := slices.Clone(in.Values)
			body := gen(a)
			seq := func(yield yieldFunc) {
				if delegate(body, yield) {
					yield(doneStep("sorted", span(0, len(a)-1)), nil)
				}
			}
			return workspace.NewArray(in.Values), seq
		},
	}
}

// Bubble sorts by repeatedly swapping adjacent out-of-order pairs.
func Bubble() ports.Definition {
	return sortDefinition("bubble", "Bubble sort: adjacent compare and swap passes", bubble)
}

func bubble(a []int) steps.Seq {
	return func(yield yieldFunc) {
		n := len(a)
		for end := n - 1; end > 0; end-- {
			sorted := domain.Marks{"sorted": span(end+1, n-1)}
			swapped := false
			for i := 0; i < end; i++ {
				if !yield(compareStep(i, i+1, sorted), nil) {
					return
				}
				if a[i] > a[i+1] {
					a[i], a[i+1] = a[i+1], a[i]
					swapped = true
					if !yield(swapStep(i, i+1, sorted), nil) {
						return
					}
				}
			}
			if !swapped {
				return
			}
		}
	}
}

// Insertion grows a sorted prefix one item at a time.
func Insertion() ports.Definition {
	return sortDefinition("insertion", "Insertion sort: sink each item into the sorted prefix", insertion)
}

func insertion(a []int) steps.Seq {
	return func(yield yieldFunc) {
		for i := 1; i < len(a); i++ {
			prefix := domain.Marks{"prefix": span(0, i-1)}
			for j := i; j > 0; j-- {
				if !yield(compareStep(j-1, j, prefix), nil) {
					return
				}
				if a[j-1] <= a[j] {
					break
				}
				a[j-1], a[j] = a[j], a[j-1]
				if !yield(swapStep(j-1, j, prefix), nil) {
					return
				}
			}
		}
	}
}

// Merge is a top-down recursive merge sort.
func Merge() ports.Definition {
	return sortDefinition("merge", "Merge sort: split in halves, merge back in order", func(a []int) steps.Seq {
		return mergeSort(a, 0, len(a))
	})
}

func mergeSort(a []int, lo, hi int) steps.Seq {
	return func(yield yieldFunc) {
		if hi-lo < 2 {
			return
		}
		mid := (lo + hi) / 2
		if !delegate(mergeSort(a, lo, mid), yield) || !delegate(mergeSort(a, mid, hi), yield) {
			return
		}

		window := domain.Marks{"range": span(lo, hi-1)}
		left := slices.Clone(a[lo:mid])
		right := slices.Clone(a[mid:hi])
		merged := make([]int, 0, hi-lo)
		i, j := 0, 0
		for i < len(left) && j < len(right) {
			if !yield(compareStep(lo+i, mid+j, window), nil) {
				return
			}
			if left[i] <= right[j] {
				merged = append(merged, left[i])
				i++
			} else {
				merged = append(merged, right[j])
				j++
			}
		}
		merged = append(merged, left[i:]...)
		merged = append(merged, right[j:]...)

		for k, v := range merged {
			a[lo+k] = v
			step := domain.Step{
				Op:      domain.OpSet,
				Indices: []int{lo + k},
				Values:  []int{v},
				Marks:   domain.Marks{"range": span(lo, hi-1), "write": {lo + k}},
				Phase:   "merge",
			}
			if !yield(step, nil) {
				return
			}
		}
	}
}

// Quick is a recursive quicksort with Lomuto partitioning.
func Quick() ports.Definition {
	return sortDefinition("quick", "Quicksort: partition around the last item, recurse on both sides", func(a []int) steps.Seq {
		return quickSort(a, 0, len(a)-1)
	})
}

func quickSort(a []int, lo, hi int) steps.Seq {
	return func(yield yieldFunc) {
		if lo >= hi {
			return
		}
		marks := domain.Marks{"pivot": {hi}, "range": span(lo, hi)}
		pivot := a[hi]
		i := lo
		for j := lo; j < hi; j++ {
			if !yield(compareStep(j, hi, marks), nil) {
				return
			}
			if a[j] < pivot {
				if i != j {
					a[i], a[j] = a[j], a[i]
					if !yield(swapStep(i, j, marks), nil) {
						return
					}
				}
				i++
			}
		}
		if i != hi {
			a[i], a[hi] = a[hi], a[i]
			if !yield(swapStep(i, hi, marks), nil) {
				return
			}
		}
		placed := domain.Step{Op: domain.OpMark, Indices: []int{i}, Marks: domain.Marks{"placed": {i}}, Phase: "partition"}
		if !yield(placed, nil) {
			return
		}
		if delegate(quickSort(a, lo, i-1), yield) {
			delegate(quickSort(a, i+1, hi), yield)
		}
	}
}

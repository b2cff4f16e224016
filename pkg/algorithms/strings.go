package algorithms

import (
	"fmt"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/aretw0/tempo/pkg/workspace"
)

// LCS fills the longest-common-subsequence table row by row, then marks the
// backtracked path.
func LCS() ports.Definition {
	return &definition[pairInput]{
		name:   "lcs",
		desc:   "Longest common subsequence: dynamic programming table",
		sample: func() pairInput { return pairInput{A: "ABCBDAB", B: "BDCABA"} },
		check: func(in pairInput) error {
			if err := checkText("a", in.A, false); err != nil {
				return err
			}
			return checkText("b", in.B, false)
		},
		build: func(in pairInput) (ports.WorkingState, steps.Seq) {
			return workspace.NewGrid(len(in.A)+1, len(in.B)+1), lcs(in.A, in.B)
		},
	}
}

func lcs(a, b string) steps.Seq {
	return func(yield yieldFunc) {
		g := workspace.NewGrid(len(a)+1, len(b)+1)
		set := func(i, j, v int) {
			g.Cells[g.Cell(i, j)] = v
		}
		for i := 1; i <= len(a); i++ {
			for j := 1; j <= len(b); j++ {
				var v int
				var from []int
				phase := "skip"
				if a[i-1] == b[j-1] {
					v = g.At(i-1, j-1) + 1
					from = []int{g.Cell(i-1, j-1)}
					phase = "match"
				} else {
					v = max(g.At(i-1, j), g.At(i, j-1))
					from = []int{g.Cell(i-1, j), g.Cell(i, j-1)}
				}
				set(i, j, v)
				step := domain.Step{
					Op:      domain.OpSet,
					Indices: []int{i, j},
					Values:  []int{v},
					Marks:   domain.Marks{"current": {g.Cell(i, j)}, "compare": from},
					Phase:   phase,
				}
				if !yield(step, nil) {
					return
				}
			}
		}

		var path []int
		var out []byte
		for i, j := len(a), len(b); i > 0 && j > 0; {
			switch {
			case a[i-1] == b[j-1]:
				path = append(path, g.Cell(i, j))
				out = append(out, a[i-1])
				i--
				j--
			case g.At(i-1, j) >= g.At(i, j-1):
				i--
			default:
				j--
			}
		}
		for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
			out[l], out[r] = out[r], out[l]
		}
		yield(domain.Step{Op: domain.OpMark, Marks: domain.Marks{"path": path}, Phase: fmt.Sprintf("lcs=%q", out)}, nil)
	}
}

// KMP builds the failure table, then scans the text without backing up.
func KMP() ports.Definition {
	return &definition[matchInput]{
		name: "kmp",
		desc: "Knuth-Morris-Pratt string matching",
		sample: func() matchInput {
			return matchInput{Text: "ABABDABACDABABCABAB", Pattern: "ABABCABAB"}
		},
		check: func(in matchInput) error {
			if err := checkText("text", in.Text, true); err != nil {
				return err
			}
			return checkText("pattern", in.Pattern, false)
		},
		build: func(in matchInput) (ports.WorkingState, steps.Seq) {
			return workspace.NewText(in.Text, in.Pattern), kmp(in.Text, in.Pattern)
		},
	}
}

func kmp(text, pattern string) steps.Seq {
	return func(yield yieldFunc) {
		m := len(pattern)
		fail := make([]int, m)
		k := 0
		for q := 1; q < m; q++ {
			for k > 0 && pattern[k] != pattern[q] {
				k = fail[k-1]
			}
			if pattern[k] == pattern[q] {
				k++
			}
			fail[q] = k
			step := domain.Step{Op: domain.OpSet, Indices: []int{q}, Values: []int{k}, Marks: domain.Marks{"failure": {q}}, Phase: "prefix"}
			if !yield(step, nil) {
				return
			}
		}

		j := 0
		for i := 0; i < len(text); i++ {
			for j > 0 && text[i] != pattern[j] {
				if !yield(domain.Step{Op: domain.OpCompare, Indices: []int{i, j}, Phase: "mismatch"}, nil) {
					return
				}
				j = fail[j-1]
			}
			if !yield(domain.Step{Op: domain.OpCompare, Indices: []int{i, j}, Marks: domain.Marks{"text": {i}, "pattern": {j}}}, nil) {
				return
			}
			if text[i] != pattern[j] {
				continue
			}
			j++
			if j == m {
				pos := i - m + 1
				found := domain.Step{Op: domain.OpVisit, Indices: []int{pos}, Marks: domain.Marks{"found": span(pos, i)}, Phase: "found"}
				if !yield(found, nil) {
					return
				}
				j = fail[j-1]
			}
		}
	}
}

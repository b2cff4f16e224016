// Package steps builds lazy StepSources.
//
// Algorithms are written as iter.Seq2[domain.Step, error] generators. A
// recursive algorithm simply ranges over the generators of its sub-problems
// and re-yields their steps, so divide-and-conquer and depth-first bodies
// compose into one flat, ordered sequence. The sequencer pulls that sequence
// one step at a time and never recurses itself.
package steps

import (
	"fmt"
	"iter"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
)

// Seq is the generator shape of an algorithm body.
type Seq = iter.Seq2[domain.Step, error]

type pullSource struct {
	next func() (domain.Step, error, bool)
	stop func()
	done bool
}

// FromSeq adapts a generator into a lazily pulled StepSource.
// A panic inside the generator is reported as an error from Next.
func FromSeq(seq Seq) ports.StepSource {
	next, stop := iter.Pull2(seq)
	return &pullSource{next: next, stop: stop}
}

func (p *pullSource) Next() (step domain.Step, ok bool, err error) {
	if p.done {
		return domain.Step{}, false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.done = true
			step, ok, err = domain.Step{}, false, fmt.Errorf("step producer panicked: %v", r)
		}
	}()

	step, err, ok = p.next()
	if !ok {
		p.done = true
		return domain.Step{}, false, nil
	}
	if err != nil {
		p.done = true
		p.stop()
		return domain.Step{}, false, err
	}
	return step, true, nil
}

func (p *pullSource) Stop() {
	p.done = true
	p.stop()
}

// FromSlice returns a source over a fixed list of steps.
func FromSlice(list ...domain.Step) ports.StepSource {
	return FromSeq(Of(list...))
}

// Of yields the given steps in order.
func Of(list ...domain.Step) Seq {
	return func(yield func(domain.Step, error) bool) {
		for _, s := range list {
			if !yield(s, nil) {
				return
			}
		}
	}
}

// Concat yields every step of each sequence in turn.
func Concat(seqs ...Seq) Seq {
	return func(yield func(domain.Step, error) bool) {
		for _, seq := range seqs {
			for s, err := range seq {
				if !yield(s, err) || err != nil {
					return
				}
			}
		}
	}
}

// Fail yields a single error, terminating the sequence.
func Fail(err error) Seq {
	return func(yield func(domain.Step, error) bool) {
		yield(domain.Step{}, err)
	}
}

// Collect drains seq. It stops at the first error.
func Collect(seq Seq) ([]domain.Step, error) {
	var out []domain.Step
	for s, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

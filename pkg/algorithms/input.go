package algorithms

import (
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/aretw0/tempo/pkg/domain"
	"github.com/aretw0/tempo/pkg/ports"
	"github.com/aretw0/tempo/pkg/steps"
	"github.com/mitchellh/mapstructure"
)

// Input limits keep a run watchable.
const (
	MaxItems    = 64
	MaxValue    = 9999
	MaxVertices = 32
	MaxTextLen  = 128
)

// definition adapts a typed input and a builder to ports.Definition.
// An empty input selects the sample.
type definition[In any] struct {
	name   string
	desc   string
	sample func() In
	check  func(In) error
	build  func(In) (ports.WorkingState, steps.Seq)
}

func (d *definition[In]) Name() string     { return d.name }
func (d *definition[In]) Describe() string { return d.desc }

// Prepare validates input and returns a fresh working state and step source.
func (d *definition[In]) Prepare(input map[string]any) (ports.WorkingState, ports.StepSource, error) {
	var in In
	if len(input) == 0 {
		in = d.sample()
	} else if err := decodeInput(input, &in); err != nil {
		return nil, nil, err
	}
	if d.check != nil {
		if err := d.check(in); err != nil {
			return nil, nil, err
		}
	}
	ws, seq := d.build(in)
	return ws, steps.FromSeq(seq), nil
}

func decodeInput(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "json",
		ErrorUnused: true,
		DecodeHook:  rejectFractions,
	})
	if err != nil {
		return fmt.Errorf("failed to build input decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return &domain.ValidationError{Reason: err.Error()}
	}
	return nil
}

// rejectFractions stops 1.5 from silently becoming 1 and 1e20 from wrapping.
func rejectFractions(_ reflect.Type, to reflect.Type, data any) (any, error) {
	f, ok := data.(float64)
	if !ok || to.Kind() != reflect.Int {
		return data, nil
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt) rounds up to 2^63, which is already out of range.
	if f < math.MinInt || f >= math.MaxInt {
		return nil, fmt.Errorf("%v is out of range", f)
	}
	return data, nil
}

type listInput struct {
	Values []int `json:"values"`
}

func checkList(in listInput) error {
	if len(in.Values) == 0 {
		return domain.Invalid("values", "must not be empty")
	}
	if len(in.Values) > MaxItems {
		return domain.Invalid("values", "at most %d items, got %d", MaxItems, len(in.Values))
	}
	for i, v := range in.Values {
		if v < -MaxValue || v > MaxValue {
			return domain.Invalid("values", "item %d (%d) outside [-%d,%d]", i, v, MaxValue, MaxValue)
		}
	}
	return nil
}

func sampleList() listInput {
	return listInput{Values: []int{5, 3, 1, 4, 2, 8, 7, 6}}
}

type searchInput struct {
	Values []int `json:"values"`
	Target *int  `json:"target"`
}

func checkSearch(in searchInput) error {
	if err := checkList(listInput{Values: in.Values}); err != nil {
		return err
	}
	if in.Target == nil {
		return domain.Invalid("target", "is required")
	}
	if *in.Target < -MaxValue || *in.Target > MaxValue {
		return domain.Invalid("target", "%d outside [-%d,%d]", *in.Target, MaxValue, MaxValue)
	}
	for i := 1; i < len(in.Values); i++ {
		if in.Values[i-1] > in.Values[i] {
			return domain.Invalid("values", "must be sorted ascending")
		}
	}
	return nil
}

type edgeInput struct {
	From   int  `json:"from"`
	To     int  `json:"to"`
	Weight *int `json:"weight"`
}

type graphInput struct {
	Vertices int         `json:"vertices"`
	Edges    []edgeInput `json:"edges"`
	Directed bool        `json:"directed"`
	Source   int         `json:"source"`
}

func checkGraph(in graphInput) error {
	if in.Vertices < 1 || in.Vertices > MaxVertices {
		return domain.Invalid("vertices", "must be in [1,%d], got %d", MaxVertices, in.Vertices)
	}
	if in.Source < 0 || in.Source >= in.Vertices {
		return domain.Invalid("source", "vertex %d does not exist", in.Source)
	}
	for i, e := range in.Edges {
		if e.From < 0 || e.From >= in.Vertices || e.To < 0 || e.To >= in.Vertices {
			return domain.Invalid("edges", "edge %d (%d->%d) references a missing vertex", i, e.From, e.To)
		}
		if e.Weight != nil && (*e.Weight < 0 || *e.Weight > MaxValue) {
			return domain.Invalid("edges", "edge %d weight must be in [0,%d]", i, MaxValue)
		}
	}
	return nil
}

func sampleGraph() graphInput {
	w := func(n int) *int { return &n }
	return graphInput{
		Vertices: 6,
		Edges: []edgeInput{
			{From: 0, To: 1, Weight: w(7)},
			{From: 0, To: 2, Weight: w(9)},
			{From: 0, To: 5, Weight: w(14)},
			{From: 1, To: 2, Weight: w(10)},
			{From: 1, To: 3, Weight: w(15)},
			{From: 2, To: 3, Weight: w(11)},
			{From: 2, To: 5, Weight: w(2)},
			{From: 3, To: 4, Weight: w(6)},
			{From: 4, To: 5, Weight: w(9)},
		},
	}
}

type pairInput struct {
	A string `json:"a"`
	B string `json:"b"`
}

type matchInput struct {
	Text    string `json:"text"`
	Pattern string `json:"pattern"`
}

func checkText(field, s string, allowEmpty bool) error {
	if s == "" && !allowEmpty {
		return domain.Invalid(field, "must not be empty")
	}
	if len(s) > MaxTextLen {
		return domain.Invalid(field, "at most %d characters", MaxTextLen)
	}
	if utf8.RuneCountInString(s) != len(s) {
		return domain.Invalid(field, "only single-byte characters are supported")
	}
	return nil
}

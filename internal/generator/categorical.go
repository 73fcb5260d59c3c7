package generator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"

	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/doppelganger-go/doppelganger/internal/table"
)

// ErrNoDistribution is returned when a field is neither in the evidence nor
// covered by a distribution for the segment.
var ErrNoDistribution = errors.New("no distribution for field")

// DefaultSegment is used when the model does not segment rows.
const DefaultSegment synth.Segment = "all"

var _ synth.Model = (*CategoricalModel)(nil)

type distKey struct {
	segment string
	field   string
}

type categorical struct {
	values     []string
	cumulative []float64
}

func newCategorical(d Distribution) categorical {
	cum := make([]float64, len(d.Weights))
	total := 0.0
	for i, w := range d.Weights {
		total += w
		cum[i] = total
	}
	for i := range cum {
		cum[i] /= total
	}
	return categorical{values: d.Values, cumulative: cum}
}

func (c categorical) sample(r *rand.Rand) string {
	u := r.Float64()
	i := sort.Search(len(c.cumulative), func(i int) bool { return c.cumulative[i] > u })
	if i >= len(c.values) {
		i = len(c.values) - 1
	}
	return c.values[i]
}

// CategoricalModel draws each output field independently per segment.
//
// Draws are seeded from the model seed, the segment, the evidence and the
// count, so the same request always returns the same rows.
type CategoricalModel struct {
	def   Definition
	dists map[distKey]categorical
}

// New validates def and builds a model from it.
func New(def Definition) (*CategoricalModel, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	dists := make(map[distKey]categorical, len(def.Distributions))
	for _, d := range def.Distributions {
		dists[distKey{segment: d.Segment, field: d.Field}] = newCategorical(d)
	}
	return &CategoricalModel{def: def, dists: dists}, nil
}

// Load reads and builds a model from a TOML file.
func Load(path string) (*CategoricalModel, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	m, err := New(*def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Name returns the model name from its definition.
func (m *CategoricalModel) Name() string {
	return m.def.Name
}

// Fields returns the output columns.
func (m *CategoricalModel) Fields() []string {
	return slices.Clone(m.def.Fields)
}

// Segment classifies a row by SegmentField. With bins the value is parsed as a
// number and labelled "lt<bound>" for the first bound above it, or
// "ge<last bound>"; without bins the raw value is the segment.
func (m *CategoricalModel) Segment(row table.Row) (synth.Segment, error) {
	if m.def.SegmentField == "" {
		return DefaultSegment, nil
	}
	raw, err := row.Get(m.def.SegmentField)
	if err != nil {
		return "", err
	}
	if len(m.def.SegmentBins) == 0 {
		return synth.Segment(raw), nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", fmt.Errorf("segment field %q: %q is not numeric", m.def.SegmentField, raw)
	}
	for _, bound := range m.def.SegmentBins {
		if v < bound {
			return synth.Segment("lt" + formatBound(bound)), nil
		}
	}
	return synth.Segment("ge" + formatBound(m.def.SegmentBins[len(m.def.SegmentBins)-1])), nil
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

// Generate returns count rows. Fields present in evidence copy the evidence value.
func (m *CategoricalModel) Generate(ctx context.Context, segment synth.Segment, evidence synth.Evidence, count int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := synth.CheckCount(count); err != nil {
		return nil, err
	}
	if count == 0 {
		return [][]string{}, nil
	}

	samplers := make([]*categorical, len(m.def.Fields))
	pinned := make([]string, len(m.def.Fields))
	for i, field := range m.def.Fields {
		if v, ok := evidence.Lookup(field); ok {
			pinned[i] = v
			continue
		}
		c, ok := m.dists[distKey{segment: string(segment), field: field}]
		if !ok {
			c, ok = m.dists[distKey{segment: AnySegment, field: field}]
		}
		if !ok {
			return nil, fmt.Errorf("model %q segment %q field %q: %w", m.def.Name, segment, field, ErrNoDistribution)
		}
		samplers[i] = &c
	}

	r := rand.New(rand.NewPCG(m.def.Seed, requestSeed(segment, evidence, count)))
	rows := make([][]string, count)
	for n := range rows {
		row := make([]string, len(m.def.Fields))
		for i, s := range samplers {
			if s == nil {
				row[i] = pinned[i]
				continue
			}
			row[i] = s.sample(r)
		}
		rows[n] = row
	}
	return rows, nil
}

func requestSeed(segment synth.Segment, evidence synth.Evidence, count int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(segment))
	for _, item := range evidence {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(item.Field))
		_, _ = h.Write([]byte{1})
		_, _ = h.Write([]byte(item.Value))
	}
	_, _ = h.Write([]byte(strconv.Itoa(count)))
	return h.Sum64()
}

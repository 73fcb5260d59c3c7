// Package generator provides a categorical generative model: per segment, each
// output field is drawn from a weighted list of values unless the evidence
// already fixes it.
package generator

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// AnySegment marks a distribution that applies to every segment.
const AnySegment = "*"

// Definition is the on-disk form of a categorical model.
type Definition struct {
	Name          string         `toml:"name"`
	Fields        []string       `toml:"fields"`
	SegmentField  string         `toml:"segment_field"`
	SegmentBins   []float64      `toml:"segment_bins"`
	Seed          uint64         `toml:"seed"`
	Distributions []Distribution `toml:"distribution"`
}

// Distribution is a weighted value list for one field within one segment.
type Distribution struct {
	Segment string    `toml:"segment"`
	Field   string    `toml:"field"`
	Values  []string  `toml:"values"`
	Weights []float64 `toml:"weights"`
}

// LoadDefinition reads a TOML model definition.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file '%s': %w", path, err)
	}

	var def Definition
	if err := toml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return &def, nil
}

// Validate checks field names, bins and weights.
func (d *Definition) Validate() error {
	if len(d.Fields) == 0 {
		return fmt.Errorf("model %q: no fields", d.Name)
	}
	fields := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f == "" {
			return fmt.Errorf("model %q: empty field name", d.Name)
		}
		if fields[f] {
			return fmt.Errorf("model %q: duplicate field %q", d.Name, f)
		}
		fields[f] = true
	}

	for i := 1; i < len(d.SegmentBins); i++ {
		if d.SegmentBins[i] <= d.SegmentBins[i-1] {
			return fmt.Errorf("model %q: segment_bins must be strictly increasing", d.Name)
		}
	}
	if len(d.SegmentBins) > 0 && d.SegmentField == "" {
		return fmt.Errorf("model %q: segment_bins set without segment_field", d.Name)
	}

	seen := make(map[[2]string]bool, len(d.Distributions))
	for i, dist := range d.Distributions {
		if !fields[dist.Field] {
			return fmt.Errorf("model %q distribution %d: unknown field %q", d.Name, i, dist.Field)
		}
		if dist.Segment == "" {
			return fmt.Errorf("model %q distribution %d: empty segment (use %q for any)", d.Name, i, AnySegment)
		}
		key := [2]string{dist.Segment, dist.Field}
		if seen[key] {
			return fmt.Errorf("model %q distribution %d: duplicate segment %q field %q", d.Name, i, dist.Segment, dist.Field)
		}
		seen[key] = true

		if len(dist.Values) == 0 || len(dist.Values) != len(dist.Weights) {
			return fmt.Errorf("model %q distribution %d: %d values, %d weights", d.Name, i, len(dist.Values), len(dist.Weights))
		}
		total := 0.0
		for _, w := range dist.Weights {
			if w < 0 {
				return fmt.Errorf("model %q distribution %d: negative weight", d.Name, i)
			}
			total += w
		}
		if total <= 0 {
			return fmt.Errorf("model %q distribution %d: weights sum to zero", d.Name, i)
		}
	}
	return nil
}

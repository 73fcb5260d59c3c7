package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/doppelganger-go/doppelganger/internal/table"
)

// ErrMalformedRows is returned when the completion cannot be read as rows.
var ErrMalformedRows = errors.New("malformed rows in completion")

// Model is a synth.Model backed by an LLM provider.
type Model struct {
	provider     Provider
	fields       []string
	segmentField string
}

var _ synth.Model = (*Model)(nil)

// NewModel creates a model producing fields. segmentField names the row column
// used as the segment; empty means every row is in segment "all".
func NewModel(provider Provider, fields []string, segmentField string) (*Model, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("llm model: no fields")
	}
	return &Model{
		provider:     provider,
		fields:       slices.Clone(fields),
		segmentField: segmentField,
	}, nil
}

// Fields returns the output columns.
func (m *Model) Fields() []string {
	return slices.Clone(m.fields)
}

// Segment returns the configured column's value.
func (m *Model) Segment(row table.Row) (synth.Segment, error) {
	if m.segmentField == "" {
		return "all", nil
	}
	v, err := row.Get(m.segmentField)
	if err != nil {
		return "", err
	}
	return synth.Segment(v), nil
}

// Generate asks the provider for count rows and checks their shape.
func (m *Model) Generate(ctx context.Context, segment synth.Segment, evidence synth.Evidence, count int) ([][]string, error) {
	if err := synth.CheckCount(count); err != nil {
		return nil, err
	}
	if count == 0 {
		return [][]string{}, nil
	}

	resp, err := m.provider.Complete(ctx, CompletionRequest{
		System: systemPrompt,
		Prompt: BuildPrompt(m.fields, segment, evidence, count),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", m.provider.Name(), err)
	}

	rows, err := ParseRows(resp.Text, len(m.fields))
	if err != nil {
		return nil, err
	}
	if len(rows) != count {
		return nil, fmt.Errorf("%s returned %d rows, requested %d: %w", m.provider.Name(), len(rows), count, synth.ErrCountMismatch)
	}
	return rows, nil
}

type rowsPayload struct {
	Rows [][]any `json:"rows"`
}

// ParseRows reads {"rows": [[...]]} out of a completion, tolerating text
// around the JSON object. Every row must have width values.
func ParseRows(text string, width int) ([][]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object: %w", ErrMalformedRows)
	}

	var payload rowsPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrMalformedRows)
	}

	rows := make([][]string, len(payload.Rows))
	for i, raw := range payload.Rows {
		if len(raw) != width {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(raw), width, table.ErrArity)
		}
		row := make([]string, width)
		for j, v := range raw {
			s, err := cellString(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			row[j] = s
		}
		rows[i] = row
	}
	return rows, nil
}

func cellString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("nested value %v: %w", v, ErrMalformedRows)
	}
}

package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/doppelganger-go/doppelganger/internal/table"
)

var errUnknownSerial = errors.New("unknown serial number")

// MockModel pins evidence fields and fills the rest with "<field>-<repeat>".
type MockModel struct {
	FieldNames   []string
	SegmentField string
	RowDelta     int   // added to the requested count to simulate a broken model
	Width        int   // overrides row width when non-zero
	Err          error // returned by Generate

	Calls []MockCall
}

type MockCall struct {
	Segment  Segment
	Evidence Evidence
	Count    int
}

func (m *MockModel) Segment(row table.Row) (Segment, error) {
	if m.SegmentField == "" {
		return "all", nil
	}
	v, err := row.Get(m.SegmentField)
	if err != nil {
		return "", err
	}
	return Segment("seg-" + v), nil
}

func (m *MockModel) Generate(ctx context.Context, segment Segment, evidence Evidence, count int) ([][]string, error) {
	m.Calls = append(m.Calls, MockCall{Segment: segment, Evidence: evidence, Count: count})
	if m.Err != nil {
		return nil, m.Err
	}

	n := count + m.RowDelta
	if n < 0 {
		n = 0
	}
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, 0, len(m.FieldNames))
		for _, f := range m.FieldNames {
			if v, ok := evidence.Lookup(f); ok {
				row = append(row, v)
				continue
			}
			row = append(row, fmt.Sprintf("%s-%d", f, i))
		}
		if m.Width > 0 {
			row = row[:m.Width]
		}
		rows[i] = row
	}
	return rows, nil
}

func (m *MockModel) Fields() []string {
	return m.FieldNames
}

// MockAllocator serves counts from a map.
type MockAllocator struct {
	CountsBySerial map[string][]TractCount
	Persons        *table.Table
	Households     *table.Table

	Lookups []string
}

func (a *MockAllocator) Counts(serialNumber string) ([]TractCount, error) {
	a.Lookups = append(a.Lookups, serialNumber)
	counts, ok := a.CountsBySerial[serialNumber]
	if !ok {
		return nil, fmt.Errorf("%s: %w", serialNumber, errUnknownSerial)
	}
	return counts, nil
}

func (a *MockAllocator) AllocatedPersons() *table.Table    { return a.Persons }
func (a *MockAllocator) AllocatedHouseholds() *table.Table { return a.Households }

func mustTable(columns []string, rows ...[]string) *table.Table {
	t, err := table.New(columns, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Package synth turns allocated household/person rows into synthetic
// populations by asking generative models for attribute values per tract.
package synth

import (
	"context"

	"github.com/doppelganger-go/doppelganger/internal/table"
)

// Column names shared with the allocation inputs.
const (
	TractColumn        = "tract"
	SerialNumberColumn = "serialno"
	RepeatIndexColumn  = "repeat_index"
	CountColumn        = "count"

	AgeField       = "age"
	SexField       = "sex"
	NumPeopleField = "num_people"
)

// IdentityColumns prefix every generated table and make each row unique.
var IdentityColumns = []string{TractColumn, SerialNumberColumn, RepeatIndexColumn}

// Person and household evidence fields passed to the models.
var (
	PersonEvidenceFields    = []string{AgeField, SexField}
	HouseholdEvidenceFields = []string{NumPeopleField}
)

// Segment is a model-defined class of a row. Only the model interprets it.
type Segment string

// EvidenceItem is one observed (field, value) pair.
type EvidenceItem struct {
	Field string
	Value string
}

// Evidence is the ordered evidence handed to a model.
type Evidence []EvidenceItem

// Lookup returns the value recorded for field, if any.
func (e Evidence) Lookup(field string) (string, bool) {
	for _, item := range e {
		if item.Field == field {
			return item.Value, true
		}
	}
	return "", false
}

// Segmenter classifies an allocated row.
type Segmenter interface {
	Segment(row table.Row) (Segment, error)
}

// Model draws synthetic attribute rows.
type Model interface {
	Segmenter

	// Generate returns exactly count rows, each holding one value per Fields() entry.
	Generate(ctx context.Context, segment Segment, evidence Evidence, count int) ([][]string, error)

	// Fields lists the output columns, in row order.
	Fields() []string
}

// TractCount is how many repeats of a household to place in a tract.
type TractCount struct {
	Tract string
	Count int
}

// Counter looks up tract allocations for a serial number.
type Counter interface {
	Counts(serialNumber string) ([]TractCount, error)
}

// Allocator is a Counter that also exposes the allocated rows it was built from.
type Allocator interface {
	Counter
	AllocatedPersons() *table.Table
	AllocatedHouseholds() *table.Table
}

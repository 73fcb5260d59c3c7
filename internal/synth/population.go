package synth

import (
	"context"
	"fmt"
	"os"

	"github.com/doppelganger-go/doppelganger/internal/table"
)

// Table names used in logs and metrics.
const (
	PeopleTable     = "people"
	HouseholdsTable = "households"
)

// Population pairs generated people with generated households.
type Population struct {
	people     *table.Table
	households *table.Table
}

// NewPopulation wraps two already-built tables.
func NewPopulation(people, households *table.Table) *Population {
	return &Population{people: people, households: households}
}

// LoadPopulation reads a previously stored population.
func LoadPopulation(peoplePath, householdsPath string) (*Population, error) {
	people, err := table.LoadCSV(peoplePath)
	if err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}
	households, err := table.LoadCSV(householdsPath)
	if err != nil {
		return nil, fmt.Errorf("load households: %w", err)
	}
	return NewPopulation(people, households), nil
}

// Generate creates every person and household the allocator places.
func Generate(ctx context.Context, alloc Allocator, personModel, householdModel Model) (*Population, error) {
	return NewMerger().Generate(ctx, alloc, personModel, householdModel)
}

// Generate runs the merge for persons, then households.
func (m *Merger) Generate(ctx context.Context, alloc Allocator, personModel, householdModel Model) (*Population, error) {
	people, err := m.GenerateFromModel(ctx, PeopleTable, alloc, alloc.AllocatedPersons(), personModel, PersonEvidenceFields)
	if err != nil {
		return nil, fmt.Errorf("generate people: %w", err)
	}
	m.logger.Info("generated people", "rows", people.Len())

	households, err := m.GenerateFromModel(ctx, HouseholdsTable, alloc, alloc.AllocatedHouseholds(), householdModel, HouseholdEvidenceFields)
	if err != nil {
		return nil, fmt.Errorf("generate households: %w", err)
	}
	m.logger.Info("generated households", "rows", households.Len())

	return NewPopulation(people, households), nil
}

// People returns the generated people table.
func (p *Population) People() *table.Table {
	return p.people
}

// Households returns the generated households table.
func (p *Population) Households() *table.Table {
	return p.households
}

// Store writes both tables as CSV, in their current row order. Both are
// staged next to their targets and renamed only once both writes succeeded,
// so a failure never leaves one new file without the other.
func (p *Population) Store(peoplePath, householdsPath string) error {
	peopleTmp, err := stageCSV(p.people, peoplePath)
	if err != nil {
		return fmt.Errorf("store people: %w", err)
	}
	householdsTmp, err := stageCSV(p.households, householdsPath)
	if err != nil {
		_ = os.Remove(peopleTmp)
		return fmt.Errorf("store households: %w", err)
	}

	if err := os.Rename(peopleTmp, peoplePath); err != nil {
		_ = os.Remove(peopleTmp)
		_ = os.Remove(householdsTmp)
		return fmt.Errorf("store people: %w", err)
	}
	if err := os.Rename(householdsTmp, householdsPath); err != nil {
		_ = os.Remove(householdsTmp)
		_ = os.Remove(peoplePath)
		return fmt.Errorf("store households: %w", err)
	}
	return nil
}

// stageCSV writes t to path+".tmp" and returns the temporary path.
func stageCSV(t *table.Table, path string) (string, error) {
	tmp := path + ".tmp"
	if err := t.StoreCSV(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// TableSummary counts rows and distinct identity values in one table.
// Tracts and SerialNumbers stay zero when the column is absent.
type TableSummary struct {
	Rows          int `json:"rows" yaml:"rows"`
	Tracts        int `json:"tracts" yaml:"tracts"`
	SerialNumbers int `json:"serial_numbers" yaml:"serial_numbers"`
}

// Summary describes both tables of a population.
type Summary struct {
	People     TableSummary `json:"people" yaml:"people"`
	Households TableSummary `json:"households" yaml:"households"`
}

// Summary counts the population.
func (p *Population) Summary() Summary {
	return Summary{
		People:     summarize(p.people),
		Households: summarize(p.households),
	}
}

func summarize(t *table.Table) TableSummary {
	return TableSummary{
		Rows:          t.Len(),
		Tracts:        distinct(t, TractColumn),
		SerialNumbers: distinct(t, SerialNumberColumn),
	}
}

func distinct(t *table.Table, column string) int {
	values, err := t.Column(column)
	if err != nil {
		return 0
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}

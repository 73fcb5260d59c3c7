// Package allocation serves pre-computed household tract allocations.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/doppelganger-go/doppelganger/internal/table"
)

// ErrUnknownSerial is returned by Counts for a serial number with no allocation rows.
var ErrUnknownSerial = errors.New("unknown serial number")

// HouseholdAllocator answers tract-count lookups from an allocated households
// table with one row per (serialno, tract) pair and a count column.
type HouseholdAllocator struct {
	households *table.Table
	persons    *table.Table
	counts     map[string][]synth.TractCount
}

// LoadHouseholdAllocator reads the allocated households and persons CSVs.
func LoadHouseholdAllocator(householdsPath, personsPath string) (*HouseholdAllocator, error) {
	households, err := table.LoadCSV(householdsPath)
	if err != nil {
		return nil, fmt.Errorf("load allocated households: %w", err)
	}
	persons, err := table.LoadCSV(personsPath)
	if err != nil {
		return nil, fmt.Errorf("load allocated persons: %w", err)
	}
	return NewHouseholdAllocator(households, persons)
}

// NewHouseholdAllocator indexes households by serial number. Tract order per
// serial number follows the households table.
func NewHouseholdAllocator(households, persons *table.Table) (*HouseholdAllocator, error) {
	for _, col := range []string{synth.SerialNumberColumn, synth.TractColumn, synth.CountColumn} {
		if !households.HasColumn(col) {
			return nil, fmt.Errorf("allocated households: column %q: %w", col, table.ErrFieldNotFound)
		}
	}
	if !persons.HasColumn(synth.SerialNumberColumn) {
		return nil, fmt.Errorf("allocated persons: column %q: %w", synth.SerialNumberColumn, table.ErrFieldNotFound)
	}

	counts := make(map[string][]synth.TractCount)
	seen := make(map[[2]string]bool)
	for i := 0; i < households.Len(); i++ {
		row := households.Row(i)
		serial, _ := row.Get(synth.SerialNumberColumn)
		tract, _ := row.Get(synth.TractColumn)
		raw, _ := row.Get(synth.CountColumn)

		n, err := parseCount(raw)
		if err != nil {
			return nil, fmt.Errorf("allocated households row %d: %w", i, err)
		}

		pair := [2]string{serial, tract}
		if seen[pair] {
			return nil, fmt.Errorf("allocated households row %d: serialno %s allocated to tract %s twice", i, serial, tract)
		}
		seen[pair] = true

		counts[serial] = append(counts[serial], synth.TractCount{Tract: tract, Count: n})
	}

	return &HouseholdAllocator{
		households: households,
		persons:    persons,
		counts:     counts,
	}, nil
}

// parseCount accepts integers and integral floats ("3", "3.0") in
// [0, synth.MaxCount].
func parseCount(raw string) (int, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("count %q is not an integer", raw)
	}
	if f < 0 {
		return 0, fmt.Errorf("count %s: %w", raw, synth.ErrNegativeCount)
	}
	if f > synth.MaxCount {
		return 0, fmt.Errorf("count %s: %w", raw, synth.ErrCountTooLarge)
	}
	return int(f), nil
}

// Counts returns the ordered tract allocations of serialNumber.
func (a *HouseholdAllocator) Counts(serialNumber string) ([]synth.TractCount, error) {
	counts, ok := a.counts[serialNumber]
	if !ok {
		return nil, fmt.Errorf("serialno %s: %w", serialNumber, ErrUnknownSerial)
	}
	return slices.Clone(counts), nil
}

// AllocatedPersons returns the allocated person rows.
func (a *HouseholdAllocator) AllocatedPersons() *table.Table {
	return a.persons
}

// AllocatedHouseholds returns the allocated household rows.
func (a *HouseholdAllocator) AllocatedHouseholds() *table.Table {
	return a.households
}

// Households returns the number of distinct serial numbers allocated.
func (a *HouseholdAllocator) Households() int {
	return len(a.counts)
}

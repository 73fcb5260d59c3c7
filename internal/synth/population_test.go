package synth

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAllocator() *MockAllocator {
	return &MockAllocator{
		CountsBySerial: map[string][]TractCount{
			"S1": {{Tract: "T1", Count: 2}, {Tract: "T2", Count: 1}},
			"S2": {{Tract: "T2", Count: 1}},
		},
		Persons: mustTable([]string{"serialno", "age", "sex"},
			[]string{"S1", "30", "F"},
			[]string{"S1", "33", "M"},
			[]string{"S2", "70", "F"},
		),
		Households: mustTable([]string{"serialno", "num_people", "tract", "count"},
			[]string{"S1", "2", "T1", "2"},
			[]string{"S1", "2", "T2", "1"},
			[]string{"S2", "1", "T2", "1"},
		),
	}
}

func TestGenerate_PeopleAndHouseholds(t *testing.T) {
	alloc := testAllocator()
	personModel := &MockModel{FieldNames: []string{"age", "sex", "income"}}
	householdModel := &MockModel{FieldNames: []string{"num_people", "num_vehicles"}}

	pop, err := Generate(context.Background(), alloc, personModel, householdModel)
	require.NoError(t, err)

	assert.Equal(t, []string{"tract", "serialno", "repeat_index", "age", "sex", "income"}, pop.People().Columns())
	assert.Equal(t, []string{"tract", "serialno", "repeat_index", "num_people", "num_vehicles"}, pop.Households().Columns())
	assert.Equal(t, 4, pop.People().Len())
	assert.Equal(t, 4, pop.Households().Len())

	require.NotEmpty(t, personModel.Calls)
	assert.Equal(t, "age", personModel.Calls[0].Evidence[0].Field)
	assert.Equal(t, "sex", personModel.Calls[0].Evidence[1].Field)
	require.NotEmpty(t, householdModel.Calls)
	assert.Equal(t, Evidence{{Field: "num_people", Value: "2"}}, householdModel.Calls[0].Evidence)
}

func TestGenerate_Idempotent(t *testing.T) {
	run := func() ([]byte, []byte) {
		pop, err := Generate(context.Background(), testAllocator(),
			&MockModel{FieldNames: []string{"age", "sex"}},
			&MockModel{FieldNames: []string{"num_people"}})
		require.NoError(t, err)

		var people, households bytes.Buffer
		require.NoError(t, pop.People().WriteCSV(&people))
		require.NoError(t, pop.Households().WriteCSV(&households))
		return people.Bytes(), households.Bytes()
	}

	p1, h1 := run()
	p2, h2 := run()
	assert.Equal(t, p1, p2)
	assert.Equal(t, h1, h2)
}

func TestGenerate_PersonFailureStopsRun(t *testing.T) {
	alloc := testAllocator()
	delete(alloc.CountsBySerial, "S2")
	householdModel := &MockModel{FieldNames: []string{"num_people"}}

	_, err := Generate(context.Background(), alloc, &MockModel{FieldNames: []string{"age"}}, householdModel)
	assert.ErrorIs(t, err, errUnknownSerial)
	assert.Empty(t, householdModel.Calls)
}

func TestPopulation_StoreLoadRoundTrip(t *testing.T) {
	pop, err := Generate(context.Background(), testAllocator(),
		&MockModel{FieldNames: []string{"age", "sex"}},
		&MockModel{FieldNames: []string{"num_people"}})
	require.NoError(t, err)

	dir := t.TempDir()
	peoplePath := filepath.Join(dir, "people.csv")
	householdsPath := filepath.Join(dir, "households.csv")
	require.NoError(t, pop.Store(peoplePath, householdsPath))

	loaded, err := LoadPopulation(peoplePath, householdsPath)
	require.NoError(t, err)
	assert.True(t, pop.People().Equal(loaded.People()))
	assert.True(t, pop.Households().Equal(loaded.Households()))
}

func TestPopulation_StoreFailureLeavesNoPeopleFile(t *testing.T) {
	pop, err := Generate(context.Background(), testAllocator(),
		&MockModel{FieldNames: []string{"age", "sex"}},
		&MockModel{FieldNames: []string{"num_people"}})
	require.NoError(t, err)

	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	peoplePath := filepath.Join(dir, "people.csv")
	err = pop.Store(peoplePath, filepath.Join(blocker, "households.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store households")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "not-a-dir", entries[0].Name())
}

func TestPopulation_StoreReplacesExistingFiles(t *testing.T) {
	pop, err := Generate(context.Background(), testAllocator(),
		&MockModel{FieldNames: []string{"age", "sex"}},
		&MockModel{FieldNames: []string{"num_people"}})
	require.NoError(t, err)

	dir := t.TempDir()
	peoplePath := filepath.Join(dir, "people.csv")
	householdsPath := filepath.Join(dir, "households.csv")
	require.NoError(t, os.WriteFile(peoplePath, []byte("stale\n"), 0644))
	require.NoError(t, pop.Store(peoplePath, householdsPath))

	loaded, err := LoadPopulation(peoplePath, householdsPath)
	require.NoError(t, err)
	assert.True(t, pop.People().Equal(loaded.People()))

	_, err = os.Stat(peoplePath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadPopulation_MissingFile(t *testing.T) {
	dir := t.TempDir()
	peoplePath := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(peoplePath, []byte("tract,serialno\n"), 0644))

	_, err := LoadPopulation(peoplePath, filepath.Join(dir, "households.csv"))
	assert.Error(t, err)
}

func TestPopulation_Summary(t *testing.T) {
	pop, err := Generate(context.Background(), testAllocator(),
		&MockModel{FieldNames: []string{"age"}},
		&MockModel{FieldNames: []string{"num_people"}})
	require.NoError(t, err)

	s := pop.Summary()
	assert.Equal(t, TableSummary{Rows: 4, Tracts: 2, SerialNumbers: 2}, s.People)
	assert.Equal(t, TableSummary{Rows: 4, Tracts: 2, SerialNumbers: 2}, s.Households)
}

func TestPopulation_SummaryWithoutIdentityColumns(t *testing.T) {
	pop := NewPopulation(
		mustTable([]string{"a"}, []string{"1"}),
		mustTable([]string{"b"}),
	)
	s := pop.Summary()
	assert.Equal(t, TableSummary{Rows: 1}, s.People)
	assert.Equal(t, TableSummary{}, s.Households)
}

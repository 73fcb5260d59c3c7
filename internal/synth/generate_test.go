package synth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/doppelganger-go/doppelganger/internal/metrics"
	"github.com/doppelganger-go/doppelganger/internal/table"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personRows() *table.Table {
	return mustTable([]string{"serialno", "age", "sex"},
		[]string{"S1", "30", "F"},
		[]string{"S1", "31", "F"},
		[]string{"S2", "62", "M"},
	)
}

func TestGenerateFromModel_SingleHouseholdTwoTracts(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 2}, {Tract: "T2", Count: 1}},
	}}
	data := mustTable([]string{"serialno", "age", "sex"}, []string{"S1", "30", "F"})
	model := &MockModel{FieldNames: []string{"age", "sex", "income"}}

	out, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	require.NoError(t, err)

	assert.Equal(t, []string{"tract", "serialno", "repeat_index", "age", "sex", "income"}, out.Columns())
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"T1", "S1", "0", "30", "F", "income-0"}, out.Row(0).Values())
	assert.Equal(t, []string{"T1", "S1", "1", "30", "F", "income-1"}, out.Row(1).Values())
	assert.Equal(t, []string{"T2", "S1", "0", "30", "F", "income-0"}, out.Row(2).Values())
}

func TestGenerateFromModel_UsesFirstOccurrenceEvidence(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 1}},
		"S2": {{Tract: "T1", Count: 1}},
	}}
	model := &MockModel{FieldNames: []string{"age", "sex"}, SegmentField: "age"}

	_, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	require.NoError(t, err)

	require.Len(t, model.Calls, 2)
	age, _ := model.Calls[0].Evidence.Lookup("age")
	assert.Equal(t, "30", age)
	assert.Equal(t, Segment("seg-30"), model.Calls[0].Segment)
	assert.Equal(t, []string{"S1", "S2"}, alloc.Lookups)
}

func TestGenerateFromModel_RowCountMatchesAllocations(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 3}, {Tract: "T2", Count: 0}, {Tract: "T3", Count: 2}},
		"S2": {{Tract: "T1", Count: 4}},
	}}
	model := &MockModel{FieldNames: []string{"age", "sex"}}

	out, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	require.NoError(t, err)

	expected := 0
	for _, counts := range alloc.CountsBySerial {
		for _, tc := range counts {
			expected += tc.Count
		}
	}
	assert.Equal(t, expected, out.Len())

	perPair := map[string]int{}
	for i := 0; i < out.Len(); i++ {
		row := out.Row(i)
		tract, _ := row.Get(TractColumn)
		serial, _ := row.Get(SerialNumberColumn)
		perPair[serial+"/"+tract]++
	}
	assert.Equal(t, map[string]int{"S1/T1": 3, "S1/T3": 2, "S2/T1": 4}, perPair)
}

func TestGenerateFromModel_IdentityIsUnique(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 5}, {Tract: "T2", Count: 2}},
		"S2": {{Tract: "T1", Count: 3}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	out, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < out.Len(); i++ {
		v := out.Row(i).Values()
		key := fmt.Sprintf("%s|%s|%s", v[0], v[1], v[2])
		assert.False(t, seen[key], "duplicate identity %s", key)
		seen[key] = true
	}
}

func TestGenerateFromModel_EmptyCounts(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {},
		"S2": {{Tract: "T9", Count: 1}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	out, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	require.NoError(t, err)

	require.Equal(t, 1, out.Len())
	serial, _ := out.Row(0).Get(SerialNumberColumn)
	assert.Equal(t, "S2", serial)
}

func TestGenerateFromModel_ZeroCountSkipsModel(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 0}},
		"S2": {{Tract: "T1", Count: 0}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	out, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Empty(t, model.Calls)
}

func TestGenerateFromModel_NegativeCount(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: -1}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	_, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	assert.ErrorIs(t, err, ErrNegativeCount)
}

func TestGenerateFromModel_CountTooLarge(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: MaxCount + 1}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	_, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	assert.ErrorIs(t, err, ErrCountTooLarge)
	assert.Empty(t, model.Calls)
}

func TestGenerateFromModel_UnknownSerialAborts(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 1}},
	}}
	model := &MockModel{FieldNames: []string{"age"}}

	out, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	assert.ErrorIs(t, err, errUnknownSerial)
	assert.Nil(t, out)
}

func TestGenerateFromModel_TooFewRows(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 2}},
	}}
	data := mustTable([]string{"serialno", "age", "sex"}, []string{"S1", "30", "F"})
	model := &MockModel{FieldNames: []string{"age"}, RowDelta: -1}

	_, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestGenerateFromModel_TooManyRows(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 2}},
	}}
	data := mustTable([]string{"serialno", "age", "sex"}, []string{"S1", "30", "F"})
	model := &MockModel{FieldNames: []string{"age"}, RowDelta: 1}

	_, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestGenerateFromModel_ArityMismatch(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 1}},
	}}
	data := mustTable([]string{"serialno", "age", "sex"}, []string{"S1", "30", "F"})
	model := &MockModel{FieldNames: []string{"age", "sex"}, Width: 1}

	_, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	assert.ErrorIs(t, err, table.ErrArity)
}

func TestGenerateFromModel_ModelError(t *testing.T) {
	modelErr := errors.New("sampler exploded")
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 1}},
	}}
	data := mustTable([]string{"serialno", "age", "sex"}, []string{"S1", "30", "F"})
	model := &MockModel{FieldNames: []string{"age"}, Err: modelErr}

	_, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	assert.ErrorIs(t, err, modelErr)
}

func TestGenerateFromModel_MissingEvidenceField(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{"S1": {{Tract: "T1", Count: 1}}}}
	data := mustTable([]string{"serialno", "age"}, []string{"S1", "30"})
	model := &MockModel{FieldNames: []string{"age"}}

	_, err := GenerateFromModel(context.Background(), alloc, data, model, PersonEvidenceFields)
	assert.ErrorIs(t, err, table.ErrFieldNotFound)
}

func TestGenerateFromModel_FieldCollidesWithIdentity(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{}}
	model := &MockModel{FieldNames: []string{"tract"}}

	_, err := GenerateFromModel(context.Background(), alloc, personRows(), model, PersonEvidenceFields)
	assert.Error(t, err)
}

func TestGenerateFromModel_CanceledContext(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{"S1": {{Tract: "T1", Count: 1}}}}
	model := &MockModel{FieldNames: []string{"age"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateFromModel(ctx, alloc, personRows(), model, PersonEvidenceFields)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, model.Calls)
}

func TestGenerateFromModel_DoesNotMutateInput(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 1}},
		"S2": {{Tract: "T2", Count: 1}},
	}}
	data := personRows()
	before := mustTable(data.Columns(), data.Row(0).Values(), data.Row(1).Values(), data.Row(2).Values())

	_, err := GenerateFromModel(context.Background(), alloc, data, &MockModel{FieldNames: []string{"age"}}, PersonEvidenceFields)
	require.NoError(t, err)
	assert.True(t, before.Equal(data))
}

func TestMerger_MetricsAndProgress(t *testing.T) {
	alloc := &MockAllocator{CountsBySerial: map[string][]TractCount{
		"S1": {{Tract: "T1", Count: 2}},
		"S2": {{Tract: "T1", Count: 1}, {Tract: "T2", Count: 1}},
	}}
	m := metrics.New("test")
	var progressCalls, lastRows int

	merger := NewMerger(
		WithMetrics(m),
		WithProgress(func(tableName string, serials, rows int) {
			assert.Equal(t, PeopleTable, tableName)
			progressCalls++
			lastRows = rows
		}),
	)

	out, err := merger.GenerateFromModel(context.Background(), PeopleTable, alloc, personRows(), &MockModel{FieldNames: []string{"age"}}, PersonEvidenceFields)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Len())
	assert.Equal(t, 2, progressCalls)
	assert.Equal(t, 4, lastRows)

	count, err := testutil.GatherAndCount(m.Registry(), "doppelganger_model_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

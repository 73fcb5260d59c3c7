package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/doppelganger-go/doppelganger/internal/metrics"
	"github.com/doppelganger-go/doppelganger/internal/table"
)

var (
	// ErrCountMismatch is returned when a model yields a different number of
	// rows than requested. Repeat indexes would be wrong, so the run stops.
	ErrCountMismatch = errors.New("model returned wrong number of rows")

	// ErrNegativeCount is returned for a tract allocation below zero.
	ErrNegativeCount = errors.New("negative tract count")

	// ErrCountTooLarge is returned for a tract allocation above MaxCount.
	ErrCountTooLarge = errors.New("tract count too large")
)

// MaxCount bounds the rows requested from a model for one tract.
const MaxCount = math.MaxInt32

// CheckCount rejects counts outside [0, MaxCount].
func CheckCount(count int) error {
	switch {
	case count < 0:
		return fmt.Errorf("count %d: %w", count, ErrNegativeCount)
	case count > MaxCount:
		return fmt.Errorf("count %d: %w", count, ErrCountTooLarge)
	}
	return nil
}

// ProgressFunc is called after each serial number has been fully generated.
type ProgressFunc func(tableName string, serials int, rows int)

// Merger runs the generation merge: evidence extraction, tract lookup and
// model draws, assembled into a table keyed by (tract, serialno, repeat_index).
type Merger struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for per-household debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

// WithMetrics records counters into m.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Merger) { m.metrics = mt }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Merger) { m.progress = fn }
}

// NewMerger creates a Merger.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateFromModel generates model.Fields() for every distinct serial number
// in data, once per tract the counter allocates it to.
func GenerateFromModel(ctx context.Context, counter Counter, data *table.Table, model Model, fields []string) (*table.Table, error) {
	return NewMerger().GenerateFromModel(ctx, "", counter, data, model, fields)
}

// GenerateFromModel is the Merger form of the package-level function.
// tableName only labels logs and metrics.
func (m *Merger) GenerateFromModel(ctx context.Context, tableName string, counter Counter, data *table.Table, model Model, fields []string) (*table.Table, error) {
	schema, err := table.NewSchema(IdentityColumns, model.Fields())
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	builder := table.NewBuilder(schema)

	extractor := NewEvidenceExtractor(data, fields, model)
	serials := 0
	for extractor.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		triple := extractor.Triple()
		m.metrics.ObserveTriple(tableName)

		counts, err := counter.Counts(triple.SerialNumber)
		if err != nil {
			return nil, fmt.Errorf("counts for serialno %s: %w", triple.SerialNumber, err)
		}

		for _, tc := range counts {
			if err := m.generateTract(ctx, tableName, builder, model, triple, tc); err != nil {
				return nil, err
			}
		}

		serials++
		m.logger.Debug("generated household",
			"table", tableName,
			"serialno", triple.SerialNumber,
			"segment", string(triple.Segment),
			"tracts", len(counts))
		if m.progress != nil {
			m.progress(tableName, serials, builder.Len())
		}
	}
	if err := extractor.Err(); err != nil {
		return nil, fmt.Errorf("extract evidence: %w", err)
	}
	m.metrics.ObserveDuplicates(tableName, extractor.Skipped())

	return builder.Table(), nil
}

// generateTract draws tc.Count rows for one (serialno, tract) pair.
func (m *Merger) generateTract(ctx context.Context, tableName string, builder *table.Builder, model Model, triple Triple, tc TractCount) error {
	if err := CheckCount(tc.Count); err != nil {
		return fmt.Errorf("serialno %s tract %s: %w", triple.SerialNumber, tc.Tract, err)
	}
	if tc.Count == 0 {
		return nil
	}

	start := time.Now()
	rows, err := model.Generate(ctx, triple.Segment, triple.Evidence, tc.Count)
	if err != nil {
		return fmt.Errorf("generate serialno %s tract %s: %w", triple.SerialNumber, tc.Tract, err)
	}
	m.metrics.ObserveModelCall(tableName, time.Since(start).Seconds(), len(rows))

	if len(rows) != tc.Count {
		return fmt.Errorf("serialno %s tract %s: requested %d, got %d: %w",
			triple.SerialNumber, tc.Tract, tc.Count, len(rows), ErrCountMismatch)
	}

	for repeat, row := range rows {
		record := make([]string, 0, len(IdentityColumns)+len(row))
		record = append(record, tc.Tract, triple.SerialNumber, strconv.Itoa(repeat))
		record = append(record, row...)
		if err := builder.Append(record); err != nil {
			return fmt.Errorf("serialno %s tract %s repeat %d: %w", triple.SerialNumber, tc.Tract, repeat, err)
		}
	}
	return nil
}

package synth

import (
	"fmt"

	"github.com/doppelganger-go/doppelganger/internal/table"
)

// Triple is the evidence for one distinct serial number.
type Triple struct {
	SerialNumber string
	Evidence     Evidence
	Segment      Segment
}

// EvidenceExtractor walks allocated rows once, yielding one Triple per distinct
// serial number in first-seen order. Later rows for a serial number already
// yielded are skipped.
//
// It is a forward-only cursor in the style of bufio.Scanner:
//
//	for ext.Next() {
//		t := ext.Triple()
//	}
//	if err := ext.Err(); err != nil { ... }
type EvidenceExtractor struct {
	rows      *table.Table
	fields    []string
	segmenter Segmenter

	pos     int
	seen    map[string]struct{}
	skipped int
	current Triple
	err     error
	done    bool
}

// NewEvidenceExtractor creates an extractor over rows capturing fields as evidence.
func NewEvidenceExtractor(rows *table.Table, fields []string, segmenter Segmenter) *EvidenceExtractor {
	return &EvidenceExtractor{
		rows:      rows,
		fields:    fields,
		segmenter: segmenter,
		seen:      make(map[string]struct{}),
	}
}

// Next advances to the next unseen serial number. It returns false when the
// rows are exhausted or a row could not be read; check Err afterwards.
func (e *EvidenceExtractor) Next() bool {
	if e.done {
		return false
	}

	for e.pos < e.rows.Len() {
		i := e.pos
		row := e.rows.Row(i)
		e.pos++

		serial, err := row.Get(SerialNumberColumn)
		if err != nil {
			return e.fail(fmt.Errorf("row %d: %w", i, err))
		}
		if _, ok := e.seen[serial]; ok {
			e.skipped++
			continue
		}

		evidence := make(Evidence, 0, len(e.fields))
		for _, field := range e.fields {
			value, err := row.Get(field)
			if err != nil {
				return e.fail(fmt.Errorf("row %d (serialno %s): %w", i, serial, err))
			}
			evidence = append(evidence, EvidenceItem{Field: field, Value: value})
		}

		segment, err := e.segmenter.Segment(row)
		if err != nil {
			return e.fail(fmt.Errorf("segment row %d (serialno %s): %w", i, serial, err))
		}

		e.seen[serial] = struct{}{}
		e.current = Triple{SerialNumber: serial, Evidence: evidence, Segment: segment}
		return true
	}

	e.done = true
	e.current = Triple{}
	return false
}

func (e *EvidenceExtractor) fail(err error) bool {
	e.err = err
	e.done = true
	e.current = Triple{}
	return false
}

// Triple returns the triple produced by the last successful Next.
func (e *EvidenceExtractor) Triple() Triple {
	return e.current
}

// Err returns the error that stopped iteration, if any.
func (e *EvidenceExtractor) Err() error {
	return e.err
}

// Skipped is the number of rows dropped as duplicates so far.
func (e *EvidenceExtractor) Skipped() int {
	return e.skipped
}

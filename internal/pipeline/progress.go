package pipeline

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Progress logs generation progress at most once per interval. A zero
// interval logs every report.
type Progress struct {
	logger    *slog.Logger
	sometimes *rate.Sometimes
}

// NewProgress creates a progress reporter. The first report always logs.
func NewProgress(logger *slog.Logger, interval time.Duration) *Progress {
	p := &Progress{logger: logger}
	if interval > 0 {
		p.sometimes = &rate.Sometimes{Interval: interval}
	}
	return p
}

// Report matches synth.ProgressFunc.
func (p *Progress) Report(tableName string, serials int, rows int) {
	if p.sometimes == nil {
		p.log(tableName, serials, rows)
		return
	}
	p.sometimes.Do(func() { p.log(tableName, serials, rows) })
}

func (p *Progress) log(tableName string, serials int, rows int) {
	p.logger.Info("generation progress",
		"table", tableName,
		"serials", serials,
		"rows", rows)
}

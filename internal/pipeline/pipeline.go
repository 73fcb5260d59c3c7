// Package pipeline wires allocation, models and the generation merge into a
// single run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doppelganger-go/doppelganger/internal/allocation"
	"github.com/doppelganger-go/doppelganger/internal/cache"
	"github.com/doppelganger-go/doppelganger/internal/config"
	"github.com/doppelganger-go/doppelganger/internal/generator"
	"github.com/doppelganger-go/doppelganger/internal/llm"
	"github.com/doppelganger-go/doppelganger/internal/metrics"
	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/google/uuid"
)

// Request names the inputs and outputs of one run.
type Request struct {
	AllocatedHouseholds string
	AllocatedPersons    string

	// PersonModel and HouseholdModel are TOML paths or "llm:<name>"
	PersonModel    string
	HouseholdModel string

	OutPeople     string
	OutHouseholds string

	// MetricsFile overrides cfg.Output.MetricsFile when set
	MetricsFile string
}

// Result describes a completed run.
type Result struct {
	RunID       string
	Summary     synth.Summary
	Duration    time.Duration
	CacheHits   int
	CacheMisses int
	MetricsFile string
}

// Pipeline orchestrates the complete generation process
type Pipeline struct {
	config *config.Config
	logger *slog.Logger
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{config: cfg, logger: logger}
}

// Run generates a population and stores it. Nothing is written unless both
// tables were generated.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	// 1. Load allocation
	base, err := allocation.LoadHouseholdAllocator(req.AllocatedHouseholds, req.AllocatedPersons)
	if err != nil {
		return nil, fmt.Errorf("load allocation: %w", err)
	}
	logger.Info("loaded allocation",
		"serials", base.Households(),
		"households", base.AllocatedHouseholds().Len(),
		"persons", base.AllocatedPersons().Len())

	var alloc synth.Allocator = base
	var cached *allocation.CachedAllocator
	if p.config.Cache.Enabled {
		cached = allocation.NewCachedAllocator(base, p.newCountsCache())
		alloc = cached
	}

	// 2. Load models
	personModel, err := p.LoadModel(req.PersonModel)
	if err != nil {
		return nil, fmt.Errorf("load person model: %w", err)
	}
	householdModel, err := p.LoadModel(req.HouseholdModel)
	if err != nil {
		return nil, fmt.Errorf("load household model: %w", err)
	}

	// 3. Generate
	mt := metrics.New(runID)
	interval := time.Duration(p.config.Progress.IntervalSeconds) * time.Second
	progress := NewProgress(logger, interval)
	merger := synth.NewMerger(
		synth.WithLogger(logger),
		synth.WithMetrics(mt),
		synth.WithProgress(progress.Report),
	)

	population, err := merger.Generate(ctx, alloc, personModel, householdModel)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	// 4. Store
	if err := population.Store(req.OutPeople, req.OutHouseholds); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	logger.Info("stored population", "people", req.OutPeople, "households", req.OutHouseholds)

	result := &Result{
		RunID:    runID,
		Summary:  population.Summary(),
		Duration: time.Since(start),
	}
	if cached != nil {
		result.CacheHits, result.CacheMisses = cached.Stats()
	}

	// 5. Metrics
	metricsFile := req.MetricsFile
	if metricsFile == "" {
		metricsFile = p.config.Output.MetricsFile
	}
	if metricsFile != "" {
		if err := os.MkdirAll(filepath.Dir(metricsFile), 0755); err != nil {
			return nil, fmt.Errorf("create metrics directory: %w", err)
		}
		if err := mt.WriteTextfile(metricsFile); err != nil {
			return nil, err
		}
		result.MetricsFile = metricsFile
	}

	return result, nil
}

// LoadModel resolves a model reference: "llm:<name>" builds an LLM model from
// the named config entry, anything else is read as a TOML definition.
func (p *Pipeline) LoadModel(ref string) (synth.Model, error) {
	name, ok := strings.CutPrefix(ref, config.LLMModelPrefix)
	if !ok {
		m, err := generator.Load(ref)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("loaded categorical model", "path", ref, "name", m.Name(), "fields", m.Fields())
		return m, nil
	}

	mc, err := p.config.LLMModel(name)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(p.config.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	p.logger.Debug("using llm model", "name", name, "provider", provider.Name(), "fields", mc.Fields)
	return llm.NewModel(provider, mc.Fields, mc.SegmentField)
}

func (p *Pipeline) newCountsCache() cache.Cache[[]synth.TractCount] {
	ttl := cache.NoExpiration
	if p.config.Cache.TTLSeconds > 0 {
		ttl = time.Duration(p.config.Cache.TTLSeconds) * time.Second
	}
	return cache.NewMemoryCache[[]synth.TractCount](ttl, 10*time.Minute)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/doppelganger-go/doppelganger/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	generateReq     pipeline.Request
	generateTimeout time.Duration
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a synthetic population from allocated households and persons",
	Long: `Generate runs the generation merge twice, once for persons and once for
households:
- Extract evidence for each distinct serial number
- Look up how many households each tract was allocated
- Ask the model for that many synthetic records
- Write both tables as CSV, keyed by (tract, serialno, repeat_index)

Nothing is written if either table fails to generate.

Example:
  doppelganger generate \
    --allocated-households households_allocated.csv \
    --allocated-persons persons_allocated.csv \
    --person-model person.toml --household-model household.toml \
    --out-people people.csv --out-households households.csv

  doppelganger generate ... --person-model llm:persons --metrics-file run.prom`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Input flags
	generateCmd.Flags().StringVar(&generateReq.AllocatedHouseholds, "allocated-households", "", "allocated households CSV")
	generateCmd.Flags().StringVar(&generateReq.AllocatedPersons, "allocated-persons", "", "allocated persons CSV")
	generateCmd.Flags().StringVar(&generateReq.PersonModel, "person-model", "", "person model: TOML file or llm:<name>")
	generateCmd.Flags().StringVar(&generateReq.HouseholdModel, "household-model", "", "household model: TOML file or llm:<name>")

	// Output flags
	generateCmd.Flags().StringVar(&generateReq.OutPeople, "out-people", "people.csv", "output people CSV")
	generateCmd.Flags().StringVar(&generateReq.OutHouseholds, "out-households", "households.csv", "output households CSV")
	generateCmd.Flags().StringVar(&generateReq.MetricsFile, "metrics-file", "", "write Prometheus text metrics here after the run")

	generateCmd.Flags().DurationVar(&generateTimeout, "timeout", 0, "overall timeout (0 = none)")

	for _, name := range []string{"allocated-households", "allocated-persons", "person-model", "household-model"} {
		_ = generateCmd.MarkFlagRequired(name)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, generateTimeout)
		defer cancel()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Households:   %s\n", generateReq.AllocatedHouseholds)
		fmt.Fprintf(os.Stderr, "Persons:      %s\n", generateReq.AllocatedPersons)
		fmt.Fprintf(os.Stderr, "Models:       %s / %s\n", generateReq.PersonModel, generateReq.HouseholdModel)
		fmt.Fprintf(os.Stderr, "Cache:        %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.NewPipeline(cfg, slog.Default())
	result, err := p.Run(ctx, generateReq)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Generation Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Run:         %s\n", result.RunID)
	fmt.Fprintf(os.Stderr, "  People:      %d rows -> %s\n", result.Summary.People.Rows, generateReq.OutPeople)
	fmt.Fprintf(os.Stderr, "  Households:  %d rows -> %s\n", result.Summary.Households.Rows, generateReq.OutHouseholds)
	fmt.Fprintf(os.Stderr, "  Tracts:      %d\n", result.Summary.Households.Tracts)
	if cfg.Cache.Enabled {
		fmt.Fprintf(os.Stderr, "  Cache:       %d hits, %d misses\n", result.CacheHits, result.CacheMisses)
	}
	if result.MetricsFile != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:     %s\n", result.MetricsFile)
	}
	fmt.Fprintf(os.Stderr, "  Duration:    %v\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

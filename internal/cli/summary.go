package cli

import (
	"fmt"

	"github.com/doppelganger-go/doppelganger/internal/synth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	summaryPeople     string
	summaryHouseholds string
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize a stored population",
	Long: `Load a previously generated population and print row, tract and
serial number counts for both tables.

Example:
  doppelganger summary --people people.csv --households households.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		population, err := synth.LoadPopulation(summaryPeople, summaryHouseholds)
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(population.Summary())
		if err != nil {
			return fmt.Errorf("error marshaling summary: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringVar(&summaryPeople, "people", "people.csv", "stored people CSV")
	summaryCmd.Flags().StringVar(&summaryHouseholds, "households", "households.csv", "stored households CSV")
}

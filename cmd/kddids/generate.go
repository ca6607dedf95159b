package main

import (
	"bufio"
	"os"

	"kdd-ids/internal/dataset"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	genRows          int
	genIntrusionRate float64
	genSeed          int64
	genOutput        string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic KDD-shaped labelled CSV for smoke testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		records := dataset.Generate(dataset.GeneratorConfig{
			Rows:          genRows,
			IntrusionRate: genIntrusionRate,
			NormalLabel:   settings.NormalLabel,
			Seed:          genSeed,
		})

		f, err := os.Create(genOutput)
		if err != nil {
			return err
		}
		defer f.Close()

		w := bufio.NewWriter(f)
		if err := dataset.WriteCSV(w, records); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}

		log.Info().Int("rows", genRows).Str("path", genOutput).Msg("generated sample data")
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&genRows, "rows", 5000, "number of rows")
	generateCmd.Flags().Float64Var(&genIntrusionRate, "intrusion-rate", 0.2, "fraction of intrusion rows")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "random seed")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "sample.csv", "output CSV path")
	rootCmd.AddCommand(generateCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kdd-ids/internal/dataset"
	"kdd-ids/internal/ml"
	"kdd-ids/internal/report"
	"kdd-ids/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	trainData       string
	trainOutput     string
	trainNoActivate bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a new artifact pair from a labelled CSV and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstNonEmpty(trainData, settings.TrainCSV)
		if path == "" {
			return fmt.Errorf("no training data: pass --data or set TRAIN_CSV")
		}

		records, err := dataset.Reader{DifficultyColumn: settings.DifficultyColumn}.ReadFile(path)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mw := cliMetrics()
		pipeline := &ml.TrainPipeline{Settings: settings, Metrics: mw, Observer: mw}
		pair, holdout, err := pipeline.Run(ctx, records)
		if err != nil {
			return err
		}

		store, err := storage.New(settings.DataPath)
		if err != nil {
			return err
		}
		defer store.Close()

		version, err := store.SavePair(pair, !trainNoActivate)
		if err != nil {
			return err
		}
		holdout.ModelVersion = version

		if trainOutput != "" {
			if err := report.NewReporter(holdout, "holdout", trainOutput).WithBatches(pair.Model.Batches).GenerateReport(); err != nil {
				return err
			}
		}

		log.Info().Str("version", version).Bool("active", !trainNoActivate).Msg("training finished")
		return holdout.Format(os.Stdout)
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainData, "data", "", "training CSV (defaults to TRAIN_CSV)")
	trainCmd.Flags().StringVar(&trainOutput, "output", "", "directory for holdout report files")
	trainCmd.Flags().BoolVar(&trainNoActivate, "no-activate", false, "store the new version without activating it")
	rootCmd.AddCommand(trainCmd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package main

import (
	"fmt"
	"os"

	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"
	"kdd-ids/internal/ml"
	"kdd-ids/internal/report"
	"kdd-ids/internal/storage"

	"github.com/spf13/cobra"
)

var (
	evalData      string
	evalReference string
	evalThreshold float64
	evalVersion   string
	evalOutput    string
	evalEncoded   bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a stored artifact pair on a labelled CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstNonEmpty(evalData, settings.TestCSV)
		if path == "" {
			return fmt.Errorf("no test data: pass --data or set TEST_CSV")
		}
		threshold := settings.EvalThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = evalThreshold
		}

		pair, err := loadPair(evalVersion)
		if err != nil {
			return err
		}

		normal := firstNonEmpty(pair.Manifest.NormalLabel, settings.NormalLabel)
		evaluator, err := ml.NewEvaluator(threshold, normal, common.DefaultTopFeatures)
		if err != nil {
			return err
		}
		evaluator.Observer = cliMetrics()

		var result *ml.Report
		if evalEncoded {
			table, err := dataset.ReadEncodedFile(path)
			if err != nil {
				return err
			}
			if result, err = evaluator.EvaluateReindexed(pair, table); err != nil {
				return err
			}
			return writeEvaluation(result)
		}

		reader := dataset.Reader{DifficultyColumn: settings.DifficultyColumn}
		records, err := reader.ReadFile(path)
		if err != nil {
			return err
		}

		if evalReference != "" {
			reference, err := reader.ReadFile(evalReference)
			if err != nil {
				return err
			}
			result, err = evaluator.EvaluateWithReference(pair, reference, records)
			if err != nil {
				return err
			}
		} else {
			result, err = evaluator.Evaluate(pair, records)
			if err != nil {
				return err
			}
		}

		return writeEvaluation(result)
	},
}

func writeEvaluation(result *ml.Report) error {
	if evalOutput != "" {
		if err := report.NewReporter(result, "evaluation", evalOutput).GenerateReport(); err != nil {
			return err
		}
	}
	return result.Format(os.Stdout)
}

func init() {
	evaluateCmd.Flags().StringVar(&evalData, "data", "", "labelled test CSV (defaults to TEST_CSV)")
	evaluateCmd.Flags().StringVar(&evalReference, "reference", "", "training CSV used to verify the persisted schema")
	evaluateCmd.Flags().Float64Var(&evalThreshold, "threshold", common.DefaultEvalThreshold, "decision threshold on the intrusion probability")
	evaluateCmd.Flags().StringVar(&evalVersion, "version", "", "artifact version (defaults to the active one)")
	evaluateCmd.Flags().StringVar(&evalOutput, "output", "", "directory for report files")
	evaluateCmd.Flags().BoolVar(&evalEncoded, "encoded", false, "data is already one-hot encoded, with a header of encoded column names and label last")
	evaluateCmd.MarkFlagsMutuallyExclusive("encoded", "reference")
	rootCmd.AddCommand(evaluateCmd)
}

// loadPair opens the store just long enough to decode one pair.
func loadPair(version string) (*ml.ArtifactPair, error) {
	store, err := storage.New(settings.DataPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if version == "" {
		return store.LoadActive()
	}
	return store.LoadPair(version)
}

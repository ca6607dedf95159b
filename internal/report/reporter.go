// Package report writes evaluation results to disk: a text summary in
// classification-report layout, a JSON document, and CSV files for the
// confusion matrix, feature ranking and training batches.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"kdd-ids/internal/ml"

	"github.com/rs/zerolog/log"
)

// Reporter generates report files for one evaluation.
type Reporter struct {
	report     *ml.Report
	batches    []ml.BatchRecord
	prefix     string
	outputPath string
}

// NewReporter creates a reporter writing files named <prefix>_*.
func NewReporter(report *ml.Report, prefix, outputPath string) *Reporter {
	return &Reporter{report: report, prefix: prefix, outputPath: outputPath}
}

// WithBatches adds the training batch history to the generated files.
func (r *Reporter) WithBatches(batches []ml.BatchRecord) *Reporter {
	r.batches = batches
	return r
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	if err := r.generateConfusionCSV(); err != nil {
		return err
	}
	if err := r.generateFeatureCSV(); err != nil {
		return err
	}
	if len(r.batches) > 0 {
		if err := r.generateBatchCSV(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) path(name string) string {
	return filepath.Join(r.outputPath, r.prefix+"_"+name)
}

func (r *Reporter) generateSummary() error {
	summaryPath := r.path("summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "CLASSIFICATION REPORT\n")
	fmt.Fprintf(file, "=====================\n\n")
	if r.report.ModelVersion != "" {
		fmt.Fprintf(file, "Model version: %s\n", r.report.ModelVersion)
	}
	fmt.Fprintf(file, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	if err := r.report.Format(file); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	log.Info().Str("file", summaryPath).Msg("summary report generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := r.path("report.json")

	doc := map[string]interface{}{
		"report":       r.report,
		"generated_at": time.Now(),
	}
	if len(r.batches) > 0 {
		doc["batches"] = r.batches
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) generateConfusionCSV() error {
	return r.writeCSV("confusion_matrix.csv", []string{"true_class", "predicted_0", "predicted_1"}, func(write func([]string) error) error {
		for c, row := range r.report.Confusion {
			if err := write([]string{strconv.Itoa(c), strconv.Itoa(row[0]), strconv.Itoa(row[1])}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Reporter) generateFeatureCSV() error {
	return r.writeCSV("feature_importance.csv", []string{"rank", "feature", "importance"}, func(write func([]string) error) error {
		for i, f := range r.report.TopFeatures {
			if err := write([]string{strconv.Itoa(i + 1), f.Name, fmt.Sprintf("%.6f", f.Score)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Reporter) generateBatchCSV() error {
	header := []string{"batch", "rows", "positives", "trees", "log_loss", "trained_at"}
	return r.writeCSV("batches.csv", header, func(write func([]string) error) error {
		for _, b := range r.batches {
			record := []string{
				strconv.Itoa(b.Index),
				strconv.Itoa(b.Rows),
				strconv.Itoa(b.Positives),
				strconv.Itoa(b.Trees),
				fmt.Sprintf("%.6f", b.LogLoss),
				b.TrainedAt.Format(time.RFC3339),
			}
			if err := write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Reporter) writeCSV(name string, header []string, rows func(write func([]string) error) error) error {
	csvPath := r.path(name)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := rows(writer.Write); err != nil {
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("CSV report generated")
	return nil
}

package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kdd-ids/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *ml.Report {
	r := ml.NewReport([]int{0, 0, 1, 1, 1}, []int{0, 1, 1, 1, 0}, 0.3)
	r.ModelVersion = "20240501-120000-abcdef12"
	r.TopFeatures = []ml.FeatureScore{
		{Name: "src_bytes", Score: 0.6},
		{Name: "flag_S0", Score: 0.4},
	}
	return r
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestGenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, NewReporter(sampleReport(), "evaluation", dir).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(dir, "evaluation_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "CLASSIFICATION REPORT")
	assert.Contains(t, string(summary), "20240501-120000-abcdef12")
	assert.Contains(t, string(summary), "weighted avg")

	data, err := os.ReadFile(filepath.Join(dir, "evaluation_report.json"))
	require.NoError(t, err)
	var doc struct {
		Report ml.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, [2][2]int{{1, 1}, {1, 2}}, doc.Report.Confusion)
	assert.Equal(t, 5, doc.Report.Total)

	confusion := readCSV(t, filepath.Join(dir, "evaluation_confusion_matrix.csv"))
	assert.Equal(t, [][]string{
		{"true_class", "predicted_0", "predicted_1"},
		{"0", "1", "1"},
		{"1", "1", "2"},
	}, confusion)

	ranking := readCSV(t, filepath.Join(dir, "evaluation_feature_importance.csv"))
	require.Len(t, ranking, 3)
	assert.Equal(t, []string{"1", "src_bytes", "0.600000"}, ranking[1])

	_, err = os.Stat(filepath.Join(dir, "evaluation_batches.csv"))
	assert.True(t, os.IsNotExist(err), "no batch file without batches")
}

func TestGenerateReport_WithBatches(t *testing.T) {
	dir := t.TempDir()
	batches := []ml.BatchRecord{
		{Index: 0, Rows: 100, Positives: 50, Trees: 10, LogLoss: 0.2, TrainedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Index: 1, Rows: 40, Positives: 20, Trees: 10, LogLoss: 0.1, TrainedAt: time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC)},
	}

	require.NoError(t, NewReporter(sampleReport(), "holdout", dir).WithBatches(batches).GenerateReport())

	rows := readCSV(t, filepath.Join(dir, "holdout_batches.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "40", rows[2][1])
	assert.True(t, strings.HasPrefix(rows[1][5], "2024-05-01T00:00:00"))

	data, err := os.ReadFile(filepath.Join(dir, "holdout_report.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"batches"`)
}

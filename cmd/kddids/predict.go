package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"kdd-ids/internal/client"

	"github.com/spf13/cobra"
)

var (
	predictURL      string
	predictFeatures string
	predictFile     string
	predictStream   bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Send one encoded feature vector to a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		features, err := readFeatures()
		if err != nil {
			return err
		}

		c := client.New(firstNonEmpty(predictURL, settings.APIURL), settings.RequestTimeout)
		if predictStream {
			return predictOverStream(c, features)
		}
		label, err := c.Predict(context.Background(), features)
		if err != nil {
			return err
		}
		fmt.Println(label)
		return nil
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictURL, "url", "", "server base URL (defaults to API_URL)")
	predictCmd.Flags().StringVar(&predictFeatures, "features", "", "comma-separated feature values")
	predictCmd.Flags().StringVar(&predictFile, "file", "", `JSON file with {"features": [...]} or a bare array`)
	predictCmd.Flags().BoolVar(&predictStream, "stream", false, "send over the /stream websocket instead of POST /predict")
	predictCmd.MarkFlagsMutuallyExclusive("features", "file")
	predictCmd.MarkFlagsOneRequired("features", "file")
	rootCmd.AddCommand(predictCmd)
}

func predictOverStream(c *client.Client, features []float64) error {
	stream, err := c.DialStream(context.Background())
	if err != nil {
		return err
	}
	defer stream.Close()

	res, err := stream.Predict(features, "")
	if err != nil {
		return err
	}
	if res.Error != "" {
		return fmt.Errorf("request %s: %s", res.RequestID, res.Error)
	}
	fmt.Println(res.Prediction)
	return nil
}

func readFeatures() ([]float64, error) {
	if predictFile != "" {
		data, err := os.ReadFile(predictFile)
		if err != nil {
			return nil, err
		}
		return parseFeatureJSON(data)
	}
	return parseFeatureList(predictFeatures)
}

// parseFeatureList parses "1,2.5,0". A single trailing comma is accepted;
// any other empty entry is an error so the vector width never shifts.
func parseFeatureList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil, fmt.Errorf("no feature values given")
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("feature %d is empty", i)
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseFeatureJSON(data []byte) ([]float64, error) {
	var body struct {
		Features []float64 `json:"features"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		return body.Features, nil
	}
	var bare []float64
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("parse features: %w", err)
	}
	return bare, nil
}

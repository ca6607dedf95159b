// Package cfg loads runtime settings for training, evaluation and serving.
// Settings come from a YAML file named by CONFIG_FILE, with environment
// variables (optionally seeded from a .env file) taking precedence.
package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"kdd-ids/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath         string
	TrainCSV         string
	TestCSV          string
	NormalLabel      string
	DifficultyColumn bool
	TestSize         float64
	Seed             int64
	BatchSize        int
	Booster          BoosterSettings
	SMOTENeighbors   int
	EvalThreshold    float64
	ServerPort       int
	RequestTimeout   time.Duration
	APIURL           string
	LogLevel         string
}

// BoosterSettings holds the gradient boosting parameters used per batch.
type BoosterSettings struct {
	NEstimators    int     `yaml:"nEstimators" json:"n_estimators"`
	MaxDepth       int     `yaml:"maxDepth" json:"max_depth"`
	LearningRate   float64 `yaml:"learningRate" json:"learning_rate"`
	Lambda         float64 `yaml:"lambda" json:"lambda"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	MinChildWeight float64 `yaml:"minChildWeight" json:"min_child_weight"`
	MaxBin         int     `yaml:"maxBin" json:"max_bin"`
	Workers        int     `yaml:"workers" json:"workers"`
}

type ConfigFile struct {
	Dataset struct {
		TrainCSV         string `yaml:"trainCSV"`
		TestCSV          string `yaml:"testCSV"`
		NormalLabel      string `yaml:"normalLabel"`
		DifficultyColumn bool   `yaml:"difficultyColumn"`
	} `yaml:"dataset"`

	Training struct {
		TestSize       float64         `yaml:"testSize"`
		Seed           int64           `yaml:"seed"`
		BatchSize      int             `yaml:"batchSize"`
		SMOTENeighbors int             `yaml:"smoteNeighbors"`
		Booster        BoosterSettings `yaml:"booster"`
	} `yaml:"training"`

	Evaluation struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"evaluation"`

	Server struct {
		Port           int    `yaml:"port"`
		RequestTimeout string `yaml:"requestTimeout"`
		APIURL         string `yaml:"apiURL"`
	} `yaml:"server"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv seeds the process environment from path. Variables that are
// already set win over the file. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout := common.DefaultRequestTimeout
	if config.Server.RequestTimeout != "" {
		if timeout, err = time.ParseDuration(config.Server.RequestTimeout); err != nil {
			return Settings{}, fmt.Errorf("invalid server.requestTimeout %q: %w", config.Server.RequestTimeout, err)
		}
	}

	b := config.Training.Booster
	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, orString(config.System.DataPath, common.DefaultDataPath)),
		TrainCSV:         getEnvOrDefault(common.EnvTrainCSV, config.Dataset.TrainCSV),
		TestCSV:          getEnvOrDefault(common.EnvTestCSV, config.Dataset.TestCSV),
		NormalLabel:      getEnvOrDefault(common.EnvNormalLabel, orString(config.Dataset.NormalLabel, common.DefaultNormalLabel)),
		DifficultyColumn: getBoolFromEnvOrConfig(common.EnvDifficultyColumn, config.Dataset.DifficultyColumn),
		TestSize:         getFloatFromEnvOrConfig(common.EnvTestSize, config.Training.TestSize, common.DefaultTestSize),
		Seed:             int64(getIntFromEnvOrConfig(common.EnvSeed, int(config.Training.Seed), common.DefaultSeed)),
		BatchSize:        getIntFromEnvOrConfig(common.EnvBatchSize, config.Training.BatchSize, common.DefaultBatchSize),
		Booster: BoosterSettings{
			NEstimators:    getIntFromEnvOrConfig(common.EnvNEstimators, b.NEstimators, common.DefaultNEstimators),
			MaxDepth:       getIntFromEnvOrConfig(common.EnvMaxDepth, b.MaxDepth, common.DefaultMaxDepth),
			LearningRate:   getFloatFromEnvOrConfig(common.EnvLearningRate, b.LearningRate, common.DefaultLearningRate),
			Lambda:         orFloat(b.Lambda, common.DefaultLambda),
			Gamma:          b.Gamma,
			MinChildWeight: orFloat(b.MinChildWeight, common.DefaultMinChildWeight),
			MaxBin:         getIntFromEnvOrConfig(common.EnvMaxBin, b.MaxBin, common.DefaultMaxBin),
			Workers:        getIntFromEnvOrConfig(common.EnvWorkers, b.Workers, common.DefaultWorkers),
		},
		SMOTENeighbors: getIntFromEnvOrConfig(common.EnvSMOTENeighbors, config.Training.SMOTENeighbors, common.DefaultSMOTENeighbors),
		EvalThreshold:  getFloatFromEnvOrConfig(common.EnvEvalThreshold, config.Evaluation.Threshold, common.DefaultEvalThreshold),
		ServerPort:     getIntFromEnvOrConfig(common.EnvServerPort, config.Server.Port, common.DefaultServerPort),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, timeout),
		APIURL:         getEnvOrDefault(common.EnvAPIURL, orString(config.Server.APIURL, common.DefaultAPIURL)),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		TrainCSV:         os.Getenv(common.EnvTrainCSV),
		TestCSV:          os.Getenv(common.EnvTestCSV),
		NormalLabel:      getEnvOrDefault(common.EnvNormalLabel, common.DefaultNormalLabel),
		DifficultyColumn: getBoolOrDefault(common.EnvDifficultyColumn, false),
		TestSize:         getFloatOrDefault(common.EnvTestSize, common.DefaultTestSize),
		Seed:             int64(getIntOrDefault(common.EnvSeed, common.DefaultSeed)),
		BatchSize:        getIntOrDefault(common.EnvBatchSize, common.DefaultBatchSize),
		Booster:          DefaultBooster(),
		SMOTENeighbors:   getIntOrDefault(common.EnvSMOTENeighbors, common.DefaultSMOTENeighbors),
		EvalThreshold:    getFloatOrDefault(common.EnvEvalThreshold, common.DefaultEvalThreshold),
		ServerPort:       getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		RequestTimeout:   getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout),
		APIURL:           getEnvOrDefault(common.EnvAPIURL, common.DefaultAPIURL),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	settings.Booster.NEstimators = getIntOrDefault(common.EnvNEstimators, settings.Booster.NEstimators)
	settings.Booster.MaxDepth = getIntOrDefault(common.EnvMaxDepth, settings.Booster.MaxDepth)
	settings.Booster.LearningRate = getFloatOrDefault(common.EnvLearningRate, settings.Booster.LearningRate)
	settings.Booster.MaxBin = getIntOrDefault(common.EnvMaxBin, settings.Booster.MaxBin)
	settings.Booster.Workers = getIntOrDefault(common.EnvWorkers, settings.Booster.Workers)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DefaultBooster returns the booster parameters used by the original
// training run (hist trees, 100 estimators, depth 10, eta 0.1).
func DefaultBooster() BoosterSettings {
	return BoosterSettings{
		NEstimators:    common.DefaultNEstimators,
		MaxDepth:       common.DefaultMaxDepth,
		LearningRate:   common.DefaultLearningRate,
		Lambda:         common.DefaultLambda,
		MinChildWeight: common.DefaultMinChildWeight,
		MaxBin:         common.DefaultMaxBin,
		Workers:        common.DefaultWorkers,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

func orString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// validateSettings performs range checks on every numeric setting
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if strings.TrimSpace(settings.NormalLabel) == "" {
		return fmt.Errorf("normal label cannot be empty")
	}

	if settings.TestSize <= 0 || settings.TestSize >= 1 {
		return fmt.Errorf("test size must be between 0 and 1 (exclusive), got %f", settings.TestSize)
	}
	if settings.BatchSize <= 0 || settings.BatchSize > 10_000_000 {
		return fmt.Errorf("batch size must be between 1 and 10000000, got %d", settings.BatchSize)
	}
	if settings.SMOTENeighbors <= 0 || settings.SMOTENeighbors > 100 {
		return fmt.Errorf("SMOTE neighbors must be between 1 and 100, got %d", settings.SMOTENeighbors)
	}
	if settings.EvalThreshold <= 0 || settings.EvalThreshold >= 1 {
		return fmt.Errorf("evaluation threshold must be between 0 and 1 (exclusive), got %f", settings.EvalThreshold)
	}
	if settings.ServerPort < 1024 || settings.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1024 and 65535, got %d", settings.ServerPort)
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}

	return ValidateBooster(settings.Booster)
}

// ValidateBooster checks the boosting parameters on their own; the trainer
// calls it for parameters that did not come through Load.
func ValidateBooster(b BoosterSettings) error {
	if b.NEstimators <= 0 || b.NEstimators > 10000 {
		return fmt.Errorf("n_estimators must be between 1 and 10000, got %d", b.NEstimators)
	}
	if b.MaxDepth <= 0 || b.MaxDepth > 32 {
		return fmt.Errorf("max depth must be between 1 and 32, got %d", b.MaxDepth)
	}
	if b.LearningRate <= 0 || b.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", b.LearningRate)
	}
	if b.Lambda < 0 {
		return fmt.Errorf("lambda cannot be negative, got %f", b.Lambda)
	}
	if b.Gamma < 0 {
		return fmt.Errorf("gamma cannot be negative, got %f", b.Gamma)
	}
	if b.MinChildWeight < 0 {
		return fmt.Errorf("min child weight cannot be negative, got %f", b.MinChildWeight)
	}
	if b.MaxBin < 2 || b.MaxBin > 256 {
		return fmt.Errorf("max bin must be between 2 and 256, got %d", b.MaxBin)
	}
	if b.Workers <= 0 || b.Workers > 256 {
		return fmt.Errorf("workers must be between 1 and 256, got %d", b.Workers)
	}
	return nil
}

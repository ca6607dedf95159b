package common

import "time"

// KDDColumns is the fixed 42-column layout of the training and test CSV
// files. The label is always the last column.
var KDDColumns = []string{
	"duration", "protocol_type", "service", "flag", "src_bytes", "dst_bytes", "land", "wrong_fragment",
	"urgent", "hot", "num_failed_logins", "logged_in", "num_compromised", "root_shell", "su_attempted",
	"num_root", "num_file_creations", "num_shells", "num_access_files", "num_outbound_cmds", "is_host_login",
	"is_guest_login", "count", "srv_count", "serror_rate", "srv_serror_rate", "rerror_rate", "srv_rerror_rate",
	"same_srv_rate", "diff_srv_rate", "srv_diff_host_rate", "dst_host_count", "dst_host_srv_count",
	"dst_host_same_srv_rate", "dst_host_diff_srv_rate", "dst_host_same_src_port_rate", "dst_host_srv_diff_host_rate",
	"dst_host_serror_rate", "dst_host_srv_serror_rate", "dst_host_rerror_rate", "dst_host_srv_rerror_rate", "label",
}

// CategoricalColumns are one-hot expanded by the feature encoder, in this order.
var CategoricalColumns = []string{"protocol_type", "service", "flag"}

// Prediction labels returned by the inference service.
const (
	LabelNormal    = "Normal"
	LabelIntrusion = "Intrusão"
)

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDataPath         = "DATA_PATH"
	EnvTrainCSV         = "TRAIN_CSV"
	EnvTestCSV          = "TEST_CSV"
	EnvNormalLabel      = "NORMAL_LABEL"
	EnvDifficultyColumn = "DIFFICULTY_COLUMN"
	EnvTestSize         = "TEST_SIZE"
	EnvSeed             = "SEED"
	EnvBatchSize        = "BATCH_SIZE"
	EnvNEstimators      = "N_ESTIMATORS"
	EnvMaxDepth         = "MAX_DEPTH"
	EnvLearningRate     = "LEARNING_RATE"
	EnvMaxBin           = "MAX_BIN"
	EnvWorkers          = "WORKERS"
	EnvSMOTENeighbors   = "SMOTE_NEIGHBORS"
	EnvEvalThreshold    = "EVAL_THRESHOLD"
	EnvServerPort       = "SERVER_PORT"
	EnvRequestTimeout   = "REQUEST_TIMEOUT"
	EnvAPIURL           = "API_URL"
	EnvLogLevel         = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultDataPath       = "models"
	DefaultNormalLabel    = "normal"
	DefaultTestSize       = 0.3
	DefaultSeed           = 42
	DefaultBatchSize      = 10000
	DefaultNEstimators    = 100
	DefaultMaxDepth       = 10
	DefaultLearningRate   = 0.1
	DefaultLambda         = 1.0
	DefaultMinChildWeight = 1.0
	DefaultMaxBin         = 256
	DefaultWorkers        = 4
	DefaultSMOTENeighbors = 5
	DefaultEvalThreshold  = 0.3
	DefaultServerPort     = 8000
	DefaultRequestTimeout = 5 * time.Second
	DefaultAPIURL         = "http://127.0.0.1:8000"
	DefaultLogLevel       = "info"
	DefaultTopFeatures    = 10
)

// ArtifactDBName is the bbolt file holding persisted artifact pairs.
const ArtifactDBName = "kddids-artifacts.db"

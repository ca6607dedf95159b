package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"kdd-ids/internal/common"
)

// GeneratorConfig controls synthetic corpus generation.
type GeneratorConfig struct {
	Rows          int
	IntrusionRate float64 // fraction of rows labelled with an attack code
	NormalLabel   string
	Seed          int64
}

var (
	protocols     = []string{"tcp", "udp", "icmp"}
	services      = []string{"http", "private", "domain_u", "smtp", "ftp_data", "ecr_i", "other"}
	attackLabels  = []string{"neptune", "smurf", "satan", "portsweep", "guess_passwd"}
	normalFlags   = []string{"SF", "SF", "SF", "REJ"}
	intrusionFlag = []string{"S0", "S0", "REJ", "RSTR"}
)

// Generate produces a labelled KDD-shaped corpus with a learnable signal:
// intrusions skew towards SYN errors, private/ecr_i services and short
// connections, normal traffic towards completed HTTP/SMTP sessions.
func Generate(cfg GeneratorConfig) []RawRecord {
	rng := rand.New(rand.NewSource(cfg.Seed))
	numeric := len(common.KDDColumns) - 1

	records := make([]RawRecord, cfg.Rows)
	for i := range records {
		intrusion := rng.Float64() < cfg.IntrusionRate
		fields := make([]string, numeric)
		for j := range fields {
			fields[j] = "0"
		}

		set := func(name string, v float64) {
			fields[featureIndex[name]] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rate := func(base float64) float64 {
			v := base + rng.NormFloat64()*0.1
			return float64(int(clamp01(v)*100)) / 100
		}

		label := cfg.NormalLabel
		if intrusion {
			label = attackLabels[rng.Intn(len(attackLabels))]
			fields[featureIndex["protocol_type"]] = pick(rng, []string{"tcp", "tcp", "icmp"})
			fields[featureIndex["service"]] = pick(rng, []string{"private", "ecr_i", "other", "http"})
			fields[featureIndex["flag"]] = pick(rng, intrusionFlag)
			set("src_bytes", float64(rng.Intn(100)))
			set("count", float64(100+rng.Intn(400)))
			set("serror_rate", rate(0.8))
			set("srv_serror_rate", rate(0.8))
			set("same_srv_rate", rate(0.1))
			set("diff_srv_rate", rate(0.4))
			set("dst_host_count", 255)
			set("dst_host_srv_count", float64(rng.Intn(30)))
			set("dst_host_serror_rate", rate(0.8))
		} else {
			fields[featureIndex["protocol_type"]] = pick(rng, protocols)
			fields[featureIndex["service"]] = pick(rng, services)
			fields[featureIndex["flag"]] = pick(rng, normalFlags)
			set("duration", float64(rng.Intn(3000)))
			set("src_bytes", float64(200+rng.Intn(5000)))
			set("dst_bytes", float64(rng.Intn(20000)))
			set("logged_in", 1)
			set("count", float64(1+rng.Intn(20)))
			set("srv_count", float64(1+rng.Intn(20)))
			set("same_srv_rate", rate(0.95))
			set("dst_host_count", float64(1+rng.Intn(255)))
			set("dst_host_srv_count", float64(100+rng.Intn(155)))
			set("dst_host_same_srv_rate", rate(0.9))
		}
		records[i] = RawRecord{Fields: fields, Label: label}
	}
	return records
}

// WriteCSV writes records in the fixed 42-column layout without a header.
func WriteCSV(w io.Writer, records []RawRecord) error {
	writer := csv.NewWriter(w)
	row := make([]string, 0, len(common.KDDColumns))
	for _, r := range records {
		row = append(row[:0], r.Fields...)
		row = append(row, r.Label)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

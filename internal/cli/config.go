package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/internal/logger"
)

// Duration accepts "2s" style strings or integer nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrap(err, "invalid duration")
		}
		*d = Duration(dur)
		return nil
	default:
		return errors.Errorf("invalid duration %s", string(b))
	}
}

// FileConfig is the optional JSON file named by --config. Flags set on the
// command line take precedence over it.
type FileConfig struct {
	Logging logger.Config `json:"logging"`

	Timeout       Duration `json:"timeout"`
	Port          uint16   `json:"port"`
	AllowPublic   bool     `json:"allow_public"`
	AllowLoopback bool     `json:"allow_loopback"`

	CSVDir      string `json:"csv_dir"`
	Database    string `json:"database"`
	NATSURL     string `json:"nats_url"`
	NATSSubject string `json:"nats_subject"`

	Sweep struct {
		Concurrency   int `json:"concurrency"`
		RatePerSecond int `json:"rate_per_second"`
	} `json:"sweep"`

	Rate struct {
		ScansPerWorker int      `json:"scans_per_worker"`
		CoolDown       Duration `json:"cool_down"`
	} `json:"rate"`
}

// LoadFileConfig reads and decodes a JSON config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal JSON from '%s'", path)
	}

	return &cfg, nil
}

// Package config defines the daemon/client configuration surface and wires
// it through cliconfig.Loader: a struct of cli-tagged fields, loaded in
// defaults -> config file -> environment -> command line precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/klauspost/compress/zstd"

	"github.com/rchlabs/rch/classifier"
	"github.com/rchlabs/rch/cliconfig"
	"github.com/rchlabs/rch/scheduler"
	"github.com/rchlabs/rch/transfer"
	"github.com/rchlabs/rch/worker"
)

// Config is the full recognised option surface, flattened into one struct
// shared by rchd and rch.
//
// Adding an option takes two changes: a field here with a cli tag, and a
// matching flag in Flags with an RCH_-prefixed EnvVar.
type Config struct {
	ConfigFile string `cli:"config"`
	Debug      bool   `cli:"debug"`
	LogFormat  string `cli:"log-format"`
	NoColor    bool   `cli:"no-color"`
	Profile    string `cli:"profile"`

	SocketPath       string `cli:"socket-path" normalize:"filepath"`
	Token            string `cli:"token"`
	TokenPath        string `cli:"token-path" normalize:"filepath"`
	WorkersPath      string `cli:"workers-path" normalize:"filepath"`
	RecentBuildsPath string `cli:"recent-builds-path" normalize:"filepath"`
	LockFilePath     string `cli:"lock-file-path" normalize:"filepath"`

	ConfidenceThreshold  int      `cli:"confidence-threshold"`
	MinLocalTimeMs       int      `cli:"min-local-time-ms"`
	CompressionLevel     int      `cli:"compression-level"`
	ExcludePatterns      []string `cli:"exclude-patterns" normalize:"list"`
	SyncBackPatterns     []string `cli:"sync-back-patterns" normalize:"list"`
	WorkerTimeoutSec     int      `cli:"worker-timeout-sec"`
	HealthIntervalSec    int      `cli:"health-interval-sec"`
	CircuitFailureThresh int      `cli:"circuit-failure-threshold"`
	CircuitResetSec      int      `cli:"circuit-reset-sec"`
	HalfOpenBudget       int      `cli:"half-open-budget"`

	// Weights are strings, not float64: cliconfig.Loader only knows how to
	// pull string/slice/bool/int/int64 fields from CLI flags, so fractional
	// weights are parsed out of their string form in SchedulerConfig.
	SlotWeight  string `cli:"selection-slot-weight"`
	SpeedWeight string `cli:"selection-speed-weight"`
	CacheWeight string `cli:"selection-cache-weight"`

	BuildTimeoutSec        int  `cli:"build-timeout-sec"`
	CancelGraceSec         int  `cli:"cancel-grace-sec"`
	RetryExecuteOnFailover bool `cli:"retry-execute-on-failover"`
	UploadFetchRetries     int  `cli:"upload-fetch-retries"`

	MockSSH    bool   `cli:"mock-ssh"`
	SSHKeyPath string `cli:"ssh-key-path" normalize:"filepath"`
}

// defaultConfigFileName names the config file, in the key=value form
// cliconfig.File parses (also tolerant of YAML's colon separator). It is the
// only config file read; no .env file is loaded.
const defaultConfigFileName = "rch.cfg"

// DefaultConfigFilePaths returns a binary-adjacent file first, then a
// handful of well-known, platform-appropriate locations.
func DefaultConfigFilePaths() []string {
	var paths []string
	if runtime.GOOS == "windows" {
		paths = []string{
			`C:\rch\rch.cfg`,
			`$USERPROFILE\AppData\Local\rch\rch.cfg`,
		}
	} else {
		paths = []string{
			"$HOME/.rch/rch.cfg",
			"/usr/local/etc/rch/rch.cfg",
			"/etc/rch/rch.cfg",
		}
	}

	if exePath, err := os.Executable(); err == nil {
		if dir, err := filepath.Abs(filepath.Dir(exePath)); err == nil {
			paths = append([]string{filepath.Join(dir, defaultConfigFileName)}, paths...)
		}
	}
	return paths
}

// Default returns the documented defaults for every tunable option.
func Default() Config {
	return Config{
		LogFormat: "text",

		SocketPath:       "$HOME/.rch/rchd.sock",
		TokenPath:        "$HOME/.rch/token",
		WorkersPath:      "$HOME/.rch/workers.yaml",
		RecentBuildsPath: "$HOME/.rch/recent-builds.json",
		LockFilePath:     "$HOME/.rch/rchd.lock",

		ConfidenceThreshold:  5,
		MinLocalTimeMs:       250,
		CompressionLevel:     3,
		ExcludePatterns:      []string{"build/**", "**/.git/**"},
		SyncBackPatterns:     []string{"build/**"},
		WorkerTimeoutSec:     5,
		HealthIntervalSec:    30,
		CircuitFailureThresh: 5,
		CircuitResetSec:      30,
		HalfOpenBudget:       3,

		SlotWeight:  "1.0",
		SpeedWeight: "1.0",
		CacheWeight: "0.5",

		SSHKeyPath:         "$HOME/.rch/id_rch",
		BuildTimeoutSec:    300,
		CancelGraceSec:     5,
		UploadFetchRetries: 3,
	}
}

// Load populates cfg (which should start as Default()) from the CLI
// context, a project/user config file, and RCH_-prefixed environment
// variables, following cliconfig.Loader's usual precedence.
func Load(c *cli.Context, cfg *Config) (warnings []string, file *cliconfig.File, err error) {
	loader := cliconfig.Loader{
		CLI:                    c,
		Config:                 cfg,
		DefaultConfigFilePaths: DefaultConfigFilePaths(),
	}
	warnings, err = loader.Load()
	if err != nil {
		return warnings, nil, fmt.Errorf("loading rch config: %w", err)
	}
	return warnings, loader.File, nil
}

// SchedulerConfig projects the selection/timeout options onto
// scheduler.Config.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Weights: scheduler.SelectionWeights{
			SlotWeight:  parseWeight(c.SlotWeight, 1.0),
			SpeedWeight: parseWeight(c.SpeedWeight, 1.0),
			CacheWeight: parseWeight(c.CacheWeight, 0.5),
		},
		RetryExecuteOnFailover: c.RetryExecuteOnFailover,
		BuildTimeout:           time.Duration(c.BuildTimeoutSec) * time.Second,
		CancelGrace:            time.Duration(c.CancelGraceSec) * time.Second,
	}
}

func parseWeight(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// ClassifierConfig projects the classification options onto
// classifier.Config. Scorer and Metrics are left for the caller to set,
// since they're runtime objects rather than configuration values.
func (c Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		ConfidenceThreshold: c.ConfidenceThreshold,
	}
}

// BreakerConfig projects the breaker tuning options onto
// worker.BreakerConfig.
func (c Config) BreakerConfig() worker.BreakerConfig {
	return worker.BreakerConfig{
		FailureThreshold: c.CircuitFailureThresh,
		ResetTimeout:     time.Duration(c.CircuitResetSec) * time.Second,
		HalfOpenBudget:   c.HalfOpenBudget,
	}
}

// HealthLoopConfig projects the probe cadence options onto
// worker.HealthLoopConfig.
func (c Config) HealthLoopConfig() worker.HealthLoopConfig {
	return worker.HealthLoopConfig{
		Interval:     time.Duration(c.HealthIntervalSec) * time.Second,
		ProbeTimeout: time.Duration(c.WorkerTimeoutSec) * time.Second,
	}
}

// TransferConfig projects the compression/exclude/retry options onto
// transfer.Config.
func (c Config) TransferConfig() transfer.Config {
	return transfer.Config{
		CompressionLevel:   zstd.EncoderLevel(c.CompressionLevel),
		ExcludePatterns:    c.ExcludePatterns,
		SyncBackPatterns:   c.SyncBackPatterns,
		RequiredTools:      []string{"tar"},
		ExecuteTimeout:     time.Duration(c.BuildTimeoutSec) * time.Second,
		CancellationGrace:  time.Duration(c.CancelGraceSec) * time.Second,
		UploadFetchRetries: c.UploadFetchRetries,
	}
}

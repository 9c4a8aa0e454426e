package config

import "github.com/urfave/cli"

// Flags returns the urfave/cli flag set for every option in Config, each
// carrying its documented default as the flag's Value and an
// RCH_-prefixed EnvVar, so that a bare `rchd start` with no flags, no
// config file, and no environment still resolves to Default().
//
// The Config struct's "cli" tags name the fields; this function is the
// single place that pairs each with a flag, a usage string, and an
// environment variable.
func Flags(d Config) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "Path to a configuration file", EnvVar: "RCH_CONFIG"},
		cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", EnvVar: "RCH_DEBUG"},
		cli.StringFlag{Name: "log-format", Value: d.LogFormat, Usage: "Log output format: text or json", EnvVar: "RCH_LOG_FORMAT"},
		cli.BoolFlag{Name: "no-color", Usage: "Disable ANSI color in text logs", EnvVar: "RCH_NO_COLOR"},
		cli.StringFlag{Name: "profile", Usage: "Profile name (stored in the config; no setting is read from it)", EnvVar: "RCH_PROFILE"},

		cli.StringFlag{Name: "socket-path", Value: d.SocketPath, Usage: "Path to the daemon's Unix domain socket", EnvVar: "RCH_SOCKET_PATH"},
		cli.StringFlag{Name: "token", Usage: "Bearer token the client presents to the daemon", EnvVar: "RCH_TOKEN"},
		cli.StringFlag{Name: "token-path", Value: d.TokenPath, Usage: "Path to a file containing the bearer token", EnvVar: "RCH_TOKEN_PATH"},
		cli.StringFlag{Name: "workers-path", Value: d.WorkersPath, Usage: "Path to the worker definitions file", EnvVar: "RCH_WORKERS_PATH"},
		cli.StringFlag{Name: "recent-builds-path", Value: d.RecentBuildsPath, Usage: "Path to the recent-builds ring buffer file", EnvVar: "RCH_RECENT_BUILDS_PATH"},
		cli.StringFlag{Name: "lock-file-path", Value: d.LockFilePath, Usage: "Path to the daemon's admin-operation lock file", EnvVar: "RCH_LOCK_FILE_PATH"},

		cli.IntFlag{Name: "confidence-threshold", Value: d.ConfidenceThreshold, Usage: "Tier 3 classifier score cut-off for Compilation", EnvVar: "RCH_CONFIDENCE_THRESHOLD"},
		cli.IntFlag{Name: "min-local-time-ms", Value: d.MinLocalTimeMs, Usage: "Suppress remoting below this estimated local build time", EnvVar: "RCH_MIN_LOCAL_TIME_MS"},
		cli.IntFlag{Name: "compression-level", Value: d.CompressionLevel, Usage: "zstd encoder level for Upload/Fetch", EnvVar: "RCH_COMPRESSION_LEVEL"},
		cli.StringSliceFlag{Name: "exclude-patterns", Value: sliceFlagValue(d.ExcludePatterns), Usage: "Doublestar glob patterns excluded from Upload", EnvVar: "RCH_EXCLUDE_PATTERNS"},
		cli.StringSliceFlag{Name: "sync-back-patterns", Value: sliceFlagValue(d.SyncBackPatterns), Usage: "Doublestar glob patterns for paths to return on Fetch (stored; Fetch does not apply them)", EnvVar: "RCH_SYNC_BACK_PATTERNS"},
		cli.IntFlag{Name: "worker-timeout-sec", Value: d.WorkerTimeoutSec, Usage: "Health probe deadline, seconds", EnvVar: "RCH_WORKER_TIMEOUT_SEC"},
		cli.IntFlag{Name: "health-interval-sec", Value: d.HealthIntervalSec, Usage: "Interval between health probe rounds, seconds", EnvVar: "RCH_HEALTH_INTERVAL_SEC"},
		cli.IntFlag{Name: "circuit-failure-threshold", Value: d.CircuitFailureThresh, Usage: "Consecutive failures before a worker's breaker opens", EnvVar: "RCH_CIRCUIT_FAILURE_THRESHOLD"},
		cli.IntFlag{Name: "circuit-reset-sec", Value: d.CircuitResetSec, Usage: "Time an open breaker waits before HalfOpen, seconds", EnvVar: "RCH_CIRCUIT_RESET_SEC"},
		cli.IntFlag{Name: "half-open-budget", Value: d.HalfOpenBudget, Usage: "Trial builds allowed while a breaker is HalfOpen", EnvVar: "RCH_HALF_OPEN_BUDGET"},

		cli.StringFlag{Name: "selection-slot-weight", Value: d.SlotWeight, Usage: "Worker scoring weight for free slot ratio", EnvVar: "RCH_SELECTION_SLOT_WEIGHT"},
		cli.StringFlag{Name: "selection-speed-weight", Value: d.SpeedWeight, Usage: "Worker scoring weight for inverse rolling latency", EnvVar: "RCH_SELECTION_SPEED_WEIGHT"},
		cli.StringFlag{Name: "selection-cache-weight", Value: d.CacheWeight, Usage: "Worker scoring weight for fingerprint cache affinity", EnvVar: "RCH_SELECTION_CACHE_WEIGHT"},

		cli.IntFlag{Name: "build-timeout-sec", Value: d.BuildTimeoutSec, Usage: "End-to-end timeout for one admitted BuildRequest, seconds", EnvVar: "RCH_BUILD_TIMEOUT_SEC"},
		cli.IntFlag{Name: "cancel-grace-sec", Value: d.CancelGraceSec, Usage: "Grace period for a cancelled build's worker acknowledgement, seconds", EnvVar: "RCH_CANCEL_GRACE_SEC"},
		cli.BoolFlag{Name: "retry-execute-on-failover", Usage: "Stored but not read by the scheduler; a failed Execute is never retried on another worker", EnvVar: "RCH_RETRY_EXECUTE_ON_FAILOVER"},
		cli.IntFlag{Name: "upload-fetch-retries", Value: d.UploadFetchRetries, Usage: "Jittered-backoff retry attempts for Upload/Fetch", EnvVar: "RCH_UPLOAD_FETCH_RETRIES"},

		cli.BoolFlag{Name: "mock-ssh", Usage: "Replace the SSH transport with an in-process mock (test-only)", EnvVar: "RCH_MOCK_SSH"},
		cli.StringFlag{Name: "ssh-key-path", Value: d.SSHKeyPath, Usage: "Path to the daemon's SSH private key used to authenticate to workers", EnvVar: "RCH_SSH_KEY_PATH"},
	}
}

func sliceFlagValue(v []string) *cli.StringSlice {
	s := cli.StringSlice(v)
	return &s
}

package transfer

import (
	"time"

	"github.com/klauspost/compress/zstd"
)

// Config tunes one worker's transfer/execute pipeline; it is the
// transfer-layer mirror of the configuration surface's Upload/Fetch rows.
type Config struct {
	// CompressionLevel maps onto zstd's encoder level.
	CompressionLevel zstd.EncoderLevel

	// ExcludePatterns are doublestar glob patterns matched against
	// workspace-relative paths and skipped on Upload. Defaults to the
	// build-output directory and VCS internals.
	ExcludePatterns []string

	// MaxFileSize skips any path larger than this during Upload; zero means
	// unbounded.
	MaxFileSize int64

	// SyncBackPatterns are doublestar glob patterns for the worker-relative
	// paths to return on Fetch. Defaults to the build-output directory
	// root. Fetch neither sends them to the worker nor matches them: it
	// unpacks whatever the worker streams back.
	SyncBackPatterns []string

	// RequiredTools are checked for presence during Preflight.
	RequiredTools []string

	// ExecuteTimeout bounds a single Execute phase. Default 300s.
	ExecuteTimeout time.Duration

	// CancellationGrace bounds how long Teardown waits for the remote
	// agent to acknowledge a cancellation before treating it as dirty.
	CancellationGrace time.Duration

	// UploadFetchRetries bounds jittered-backoff retries of Upload/Fetch
	// transport errors. Execute is never retried.
	UploadFetchRetries int
}

func DefaultConfig() Config {
	return Config{
		CompressionLevel:   zstd.SpeedDefault,
		ExcludePatterns:    []string{"build/**", "**/.git/**"},
		SyncBackPatterns:   []string{"build/**"},
		RequiredTools:      []string{"tar"},
		ExecuteTimeout:     300 * time.Second,
		CancellationGrace:  5 * time.Second,
		UploadFetchRetries: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CompressionLevel == 0 {
		c.CompressionLevel = d.CompressionLevel
	}
	if len(c.ExcludePatterns) == 0 {
		c.ExcludePatterns = d.ExcludePatterns
	}
	if len(c.SyncBackPatterns) == 0 {
		c.SyncBackPatterns = d.SyncBackPatterns
	}
	if len(c.RequiredTools) == 0 {
		c.RequiredTools = d.RequiredTools
	}
	if c.ExecuteTimeout <= 0 {
		c.ExecuteTimeout = d.ExecuteTimeout
	}
	if c.CancellationGrace <= 0 {
		c.CancellationGrace = d.CancellationGrace
	}
	if c.UploadFetchRetries <= 0 {
		c.UploadFetchRetries = d.UploadFetchRetries
	}
	return c
}

package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maypok86/otter"
)

const (
	scoreBuildTool       = 3
	scoreSourceExtension = 1
	maxSourceExtScore    = 3
	scoreCompileOnlyFlag = 2
	scoreOutputFlag      = 1
	scoreManifestPresent = 2
	scorePriorFingerprint = 2
)

// newFingerprintCache builds the Tier 3 "prior-seen fingerprint" cache: a
// small LRU of fingerprints this process has already scored as Compilation,
// so a repeated identical build (the common case for an AI coding agent
// retrying the same command) scores higher on the second pass.
func newFingerprintCache(capacity int) (otter.Cache[string, bool], error) {
	if capacity <= 0 {
		capacity = 4096
	}
	return otter.MustBuilder[string, bool](capacity).
		WithTTL(10 * time.Minute).
		Build()
}

// heuristicScore computes the Tier 3 score for a parsed command. The base
// command is checked against the Tier 1 positive keywords again here, so
// scoring stays independent of whether Tier 1 ran first. fingerprintSeen
// reports whether this command's fingerprint already scored as Compilation.
func heuristicScore(pc parsedCommand, workDir string, fingerprintSeen bool) int {
	score := 0

	if positiveTrie.Exists(pc.base) {
		score += scoreBuildTool
	}

	extScore := 0
	for _, arg := range pc.args {
		ext := strings.ToLower(filepath.Ext(arg))
		for _, se := range sourceExtensions {
			if ext == se {
				extScore += scoreSourceExtension
				break
			}
		}
	}
	if extScore > maxSourceExtScore {
		extScore = maxSourceExtScore
	}
	score += extScore

	for _, f := range pc.flags {
		if f == "-c" || f == "--compile-only" {
			score += scoreCompileOnlyFlag
		}
		if f == "-o" || strings.HasPrefix(f, "-o=") || strings.HasPrefix(f, "--output") {
			score += scoreOutputFlag
		}
	}

	if manifestPresent(workDir) {
		score += scoreManifestPresent
	}

	if fingerprintSeen {
		score += scorePriorFingerprint
	}

	return score
}

func manifestPresent(workDir string) bool {
	if workDir == "" {
		return false
	}
	for _, m := range manifestFiles {
		if _, err := os.Stat(filepath.Join(workDir, m)); err == nil {
			return true
		}
	}
	return false
}

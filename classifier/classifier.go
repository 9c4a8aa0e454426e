// Package classifier implements the five-tier pipeline that decides
// whether a shell command is a compilation worth offloading to a remote
// worker. Classify is reentrant: the only shared mutable state it touches
// is the write-only latency metrics and the Tier 3 fingerprint cache.
package classifier

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maypok86/otter"
	"github.com/rchlabs/rch/metrics"
	"github.com/rchlabs/rch/rchapi"
)

// MaxCommandLength is the Tier 0 bound above which a command is rejected
// as TooLong without further inspection.
const MaxCommandLength = 64 * 1024

// ambiguityBand is how close a Tier 3 score needs to be to the configured
// threshold before Tier 4 is consulted, when a Scorer is configured.
const ambiguityBand = 2

// non-compilation and compilation decisions are budgeted separately at the
// p95; Classify compares its own elapsed time against whichever applies to
// the verdict it produced.
const (
	nonCompilationBudget = time.Millisecond
	compilationBudget    = 5 * time.Millisecond
)

// Config tunes the classifier. All fields have workable zero-value
// defaults; New fills them in.
type Config struct {
	// ConfidenceThreshold is the Tier 3 score cut-off for Compilation.
	ConfidenceThreshold int

	// FingerprintCacheSize bounds the Tier 3 prior-seen-fingerprint LRU.
	FingerprintCacheSize int

	// Scorer is the optional Tier 4 fallback. Nil disables Tier 4.
	Scorer Scorer

	// Metrics receives the decision-latency histogram and counters. Nil
	// disables instrumentation (tests commonly pass nil).
	Metrics *metrics.Registry
}

// Classifier runs the five-tier pipeline. It is safe for concurrent use.
type Classifier struct {
	cfg   Config
	cache otter.Cache[string, bool]
}

// New returns a ready Classifier. An error is returned only if the
// fingerprint cache fails to build.
func New(cfg Config) (*Classifier, error) {
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 5
	}
	if cfg.Scorer == nil {
		cfg.Scorer = NoopScorer{}
	}

	cache, err := newFingerprintCache(cfg.FingerprintCacheSize)
	if err != nil {
		return nil, err
	}

	return &Classifier{cfg: cfg, cache: cache}, nil
}

// Classify decides whether cmd is a compilation worth offloading. It never
// fails: internal inconsistencies fall back to LocalReject{ClassifierBug}.
func (c *Classifier) Classify(cmd rchapi.Command) (result rchapi.Classification) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.ClassifierInternalErrors.Inc()
			}
			result = rchapi.Classification{
				Verdict: rchapi.LocalReject,
				Tier:    rchapi.TierNegativeKeyword,
				Reason:  string(rchapi.ReasonClassifierBug),
			}
		}
		c.record(start, result)
	}()

	return c.classify(cmd)
}

func (c *Classifier) classify(cmd rchapi.Command) rchapi.Classification {
	raw := cmd.Raw

	if len(raw) > MaxCommandLength {
		return reject(rchapi.TierNegativeKeyword, string(rchapi.ReasonTooLong))
	}
	if !utf8.ValidString(raw) {
		return reject(rchapi.TierNegativeKeyword, string(rchapi.ReasonMalformedInput))
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return reject(rchapi.TierNegativeKeyword, string(rchapi.ReasonMalformedInput))
	}

	// A command that is entirely a substitution hides its actual effect
	// from every later tier, so it is rejected before keyword matching
	// even looks at it.
	if isWholeCommandSubstitution(trimmed) {
		return reject(rchapi.TierShellParse, "whole_command_substitution")
	}

	// Tier 0: fast negative filter on the first token, left-biased.
	firstToken := firstWord(trimmed)
	if negativeTrie.Exists(firstToken) {
		return reject(rchapi.TierNegativeKeyword, "negative_keyword("+firstToken+")")
	}

	// Tier 1: positive keyword match.
	if !positiveTrie.Exists(firstToken) {
		return reject(rchapi.TierPositiveKeyword, "no_positive_keyword")
	}

	// Tier 2: shell-aware parse and validation.
	stages := splitPipeline(trimmed)
	leftStage := stages[0]

	pc, err := parseShellAware(leftStage)
	if err != nil {
		return reject(rchapi.TierShellParse, "unparseable_shell_input")
	}
	if pc.base == "" {
		return reject(rchapi.TierShellParse, "no_base_command")
	}

	if nonCompileSubcommands[pc.subcommand] {
		return reject(rchapi.TierShellParse, "non_compile_subcommand("+pc.subcommand+")")
	}
	for _, f := range pc.flags {
		if helpFlags[f] {
			return reject(rchapi.TierShellParse, "help_or_version_flag")
		}
	}

	if len(stages) > 1 {
		for _, stage := range stages[1:] {
			if !outputCaptureStage(stage) {
				return reject(rchapi.TierShellParse, "pipe_to_processing_stage")
			}
		}
	}

	// Tier 3: heuristic scoring.
	fp := rchapi.Fingerprint(cmd)
	_, seen := c.cache.Get(fp)

	score := heuristicScore(pc, cmd.WorkDir, seen)
	threshold := c.cfg.ConfidenceThreshold

	if score >= threshold {
		c.cache.Set(fp, true)
		return accept(rchapi.TierHeuristic, confidenceOf(score, threshold), "heuristic_score")
	}

	// Tier 4: optional learned-model fallback, only within the ambiguity
	// band around the threshold, so the common case never pays for it.
	if threshold-score <= ambiguityBand {
		confidence, reason := c.cfg.Scorer.Score(cmd, pc.view())
		switch {
		case confidence < 0:
			// Scorer abstained (the NoopScorer default); Tier 3's verdict stands.
		case confidence >= 0.5:
			c.cache.Set(fp, true)
			return accept(rchapi.TierLearnedModel, confidence, reason)
		default:
			return rchapi.Classification{
				Verdict:    rchapi.LocalReject,
				Tier:       rchapi.TierLearnedModel,
				Confidence: confidence,
				Reason:     reason,
			}
		}
	}

	return reject(rchapi.TierHeuristic, "below_confidence_threshold")
}

func (c *Classifier) record(start time.Time, result rchapi.Classification) {
	if c.cfg.Metrics == nil {
		return
	}

	elapsed := time.Since(start)
	c.cfg.Metrics.DecisionLatency.WithLabelValues(result.Verdict.String()).Observe(elapsed.Seconds())

	budget := nonCompilationBudget
	if result.Verdict == rchapi.Compilation {
		budget = compilationBudget
	}
	if elapsed > budget {
		c.cfg.Metrics.BudgetViolations.WithLabelValues(tierLabel(result.Tier)).Inc()
	}
}

func tierLabel(t rchapi.Tier) string {
	switch t {
	case rchapi.TierNegativeKeyword:
		return "0"
	case rchapi.TierPositiveKeyword:
		return "1"
	case rchapi.TierShellParse:
		return "2"
	case rchapi.TierHeuristic:
		return "3"
	case rchapi.TierLearnedModel:
		return "4"
	default:
		return "unknown"
	}
}

func confidenceOf(score, threshold int) float64 {
	if threshold <= 0 {
		return 1
	}
	conf := float64(score) / float64(threshold*2)
	if conf > 1 {
		conf = 1
	}
	return conf
}

func reject(tier rchapi.Tier, reason string) rchapi.Classification {
	return rchapi.Classification{Verdict: rchapi.LocalReject, Tier: tier, Reason: reason}
}

func accept(tier rchapi.Tier, confidence float64, reason string) rchapi.Classification {
	return rchapi.Classification{Verdict: rchapi.Compilation, Tier: tier, Confidence: confidence, Reason: reason}
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// SplitSequential exposes the Tier 2 sequential-list splitter so the
// scheduler can classify each segment of a `cmd1 && cmd2` list
// independently and offload only the Compilation segments.
func SplitSequential(raw string) []string { return splitSequential(raw) }

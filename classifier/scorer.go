package classifier

import "github.com/rchlabs/rch/rchapi"

// Scorer is the optional Tier 4 fallback for commands Tier 3 leaves
// ambiguous. The pipeline meets its latency budget whether or not one is
// configured, since Tier 4 only runs for commands within the ambiguity
// band around the configured confidence threshold.
type Scorer interface {
	// Score returns a confidence in [0,1] that cmd is a compilation worth
	// offloading, or a negative confidence to abstain, along with reason
	// text describing the basis for the score.
	Score(cmd rchapi.Command, pc parsedCommandView) (confidence float64, reason string)
}

// parsedCommandView is the subset of the Tier 2 parse exposed to a Scorer,
// kept distinct from the internal parsedCommand so the Scorer interface
// doesn't leak package-private fields.
type parsedCommandView struct {
	Base       string
	Subcommand string
	Flags      []string
	Args       []string
}

func (pc parsedCommand) view() parsedCommandView {
	return parsedCommandView{
		Base:       pc.base,
		Subcommand: pc.subcommand,
		Flags:      pc.flags,
		Args:       pc.args,
	}
}

// NoopScorer always abstains, leaving Tier 3's verdict as the pipeline's
// answer. It is the default when no learned model is configured: Score
// returns a negative confidence, the classifier's sentinel for "Tier 4 has
// no opinion", so the command's Tier and verdict stay whatever Tier 3
// already decided.
type NoopScorer struct{}

func (NoopScorer) Score(rchapi.Command, parsedCommandView) (float64, string) {
	return -1, "no_model_configured"
}

package classifier

import (
	"strings"

	"github.com/buildkite/shellwords"
)

// parsedCommand is the result of a Tier 2 shell-aware parse: leading env
// assignments stripped off, then base command, subcommand, and flags.
type parsedCommand struct {
	envAssignments []string
	base           string
	subcommand     string
	flags          []string
	args           []string
}

// splitPipeline splits raw on unquoted top-level `|` characters. It does not
// attempt full shell grammar; it tracks quote and paren depth only so a pipe
// inside a string literal or a subshell isn't mistaken for a pipeline stage.
func splitPipeline(raw string) []string {
	var stages []string
	var cur strings.Builder

	var quote rune
	depth := 0

	for _, r := range raw {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == '|' && depth == 0:
			stages = append(stages, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	stages = append(stages, cur.String())

	for i := range stages {
		stages[i] = strings.TrimSpace(stages[i])
	}
	return stages
}

// isWholeCommandSubstitution reports whether raw is entirely a single
// command substitution, e.g. `$(cargo build)`. Substitution nested inside
// an argument list is fine; substitution wrapping the whole command is a
// Tier 2 rejection since the classifier can't see what actually runs.
func isWholeCommandSubstitution(raw string) bool {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "$(") || !strings.HasSuffix(raw, ")") {
		return false
	}

	depth := 0
	for i, r := range raw {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(raw)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// outputCaptureStage reports whether a pipeline stage's effect is pure
// output capture (tee, or a bare redirection) rather than processing.
func outputCaptureStage(stage string) bool {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return true // an empty stage does no processing
	}
	fields := strings.Fields(stage)
	if len(fields) == 0 {
		return true
	}
	return fields[0] == "tee" || strings.HasPrefix(fields[0], ">")
}

// parseShellAware tokenises a single pipeline stage (already split on `|`)
// into leading env assignments, base command, subcommand, and flags.
func parseShellAware(stage string) (parsedCommand, error) {
	tokens, err := shellwords.Split(stage)
	if err != nil {
		return parsedCommand{}, err
	}

	var pc parsedCommand
	i := 0
	for ; i < len(tokens); i++ {
		if !isEnvAssignment(tokens[i]) {
			break
		}
		pc.envAssignments = append(pc.envAssignments, tokens[i])
	}

	if i >= len(tokens) {
		return pc, nil
	}

	pc.base = tokens[i]
	i++

	if i < len(tokens) && !strings.HasPrefix(tokens[i], "-") {
		pc.subcommand = tokens[i]
		i++
	}

	for ; i < len(tokens); i++ {
		if strings.HasPrefix(tokens[i], "-") {
			pc.flags = append(pc.flags, tokens[i])
		} else {
			pc.args = append(pc.args, tokens[i])
		}
	}

	return pc, nil
}

func isEnvAssignment(tok string) bool {
	eq := strings.IndexByte(tok, '=')
	if eq <= 0 {
		return false
	}
	name := tok[:eq]
	for i, r := range name {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// splitSequential splits raw on unquoted top-level `;`, `&&`, and `||` into
// independently classifiable segments. It is exported for the scheduler,
// which may offload only the Compilation segments of a mixed list.
func splitSequential(raw string) []string {
	var segments []string
	var cur strings.Builder

	var quote rune
	depth := 0
	runes := []rune(raw)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case depth == 0 && r == ';':
			segments = append(segments, cur.String())
			cur.Reset()
		case depth == 0 && r == '&' && i+1 < len(runes) && runes[i+1] == '&':
			segments = append(segments, cur.String())
			cur.Reset()
			i++
		case depth == 0 && r == '|' && i+1 < len(runes) && runes[i+1] == '|':
			segments = append(segments, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteRune(r)
		}
	}
	segments = append(segments, cur.String())

	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

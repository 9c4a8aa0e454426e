package rchapi

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// fingerprint hashes the normalised command, workspace root, toolchain tag,
// and allowlisted environment into the dedup key used by the scheduler's
// in-flight build table.
func fingerprint(cmd Command) string {
	h := sha256.New()

	h.Write([]byte(strings.TrimSpace(cmd.Raw)))
	h.Write([]byte{0})
	h.Write([]byte(cmd.WorkDir))
	h.Write([]byte{0})
	h.Write([]byte(cmd.ToolchainTag))
	h.Write([]byte{0})

	if cmd.Env != nil {
		pairs := cmd.Env.DumpPairs()
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
		for _, p := range pairs {
			h.Write([]byte(p.Name))
			h.Write([]byte{'='})
			h.Write([]byte(p.Value))
			h.Write([]byte{0})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

package rchapi

import (
	"testing"

	"github.com/rchlabs/rch/env"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintStableForIdenticalInput(t *testing.T) {
	t.Parallel()

	e := env.FromMap(map[string]string{"CC": "clang", "RCH_TOOLCHAIN": "stable"})
	a := Command{Raw: "cargo build --release", WorkDir: "/home/dev/proj", ToolchainTag: "rust-stable", Env: e}
	b := Command{Raw: "cargo build --release", WorkDir: "/home/dev/proj", ToolchainTag: "rust-stable", Env: e}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintDiffersOnWorkDir(t *testing.T) {
	t.Parallel()

	a := Command{Raw: "cargo build", WorkDir: "/home/dev/proj-a"}
	b := Command{Raw: "cargo build", WorkDir: "/home/dev/proj-b"}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintIgnoresEnvOrdering(t *testing.T) {
	t.Parallel()

	a := Command{Raw: "make", Env: env.FromMap(map[string]string{"A": "1", "B": "2"})}
	b := Command{Raw: "make", Env: env.FromMap(map[string]string{"B": "2", "A": "1"})}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

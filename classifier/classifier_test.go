package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rchlabs/rch/rchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(Config{ConfidenceThreshold: 5})
	require.NoError(t, err)
	return c
}

func TestClassifyCdIsLocalRejectTier0(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "cd /tmp"})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, rchapi.TierNegativeKeyword, got.Tier)
}

func TestClassifyCargoBuildWithManifestIsCompilation(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]"), 0o600))

	got := c.Classify(rchapi.Command{Raw: "cargo build --release", WorkDir: dir})
	assert.Equal(t, rchapi.Compilation, got.Verdict)
	assert.LessOrEqual(t, int(got.Tier), int(rchapi.TierHeuristic))
}

func TestClassifyPipeToTeeIsCompilation(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]"), 0o600))

	got := c.Classify(rchapi.Command{Raw: "cargo build 2>&1 | tee build.log", WorkDir: dir})
	assert.Equal(t, rchapi.Compilation, got.Verdict)
}

func TestClassifyPipeToProcessingIsLocalReject(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "cargo build --message-format=json | jq .", WorkDir: t.TempDir()})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, rchapi.TierShellParse, got.Tier)
}

func TestClassifyCargoRunIsLocalReject(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "cargo run --release"})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, rchapi.TierShellParse, got.Tier)
}

func TestClassifyCargoTestIsLocalReject(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "cargo test"})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
}

func TestClassifyHelpFlagIsLocalReject(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "cargo build --help"})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
}

func TestClassifyWholeCommandSubstitutionIsLocalReject(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: "$(cargo build --release)"})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, rchapi.TierShellParse, got.Tier)
}

func TestClassifyCommandSubstitutionInArgumentIsAllowed(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x"), 0o600))

	got := c.Classify(rchapi.Command{Raw: "go build -o $(mktemp) main.go", WorkDir: dir})
	assert.Equal(t, rchapi.Compilation, got.Verdict)
}

func TestClassifyEmptyCommandIsMalformed(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	got := c.Classify(rchapi.Command{Raw: ""})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, string(rchapi.ReasonMalformedInput), got.Reason)
}

func TestClassifyTooLongCommand(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	huge := make([]byte, MaxCommandLength+1)
	for i := range huge {
		huge[i] = 'a'
	}

	got := c.Classify(rchapi.Command{Raw: string(huge)})
	assert.Equal(t, rchapi.LocalReject, got.Verdict)
	assert.Equal(t, string(rchapi.ReasonTooLong), got.Reason)
}

func TestClassifyNeverSuspendsAndIsTotal(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t)

	commands := []string{
		"", "   ", "cd /x", "cargo build", "ls -la", "make -j8",
		"$(echo hi)", "go build ./... | grep error", "git commit -m x",
	}
	for _, cmd := range commands {
		got := c.Classify(rchapi.Command{Raw: cmd})
		assert.Contains(t, []rchapi.Verdict{rchapi.LocalReject, rchapi.RemoteCandidate, rchapi.Compilation}, got.Verdict)
	}
}

func TestRepeatedFingerprintScoresHigherSecondTime(t *testing.T) {
	t.Parallel()
	c, err := New(Config{ConfidenceThreshold: 6})
	require.NoError(t, err)

	dir := t.TempDir()
	cmd := rchapi.Command{Raw: "cc -c foo.c -o foo.o", WorkDir: dir}

	first := c.Classify(cmd)
	second := c.Classify(cmd)

	assert.GreaterOrEqual(t, second.Confidence, first.Confidence)
}

func TestSplitSequentialIndependentSegments(t *testing.T) {
	t.Parallel()

	got := SplitSequential("cargo build && cargo test; ls -la")
	assert.Equal(t, []string{"cargo build", "cargo test", "ls -la"}, got)
}

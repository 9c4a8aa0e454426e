package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "foo.c", "int main(){return 0;}")
	writeFile(t, src, "build/out.o", "binary garbage")

	cfg := DefaultConfig()

	var buf bytes.Buffer
	res, mf, err := packTree(&buf, src, cfg.CompressionLevel, cfg.ExcludePatterns, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files, "build/** must be excluded")
	_, ok := mf.entries["foo.c"]
	assert.True(t, ok)

	dst := t.TempDir()
	unpackRes, err := unpackTree(&buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, unpackRes.Files)

	got, err := os.ReadFile(filepath.Join(dst, "foo.c"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){return 0;}", string(got))

	_, err = os.Stat(filepath.Join(dst, "build", "out.o"))
	assert.True(t, os.IsNotExist(err), "excluded path must not appear in the unpacked tree")
}

func TestPackSkipsUnchangedFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "foo.c", "same content")

	cfg := DefaultConfig()

	var first bytes.Buffer
	_, mf1, err := packTree(&first, src, cfg.CompressionLevel, nil, 0, nil)
	require.NoError(t, err)

	skip := func(rel string) bool { return mf1.unchanged(mf1, rel) }

	var second bytes.Buffer
	res2, _, err := packTree(&second, src, cfg.CompressionLevel, nil, 0, skip)
	require.NoError(t, err)
	assert.Zero(t, res2.Files, "an unchanged file's body must be skipped entirely")
}

func TestPackRespectsMaxFileSize(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "big.bin", "0123456789")

	var buf bytes.Buffer
	res, _, err := packTree(&buf, src, DefaultConfig().CompressionLevel, nil, 5, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Files, "a file over max size must be skipped")
}

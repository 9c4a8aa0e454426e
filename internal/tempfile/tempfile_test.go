package tempfile_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rchlabs/rch/internal/tempfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New()
	require.NoError(t, err, `New() = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
		assert.NoError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
	})

	assert.True(t, strings.HasPrefix(f.Name(), os.TempDir()))
}

func TestNewWithFilename(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithName("foo.txt"))
	require.NoError(t, err, `New(WithName("foo.txt")) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
		assert.NoError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
	})

	assert.True(t, strings.HasPrefix(f.Name(), os.TempDir()))
}

func TestNewWithDir(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithDir("TestNewWithDir"))
	require.NoError(t, err, `New(WithDir("TestNewWithDir")) = %v`, err)

	dir := filepath.Join(os.TempDir(), "TestNewWithDir")

	t.Cleanup(func() {
		assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
		assert.NoError(t, os.RemoveAll(dir), "failed to remove dir: %s", dir)
	})

	assert.True(t, strings.HasPrefix(f.Name(), dir))
}

func TestNewWithPerms(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("Windows doesn't support or need checking if chmod worked")
	}

	f, err := tempfile.New(tempfile.WithPerms(0o600))
	require.NoError(t, err, `New(WithPerms(0o600)) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
		assert.NoError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
	})

	fi, err := os.Stat(f.Name())
	require.NoError(t, err, "os.Stat(%q) = %s", f.Name(), err)

	assert.True(t, fi.Mode().Perm() == os.FileMode(0o600))
}

func TestNewWithFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithName("foo.txt"), tempfile.KeepingExtension())
	require.NoError(t, err, `New(WithName("foo.txt"), KeepingExtension()) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
		assert.NoError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
	})

	assert.True(t, filepath.Ext(f.Name()) == ".txt")
}

func TestNewWithoutFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.KeepingExtension())
	require.NoError(t, err, `New(KeepingExtension()) = %v`, err)

	assert.NoError(t, f.Close(), "failed to close file: %s", f.Name())
	require.NoError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
}

func TestNewClosed(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed()
	require.NoError(t, err, `NewClosed() = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, os.Remove(filename), "failed to remove file: %s", filename)
	})

	assert.True(t, strings.HasPrefix(filename, os.TempDir()))
}

func TestNewClosedWithFilename(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithName("foo.txt"))
	require.NoError(t, err, `NewClosed(WithName("foo.txt")) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, os.Remove(filename), "failed to remove file: %s", filename)
	})

	assert.True(t, strings.HasPrefix(filename, os.TempDir()))
}

func TestNewClosedWithDir(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithDir("TestNewClosedWithDir"))
	require.NoError(t, err, `NewClosed(WithDir("TestNewClosedWithDir")) = %v`, err)

	dir := filepath.Join(os.TempDir(), "TestNewClosedWithDir")

	t.Cleanup(func() {
		assert.NoError(t, os.RemoveAll(dir), "failed to remove dir: %s", dir)
	})

	assert.True(t, strings.HasPrefix(filename, dir))
}

func TestNewClosedWithPerms(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("Windows doesn't support or need checking if chmod worked")
	}

	filename, err := tempfile.NewClosed(tempfile.WithPerms(0o600))
	require.NoError(t, err, `NewClosed(WithPerms(0o600)) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, os.Remove(filename), "failed to remove file: %s", filename)
	})

	fi, err := os.Stat(filename)
	require.NoError(t, err, "os.Stat(%q) = %s", filename, err)

	assert.True(t, fi.Mode().Perm() == os.FileMode(0o600))
}

func TestNewClosedWithFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithName("foo.txt"), tempfile.KeepingExtension())
	require.NoError(t, err, `NewClosed(WithName("foo.txt"), KeepingExtension()) = %v`, err)

	t.Cleanup(func() {
		assert.NoError(t, os.Remove(filename), "failed to remove file: %s", filename)
	})

	assert.True(t, filepath.Ext(filename) == ".txt")
}

func TestNewClosedWithoutFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.KeepingExtension())
	require.NoError(t, err, `NewClosed(KeepingExtension()) = %v`, err)

	require.NoError(t, os.Remove(filename), "failed to remove file: %s", filename)
}

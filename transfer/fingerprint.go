package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// fileEntry is one path's content identity within a workspace manifest,
// keyed on path plus content hash so an unchanged file is skipped on both
// Upload and Fetch.
type fileEntry struct {
	RelPath string
	Size    int64
	SHA256  string
}

// manifest is a workspace snapshot: every regular file under a root,
// excluding anything matched by the caller's exclude patterns.
type manifest struct {
	entries map[string]fileEntry
}

func newManifest() *manifest {
	return &manifest{entries: make(map[string]fileEntry)}
}

func (m *manifest) add(relPath string, size int64, sum string) {
	m.entries[relPath] = fileEntry{RelPath: relPath, Size: size, SHA256: sum}
}

// unchanged reports whether relPath exists in both manifests with an
// identical content hash, meaning its body can be skipped entirely.
func (m *manifest) unchanged(other *manifest, relPath string) bool {
	a, ok := m.entries[relPath]
	if !ok {
		return false
	}
	b, ok := other.entries[relPath]
	if !ok {
		return false
	}
	return a.SHA256 == b.SHA256 && a.Size == b.Size
}

// matches reports whether relPath is present in m with exactly the given
// hash and size, letting a caller check a freshly hashed file against a
// prior manifest without building a second manifest just to call unchanged.
func (m *manifest) matches(relPath, sum string, size int64) bool {
	e, ok := m.entries[relPath]
	return ok && e.SHA256 == sum && e.Size == size
}

// hashFile computes a file's content hash, used to populate a manifest
// entry and to decide whether Upload/Fetch can skip its body.
func hashFile(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

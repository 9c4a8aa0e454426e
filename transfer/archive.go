package transfer

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// packResult summarises one archive pass, used to fill a TransferSession's
// byte/file counters.
type packResult struct {
	Files           int
	BytesUncompressed int64
	BytesCompressed int64
}

// packTree tars and zstd-compresses every regular file under root whose
// workspace-relative path is not matched by exclude and, when skip is
// non-nil, whose content hash skip reports unchanged (skipped files are
// recorded in the manifest but never written to dst).
func packTree(dst io.Writer, root string, level EncoderLevel, exclude []string, maxFileSize int64, skip func(relPath string) bool) (packResult, *manifest, error) {
	zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(level))
	if err != nil {
		return packResult{}, nil, fmt.Errorf("zstd writer: %w", err)
	}
	defer func() { _ = zw.Close() }()

	tw := tar.NewWriter(zw)
	defer func() { _ = tw.Close() }()

	mf := newManifest()
	var res packResult

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(exclude, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			return nil
		}

		sum, size, err := hashFile(path)
		if err != nil {
			return err
		}
		mf.add(rel, size, sum)

		if skip != nil && skip(rel) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		n, err := io.Copy(tw, f)
		if err != nil {
			return err
		}

		res.Files++
		res.BytesUncompressed += n
		return nil
	})
	if err != nil {
		return packResult{}, nil, err
	}

	return res, mf, nil
}

// unpackTree reads a tar+zstd stream written by packTree and atomically
// writes each entry under root: write-to-temp-then-rename, so a reader
// never observes a partially written file. Before renaming, it hashes the
// destination path (if any) and skips the rename entirely when an
// identical-content file is already there, so a repeated Fetch of an
// unchanged workspace never disturbs the local tree's mtimes. A stream with
// no bytes at all is a legitimate outcome — a sync-back pattern that
// matched nothing, or a no-op re-run — and yields an empty result rather
// than an error.
func unpackTree(src io.Reader, root string) (packResult, error) {
	br := bufio.NewReader(src)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return packResult{}, nil
		}
		return packResult{}, err
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return packResult{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	var res packResult

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return packResult{}, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dest := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return packResult{}, err
		}

		tmp, err := os.CreateTemp(filepath.Dir(dest), ".rch-fetch-*")
		if err != nil {
			return packResult{}, err
		}
		n, err := io.Copy(tmp, tr)
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return packResult{}, err
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return packResult{}, err
		}

		sum, _, err := hashFile(tmp.Name())
		if err != nil {
			_ = os.Remove(tmp.Name())
			return packResult{}, err
		}
		if existingSum, existingSize, err := hashFile(dest); err == nil && existingSum == sum && existingSize == n {
			_ = os.Remove(tmp.Name())
			res.Files++
			res.BytesUncompressed += n
			continue
		}

		if err := os.Chmod(tmp.Name(), fs.FileMode(hdr.Mode)); err != nil {
			_ = os.Remove(tmp.Name())
			return packResult{}, err
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			_ = os.Remove(tmp.Name())
			return packResult{}, err
		}

		res.Files++
		res.BytesUncompressed += n
	}

	return res, nil
}

// EncoderLevel re-exports zstd's level type so callers outside this
// package never need to import klauspost/compress/zstd directly.
type EncoderLevel = zstd.EncoderLevel

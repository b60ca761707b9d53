// Package packager turns bundle directories into zip archives, unpacks
// them safely, and assembles the combined root of multi-pack bundles.
package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/smartguitar/sgc/internal/integrity"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/logging"
	"github.com/smartguitar/sgc/pkg/pathutil"
)

// zipEpoch is the modification time stamped on every entry so that equal
// trees produce equal archives.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Archive describes a written zip file.
type Archive struct {
	Path    string
	Entries int
	Size    int64
	SHA256  integrity.Digest
}

// ZipDir archives every regular file below dir into dst. Entry names are
// relative to dir, use forward slashes and are written in sorted order.
// The archive is written to a temporary file and renamed into place.
func ZipDir(ctx context.Context, dir, dst string, level Level) (*Archive, error) {
	files, special, err := integrity.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(special) > 0 {
		return nil, errclass.ErrPathEscape.WithMessagef("refusing to archive non-regular file %s", special[0])
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("create zip parent: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".sgc-zip-*")
	if err != nil {
		return nil, fmt.Errorf("create temp zip: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level.flateLevel())
	})

	method := zip.Deflate
	if level == LevelNone {
		method = zip.Store
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := addFile(zw, dir, rel, method); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync zip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return nil, fmt.Errorf("rename zip: %w", err)
	}
	success = true

	digest, size, err := integrity.SumFile(dst)
	if err != nil {
		return nil, fmt.Errorf("hash zip: %w", err)
	}
	logging.Debug("zip written", map[string]any{
		"path":    dst,
		"entries": len(files),
		"size":    size,
		"level":   level.String(),
	})
	return &Archive{Path: dst, Entries: len(files), Size: size, SHA256: digest}, nil
}

func addFile(zw *zip.Writer, dir, rel string, method uint16) error {
	fh := &zip.FileHeader{
		Name:     rel,
		Method:   method,
		Modified: zipEpoch,
	}
	fh.SetMode(0644)
	w, err := zw.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", rel, err)
	}
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compress %s: %w", rel, err)
	}
	return nil
}

// Limits bounds what Extract accepts.
type Limits struct {
	MaxEntries    int
	MaxEntryBytes int64
	MaxTotalBytes int64
}

// DefaultLimits are generous for practice content and small enough to
// stop decompression bombs.
var DefaultLimits = Limits{
	MaxEntries:    10000,
	MaxEntryBytes: 256 << 20,
	MaxTotalBytes: 1 << 30,
}

// ErrArchive marks an archive that cannot be unpacked: not a zip, corrupt
// entries, or entries beyond the extraction limits. Other Extract errors
// come from the local filesystem.
var ErrArchive = errors.New("unusable zip archive")

// archiveReader tags read errors from a zip entry with ErrArchive.
type archiveReader struct{ r io.Reader }

func (a archiveReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrArchive, err)
	}
	return n, err
}

// Extract unpacks src into dst, which must exist. Entries with absolute
// names, names that leave dst, symlinks and entries beyond lim are
// rejected.
func Extract(ctx context.Context, src, dst string, lim Limits) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errclass.ErrFileNotFound.WithMessagef("zip %s", src)
		}
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return fmt.Errorf("open zip %s: %w", src, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrArchive, src, err)
	}
	defer zr.Close()

	if len(zr.File) > lim.MaxEntries {
		return fmt.Errorf("%w: %s has %d entries, limit is %d", ErrArchive, src, len(zr.File), lim.MaxEntries)
	}

	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := extractEntry(f, dst, lim, lim.MaxTotalBytes-total)
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func extractEntry(f *zip.File, dst string, lim Limits, remaining int64) (int64, error) {
	mode := f.Mode()
	if mode&fs.ModeSymlink != 0 {
		return 0, errclass.ErrPathEscape.WithMessagef("zip entry %s is a symlink", f.Name)
	}
	if mode.IsDir() {
		target, err := pathutil.JoinWithin(dst, f.Name)
		if err != nil {
			return 0, err
		}
		return 0, os.MkdirAll(target, 0755)
	}
	if !mode.IsRegular() {
		return 0, errclass.ErrPathEscape.WithMessagef("zip entry %s is not a regular file", f.Name)
	}
	target, err := pathutil.JoinWithin(dst, f.Name)
	if err != nil {
		return 0, err
	}

	limit := min(lim.MaxEntryBytes, remaining)
	if f.UncompressedSize64 > uint64(limit) {
		return 0, fmt.Errorf("%w: entry %s exceeds size limit", ErrArchive, f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: entry %s: %w", ErrArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", f.Name, err)
	}
	// The declared size can lie; count what is actually inflated.
	n, err := io.Copy(out, io.LimitReader(archiveReader{rc}, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if n > limit {
		return n, fmt.Errorf("%w: entry %s exceeds size limit", ErrArchive, f.Name)
	}
	return n, nil
}

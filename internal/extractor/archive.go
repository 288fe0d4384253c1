package extractor

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode"
)

// archive expands path into a scoped directory, extracts every member
// recursively and concatenates the member texts in lexical path order.
// The directory is removed on every exit path.
func (e *Extractor) archive(ctx context.Context, path string, st *state) (string, error) {
	if st.depth >= e.cfg.MaxArchiveDepth {
		return "", ErrDepthExceeded
	}

	dir, err := os.MkdirTemp(e.cfg.TempDir, "hawk-archive-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	switch format := archiveFormat(path); format {
	case formatZip:
		err = st.unzip(path, dir)
	case formatTar:
		err = st.untar(path, dir, false)
	case formatTarGz:
		err = st.untar(path, dir, true)
	case formatRar:
		err = st.unrar(path, dir)
	default:
		err = fmt.Errorf("%w: unknown archive format", ErrUnsupported)
	}
	if err != nil {
		return "", err
	}

	st.depth++
	defer func() { st.depth-- }()

	var parts []string
	err = filepath.WalkDir(dir, func(member string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		text, err := e.extract(ctx, member, st)
		if err != nil {
			if errors.Is(err, ErrSizeExceeded) || ctx.Err() != nil {
				return err
			}
			rel, _ := filepath.Rel(dir, member)
			e.log.WithError(err).WithField("path", path).WithField("member", rel).Debug("Skipping archive member")
			return nil
		}
		parts = append(parts, text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// target resolves an archive entry name inside dir, rejecting entries that
// would escape it.
func target(dir, name string) (string, bool) {
	p := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// write copies one member to disk, charging it against the size budget.
func (st *state) write(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	limit := st.remaining
	if limit < 1<<62 {
		limit++
	}
	n, err := io.Copy(out, io.LimitReader(r, limit))
	st.remaining -= n
	if st.remaining < 0 {
		return ErrSizeExceeded
	}
	return err
}

func (st *state) unzip(path, dir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dst, ok := target(dir, f.Name)
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = st.write(dst, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (st *state) untar(path, dir string, gzipped bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dst, ok := target(dir, hdr.Name)
		if !ok {
			continue
		}
		if err := st.write(dst, tr); err != nil {
			return err
		}
	}
}

func (st *state) unrar(path, dir string) error {
	rr, err := rardecode.OpenReader(path, "")
	if err != nil {
		return err
	}
	defer rr.Close()

	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.IsDir {
			continue
		}
		dst, ok := target(dir, hdr.Name)
		if !ok {
			continue
		}
		if err := st.write(dst, rr); err != nil {
			return err
		}
	}
}

package pipeline

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// ErrArchive reports a zip that could not be opened, extracted or rebuilt
var ErrArchive = errors.New("cannot process archive")

// processArchive extracts zipPath to scratch space, walks it with the same
// target and packs the converted tree into outZip. Scratch space is removed on
// every return path.
func (w *Walker) processArchive(zipPath, outZip string, report *Report, show func(string) string) error {
	dirs, err := acquireScratch(w.archive.ScratchDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	defer func() {
		if err := dirs.Release(); err != nil {
			log.Printf("Failed to remove scratch directories for %s: %v", show(zipPath), err)
		}
	}()

	if err := extractZip(zipPath, dirs.extract); err != nil {
		return fmt.Errorf("%w: failed to extract: %w", ErrArchive, err)
	}

	inner := func(p string) string {
		if rel, ok := within(dirs.extract, p); ok {
			return show(zipPath) + "!" + rel
		}
		if rel, ok := within(dirs.output, p); ok {
			return show(outZip) + "!" + rel
		}
		return p
	}
	if err := w.walk(dirs.extract, dirs.output, report, inner); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	if err := os.MkdirAll(filepath.Dir(outZip), 0755); err != nil {
		return fmt.Errorf("%w: failed to create output folder: %w", ErrArchive, err)
	}

	if err := packZip(dirs.output, outZip, w.archive.Deflate); err != nil {
		return fmt.Errorf("%w: failed to write zip: %w", ErrArchive, err)
	}

	return nil
}

// within returns p relative to root in slash form when p lies inside root
func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func extractZip(zipPath, dir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(f, dir); err != nil {
			return err
		}
	}

	return nil
}

func extractEntry(f *zip.File, dir string) error {
	target, err := entryPath(dir, f.Name)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.Name, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}

	return out.Close()
}

// entryPath resolves an entry name inside dir, rejecting names that would land outside it
func entryPath(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the archive root", name)
	}
	return filepath.Join(dir, clean), nil
}

// packZip writes every regular file under srcDir into a new zip at zipPath,
// named by its slash-separated path relative to srcDir
func packZip(srcDir, zipPath string, deflate bool) (err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(zipPath)
		}
	}()

	method := zip.Store
	if deflate {
		method = zip.Deflate
	}

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, srcDir, path, d, method)
	})
	if walkErr != nil {
		zw.Close()
		return walkErr
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, root, path string, d fs.DirEntry, method uint16) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	header.Method = method

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(w, in)
	return err
}

package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"canvasfit/canvas"
)

// ErrListDir reports a nested directory whose entries could not be read
var ErrListDir = errors.New("cannot list directory")

// ArchiveOptions controls how zip archives are rebuilt
type ArchiveOptions struct {
	// ScratchDir is where temporary extract/output directories are created.
	// Empty means os.TempDir().
	ScratchDir string
	// Deflate compresses rebuilt archive entries. Entries are stored otherwise.
	Deflate bool
}

// Walker mirrors an input tree onto an output tree, converting recognized images
// and rebuilding zip archives along the way
type Walker struct {
	target  canvas.Target
	convert canvas.Options
	archive ArchiveOptions
}

// NewWalker creates a walker that converts every image to target
func NewWalker(target canvas.Target, convert canvas.Options, archive ArchiveOptions) *Walker {
	return &Walker{
		target:  target,
		convert: convert,
		archive: archive,
	}
}

// Target returns the conversion target used for every image
func (w *Walker) Target() canvas.Target {
	return w.target
}

// node is a pending directory entry together with its mirrored output path
type node struct {
	entry fs.DirEntry
	src   string
	dst   string
}

// Walk processes everything below inputDir into outputDir. Failures of single
// images, archives or nested directories are recorded in the report and logged;
// only a failure to read inputDir itself is returned as an error.
func (w *Walker) Walk(inputDir, outputDir string) (*Report, error) {
	report := &Report{}
	if err := w.walk(inputDir, outputDir, report, plainPath); err != nil {
		return report, err
	}
	return report, nil
}

func plainPath(p string) string { return p }

// walk does a pre-order traversal using an explicit stack. show maps real paths
// to the names used in logs and outcomes.
func (w *Walker) walk(inputDir, outputDir string, report *Report, show func(string) string) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("failed to read input directory: %w", err)
	}

	stack := push(nil, inputDir, outputDir, entries)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch entryKind(n) {
		case kindDir:
			children, err := os.ReadDir(n.src)
			if err != nil {
				w.record(report, Outcome{Kind: KindDirectory, Source: show(n.src), Err: fmt.Errorf("%w: %w", ErrListDir, err)})
				continue
			}
			stack = push(stack, n.src, n.dst, children)

		case kindFile:
			switch {
			case IsImage(n.src):
				dst := OutputName(n.dst)
				err := canvas.Convert(n.src, dst, w.target, w.convert)
				w.record(report, Outcome{Kind: KindImage, Source: show(n.src), Destination: show(dst), Err: err})
			case IsArchive(n.src):
				err := w.processArchive(n.src, n.dst, report, show)
				w.record(report, Outcome{Kind: KindArchive, Source: show(n.src), Destination: show(n.dst), Err: err})
			}
		}
	}

	return nil
}

// push adds entries in reverse so they are popped in directory order
func push(stack []node, src, dst string, entries []fs.DirEntry) []node {
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].Name()
		stack = append(stack, node{
			entry: entries[i],
			src:   filepath.Join(src, name),
			dst:   filepath.Join(dst, name),
		})
	}
	return stack
}

type nodeKind int

const (
	kindOther nodeKind = iota
	kindDir
	kindFile
)

// entryKind classifies a node. Symlinks to regular files count as files;
// symlinked directories are not followed.
func entryKind(n node) nodeKind {
	mode := n.entry.Type()
	switch {
	case mode.IsDir():
		return kindDir
	case mode.IsRegular():
		return kindFile
	case mode&fs.ModeSymlink != 0:
		info, err := os.Stat(n.src)
		if err != nil || !info.Mode().IsRegular() {
			return kindOther
		}
		return kindFile
	default:
		return kindOther
	}
}

func (w *Walker) record(report *Report, o Outcome) {
	report.add(o)

	if o.Err != nil {
		log.Printf("Failed to process %s %s: %v", o.Kind, o.Source, o.Err)
		return
	}
	log.Printf("Converted: %s -> %s", o.Source, o.Destination)
}

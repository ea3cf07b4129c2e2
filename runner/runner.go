package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"canvasfit/canvas"
	"canvasfit/pipeline"
)

// Options configures one orchestration pass
type Options struct {
	ImportDir string
	ExportDir string
	Target    canvas.Target
	Convert   canvas.Options
	Archive   pipeline.ArchiveOptions
}

// Result describes what a pass did
type Result struct {
	// Bootstrapped is set when the import folder did not exist and was created instead of processed
	Bootstrapped bool
	Report       *pipeline.Report
}

// Runner converts the import folder into the export folder and empties the import folder afterwards
type Runner struct {
	opts   Options
	walker *pipeline.Walker
}

// New creates a runner
func New(opts Options) *Runner {
	return &Runner{
		opts:   opts,
		walker: pipeline.NewWalker(opts.Target, opts.Convert, opts.Archive),
	}
}

// Run performs one pass. Per-file failures are reported in the result; the
// returned error is reserved for problems with the import/export folders themselves.
func (r *Runner) Run() (*Result, error) {
	if _, err := os.Stat(r.opts.ImportDir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(r.opts.ImportDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create input folder: %w", err)
		}
		log.Printf("Created input folder: %s", r.opts.ImportDir)
		return &Result{Bootstrapped: true}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to access input folder: %w", err)
	}

	if err := os.MkdirAll(r.opts.ExportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	// Only what is present now gets cleared. Files arriving during the pass
	// stay in the import folder for the next one.
	snapshot, err := listTree(r.opts.ImportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input folder: %w", err)
	}

	log.Printf("Converting %s -> %s at %s", r.opts.ImportDir, r.opts.ExportDir, r.walker.Target())

	report, err := r.walker.Walk(r.opts.ImportDir, r.opts.ExportDir)
	if err != nil {
		return nil, err
	}

	result := &Result{Report: report}
	if err := clearEntries(snapshot); err != nil {
		return result, fmt.Errorf("failed to clear input folder: %w", err)
	}

	log.Printf("Done: %d converted, %d failed", report.Succeeded(), report.Failed())
	return result, nil
}

// treeEntry is a path below the import folder as seen before a pass
type treeEntry struct {
	path string
	dir  bool
}

// listTree returns everything below root in pre-order, root itself excluded
func listTree(root string) ([]treeEntry, error) {
	var entries []treeEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if path == root {
			return err
		}
		if err != nil {
			// Unreadable subfolder, already recorded on the first visit
			return nil
		}
		entries = append(entries, treeEntry{path: path, dir: d.IsDir()})
		return nil
	})
	return entries, err
}

// clearEntries removes the listed paths. Folders are removed only once they
// are empty, so anything added to them after listing is kept.
func clearEntries(entries []treeEntry) error {
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.dir {
			if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}

		children, err := os.ReadDir(e.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			errs = append(errs, err)
		case len(children) == 0:
			if err := os.Remove(e.path); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

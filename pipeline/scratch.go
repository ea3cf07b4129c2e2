package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// scratch holds the two temporary directories used while rebuilding one archive
type scratch struct {
	extract string
	output  string
}

// acquireScratch creates both directories under base (os.TempDir when empty).
// Callers must defer Release as soon as it returns without error.
func acquireScratch(base string) (*scratch, error) {
	extract, err := os.MkdirTemp(base, "canvasfit-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	output, err := os.MkdirTemp(base, "canvasfit-output-*")
	if err != nil {
		os.RemoveAll(extract)
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &scratch{extract: extract, output: output}, nil
}

// Release removes both directories and everything in them
func (s *scratch) Release() error {
	return errors.Join(os.RemoveAll(s.extract), os.RemoveAll(s.output))
}

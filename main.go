package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"canvasfit/canvas"
	"canvasfit/config"
	"canvasfit/pipeline"
	"canvasfit/runner"
	"canvasfit/watcher"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "canvasfit WIDTH HEIGHT",
		Short: "Batch convert images to fixed-size PNG canvases",
		Long: "Converts every image under the import folder (including images inside zip\n" +
			"archives) to a WIDTH x HEIGHT transparent PNG, mirrors the tree into the\n" +
			"export folder and empties the import folder afterwards.",
		Args: func(cmd *cobra.Command, args []string) error {
			_, err := parseTarget(args)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors print usage; anything after this point does not
			cmd.SilenceUsage = true

			target, err := parseTarget(args)
			if err != nil {
				return err
			}

			fmt.Println("canvasfit - batch image converter")
			fmt.Println("=================================")

			opts, debounce, err := loadOptions(configPath, target)
			if err != nil {
				return err
			}

			r := runner.New(opts)
			if watch {
				return runWatch(r, opts.ImportDir, debounce)
			}
			_, err = r.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath+" if present)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and convert whenever the import folder changes")

	return cmd
}

func parseTarget(args []string) (canvas.Target, error) {
	if len(args) != 2 {
		return canvas.Target{}, fmt.Errorf("requires WIDTH and HEIGHT, received %d argument(s)", len(args))
	}

	width, err := strconv.Atoi(args[0])
	if err != nil {
		return canvas.Target{}, fmt.Errorf("invalid width %q: must be an integer", args[0])
	}
	height, err := strconv.Atoi(args[1])
	if err != nil {
		return canvas.Target{}, fmt.Errorf("invalid height %q: must be an integer", args[1])
	}

	return canvas.NewTarget(width, height)
}

func loadOptions(configPath string, target canvas.Target) (runner.Options, time.Duration, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return runner.Options{}, 0, err
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath)
	}
	if err != nil {
		return runner.Options{}, 0, fmt.Errorf("failed to load config: %w", err)
	}

	importDir, err := filepath.Abs(cfg.Dirs.Import)
	if err != nil {
		return runner.Options{}, 0, fmt.Errorf("failed to resolve input folder: %w", err)
	}
	exportDir, err := filepath.Abs(cfg.Dirs.Export)
	if err != nil {
		return runner.Options{}, 0, fmt.Errorf("failed to resolve output folder: %w", err)
	}

	return runner.Options{
		ImportDir: importDir,
		ExportDir: exportDir,
		Target:    target,
		Convert:   canvas.Options{Compression: cfg.Output.PNGCompression()},
		Archive: pipeline.ArchiveOptions{
			ScratchDir: cfg.Archive.ScratchDir,
			Deflate:    cfg.Archive.Deflate,
		},
	}, cfg.Watch.Debounce, nil
}

func runWatch(r *runner.Runner, importDir string, debounce time.Duration) error {
	// First pass also creates the import folder so there is something to watch
	if _, err := r.Run(); err != nil {
		return err
	}

	w, err := watcher.New(importDir, debounce, func() {
		if _, err := r.Run(); err != nil {
			log.Printf("Conversion pass failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	log.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	return w.Stop()
}

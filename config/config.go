package config

import (
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory
const DefaultPath = "canvasfit.yaml"

// Config represents the application configuration
type Config struct {
	Dirs    DirsConfig    `yaml:"dirs"`
	Output  OutputConfig  `yaml:"output"`
	Archive ArchiveConfig `yaml:"archive"`
	Watch   WatchConfig   `yaml:"watch"`
}

type DirsConfig struct {
	Import string `yaml:"import"`
	Export string `yaml:"export"`
}

type OutputConfig struct {
	// Compression is one of: default, none, fast, best
	Compression string `yaml:"compression"`
}

type ArchiveConfig struct {
	ScratchDir string `yaml:"scratch_dir"`
	Deflate    bool   `yaml:"deflate"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

var compressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Dirs: DirsConfig{
			Import: "import",
			Export: "export",
		},
		Output: OutputConfig{
			Compression: "default",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load reads and parses the configuration file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(cfg)
}

// LoadOptional behaves like Load but falls back to defaults when path does not exist
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment if the file exists.
// Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides folder settings from CANVASFIT_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CANVASFIT_IMPORT_DIR"); v != "" {
		c.Dirs.Import = v
	}
	if v := os.Getenv("CANVASFIT_EXPORT_DIR"); v != "" {
		c.Dirs.Export = v
	}
	if v := os.Getenv("CANVASFIT_SCRATCH_DIR"); v != "" {
		c.Archive.ScratchDir = v
	}
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if c.Dirs.Import == "" {
		return fmt.Errorf("dirs.import is required")
	}
	if c.Dirs.Export == "" {
		return fmt.Errorf("dirs.export is required")
	}
	if c.Dirs.Import == c.Dirs.Export {
		return fmt.Errorf("dirs.import and dirs.export must differ")
	}
	if _, ok := compressionLevels[c.Output.Compression]; !ok {
		return fmt.Errorf("output.compression must be one of default, none, fast, best, got %q", c.Output.Compression)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// PNGCompression returns the encoder level for the configured compression name
func (o OutputConfig) PNGCompression() png.CompressionLevel {
	return compressionLevels[o.Compression]
}

// Package config loads and validates the optional .assemblr.yaml file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = ".assemblr.yaml"

// Default values for tool and runner configuration.
const (
	DefaultMaxOutput   = 1 << 20 // 1 MB
	DefaultThreads     = 1
	DefaultAssembler   = "megahit"
	DefaultSubsampler  = "sample_seqs"
	DefaultCompressor  = "pigz"
	DefaultPreset      = "default"
	DefaultLogFormat   = "json"
	DefaultLRUCapacity = 16
)

// Config holds the parsed .assemblr.yaml configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int              `yaml:"version"`
	RawTimeout   string           `yaml:"timeout"`    // e.g. "48h"; empty means no limit
	RawMaxOutput int              `yaml:"max_output"` // bytes of stdout/stderr kept per attempt
	RawThreads   int              `yaml:"threads"`
	RawRunsDir   string           `yaml:"runs_dir"` // where run records are written
	Log          LogConfig        `yaml:"log"`
	Assembler    AssemblerConfig  `yaml:"assembler"`
	Subsampler   SubsamplerConfig `yaml:"subsampler"`
	Compressor   CompressorConfig `yaml:"compressor"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// AssemblerConfig selects the assembly binary and its defaults.
type AssemblerConfig struct {
	Binary    string `yaml:"binary"`
	Preset    string `yaml:"preset"`     // default, meta-sensitive, meta-large, fast
	OutPrefix string `yaml:"out_prefix"` // passed as --out-prefix when set
}

// SubsamplerConfig selects the read-subsampling binary.
type SubsamplerConfig struct {
	Binary string `yaml:"binary"`
}

// CompressorConfig selects the tool used to compress final contigs.
type CompressorConfig struct {
	Binary string `yaml:"binary"` // pigz gets -p <threads>
}

// Timeout returns the configured per-process limit, or zero for none.
// Parse rejects malformed values; a Config built in code that carries one
// runs without a limit.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Threads returns the configured thread count, at least 1.
func (c *Config) Threads() int {
	if c.RawThreads > 0 {
		return c.RawThreads
	}
	return DefaultThreads
}

// RunsDir returns the run record directory. It falls back to
// <user cache dir>/assemblr/runs, or "" (a temp dir) if that is unknown.
func (c *Config) RunsDir() string {
	if c.RawRunsDir != "" {
		return c.RawRunsDir
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cache, "assemblr", "runs")
}

// AssemblerBinary returns the assembler binary, falling back to megahit.
func (c *Config) AssemblerBinary() string {
	return orDefault(c.Assembler.Binary, DefaultAssembler)
}

// AssemblerPreset returns the configured preset, falling back to "default".
func (c *Config) AssemblerPreset() string {
	return orDefault(c.Assembler.Preset, DefaultPreset)
}

// SubsamplerBinary returns the subsampling binary.
func (c *Config) SubsamplerBinary() string {
	return orDefault(c.Subsampler.Binary, DefaultSubsampler)
}

// CompressorBinary returns the compression binary, falling back to pigz.
func (c *Config) CompressorBinary() string {
	return orDefault(c.Compressor.Binary, DefaultCompressor)
}

// LogFormat returns the log format, falling back to json.
func (c *Config) LogFormat() string {
	return orDefault(c.Log.Format, DefaultLogFormat)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// LoadResult holds the parsed config and the file it came from.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file was found
}

// Load reads path, or FileName in dir when path is empty. A missing
// default file yields a default Config; a missing explicit path is an error.
// The document is validated against the embedded JSON schema before decoding.
func Load(dir, path string) (*LoadResult, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: &Config{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// Parse validates and decodes a YAML document. A timeout that is not a
// non-negative Go duration is rejected.
func Parse(data []byte) (*Config, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.RawTimeout != "" {
		d, err := time.ParseDuration(cfg.RawTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", cfg.RawTimeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid timeout %q: must not be negative", cfg.RawTimeout)
		}
	}
	return cfg, nil
}

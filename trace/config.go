// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package trace

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration faults reported by NewCollector and LoadConfig.
var (
	ErrInvalidBufferSize = errors.New("trace: buffer size must be a power of two")
	ErrNoOutputDir       = errors.New("trace: output directory must be set")
)

// Config configures a trace Collector.
type Config struct {
	// OutputDir receives one trace_thread_NNN.bin file per writer.
	// Created if missing.
	OutputDir string `yaml:"output_dir"`
	// BufferSize is the per-writer ring capacity in entries.
	// Must be a power of two.
	BufferSize uint32 `yaml:"buffer_size"`
	// Logger receives operational events (flush failures, shutdown).
	// Defaults to slog.Default.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default collector configuration:
// ./traces output, 64Ki entries (1 MiB) per writer.
func DefaultConfig() Config {
	return Config{
		OutputDir:  "./traces",
		BufferSize: 1 << 16,
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.BufferSize == 0 || c.BufferSize&(c.BufferSize-1) != 0 {
		return ErrInvalidBufferSize
	}
	return nil
}

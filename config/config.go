// Package config implements nanolog.InitEx's configuration object,
// spec.md §6's `{rotation_policy, base_path, format, text_pattern}`
// tuple plus the domain-stack tunables this expansion adds
// (BlockCompression, buffer sizing), and optional `.env`-style config
// overlay loading.
//
// The overlay loader is grounded on ClusterCockpit-cc-backend's use of
// github.com/joho/godotenv (its go.mod lists the same dependency for the
// same purpose: letting an operator override a handful of startup
// settings from a file without touching the process's real environment).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RotationPolicy selects how the active output file is chosen over time
// (spec.md §6's init_ex `rotation_policy`).
type RotationPolicy string

const (
	RotationNone  RotationPolicy = "NONE"
	RotationDaily RotationPolicy = "DAILY"
)

// FileFormat selects the on-disk representation (spec.md §6's init_ex
// `format`).
type FileFormat string

const (
	FormatBinary FileFormat = "BINARY"
	FormatText   FileFormat = "TEXT"
)

// BlockCompression is the SPEC_FULL §4.7a file-level transport
// compression knob, orthogonal to the mandatory per-entry codec.
type BlockCompression string

const (
	BlockCompressionNone BlockCompression = "NONE"
	BlockCompressionLZ4  BlockCompression = "LZ4"
	BlockCompressionZstd BlockCompression = "ZSTD"
)

// Config is the object init_ex accepts.
type Config struct {
	RotationPolicy RotationPolicy
	BasePath       string
	Format         FileFormat
	TextPattern    string // optional; only consulted when Format == FormatText

	BlockCompression  BlockCompression
	StagingBufferSize int // per-producer ring size, bytes
	WriterBufferSize  int // wire.Writer flush buffer size, bytes
	AffinityCore      int // -1 disables pinning
	HasTimestamps     bool
}

// Default returns the configuration Init(path) uses: single-file mode,
// no rotation, binary format, timestamps on, no block compression,
// unpinned consumer (spec.md §6: "single-file mode, timestamps enabled
// by default").
func Default(path string) Config {
	return Config{
		RotationPolicy:    RotationNone,
		BasePath:          path,
		Format:            FormatBinary,
		BlockCompression:  BlockCompressionNone,
		StagingBufferSize: 8 << 20, // 8 MiB
		WriterBufferSize:  4 << 20, // 4 MiB, wire.DefaultBufferSize
		AffinityCore:      -1,
		HasTimestamps:     true,
	}
}

// Extension returns the file extension Init/InitEx names rotated files
// with: ".clog" for binary traces, ".log" for text traces.
func (c Config) Extension() string {
	if c.Format == FormatText {
		return "log"
	}
	return "clog"
}

// Validate reports a descriptive error for any combination init_ex must
// reject up front (spec.md §7: "invalid path... returned as a non-zero
// status from the calling API; state remains un-initialised").
func (c Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("config: BasePath must not be empty")
	}
	switch c.RotationPolicy {
	case RotationNone, RotationDaily:
	default:
		return fmt.Errorf("config: unknown RotationPolicy %q", c.RotationPolicy)
	}
	switch c.Format {
	case FormatBinary, FormatText:
	default:
		return fmt.Errorf("config: unknown Format %q", c.Format)
	}
	switch c.BlockCompression {
	case BlockCompressionNone, BlockCompressionLZ4, BlockCompressionZstd:
	default:
		return fmt.Errorf("config: unknown BlockCompression %q", c.BlockCompression)
	}
	return nil
}

// LoadOverlay loads key=value pairs from an .env-style file at path into
// the process environment via godotenv, without overriding variables
// already set (godotenv.Load's documented behavior). A missing file is
// not an error — the overlay is optional.
func LoadOverlay(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides c's fields from NANOLOG_*-prefixed environment
// variables, for operators who prefer env-based overrides to editing a
// config file (typically populated by LoadOverlay's .env loader first).
// Unset variables leave the corresponding field untouched.
func (c Config) ApplyEnv() Config {
	if v, ok := os.LookupEnv("NANOLOG_ROTATION_POLICY"); ok {
		c.RotationPolicy = RotationPolicy(strings.ToUpper(v))
	}
	if v, ok := os.LookupEnv("NANOLOG_BASE_PATH"); ok {
		c.BasePath = v
	}
	if v, ok := os.LookupEnv("NANOLOG_FORMAT"); ok {
		c.Format = FileFormat(strings.ToUpper(v))
	}
	if v, ok := os.LookupEnv("NANOLOG_TEXT_PATTERN"); ok {
		c.TextPattern = v
	}
	if v, ok := os.LookupEnv("NANOLOG_BLOCK_COMPRESSION"); ok {
		c.BlockCompression = BlockCompression(strings.ToUpper(v))
	}
	if v, ok := os.LookupEnv("NANOLOG_STAGING_BUFFER_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.StagingBufferSize = n
		}
	}
	if v, ok := os.LookupEnv("NANOLOG_WRITER_BUFFER_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.WriterBufferSize = n
		}
	}
	if v, ok := os.LookupEnv("NANOLOG_AFFINITY_CORE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.AffinityCore = n
		}
	}
	return c
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pithecene-io/rdint/types"
)

// Config represents an rdint.yaml or rdint.toml configuration file.
// All values are optional and act as defaults for rdint run flags.
// CLI flags always override config values.
type Config struct {
	Interactive bool     `yaml:"interactive" toml:"interactive"`
	Autocrop    bool     `yaml:"autocrop" toml:"autocrop"`
	Clip        string   `yaml:"clip" toml:"clip"`
	Screen      string   `yaml:"screen" toml:"screen"`
	VectorOut   string   `yaml:"vector_out" toml:"vector_out"`
	RasterOut   string   `yaml:"raster_out" toml:"raster_out"`
	Verbosity   string   `yaml:"verbosity" toml:"verbosity"`
	Unit        string   `yaml:"unit" toml:"unit"`
	Source      string   `yaml:"source" toml:"source"`
	Breakpoints []string `yaml:"breakpoints" toml:"breakpoints"`
	Find        string   `yaml:"find" toml:"find"`
	TraceDB     string   `yaml:"tracedb" toml:"tracedb"`

	Trace   TraceConfig   `yaml:"trace" toml:"trace"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Policy  PolicyConfig  `yaml:"policy" toml:"policy"`
	Adapter AdapterConfig `yaml:"adapter" toml:"adapter"`
	Preview PreviewConfig `yaml:"preview" toml:"preview"`
}

// TraceConfig holds trace file defaults.
type TraceConfig struct {
	Path  string `yaml:"path" toml:"path"`
	Codec string `yaml:"codec" toml:"codec"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset" toml:"dataset"`
	Backend     string `yaml:"backend" toml:"backend"`
	Path        string `yaml:"path" toml:"path"`
	Region      string `yaml:"region" toml:"region"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style" toml:"s3_path_style"`
}

// PolicyConfig holds policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name" toml:"name"`
	BufferRecords int      `yaml:"buffer_records" toml:"buffer_records"`
	BufferBytes   int64    `yaml:"buffer_bytes" toml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count" toml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval" toml:"flush_interval"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type" toml:"type"`
	URL     string            `yaml:"url" toml:"url"`
	Channel string            `yaml:"channel,omitempty" toml:"channel"`
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout"`
	Retries *int              `yaml:"retries,omitempty" toml:"retries"`
}

// PreviewConfig holds live preview defaults.
type PreviewConfig struct {
	Path  string `yaml:"path" toml:"path"`
	Every int    `yaml:"every" toml:"every"`
}

// Duration wraps time.Duration for string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText parses a duration string. Used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ClipBox parses the clip geometry. An empty value yields an unset box.
func (c *Config) ClipBox() (types.BoundingBox, error) {
	return parseOptionalGeometry("clip", c.Clip)
}

// ScreenBox parses the screen geometry. An empty value yields an unset box.
func (c *Config) ScreenBox() (types.BoundingBox, error) {
	return parseOptionalGeometry("screen", c.Screen)
}

// BreakpointOffsets parses the hex breakpoint offsets. Offsets must be > 0.
func (c *Config) BreakpointOffsets() ([]int64, error) {
	return parseOffsets(c.Breakpoints)
}

// parseOffsets parses hex file offsets, with or without a 0x prefix.
func parseOffsets(values []string) ([]int64, error) {
	out := make([]int64, 0, len(values))
	for _, v := range values {
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "0x")
		off, err := strconv.ParseInt(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid breakpoint %q: %w", v, err)
		}
		if off <= 0 {
			return nil, fmt.Errorf("invalid breakpoint %q: must be greater than 0", v)
		}
		out = append(out, off)
	}
	return out, nil
}

func parseOptionalGeometry(key, value string) (types.BoundingBox, error) {
	if value == "" {
		return types.BoundingBox{}, nil
	}
	box, err := types.ParseGeometry(value)
	if err != nil {
		return types.BoundingBox{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return box, nil
}

// Package config holds the description of a complete gearstream run: the
// gearbox, the optional FIFO and zero run-length stages, the memory sink and
// the clock.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/gearstream/gearbox"
	"github.com/sarchlab/gearstream/rle"
	"github.com/sarchlab/gearstream/timing/cache"
)

var (
	// ErrUnknownFormat is returned for a config file extension that is not
	// .json, .toml, .yaml or .yml.
	ErrUnknownFormat = errors.New("unknown config file format")

	// ErrUnknownKey is returned when a TOML file sets a key that no field
	// reads.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalid is returned by Validate.
	ErrInvalid = errors.New("invalid config")
)

// GearboxConfig describes the width conversion stage.
type GearboxConfig struct {
	// InputWidth is the width of the words read from the input file.
	InputWidth int `json:"input_width" toml:"input_width" yaml:"input_width"`

	// OutputWidth is the width of the words the gearbox produces.
	OutputWidth int `json:"output_width" toml:"output_width" yaml:"output_width"`

	// Packetized enables the last marker.
	Packetized bool `json:"packetized" toml:"packetized" yaml:"packetized"`
}

// RLEConfig describes the optional zero run-length stage. It reads the
// gearbox output, so it requires a packetized gearbox.
type RLEConfig struct {
	Enabled bool `json:"enabled" toml:"enabled" yaml:"enabled"`

	ZeroValue  uint64 `json:"zero_value" toml:"zero_value" yaml:"zero_value"`
	RunLengths []int  `json:"run_lengths" toml:"run_lengths" yaml:"run_lengths"`
	InputMax   uint64 `json:"input_max" toml:"input_max" yaml:"input_max"`
}

// Code returns the run-length code described by c.
func (c RLEConfig) Code() rle.Config {
	return rle.Config{
		ZeroValue:  c.ZeroValue,
		RunLengths: append([]int(nil), c.RunLengths...),
		InputMax:   c.InputMax,
	}
}

// FIFOConfig describes the buffering stage in front of the encoder and
// sink.
type FIFOConfig struct {
	// Depth in words; zero removes the stage.
	Depth int `json:"depth" toml:"depth" yaml:"depth"`
}

// SinkConfig describes the memory sink and its line buffer.
type SinkConfig struct {
	BaseAddr      uint64 `json:"base_addr" toml:"base_addr" yaml:"base_addr"`
	LineSize      int    `json:"line_size" toml:"line_size" yaml:"line_size"`
	Lines         int    `json:"lines" toml:"lines" yaml:"lines"`
	Associativity int    `json:"associativity" toml:"associativity" yaml:"associativity"`
	MissLatency   uint64 `json:"miss_latency" toml:"miss_latency" yaml:"miss_latency"`

	// BurstThreshold is the FIFO level at which a new burst may start. Zero
	// disables the burst gate.
	BurstThreshold int `json:"burst_threshold" toml:"burst_threshold" yaml:"burst_threshold"`
}

// Cache returns the line buffer configuration.
func (c SinkConfig) Cache() cache.Config {
	return cache.Config{
		LineSize:      c.LineSize,
		Lines:         c.Lines,
		Associativity: c.Associativity,
		MissLatency:   c.MissLatency,
	}
}

// ClockConfig describes the simulated clock.
type ClockConfig struct {
	FrequencyMHz float64 `json:"frequency_mhz" toml:"frequency_mhz" yaml:"frequency_mhz"`
}

// Config is a complete run description.
type Config struct {
	Gearbox GearboxConfig `json:"gearbox" toml:"gearbox" yaml:"gearbox"`
	RLE     RLEConfig     `json:"rle" toml:"rle" yaml:"rle"`
	FIFO    FIFOConfig    `json:"fifo" toml:"fifo" yaml:"fifo"`
	Sink    SinkConfig    `json:"sink" toml:"sink" yaml:"sink"`
	Clock   ClockConfig   `json:"clock" toml:"clock" yaml:"clock"`

	// MaxTicks bounds a run; zero means until drained.
	MaxTicks uint64 `json:"max_ticks" toml:"max_ticks" yaml:"max_ticks"`
}

// DefaultConfig returns a packetized 8 to 32 bit gearbox feeding a 16-word
// FIFO and the memory sink, with the encoder disabled.
func DefaultConfig() *Config {
	lines := cache.DefaultConfig()
	return &Config{
		Gearbox: GearboxConfig{
			InputWidth:  8,
			OutputWidth: 32,
			Packetized:  true,
		},
		RLE: RLEConfig{
			RunLengths: []int{2, 4, 8, 16},
		},
		FIFO: FIFOConfig{Depth: 16},
		Sink: SinkConfig{
			BaseAddr:      0x1000,
			LineSize:      lines.LineSize,
			Lines:         lines.Lines,
			Associativity: lines.Associativity,
			MissLatency:   lines.MissLatency,
		},
		Clock: ClockConfig{FrequencyMHz: 100},
	}
}

// LoadConfig reads a config file and overlays it on the defaults. The format
// follows the file extension.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	switch format(path) {
	case "toml":
		meta, err := toml.DecodeFile(path, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: %q: %w", path, undecoded[0].String(), ErrUnknownKey)
		}
	case "json", "yaml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshal(path, data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	return config, nil
}

// SaveConfig writes the config in the format given by the file extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)

	switch format(path) {
	case "json":
		data, err = json.MarshalIndent(c, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(c)
	case "toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the stages can be built and connected.
func (c *Config) Validate() error {
	gb := gearbox.Config{
		InputWidth:  c.Gearbox.InputWidth,
		OutputWidth: c.Gearbox.OutputWidth,
		Packetized:  c.Gearbox.Packetized,
	}
	if err := gb.Validate(); err != nil {
		return fmt.Errorf("gearbox: %w", err)
	}

	if c.RLE.Enabled {
		if !c.Gearbox.Packetized {
			return fmt.Errorf("rle: %w", rle.ErrNotPacketized)
		}
		code := c.RLE.Code()
		if err := code.Validate(); err != nil {
			return fmt.Errorf("rle: %w", err)
		}
		if _, err := code.Alphabet(c.Gearbox.OutputWidth); err != nil {
			return fmt.Errorf("rle: %w", err)
		}
	}

	if c.FIFO.Depth < 0 || c.FIFO.Depth&(c.FIFO.Depth-1) != 0 {
		return fmt.Errorf("fifo depth %d is not a power of two: %w", c.FIFO.Depth, ErrInvalid)
	}

	if err := c.Sink.Cache().Validate(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if c.Sink.BurstThreshold < 0 || c.Sink.BurstThreshold > c.FIFO.Depth {
		return fmt.Errorf("burst threshold %d outside 0..%d: %w",
			c.Sink.BurstThreshold, c.FIFO.Depth, ErrInvalid)
	}

	if c.Clock.FrequencyMHz <= 0 {
		return fmt.Errorf("clock frequency %g MHz must be > 0: %w", c.Clock.FrequencyMHz, ErrInvalid)
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.RLE.RunLengths = append([]int(nil), c.RLE.RunLengths...)
	return &clone
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

func unmarshal(path string, data []byte, config *Config) error {
	if format(path) == "yaml" {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

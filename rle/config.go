// Package rle implements a zero run-length encoder and its decoder for
// packetized streams.
//
// The encoder passes every symbol through unchanged except maximal runs of
// the configured zero value, which it replaces with run codes drawn from a
// short table of supported run lengths. Code InputMax+k stands for a run of
// RunLengths[k] zeros; a remainder of one zero is sent as the literal zero.
// Runs never cross a packet boundary, so every packet decodes on its own.
package rle

import (
	"errors"
	"fmt"
	mathbits "math/bits"

	"golang.org/x/exp/slices"
)

var (
	// ErrInvalidRunLengths is returned for an empty, unsorted, duplicated or
	// non-positive run-length list.
	ErrInvalidRunLengths = errors.New("invalid run-length list")

	// ErrNotPacketized is returned when the input stream has no last marker.
	ErrNotPacketized = errors.New("input stream is not packetized")

	// ErrInvalidAlphabet is returned when the symbol alphabet cannot be
	// represented.
	ErrInvalidAlphabet = errors.New("invalid symbol alphabet")
)

// Config describes a zero run-length code.
type Config struct {
	// ZeroValue is the symbol whose runs get compressed.
	ZeroValue uint64 `json:"zero_value" toml:"zero_value" yaml:"zero_value"`

	// RunLengths lists the run lengths that have a code, strictly ascending.
	RunLengths []int `json:"run_lengths" toml:"run_lengths" yaml:"run_lengths"`

	// InputMax bounds the literal alphabet [0, InputMax). Zero means
	// 2^width of the literal stream.
	InputMax uint64 `json:"input_max" toml:"input_max" yaml:"input_max"`
}

// Validate checks the run-length list.
func (c Config) Validate() error {
	if len(c.RunLengths) == 0 {
		return fmt.Errorf("empty list: %w", ErrInvalidRunLengths)
	}
	if !slices.IsSorted(c.RunLengths) {
		return fmt.Errorf("%v is not ascending: %w", c.RunLengths, ErrInvalidRunLengths)
	}
	if len(slices.Compact(slices.Clone(c.RunLengths))) != len(c.RunLengths) {
		return fmt.Errorf("%v has duplicates: %w", c.RunLengths, ErrInvalidRunLengths)
	}
	if c.RunLengths[0] <= 0 {
		return fmt.Errorf("run length %d is not positive: %w", c.RunLengths[0], ErrInvalidRunLengths)
	}
	return nil
}

// MaxRunLength returns the longest codable run.
func (c Config) MaxRunLength() int {
	return c.RunLengths[len(c.RunLengths)-1]
}

// Alphabet resolves the literal alphabet bound for a literal stream of the
// given width.
func (c Config) Alphabet(literalWidth int) (uint64, error) {
	inputMax := c.InputMax
	if inputMax == 0 {
		if literalWidth >= 64 {
			return 0, fmt.Errorf("default alphabet of %d-bit literals does not fit: %w",
				literalWidth, ErrInvalidAlphabet)
		}
		inputMax = uint64(1) << uint(literalWidth)
	}

	if c.ZeroValue >= inputMax {
		return 0, fmt.Errorf("zero value %d outside [0, %d): %w",
			c.ZeroValue, inputMax, ErrInvalidAlphabet)
	}

	top := inputMax + uint64(len(c.RunLengths)) - 1
	if top < inputMax {
		return 0, fmt.Errorf("%d run codes above %d overflow: %w",
			len(c.RunLengths), inputMax, ErrInvalidAlphabet)
	}
	return inputMax, nil
}

// CodeWidth returns the width in bits of the encoded alphabet
// [0, inputMax + len(RunLengths)).
func (c Config) CodeWidth(inputMax uint64) int {
	return widthFor(inputMax + uint64(len(c.RunLengths)) - 1)
}

// LiteralWidth returns the width in bits of the literal alphabet
// [0, inputMax).
func LiteralWidth(inputMax uint64) int {
	return widthFor(inputMax - 1)
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	c.RunLengths = slices.Clone(c.RunLengths)
	return c
}

func widthFor(top uint64) int {
	w := mathbits.Len64(top)
	if w == 0 {
		return 1
	}
	return w
}

// Decompose returns the codes the encoder emits for a run of the given
// length, largest first. Each entry is an index into runLengths, or -1 for
// the literal zero.
func Decompose(run int, runLengths []int) []int {
	var codes []int
	for run > 0 {
		idx := largestFitting(run, runLengths)
		codes = append(codes, idx)
		if idx < 0 {
			run--
		} else {
			run -= runLengths[idx]
		}
	}
	return codes
}

// largestFitting returns the index of the largest run length not above
// run, or -1 if only the literal zero fits.
func largestFitting(run int, runLengths []int) int {
	for i := len(runLengths) - 1; i >= 0; i-- {
		if runLengths[i] <= run {
			return i
		}
	}
	return -1
}

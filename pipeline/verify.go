package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/gearbox"
	"github.com/sarchlab/gearstream/rle"
	"github.com/sarchlab/gearstream/stream"
	"github.com/sarchlab/gearstream/timing/core"
)

// ErrMismatch is returned by Verify when the output does not reproduce the
// input.
var ErrMismatch = errors.New("output does not reproduce input")

// Verify undoes a run: it expands run codes, converts the words back to the
// input width with a second gearbox and checks that every packet of input
// comes back. A restored packet may end with zero words the forward
// gearbox padded in; the trailing unterminated words may come back short
// because bits that never filled an output word stay buffered.
func Verify(cfg *config.Config, input, output []stream.Word) error {
	words := output
	if cfg.RLE.Enabled {
		code := cfg.RLE.Code()
		inputMax, err := code.Alphabet(cfg.Gearbox.OutputWidth)
		if err != nil {
			return err
		}
		words, err = rle.DecodeWords(output, code, inputMax)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMismatch, err)
		}
	}

	restored, err := Regear(words, cfg.Gearbox.OutputWidth, cfg.Gearbox.InputWidth, cfg.Gearbox.Packetized)
	if err != nil {
		return err
	}

	return comparePackets(stream.SplitPackets(input), stream.SplitPackets(restored))
}

// Regear runs words of width from through a gearbox to width to.
func Regear(words []stream.Word, from, to int, packetized bool) ([]stream.Word, error) {
	input := stream.New("regear.input", stream.Shape{Width: from, Last: packetized})
	if err := checkWords(input.Shape(), words); err != nil {
		return nil, err
	}

	g, err := gearbox.NewNamed("regear", input, to)
	if err != nil {
		return nil, err
	}
	src := stream.NewSource("regear.source", input, words, nil)
	dst := stream.NewSink("regear.sink", g.Output(), nil)

	sim := core.NewSimulator()
	sim.Add(src, g, dst)
	sim.Run()

	if !src.Done() {
		return nil, fmt.Errorf("regear %d to %d: %w", from, to, ErrStuck)
	}
	return dst.Words(), nil
}

func comparePackets(want, got [][]stream.Word) error {
	for i, packet := range want {
		terminated := packet[len(packet)-1].Last
		if i >= len(got) {
			if terminated {
				return fmt.Errorf("packet %d missing: %w", i, ErrMismatch)
			}
			return nil
		}
		if err := comparePacket(i, packet, got[i], terminated); err != nil {
			return err
		}
	}
	if len(got) > len(want) {
		return fmt.Errorf("%d extra packets: %w", len(got)-len(want), ErrMismatch)
	}
	return nil
}

func comparePacket(index int, want, got []stream.Word, terminated bool) error {
	if terminated && len(got) < len(want) {
		return fmt.Errorf("packet %d: %d words, want %d: %w", index, len(got), len(want), ErrMismatch)
	}

	n := min(len(want), len(got))
	for j := 0; j < n; j++ {
		if got[j].Payload != want[j].Payload {
			return fmt.Errorf("packet %d word %d: 0x%x, want 0x%x: %w",
				index, j, got[j].Payload, want[j].Payload, ErrMismatch)
		}
	}
	for j := n; j < len(got); j++ {
		if got[j].Payload != 0 {
			return fmt.Errorf("packet %d padding word %d is 0x%x: %w",
				index, j, got[j].Payload, ErrMismatch)
		}
	}
	return nil
}

package rle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/stream"
)

// Decoder expands an encoded stream back into literals. Literals pass
// through, code InputMax+k becomes RunLengths[k] zeros. A last marker on a
// code moves to the final expanded zero.
type Decoder struct {
	name   string
	config Config

	inputMax uint64

	input  *stream.Stream
	output *stream.Stream
	in     *stream.ConsumerPort
	out    *stream.ProducerPort

	pending     int
	pendingLast bool

	expanded uint64
	log      zerolog.Logger
}

// NewDecoder creates a decoder for codes produced with cfg from literals of
// literalWidth bits.
func NewDecoder(input *stream.Stream, cfg Config, literalWidth int) (*Decoder, error) {
	return NewNamedDecoder("unrle", input, cfg, literalWidth)
}

// NewNamedDecoder is NewDecoder with an explicit component name.
func NewNamedDecoder(
	name string,
	input *stream.Stream,
	cfg Config,
	literalWidth int,
) (*Decoder, error) {
	if !input.Packetized() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotPacketized)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	inputMax, err := cfg.Alphabet(literalWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if cfg.CodeWidth(inputMax) > input.PayloadWidth() {
		return nil, fmt.Errorf("%s: %d-bit input cannot carry %d-bit codes: %w",
			name, input.PayloadWidth(), cfg.CodeWidth(inputMax), ErrInvalidAlphabet)
	}

	cfg = cfg.Clone()
	output := stream.NewPacketized(name+".output", LiteralWidth(inputMax))

	return &Decoder{
		name:     name,
		config:   cfg,
		inputMax: inputMax,
		input:    input,
		output:   output,
		in:       input.Consumer(),
		out:      output.Producer(),
		log:      logging.Logger(name),
	}, nil
}

// Name returns the component name.
func (d *Decoder) Name() string { return d.name }

// Input returns the input stream.
func (d *Decoder) Input() *stream.Stream { return d.input }

// Output returns the output stream.
func (d *Decoder) Output() *stream.Stream { return d.output }

// Expanded returns the number of zeros produced from run codes.
func (d *Decoder) Expanded() uint64 { return d.expanded }

// Streams implements stream.PortOwner.
func (d *Decoder) Streams() []*stream.Stream {
	return []*stream.Stream{d.input, d.output}
}

// Busy implements stream.Component.
func (d *Decoder) Busy() bool { return d.pending > 0 }

// Eval implements stream.Component.
func (d *Decoder) Eval() {
	if d.pending > 0 {
		d.in.SetReady(false)
		d.out.Offer(stream.Word{
			Payload: d.config.ZeroValue,
			Last:    d.pending == 1 && d.pendingLast,
		})
		return
	}

	w, valid := d.in.Peek()
	if valid && w.Payload < d.inputMax {
		d.out.Offer(w)
		d.in.SetReady(d.out.Ready())
		return
	}

	d.out.Idle()
	d.in.SetReady(valid)
}

// Commit implements stream.Component.
func (d *Decoder) Commit() {
	if d.pending > 0 {
		if d.out.Fired() {
			d.pending--
			d.expanded++
		}
		return
	}

	w, _ := d.in.Peek()
	if !d.in.Fired() || w.Payload < d.inputMax {
		return
	}

	k := w.Payload - d.inputMax
	if k >= uint64(len(d.config.RunLengths)) {
		d.log.Error().Uint64("symbol", w.Payload).Msg("unknown run code")
		panic(fmt.Sprintf("%s: symbol %d is not a run code", d.name, w.Payload))
	}
	d.pending = d.config.RunLengths[k]
	d.pendingLast = w.Last
}

// Reset drops any partially expanded run.
func (d *Decoder) Reset() {
	d.pending = 0
	d.pendingLast = false
	d.expanded = 0
}

// DecodeWords expands a complete encoded word sequence without simulation.
func DecodeWords(words []stream.Word, cfg Config, inputMax uint64) ([]stream.Word, error) {
	var out []stream.Word
	for i, w := range words {
		if w.Payload < inputMax {
			out = append(out, w)
			continue
		}
		k := w.Payload - inputMax
		if k >= uint64(len(cfg.RunLengths)) {
			return nil, fmt.Errorf("word %d: symbol %d is not a run code: %w",
				i, w.Payload, ErrInvalidAlphabet)
		}
		for n := 0; n < cfg.RunLengths[k]; n++ {
			out = append(out, stream.Word{
				Payload: cfg.ZeroValue,
				Last:    w.Last && n == cfg.RunLengths[k]-1,
			})
		}
	}
	return out, nil
}

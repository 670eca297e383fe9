package rle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/stream"
)

// Mode is the encoder state.
type Mode int

const (
	// ModeNonZero passes symbols through and watches for a zero.
	ModeNonZero Mode = iota
	// ModeZeroCount consumes zeros and counts the run.
	ModeZeroCount
	// ModeZeroOut emits run codes until the counted run is drained.
	ModeZeroOut
)

func (m Mode) String() string {
	switch m {
	case ModeNonZero:
		return "NONZERO"
	case ModeZeroCount:
		return "ZERO_COUNT"
	case ModeZeroOut:
		return "ZERO_OUT"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// State is the registered state of an encoder.
type State struct {
	Mode      Mode
	RunLength int
	// RunLengthIndex is the code emitted last in ModeZeroOut, -1 for the
	// literal zero.
	RunLengthIndex int
}

// Statistics holds encoder statistics.
type Statistics struct {
	SymbolsIn  uint64
	SymbolsOut uint64
	Literals   uint64
	Runs       uint64
	RunCodes   uint64
	ZerosIn    uint64
	Packets    uint64
}

// Ratio returns output symbols per input symbol.
func (s Statistics) Ratio() float64 {
	if s.SymbolsIn == 0 {
		return 0
	}
	return float64(s.SymbolsOut) / float64(s.SymbolsIn)
}

// Encoder is the zero run-length encoder component.
type Encoder struct {
	name   string
	config Config

	inputMax uint64
	maxRun   int

	input  *stream.Stream
	output *stream.Stream
	in     *stream.ConsumerPort
	out    *stream.ProducerPort

	state State
	stats Statistics
	log   zerolog.Logger
}

// NewEncoder creates an encoder reading the packetized input stream.
func NewEncoder(input *stream.Stream, cfg Config) (*Encoder, error) {
	return NewNamedEncoder("rle", input, cfg)
}

// NewNamedEncoder is NewEncoder with an explicit component name.
func NewNamedEncoder(name string, input *stream.Stream, cfg Config) (*Encoder, error) {
	if !input.Packetized() {
		return nil, fmt.Errorf("%s: %w", name, ErrNotPacketized)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	inputMax, err := cfg.Alphabet(input.PayloadWidth())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	cfg = cfg.Clone()
	output := stream.NewPacketized(name+".output", cfg.CodeWidth(inputMax))

	e := &Encoder{
		name:     name,
		config:   cfg,
		inputMax: inputMax,
		maxRun:   cfg.MaxRunLength(),
		input:    input,
		output:   output,
		in:       input.Consumer(),
		out:      output.Producer(),
		state:    State{Mode: ModeNonZero, RunLengthIndex: -1},
		log:      logging.Logger(name),
	}

	e.log.Debug().
		Ints("run_lengths", cfg.RunLengths).
		Uint64("zero", cfg.ZeroValue).
		Uint64("input_max", inputMax).
		Int("code_width", output.PayloadWidth()).
		Msg("encoder created")

	return e, nil
}

// Name returns the component name.
func (e *Encoder) Name() string { return e.name }

// Config returns the code configuration.
func (e *Encoder) Config() Config { return e.config }

// InputMax returns the resolved literal alphabet bound.
func (e *Encoder) InputMax() uint64 { return e.inputMax }

// Input returns the input stream.
func (e *Encoder) Input() *stream.Stream { return e.input }

// Output returns the output stream.
func (e *Encoder) Output() *stream.Stream { return e.output }

// State returns the registered state.
func (e *Encoder) State() State { return e.state }

// Stats returns encoder statistics.
func (e *Encoder) Stats() Statistics { return e.stats }

// Code returns the output symbol for a run of RunLengths[index] zeros, or
// the literal zero for index -1.
func (e *Encoder) Code(index int) uint64 {
	if index < 0 {
		return e.config.ZeroValue
	}
	return e.inputMax + uint64(index)
}

// Streams implements stream.PortOwner.
func (e *Encoder) Streams() []*stream.Stream {
	return []*stream.Stream{e.input, e.output}
}

// Busy implements stream.Component. A run that is still being counted
// waits for input; only a pending ZERO_OUT can progress on its own.
func (e *Encoder) Busy() bool {
	return e.state.Mode == ModeZeroOut
}

// Eval implements stream.Component.
func (e *Encoder) Eval() {
	w, valid := e.in.Peek()

	switch e.state.Mode {
	case ModeNonZero:
		if valid && w.Payload >= e.inputMax {
			e.fault("literal 0x%x outside alphabet [0, 0x%x)", w.Payload, e.inputMax)
		}
		if valid && e.terminates(w) {
			e.out.Offer(w)
			e.in.SetReady(e.out.Ready())
			return
		}
		e.out.Idle()
		e.in.SetReady(valid)

	case ModeZeroCount:
		e.out.Idle()
		e.in.SetReady(valid && !e.terminates(w))

	case ModeZeroOut:
		e.in.SetReady(false)
		idx := largestFitting(e.state.RunLength, e.config.RunLengths)
		e.out.Offer(stream.Word{Payload: e.Code(idx)})
	}
}

// Commit implements stream.Component.
func (e *Encoder) Commit() {
	w, valid := e.in.Peek()

	if e.in.Fired() {
		e.stats.SymbolsIn++
		if w.Last {
			e.stats.Packets++
		}
	}
	if e.out.Fired() {
		e.stats.SymbolsOut++
	}

	switch e.state.Mode {
	case ModeNonZero:
		if !e.in.Fired() {
			return
		}
		if e.out.Fired() {
			e.stats.Literals++
			return
		}
		e.stats.ZerosIn++
		e.stats.Runs++
		e.state.RunLength = 1
		e.state.Mode = ModeZeroCount
		if e.state.RunLength >= e.maxRun {
			e.startOutput()
		}

	case ModeZeroCount:
		switch {
		case e.in.Fired():
			e.stats.ZerosIn++
			e.state.RunLength++
			if e.state.RunLength > e.maxRun {
				e.fault("run length %d exceeds %d", e.state.RunLength, e.maxRun)
			}
			if e.state.RunLength == e.maxRun {
				e.startOutput()
			}
		case valid && e.terminates(w):
			// The terminating word stays on the input and is handled in
			// NONZERO once the run is drained.
			e.startOutput()
		}

	case ModeZeroOut:
		if !e.out.Fired() {
			return
		}
		idx := largestFitting(e.state.RunLength, e.config.RunLengths)
		e.state.RunLengthIndex = idx
		if idx < 0 {
			e.state.RunLength--
			e.stats.Literals++
		} else {
			e.state.RunLength -= e.config.RunLengths[idx]
			e.stats.RunCodes++
		}
		if e.state.RunLength < 0 {
			e.fault("run length drained below zero")
		}
		if e.state.RunLength == 0 {
			e.state.Mode = ModeNonZero
		}
	}
}

// Reset returns the encoder to NONZERO and clears statistics.
func (e *Encoder) Reset() {
	e.state = State{Mode: ModeNonZero, RunLengthIndex: -1}
	e.stats = Statistics{}
}

// terminates reports whether a word ends a zero run: a non-zero symbol or a
// packet end.
func (e *Encoder) terminates(w stream.Word) bool {
	return w.Payload != e.config.ZeroValue || w.Last
}

func (e *Encoder) startOutput() {
	e.state.Mode = ModeZeroOut
	e.state.RunLengthIndex = len(e.config.RunLengths) - 1
}

func (e *Encoder) fault(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.log.Error().Str("state", e.state.Mode.String()).Msg(msg)
	panic(fmt.Sprintf("%s: %s", e.name, msg))
}

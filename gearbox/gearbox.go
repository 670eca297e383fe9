// Package gearbox converts a stream of words of one width into a stream of
// words of another width without losing, duplicating or reordering bits.
//
// The input is treated as a continuous bit sequence: each word contributes
// its bits least significant first. Output words take the oldest bits, again
// least significant first. The last marker of a packetized stream travels
// with the final bit of the word that carried it; an output word is marked
// last if and only if it contains that bit. When the marked bit is reached
// before a full output word is buffered, the partial group is flushed with
// its missing high bits zero-filled.
package gearbox

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/bits"
	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/stream"
)

// ErrInvalidWidth is returned for widths outside 1..64.
var ErrInvalidWidth = errors.New("invalid gearbox width")

// Config describes a gearbox.
type Config struct {
	InputWidth  int
	OutputWidth int
	Packetized  bool
}

// Validate checks the widths.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputWidth > stream.MaxWidth {
		return fmt.Errorf("input width %d: %w", c.InputWidth, ErrInvalidWidth)
	}
	if c.OutputWidth <= 0 || c.OutputWidth > stream.MaxWidth {
		return fmt.Errorf("output width %d: %w", c.OutputWidth, ErrInvalidWidth)
	}
	return nil
}

// Capacity is the largest number of bits the gearbox ever buffers.
func (c Config) Capacity() int {
	return c.InputWidth + c.OutputWidth - 1
}

// Statistics holds gearbox statistics.
type Statistics struct {
	WordsIn  uint64
	WordsOut uint64
	LastsIn  uint64
	LastsOut uint64
	BitsIn   uint64
	BitsOut  uint64

	// PaddingBits counts zero-filled bits emitted by partial flushes.
	PaddingBits uint64

	// InputStalls counts ticks where input was valid but not accepted.
	InputStalls uint64

	// OutputStalls counts ticks where output was valid but not accepted.
	OutputStalls uint64
}

// Gearbox re-chunks a stream into words of a different width.
type Gearbox struct {
	name   string
	config Config

	input  *stream.Stream
	output *stream.Stream
	in     *stream.ConsumerPort
	out    *stream.ProducerPort

	acc *bits.Accumulator
	// lastPos is the buffer index of the bit carrying last, or -1.
	lastPos int

	stats Statistics
	log   zerolog.Logger
}

// New creates a gearbox reading input and producing outputWidth-bit
// words. The output stream is packetized if the input is.
func New(input *stream.Stream, outputWidth int) (*Gearbox, error) {
	return NewNamed("gearbox", input, outputWidth)
}

// NewNamed is New with an explicit component name.
func NewNamed(name string, input *stream.Stream, outputWidth int) (*Gearbox, error) {
	cfg := Config{
		InputWidth:  input.PayloadWidth(),
		OutputWidth: outputWidth,
		Packetized:  input.Packetized(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	output := stream.New(name+".output", stream.Shape{
		Width: cfg.OutputWidth,
		Last:  cfg.Packetized,
	})

	g := &Gearbox{
		name:    name,
		config:  cfg,
		input:   input,
		output:  output,
		in:      input.Consumer(),
		out:     output.Producer(),
		acc:     bits.NewAccumulator(cfg.Capacity()),
		lastPos: -1,
		log:     logging.Logger(name),
	}

	g.log.Debug().
		Int("in", cfg.InputWidth).
		Int("out", cfg.OutputWidth).
		Bool("packetized", cfg.Packetized).
		Msg("gearbox created")

	return g, nil
}

// Name returns the component name.
func (g *Gearbox) Name() string { return g.name }

// Config returns the gearbox configuration.
func (g *Gearbox) Config() Config { return g.config }

// Input returns the input stream.
func (g *Gearbox) Input() *stream.Stream { return g.input }

// Output returns the output stream.
func (g *Gearbox) Output() *stream.Stream { return g.output }

// Buffered returns the number of buffered bits.
func (g *Gearbox) Buffered() int { return g.acc.Len() }

// Stats returns gearbox statistics.
func (g *Gearbox) Stats() Statistics { return g.stats }

// Streams implements stream.PortOwner.
func (g *Gearbox) Streams() []*stream.Stream {
	return []*stream.Stream{g.input, g.output}
}

// Busy implements stream.Component. Residual bits that do not fill an
// output word and carry no marker cannot make progress on their own.
func (g *Gearbox) Busy() bool {
	_, ok := g.next()
	return ok
}

// Eval implements stream.Component.
func (g *Gearbox) Eval() {
	group, ok := g.next()
	if ok {
		g.out.Offer(group.word)
	} else {
		g.out.Idle()
	}

	buffered := g.acc.Len()
	markerClear := g.lastPos < 0
	if ok && g.out.Ready() {
		buffered -= group.bits
		markerClear = markerClear || group.word.Last
	}

	// After this tick's retirement one more input word must still fit in
	// InputWidth+OutputWidth-1 bits.
	g.in.SetReady(markerClear && buffered < g.config.OutputWidth)
}

// Commit implements stream.Component.
func (g *Gearbox) Commit() {
	if g.in.Valid() && !g.in.Fired() {
		g.stats.InputStalls++
	}
	if g.output.Valid() && !g.out.Fired() {
		g.stats.OutputStalls++
	}

	if g.out.Fired() {
		group, _ := g.next()
		g.retire(group)
	}

	if g.in.Fired() {
		w, _ := g.in.Peek()
		g.absorb(w)
	}
}

// Reset drops all buffered bits and statistics.
func (g *Gearbox) Reset() {
	g.acc.Reset()
	g.lastPos = -1
	g.stats = Statistics{}
}

type group struct {
	word stream.Word
	bits int
}

// next returns the output word that the current state offers.
func (g *Gearbox) next() (group, bool) {
	width := g.config.OutputWidth

	if g.lastPos >= 0 && g.lastPos < width {
		n := g.lastPos + 1
		return group{
			word: stream.Word{Payload: g.acc.Peek(n), Last: true},
			bits: n,
		}, true
	}

	if g.acc.Len() >= width {
		return group{
			word: stream.Word{Payload: g.acc.Peek(width)},
			bits: width,
		}, true
	}

	return group{}, false
}

func (g *Gearbox) retire(grp group) {
	g.acc.Drop(grp.bits)

	switch {
	case grp.word.Last:
		g.lastPos = -1
		g.stats.LastsOut++
	case g.lastPos >= 0:
		g.lastPos -= grp.bits
	}

	g.stats.WordsOut++
	g.stats.BitsOut += uint64(grp.bits)
	g.stats.PaddingBits += uint64(g.config.OutputWidth - grp.bits)
}

func (g *Gearbox) absorb(w stream.Word) {
	g.acc.Push(w.Payload, g.config.InputWidth)
	if w.Last {
		g.lastPos = g.acc.Len() - 1
		g.stats.LastsIn++
	}

	g.stats.WordsIn++
	g.stats.BitsIn += uint64(g.config.InputWidth)

	if g.acc.Len() > g.config.Capacity() {
		g.log.Error().
			Int("buffered", g.acc.Len()).
			Int("capacity", g.config.Capacity()).
			Msg("bit buffer overflow")
		panic(fmt.Sprintf("%s: %d bits buffered, capacity %d",
			g.name, g.acc.Len(), g.config.Capacity()))
	}
}

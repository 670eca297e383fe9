// Package fifo provides a synchronous stream FIFO that decouples a
// producer from a bursty consumer without changing the payload.
package fifo

import (
	"errors"
	"fmt"

	"github.com/sarchlab/gearstream/stream"
)

// ErrInvalidDepth is returned for a depth that is not a positive power of
// two.
var ErrInvalidDepth = errors.New("fifo depth must be a positive power of two")

// FIFO buffers up to Depth words. Its output is registered: a word written
// on one tick can be read on the next.
type FIFO struct {
	name   string
	input  *stream.Stream
	output *stream.Stream
	in     *stream.ConsumerPort
	out    *stream.ProducerPort

	buf   []stream.Word
	head  int
	count int

	maxLevel int
}

// New creates a FIFO of the given depth behind input.
func New(input *stream.Stream, depth int) (*FIFO, error) {
	return NewNamed("fifo", input, depth)
}

// NewNamed is New with an explicit component name.
func NewNamed(name string, input *stream.Stream, depth int) (*FIFO, error) {
	if depth <= 0 || depth&(depth-1) != 0 {
		return nil, fmt.Errorf("%s: depth %d: %w", name, depth, ErrInvalidDepth)
	}

	output := input.Clone(name + ".output")
	return &FIFO{
		name:   name,
		input:  input,
		output: output,
		in:     input.Consumer(),
		out:    output.Producer(),
		buf:    make([]stream.Word, depth),
	}, nil
}

// Name returns the component name.
func (f *FIFO) Name() string { return f.name }

// Input returns the input stream.
func (f *FIFO) Input() *stream.Stream { return f.input }

// Output returns the output stream.
func (f *FIFO) Output() *stream.Stream { return f.output }

// Depth returns the capacity in words.
func (f *FIFO) Depth() int { return len(f.buf) }

// Level returns the number of buffered words.
func (f *FIFO) Level() int { return f.count }

// MaxLevel returns the highest level seen.
func (f *FIFO) MaxLevel() int { return f.maxLevel }

// Streams implements stream.PortOwner.
func (f *FIFO) Streams() []*stream.Stream {
	return []*stream.Stream{f.input, f.output}
}

// Busy implements stream.Component.
func (f *FIFO) Busy() bool { return f.count > 0 }

// Eval implements stream.Component.
func (f *FIFO) Eval() {
	if f.count > 0 {
		f.out.Offer(f.buf[f.head])
	} else {
		f.out.Idle()
	}

	leaving := f.count > 0 && f.out.Ready()
	f.in.SetReady(f.count < len(f.buf) || leaving)
}

// Commit implements stream.Component.
func (f *FIFO) Commit() {
	mask := len(f.buf) - 1

	if f.out.Fired() {
		f.buf[f.head] = stream.Word{}
		f.head = (f.head + 1) & mask
		f.count--
	}

	if f.in.Fired() {
		w, _ := f.in.Peek()
		f.buf[(f.head+f.count)&mask] = w
		f.count++
	}

	if f.count > len(f.buf) {
		panic(fmt.Sprintf("%s: level %d exceeds depth %d", f.name, f.count, len(f.buf)))
	}
	if f.count > f.maxLevel {
		f.maxLevel = f.count
	}
}

// Reset empties the FIFO.
func (f *FIFO) Reset() {
	for i := range f.buf {
		f.buf[i] = stream.Word{}
	}
	f.head = 0
	f.count = 0
	f.maxLevel = 0
}

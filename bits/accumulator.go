// Package bits provides an ordered bit FIFO used to re-chunk words of one
// width into words of another.
package bits

import "fmt"

// Accumulator is a FIFO of individual bits. Bits are appended at the tail
// LSB-first and removed from the head LSB-first; bit 0 of the internal
// storage is always the oldest buffered bit. Storage above Len is kept zero.
type Accumulator struct {
	words []uint64
	n     int
}

// NewAccumulator creates an accumulator with room for capacity bits
// before it has to grow.
func NewAccumulator(capacity int) *Accumulator {
	return &Accumulator{words: make([]uint64, 0, (capacity+63)/64)}
}

// Len returns the number of buffered bits.
func (a *Accumulator) Len() int { return a.n }

// Push appends the low width bits of value, least significant first.
func (a *Accumulator) Push(value uint64, width int) {
	checkWidth(width)
	if width == 0 {
		return
	}
	value &= mask(width)

	need := (a.n + width + 63) / 64
	for len(a.words) < need {
		a.words = append(a.words, 0)
	}

	idx, off := a.n/64, uint(a.n%64)
	a.words[idx] |= value << off
	if off != 0 && int(off)+width > 64 {
		a.words[idx+1] |= value >> (64 - off)
	}
	a.n += width
}

// Peek returns the width oldest bits without removing them. If fewer bits
// are buffered, the missing high bits read as zero.
func (a *Accumulator) Peek(width int) uint64 {
	checkWidth(width)
	if width == 0 || len(a.words) == 0 {
		return 0
	}
	return a.words[0] & mask(width)
}

// Pop removes and returns the width oldest bits.
func (a *Accumulator) Pop(width int) uint64 {
	v := a.Peek(width)
	a.Drop(width)
	return v
}

// Drop discards the count oldest bits. Dropping more bits than are
// buffered is a fault.
func (a *Accumulator) Drop(count int) {
	if count < 0 || count > a.n {
		panic(fmt.Sprintf("bits: drop %d of %d buffered bits", count, a.n))
	}
	if count == 0 {
		return
	}

	whole, part := count/64, uint(count%64)
	for i := range a.words {
		src := i + whole
		var v uint64
		if src < len(a.words) {
			v = a.words[src] >> part
			if part != 0 && src+1 < len(a.words) {
				v |= a.words[src+1] << (64 - part)
			}
		}
		a.words[i] = v
	}

	a.n -= count
	a.words = a.words[:(a.n+63)/64]
}

// Bits returns the buffered bits oldest first, for diagnostics.
func (a *Accumulator) Bits() []bool {
	out := make([]bool, a.n)
	for i := range out {
		out[i] = a.words[i/64]>>(uint(i%64))&1 == 1
	}
	return out
}

// Reset drops all buffered bits.
func (a *Accumulator) Reset() {
	a.words = a.words[:0]
	a.n = 0
}

func (a *Accumulator) String() string {
	buf := make([]byte, a.n)
	for i, b := range a.Bits() {
		// newest bit first, like a binary literal
		c := byte('0')
		if b {
			c = '1'
		}
		buf[a.n-1-i] = c
	}
	return fmt.Sprintf("%d'b%s", a.n, buf)
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func checkWidth(width int) {
	if width < 0 || width > 64 {
		panic(fmt.Sprintf("bits: width %d out of range 0..64", width))
	}
}

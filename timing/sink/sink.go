// Package sink provides a device-facing stream sink that drains words into
// a byte-addressed memory through a write-back line buffer.
package sink

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/stream"
	"github.com/sarchlab/gearstream/timing/cache"
)

// ErrMisaligned is returned when the base address is not aligned to the
// word size.
var ErrMisaligned = errors.New("base address not aligned to word size")

// Gate reports whether a new burst may begin.
type Gate func() bool

// Statistics holds sink statistics.
type Statistics struct {
	Words   uint64
	Packets uint64
	Bursts  uint64
	// MissStalls counts ticks spent waiting for line fills.
	MissStalls uint64
	// GateStalls counts ticks where data was valid but the gate held a new
	// burst back.
	GateStalls uint64
	// DeviceStalls counts ticks where the device pattern refused data.
	DeviceStalls uint64

	Cache cache.Statistics
}

// Option configures a MemorySink.
type Option func(*MemorySink)

// WithBurstGate holds back the start of every burst until gate reports
// true. A burst continues while data keeps arriving and ends after a last
// or a tick without data.
func WithBurstGate(gate Gate) Option {
	return func(s *MemorySink) {
		s.gate = gate
	}
}

// WithDevicePattern models the device's own readiness on each tick.
func WithDevicePattern(p stream.Pattern) Option {
	return func(s *MemorySink) {
		s.device = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *MemorySink) {
		s.log = logger
	}
}

// MemorySink writes every accepted payload to the next word-aligned address.
// Each word occupies the smallest power-of-two byte count holding the
// stream width, little endian.
type MemorySink struct {
	name  string
	input *stream.Stream
	in    *stream.ConsumerPort
	cache *cache.Cache

	base      uint64
	addr      uint64
	wordBytes int

	stallLeft uint64
	gate      Gate
	inBurst   bool
	device    stream.Pattern
	tick      uint64
	deviceOK  bool

	words   []stream.Word
	packets []uint64

	stats Statistics
	log   zerolog.Logger
}

// New creates a sink draining input to memory starting at base.
func New(
	name string,
	input *stream.Stream,
	lines *cache.Cache,
	base uint64,
	opts ...Option,
) (*MemorySink, error) {
	wordBytes := WordBytes(input.PayloadWidth())
	if base%uint64(wordBytes) != 0 {
		return nil, fmt.Errorf("%s: base 0x%x, word %d bytes: %w", name, base, wordBytes, ErrMisaligned)
	}

	s := &MemorySink{
		name:      name,
		input:     input,
		in:        input.Consumer(),
		cache:     lines,
		base:      base,
		addr:      base,
		wordBytes: wordBytes,
		device:    stream.Always(),
		log:       logging.Logger(name),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deviceOK = s.device.Allow(0)

	return s, nil
}

// WordBytes returns the storage size for a payload of width bits.
func WordBytes(width int) int {
	n := 1
	for n*8 < width {
		n *= 2
	}
	return n
}

// Name returns the component name.
func (s *MemorySink) Name() string { return s.name }

// Input returns the input stream.
func (s *MemorySink) Input() *stream.Stream { return s.input }

// Streams implements stream.PortOwner.
func (s *MemorySink) Streams() []*stream.Stream {
	return []*stream.Stream{s.input}
}

// Busy implements stream.Component.
func (s *MemorySink) Busy() bool { return s.stallLeft > 0 }

// Eval implements stream.Component.
func (s *MemorySink) Eval() {
	gateOpen := s.inBurst || s.gate == nil || s.gate()
	s.in.SetReady(s.stallLeft == 0 && s.deviceOK && gateOpen)
}

// Commit implements stream.Component.
func (s *MemorySink) Commit() {
	valid := s.in.Valid()

	switch {
	case s.in.Fired():
		w, _ := s.in.Peek()
		s.accept(w)
	case s.stallLeft > 0:
		s.stallLeft--
		s.stats.MissStalls++
		s.inBurst = s.inBurst && valid
	case valid && !s.deviceOK:
		s.stats.DeviceStalls++
	case valid:
		s.stats.GateStalls++
	default:
		s.inBurst = false
	}

	s.tick++
	s.deviceOK = s.device.Allow(s.tick)
}

func (s *MemorySink) accept(w stream.Word) {
	if !s.inBurst {
		s.inBurst = true
		s.stats.Bursts++
	}

	result := s.cache.Write(s.addr, s.wordBytes, w.Payload)
	if !result.Hit {
		s.stallLeft = result.Latency
	}

	s.words = append(s.words, w)
	s.stats.Words++
	s.addr += uint64(s.wordBytes)

	if w.Last {
		s.packets = append(s.packets, s.addr)
		s.stats.Packets++
		s.inBurst = false
	}
}

// Words returns the accepted words in order.
func (s *MemorySink) Words() []stream.Word { return s.words }

// Packets returns the end address (exclusive) of every completed packet.
func (s *MemorySink) Packets() []uint64 { return s.packets }

// Base returns the first address written.
func (s *MemorySink) Base() uint64 { return s.base }

// Next returns the address the next word goes to.
func (s *MemorySink) Next() uint64 { return s.addr }

// WordSize returns the bytes stored per word.
func (s *MemorySink) WordSize() int { return s.wordBytes }

// Flush writes every dirty line back to memory.
func (s *MemorySink) Flush() {
	s.cache.Flush()
	s.log.Debug().
		Uint64("words", s.stats.Words).
		Uint64("end", s.addr).
		Msg("sink flushed")
}

// ReadBack returns the stored payloads from memory. Call Flush first.
func (s *MemorySink) ReadBack() []uint64 {
	n := int((s.addr - s.base) / uint64(s.wordBytes))
	out := make([]uint64, n)
	data := s.cache.Backing().Read(s.base, n*s.wordBytes)
	for i := range out {
		var v uint64
		for b := 0; b < s.wordBytes; b++ {
			v |= uint64(data[i*s.wordBytes+b]) << (8 * b)
		}
		out[i] = v
	}
	return out
}

// Stats returns sink statistics.
func (s *MemorySink) Stats() Statistics {
	stats := s.stats
	stats.Cache = s.cache.Stats()
	return stats
}

// Reset rewinds the sink to its base address and drops buffered lines.
func (s *MemorySink) Reset() {
	s.cache.Reset()
	s.addr = s.base
	s.stallLeft = 0
	s.inBurst = false
	s.tick = 0
	s.deviceOK = s.device.Allow(0)
	s.words = nil
	s.packets = nil
	s.stats = Statistics{}
}

// Package stream provides the valid/ready handshake that every streaming
// component in gearstream communicates through.
//
// A Stream is the wire between exactly one producer and one consumer. It owns
// two directional signal sets: the downward set (valid, payload, last) is
// written only through the ProducerPort, the upward set (ready) only through
// the ConsumerPort. A transfer happens on a tick where valid and ready are
// both high. Either side may raise its signal first.
package stream

import (
	"fmt"
)

// MaxWidth is the widest payload a stream can carry.
const MaxWidth = 64

// HasPayload is implemented by everything that carries a payload of a known
// bit width.
type HasPayload interface {
	PayloadWidth() int
}

// HasLast is implemented by everything that may carry a packet-boundary
// marker.
type HasLast interface {
	Packetized() bool
}

// Shape describes what a stream carries.
type Shape struct {
	// Width is the payload width in bits (1..64).
	Width int
	// Last is true for packetized streams.
	Last bool
}

// PayloadWidth returns the payload width in bits.
func (s Shape) PayloadWidth() int { return s.Width }

// Packetized reports whether the shape carries a last marker.
func (s Shape) Packetized() bool { return s.Last }

// Mask returns a mask covering the payload bits.
func (s Shape) Mask() uint64 {
	if s.Width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(s.Width)) - 1
}

// Validate checks that the shape describes a representable payload.
func (s Shape) Validate() error {
	if s.Width <= 0 || s.Width > MaxWidth {
		return fmt.Errorf("payload width %d out of range 1..%d", s.Width, MaxWidth)
	}
	return nil
}

func (s Shape) String() string {
	if s.Last {
		return fmt.Sprintf("packetized(%d)", s.Width)
	}
	return fmt.Sprintf("basic(%d)", s.Width)
}

// Word is one unit moved by a transfer.
type Word struct {
	Payload uint64
	Last    bool
}

func (w Word) String() string {
	if w.Last {
		return fmt.Sprintf("0x%x!", w.Payload)
	}
	return fmt.Sprintf("0x%x", w.Payload)
}

// Downward holds the producer-driven signals.
type Downward struct {
	Valid bool
	Word  Word
}

// Upward holds the consumer-driven signals.
type Upward struct {
	Ready bool
}

// Stream is a point-to-point handshake wire.
type Stream struct {
	name  string
	shape Shape

	down Downward
	up   Upward

	// version is bumped whenever any signal changes value.
	version uint64

	// held is set when the previous tick ended with valid high and no
	// transfer; the producer must then repeat the same word.
	held     bool
	heldWord Word

	transfers uint64
	lasts     uint64

	producer ProducerPort
	consumer ConsumerPort
}

// New creates a stream of the given shape. It panics on an invalid shape;
// components validate shapes before they create streams.
func New(name string, shape Shape) *Stream {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("stream %s: %v", name, err))
	}

	s := &Stream{name: name, shape: shape}
	s.producer.s = s
	s.consumer.s = s
	return s
}

// NewBasic creates a stream that carries only a payload.
func NewBasic(name string, width int) *Stream {
	return New(name, Shape{Width: width})
}

// NewPacketized creates a stream that carries a payload and a last marker.
func NewPacketized(name string, width int) *Stream {
	return New(name, Shape{Width: width, Last: true})
}

// Clone returns a disconnected stream with the same shape.
func (s *Stream) Clone(name string) *Stream {
	return New(name, s.shape)
}

// Name returns the stream name.
func (s *Stream) Name() string { return s.name }

// Shape returns the stream shape.
func (s *Stream) Shape() Shape { return s.shape }

// PayloadWidth returns the payload width in bits.
func (s *Stream) PayloadWidth() int { return s.shape.Width }

// Packetized reports whether the stream carries a last marker.
func (s *Stream) Packetized() bool { return s.shape.Last }

// Producer returns the upstream end of the wire.
func (s *Stream) Producer() *ProducerPort { return &s.producer }

// Consumer returns the downstream end of the wire.
func (s *Stream) Consumer() *ConsumerPort { return &s.consumer }

// Valid reports the current valid signal.
func (s *Stream) Valid() bool { return s.down.Valid }

// Ready reports the current ready signal.
func (s *Stream) Ready() bool { return s.up.Ready }

// Fired reports whether a transfer happens on the current tick.
func (s *Stream) Fired() bool { return s.down.Valid && s.up.Ready }

// Version returns a counter that changes whenever a signal changes.
func (s *Stream) Version() uint64 { return s.version }

// Transfers returns the number of completed transfers.
func (s *Stream) Transfers() uint64 { return s.transfers }

// Lasts returns the number of completed transfers that carried last.
func (s *Stream) Lasts() uint64 { return s.lasts }

// Latch closes the current tick. It enforces the hold rule (a producer
// that raised valid keeps it and the word stable until the transfer) and
// counts the transfer if one happened.
func (s *Stream) Latch() {
	if s.held {
		if !s.down.Valid {
			panic(fmt.Sprintf("stream %s: valid dropped before transfer of %v",
				s.name, s.heldWord))
		}
		if s.down.Word != s.heldWord {
			panic(fmt.Sprintf("stream %s: word changed from %v to %v before transfer",
				s.name, s.heldWord, s.down.Word))
		}
	}

	if s.Fired() {
		s.transfers++
		if s.down.Word.Last {
			s.lasts++
		}
		s.held = false
		return
	}

	s.held = s.down.Valid
	s.heldWord = s.down.Word
}

// Reset drops all signals and counters.
func (s *Stream) Reset() {
	s.down = Downward{}
	s.up = Upward{}
	s.held = false
	s.heldWord = Word{}
	s.transfers = 0
	s.lasts = 0
	s.version++
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s[%s valid=%t ready=%t]", s.name, s.shape, s.down.Valid, s.up.Ready)
}

func (s *Stream) setDown(d Downward) {
	if s.down != d {
		s.down = d
		s.version++
	}
}

func (s *Stream) setUp(u Upward) {
	if s.up != u {
		s.up = u
		s.version++
	}
}

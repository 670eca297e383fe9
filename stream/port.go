package stream

import "fmt"

// ProducerPort is the upstream end of a stream. Only the producer drives
// valid and the word.
type ProducerPort struct {
	s *Stream
}

// Offer raises valid with the given word. Payload bits above the stream
// width are dropped. Offering last on a basic stream is a wiring fault.
func (p *ProducerPort) Offer(w Word) {
	if w.Last && !p.s.shape.Last {
		panic(fmt.Sprintf("stream %s: last offered on a basic stream", p.s.name))
	}
	w.Payload &= p.s.shape.Mask()
	p.s.setDown(Downward{Valid: true, Word: w})
}

// Idle lowers valid. The word is cleared so that nobody can read a stale
// payload.
func (p *ProducerPort) Idle() {
	p.s.setDown(Downward{})
}

// Ready reports whether the consumer accepts on this tick.
func (p *ProducerPort) Ready() bool { return p.s.up.Ready }

// Fired reports whether the offered word transfers on this tick.
func (p *ProducerPort) Fired() bool { return p.s.Fired() }

// PayloadWidth returns the payload width in bits.
func (p *ProducerPort) PayloadWidth() int { return p.s.shape.Width }

// Packetized reports whether the stream carries a last marker.
func (p *ProducerPort) Packetized() bool { return p.s.shape.Last }

// Stream returns the wire this port belongs to.
func (p *ProducerPort) Stream() *Stream { return p.s }

// ConsumerPort is the downstream end of a stream. Only the consumer drives
// ready.
type ConsumerPort struct {
	s *Stream
}

// SetReady drives the ready signal.
func (c *ConsumerPort) SetReady(ready bool) {
	c.s.setUp(Upward{Ready: ready})
}

// Valid reports whether the producer offers a word on this tick.
func (c *ConsumerPort) Valid() bool { return c.s.down.Valid }

// Peek returns the offered word. ok is false, and the word zero, when valid
// is low.
func (c *ConsumerPort) Peek() (w Word, ok bool) {
	if !c.s.down.Valid {
		return Word{}, false
	}
	return c.s.down.Word, true
}

// Fired reports whether a transfer happens on this tick.
func (c *ConsumerPort) Fired() bool { return c.s.Fired() }

// PayloadWidth returns the payload width in bits.
func (c *ConsumerPort) PayloadWidth() int { return c.s.shape.Width }

// Packetized reports whether the stream carries a last marker.
func (c *ConsumerPort) Packetized() bool { return c.s.shape.Last }

// Stream returns the wire this port belongs to.
func (c *ConsumerPort) Stream() *Stream { return c.s }

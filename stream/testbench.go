package stream

// Source drives a list of words onto a stream, one per transfer. Its pattern
// decides on which ticks it raises valid; once a word is offered it is held
// until accepted.
type Source struct {
	name    string
	out     *ProducerPort
	words   []Word
	next    int
	pattern Pattern
	tick    uint64
	active  bool
	holding bool
}

// NewSource creates a source that writes words to out. A nil pattern
// offers on every tick.
func NewSource(name string, out *Stream, words []Word, pattern Pattern) *Source {
	if pattern == nil {
		pattern = Always()
	}
	src := &Source{
		name:    name,
		out:     out.Producer(),
		words:   append([]Word(nil), words...),
		pattern: pattern,
	}
	src.active = pattern.Allow(0)
	return src
}

// Name returns the component name.
func (s *Source) Name() string { return s.name }

// Push appends more words to send.
func (s *Source) Push(words ...Word) {
	s.words = append(s.words, words...)
}

// Eval implements Component.
func (s *Source) Eval() {
	if s.next < len(s.words) && (s.holding || s.active) {
		s.out.Offer(s.words[s.next])
		return
	}
	s.out.Idle()
}

// Commit implements Component.
func (s *Source) Commit() {
	switch {
	case s.out.Fired():
		s.next++
		s.holding = false
	case s.out.Stream().Valid():
		s.holding = true
	}

	s.tick++
	s.active = s.pattern.Allow(s.tick)
}

// Busy implements Component.
func (s *Source) Busy() bool { return s.next < len(s.words) }

// Done reports whether every word has been transferred.
func (s *Source) Done() bool { return s.next >= len(s.words) }

// Sent returns the number of words transferred so far.
func (s *Source) Sent() int { return s.next }

// Streams implements PortOwner.
func (s *Source) Streams() []*Stream { return []*Stream{s.out.Stream()} }

// Reset rewinds the source to its first word.
func (s *Source) Reset() {
	s.next = 0
	s.tick = 0
	s.holding = false
	s.active = s.pattern.Allow(0)
}

// Sink collects every word transferred on a stream. Its pattern decides on
// which ticks it raises ready.
type Sink struct {
	name    string
	in      *ConsumerPort
	words   []Word
	limit   int
	pattern Pattern
	tick    uint64
	active  bool
}

// NewSink creates a sink reading from in. A nil pattern accepts on every
// tick.
func NewSink(name string, in *Stream, pattern Pattern) *Sink {
	if pattern == nil {
		pattern = Always()
	}
	sink := &Sink{
		name:    name,
		in:      in.Consumer(),
		pattern: pattern,
	}
	sink.active = pattern.Allow(0)
	return sink
}

// Name returns the component name.
func (s *Sink) Name() string { return s.name }

// SetLimit stops accepting after n words. Zero means unlimited.
func (s *Sink) SetLimit(n int) { s.limit = n }

// Eval implements Component.
func (s *Sink) Eval() {
	full := s.limit > 0 && len(s.words) >= s.limit
	s.in.SetReady(s.active && !full)
}

// Commit implements Component.
func (s *Sink) Commit() {
	if w, ok := s.in.Peek(); ok && s.in.Fired() {
		s.words = append(s.words, w)
	}

	s.tick++
	s.active = s.pattern.Allow(s.tick)
}

// Busy implements Component. A sink never has work of its own.
func (s *Sink) Busy() bool { return false }

// Words returns the collected words in arrival order.
func (s *Sink) Words() []Word { return s.words }

// Payloads returns the collected payloads in arrival order.
func (s *Sink) Payloads() []uint64 {
	out := make([]uint64, len(s.words))
	for i, w := range s.words {
		out[i] = w.Payload
	}
	return out
}

// Packets splits the collected words at every last marker. Words after the
// final marker form a trailing, unterminated packet.
func (s *Sink) Packets() [][]Word {
	return SplitPackets(s.words)
}

// Streams implements PortOwner.
func (s *Sink) Streams() []*Stream { return []*Stream{s.in.Stream()} }

// Reset drops the collected words.
func (s *Sink) Reset() {
	s.words = nil
	s.tick = 0
	s.active = s.pattern.Allow(0)
}

// SplitPackets splits words at every last marker.
func SplitPackets(words []Word) [][]Word {
	var packets [][]Word
	start := 0
	for i, w := range words {
		if w.Last {
			packets = append(packets, words[start:i+1])
			start = i + 1
		}
	}
	if start < len(words) {
		packets = append(packets, words[start:])
	}
	return packets
}

// Payloads builds unmarked words from payload values.
func Payloads(values ...uint64) []Word {
	words := make([]Word, len(values))
	for i, v := range values {
		words[i] = Word{Payload: v}
	}
	return words
}

// Packet builds a packet from payload values with last on the final word.
func Packet(values ...uint64) []Word {
	words := Payloads(values...)
	if len(words) > 0 {
		words[len(words)-1].Last = true
	}
	return words
}

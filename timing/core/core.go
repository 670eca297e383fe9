// Package core provides the tick-level simulator that advances a graph of
// stream components. It settles all handshake signals combinationally and
// then commits every component at once, so no component observes another
// component's mid-tick state.
package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sarchlab/gearstream/logging"
	"github.com/sarchlab/gearstream/stream"
)

const (
	// DefaultIdleLimit is the number of consecutive ticks without a transfer
	// after which a run is considered stuck.
	DefaultIdleLimit = 4096
)

// Statistics holds simulator statistics.
type Statistics struct {
	// Ticks is the total number of ticks simulated.
	Ticks uint64
	// Transfers is the number of stream transfers across all watched streams.
	Transfers uint64
	// IdleTicks is the number of ticks without any transfer.
	IdleTicks uint64
	// SettlePasses is the total number of Eval passes needed to settle.
	SettlePasses uint64
}

// TransfersPerTick returns the average number of transfers per tick.
func (s Statistics) TransfersPerTick() float64 {
	if s.Ticks == 0 {
		return 0
	}
	return float64(s.Transfers) / float64(s.Ticks)
}

// Option is a functional option for configuring the Simulator.
type Option func(*Simulator)

// WithIdleLimit sets how many consecutive ticks without a transfer end a
// run. Zero disables the limit.
func WithIdleLimit(ticks uint64) Option {
	return func(s *Simulator) {
		s.idleLimit = ticks
	}
}

// WithMaxTicks bounds the length of a run. Zero means unbounded.
func WithMaxTicks(ticks uint64) Option {
	return func(s *Simulator) {
		s.maxTicks = ticks
	}
}

// WithLogger sets the logger used for run reports.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Simulator) {
		s.log = logger
	}
}

// Simulator advances stream components tick by tick.
type Simulator struct {
	components []stream.Component
	streams    []*stream.Stream
	watched    map[*stream.Stream]bool

	idleLimit uint64
	maxTicks  uint64
	idleRun   uint64

	stats  Statistics
	halted bool
	stuck  bool

	log zerolog.Logger
}

// NewSimulator creates an empty simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		watched:   make(map[*stream.Stream]bool),
		idleLimit: DefaultIdleLimit,
		log:       logging.Logger("core"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Add registers components. Components that expose their streams are
// watched automatically. Components are evaluated in the order they were
// added; the order never changes the settled result.
func (s *Simulator) Add(components ...stream.Component) {
	for _, c := range components {
		s.components = append(s.components, c)
		if owner, ok := c.(stream.PortOwner); ok {
			s.Watch(owner.Streams()...)
		}
	}
}

// Watch registers streams whose signals take part in settling and whose
// transfers are counted.
func (s *Simulator) Watch(streams ...*stream.Stream) {
	for _, st := range streams {
		if st == nil || s.watched[st] {
			continue
		}
		s.watched[st] = true
		s.streams = append(s.streams, st)
	}
}

// Components returns the registered components.
func (s *Simulator) Components() []stream.Component {
	return s.components
}

// Stats returns simulator statistics.
func (s *Simulator) Stats() Statistics {
	return s.stats
}

// Halted returns true once the simulator stopped: all work is drained, the
// idle limit was hit, or the tick bound was reached.
func (s *Simulator) Halted() bool {
	return s.halted
}

// Stuck reports whether the last run ended because no transfer happened
// for the idle limit while work remained.
func (s *Simulator) Stuck() bool {
	return s.stuck
}

// Busy reports whether any component still has work.
func (s *Simulator) Busy() bool {
	for _, c := range s.components {
		if c.Busy() {
			return true
		}
	}
	return false
}

// Tick advances all components by one tick. It returns true if the
// simulation can continue.
func (s *Simulator) Tick() bool {
	if s.halted {
		return false
	}

	s.stats.Ticks++
	s.settle()

	for _, c := range s.components {
		c.Commit()
	}

	var transfers uint64
	for _, st := range s.streams {
		if st.Fired() {
			transfers++
		}
		st.Latch()
	}
	s.stats.Transfers += transfers

	if transfers == 0 {
		s.stats.IdleTicks++
		s.idleRun++
	} else {
		s.idleRun = 0
	}

	switch {
	case transfers == 0 && !s.Busy():
		s.halted = true
	case s.idleLimit > 0 && s.idleRun >= s.idleLimit:
		s.halted = true
		s.stuck = true
		s.log.Warn().
			Uint64("tick", s.stats.Ticks).
			Uint64("idle", s.idleRun).
			Msg("no transfer within idle limit, stopping")
	case s.maxTicks > 0 && s.stats.Ticks >= s.maxTicks:
		s.halted = true
	}

	return !s.halted
}

// Run ticks until the simulator halts and returns the tick count.
func (s *Simulator) Run() uint64 {
	s.log.Debug().
		Int("components", len(s.components)).
		Int("streams", len(s.streams)).
		Msg("run started")

	for s.Tick() {
	}

	s.log.Debug().
		Uint64("ticks", s.stats.Ticks).
		Uint64("transfers", s.stats.Transfers).
		Bool("stuck", s.stuck).
		Msg("run finished")

	return s.stats.Ticks
}

// RunCycles ticks at most n times. Returns true if still running.
func (s *Simulator) RunCycles(n uint64) bool {
	for i := uint64(0); i < n && !s.halted; i++ {
		s.Tick()
	}
	return !s.halted
}

// Reset clears statistics and signals and resets components that support
// it.
func (s *Simulator) Reset() {
	for _, st := range s.streams {
		st.Reset()
	}
	for _, c := range s.components {
		if r, ok := c.(stream.Resetter); ok {
			r.Reset()
		}
	}
	s.stats = Statistics{}
	s.idleRun = 0
	s.halted = false
	s.stuck = false
}

// settle evaluates every component until no watched signal changes.
func (s *Simulator) settle() {
	limit := 2*len(s.components) + 2
	for pass := 0; ; pass++ {
		before := s.signalVersion()
		for _, c := range s.components {
			c.Eval()
		}
		s.stats.SettlePasses++

		if s.signalVersion() == before {
			return
		}
		if pass >= limit {
			panic(fmt.Sprintf("core: signals did not settle after %d passes at tick %d",
				pass+1, s.stats.Ticks))
		}
	}
}

func (s *Simulator) signalVersion() uint64 {
	var v uint64
	for _, st := range s.streams {
		v += st.Version()
	}
	return v
}

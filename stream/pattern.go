package stream

import (
	"math/rand"
)

// Pattern decides, once per tick, whether a testbench endpoint takes part in
// the handshake. It is how tests model idle producers and backpressure.
type Pattern interface {
	Allow(tick uint64) bool
}

// PatternFunc adapts a function to Pattern.
type PatternFunc func(tick uint64) bool

// Allow implements Pattern.
func (f PatternFunc) Allow(tick uint64) bool { return f(tick) }

// Always participates on every tick.
func Always() Pattern {
	return PatternFunc(func(uint64) bool { return true })
}

// StallEvery skips one tick out of every n. n < 2 means never stall.
func StallEvery(n uint64) Pattern {
	if n < 2 {
		return Always()
	}
	return PatternFunc(func(tick uint64) bool { return tick%n != n-1 })
}

// Script repeats the given participation sequence. An empty script always
// participates.
func Script(steps ...bool) Pattern {
	if len(steps) == 0 {
		return Always()
	}
	return PatternFunc(func(tick uint64) bool {
		return steps[tick%uint64(len(steps))]
	})
}

// Random participates with probability p, using a private generator seeded
// with seed so that runs are reproducible. The pattern must be asked once per
// tick in increasing tick order.
func Random(seed int64, p float64) Pattern {
	r := rand.New(rand.NewSource(seed))
	return PatternFunc(func(uint64) bool { return r.Float64() < p })
}

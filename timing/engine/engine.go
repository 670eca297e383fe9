// Package engine runs a stream simulator on the Akita event-driven engine,
// turning each simulator tick into a clock edge of an Akita ticking
// component.
package engine

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/gearstream/timing/core"
)

// DefaultFrequencyMHz is the clock used when none is configured.
const DefaultFrequencyMHz = 100

// Driver is an Akita ticking component that advances a core.Simulator on
// every clock edge. It keeps ticking while the simulator makes progress.
type Driver struct {
	*sim.TickingComponent

	simulator *core.Simulator
	freq      sim.Freq
}

// NewDriver creates a driver clocked at freq on engine. Akita requires every
// dot-separated element of name to start with a capital letter.
func NewDriver(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	simulator *core.Simulator,
) *Driver {
	d := &Driver{
		simulator: simulator,
		freq:      freq,
	}
	d.TickingComponent = sim.NewTickingComponent(name, engine, freq, d)
	return d
}

// Tick implements sim.Ticker.
func (d *Driver) Tick() bool {
	return d.simulator.Tick()
}

// Simulator returns the driven simulator.
func (d *Driver) Simulator() *core.Simulator {
	return d.simulator
}

// Frequency returns the driver clock.
func (d *Driver) Frequency() sim.Freq {
	return d.freq
}

// FrequencyMHz converts a configured frequency to an Akita frequency.
func FrequencyMHz(mhz float64) sim.Freq {
	if mhz <= 0 {
		mhz = DefaultFrequencyMHz
	}
	return sim.Freq(mhz) * sim.MHz
}

// Run drives simulator on a fresh serial engine until it halts and returns
// the number of ticks executed.
func Run(simulator *core.Simulator, freq sim.Freq) (uint64, error) {
	engine := sim.NewSerialEngine()
	driver := NewDriver("Gearstream.Clock", engine, freq, simulator)

	start := simulator.Stats().Ticks
	driver.TickLater()

	if err := engine.Run(); err != nil {
		return simulator.Stats().Ticks - start, fmt.Errorf("engine run: %w", err)
	}

	return simulator.Stats().Ticks - start, nil
}

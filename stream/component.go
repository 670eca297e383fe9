package stream

// Component is a piece of tick-driven logic connected to streams.
//
// On every tick the simulator calls Eval on all components until no stream
// signal changes any more, then calls Commit on all of them. Eval must only
// drive output signals from registered state and current input signals, and
// must be idempotent. Commit observes the transfers that happened and updates
// registered state; it must not touch signals.
type Component interface {
	Name() string
	Eval()
	Commit()
	// Busy reports whether the component holds work that can still make
	// progress without new input.
	Busy() bool
}

// PortOwner is implemented by components that expose the streams they are
// connected to, so that a simulator can watch them.
type PortOwner interface {
	Streams() []*Stream
}

// Resetter is implemented by components that can return to their
// construction state.
type Resetter interface {
	Reset()
}

package engine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/gearstream/stream"
	"github.com/sarchlab/gearstream/timing/core"
	"github.com/sarchlab/gearstream/timing/engine"
)

var _ = Describe("Driver", func() {
	var (
		s   *stream.Stream
		src *stream.Source
		dst *stream.Sink
		sm  *core.Simulator
	)

	BeforeEach(func() {
		s = stream.NewPacketized("s", 8)
		src = stream.NewSource("source", s, stream.Packet(1, 2, 3, 4), stream.StallEvery(2))
		dst = stream.NewSink("sink", s, nil)
		sm = core.NewSimulator()
		sm.Add(src, dst)
	})

	It("should tick the simulator until it halts", func() {
		ticks, err := engine.Run(sm, engine.FrequencyMHz(100))
		Expect(err).NotTo(HaveOccurred())

		Expect(dst.Words()).To(Equal(stream.Packet(1, 2, 3, 4)))
		Expect(sm.Halted()).To(BeTrue())
		Expect(ticks).To(Equal(sm.Stats().Ticks))
	})

	It("should take as many ticks as the plain loop", func() {
		plain := core.NewSimulator()
		ps := stream.NewPacketized("p", 8)
		plain.Add(
			stream.NewSource("source", ps, stream.Packet(1, 2, 3, 4), stream.StallEvery(2)),
			stream.NewSink("sink", ps, nil),
		)

		ticks, err := engine.Run(sm, engine.FrequencyMHz(250))
		Expect(err).NotTo(HaveOccurred())
		Expect(ticks).To(Equal(plain.Run()))
	})

	It("should expose the simulator and clock", func() {
		e := sim.NewSerialEngine()
		d := engine.NewDriver("Clock", e, 1*sim.GHz, sm)
		Expect(d.Simulator()).To(BeIdenticalTo(sm))
		Expect(d.Frequency()).To(Equal(1 * sim.GHz))
		Expect(d.Tick()).To(BeTrue())
	})

	It("should reject a component name Akita cannot register", func() {
		e := sim.NewSerialEngine()
		Expect(func() { engine.NewDriver("clock", e, 1*sim.GHz, sm) }).To(Panic())
	})

	It("should fall back to the default frequency", func() {
		Expect(engine.FrequencyMHz(0)).To(Equal(engine.FrequencyMHz(engine.DefaultFrequencyMHz)))
	})
})

package fifo_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gearstream/fifo"
	"github.com/sarchlab/gearstream/stream"
	"github.com/sarchlab/gearstream/timing/core"
)

var _ = Describe("FIFO", func() {
	var (
		input *stream.Stream
		f     *fifo.FIFO
		sim   *core.Simulator
	)

	BeforeEach(func() {
		input = stream.NewPacketized("input", 12)
		var err error
		f, err = fifo.New(input, 4)
		Expect(err).NotTo(HaveOccurred())
		sim = core.NewSimulator()
	})

	DescribeTable("should reject depths that are not powers of two",
		func(depth int) {
			_, err := fifo.New(input, depth)
			Expect(err).To(MatchError(fifo.ErrInvalidDepth))
		},
		Entry("zero", 0),
		Entry("negative", -4),
		Entry("three", 3),
		Entry("twelve", 12),
	)

	It("should keep the input shape", func() {
		Expect(f.Output().Shape()).To(Equal(input.Shape()))
		Expect(f.Output().Name()).To(Equal("fifo.output"))
		Expect(f.Depth()).To(Equal(4))
	})

	It("should delay a word by one tick", func() {
		src := stream.NewSource("source", input, stream.Packet(7), nil)
		dst := stream.NewSink("sink", f.Output(), nil)
		sim.Add(src, f, dst)

		sim.Tick()
		Expect(f.Level()).To(Equal(1))
		Expect(dst.Words()).To(BeEmpty())

		sim.Tick()
		Expect(dst.Words()).To(Equal(stream.Packet(7)))
		Expect(f.Level()).To(BeZero())
	})

	It("should fill up to its depth and then push back", func() {
		words := stream.Payloads(1, 2, 3, 4, 5, 6)
		src := stream.NewSource("source", input, words, nil)
		dst := stream.NewSink("sink", f.Output(), stream.PatternFunc(func(tick uint64) bool {
			return tick >= 10
		}))
		sim.Add(src, f, dst)

		sim.RunCycles(8)
		Expect(f.Level()).To(Equal(4))
		Expect(src.Sent()).To(Equal(4))
		Expect(f.Busy()).To(BeTrue())

		sim.Run()
		Expect(dst.Payloads()).To(Equal([]uint64{1, 2, 3, 4, 5, 6}))
		Expect(f.MaxLevel()).To(Equal(4))
	})

	It("should accept while full if a word leaves", func() {
		words := make([]stream.Word, 40)
		for i := range words {
			words[i].Payload = uint64(i)
		}
		src := stream.NewSource("source", input, words, nil)
		dst := stream.NewSink("sink", f.Output(), stream.PatternFunc(func(tick uint64) bool {
			return tick >= 6
		}))
		sim.Add(src, f, dst)

		sim.Run()
		Expect(dst.Words()).To(Equal(words))
		// After the sink opens, one word enters and one leaves on every tick.
		Expect(sim.Stats().Ticks).To(BeNumerically("<=", 6+len(words)+2))
	})

	It("should preserve order and last under random traffic", func() {
		r := rand.New(rand.NewSource(1))
		words := make([]stream.Word, 300)
		for i := range words {
			words[i] = stream.Word{Payload: uint64(r.Intn(4096)), Last: r.Intn(7) == 0}
		}
		src := stream.NewSource("source", input, words, stream.Random(2, 0.6))
		dst := stream.NewSink("sink", f.Output(), stream.Random(3, 0.4))
		sim.Add(src, f, dst)

		sim.Run()
		Expect(dst.Words()).To(Equal(words))
		Expect(f.Output().Lasts()).To(Equal(input.Lasts()))
	})

	It("should empty on reset", func() {
		src := stream.NewSource("source", input, stream.Payloads(1, 2), nil)
		sim.Add(src, f)
		sim.RunCycles(3)
		Expect(f.Level()).To(Equal(2))

		f.Reset()
		Expect(f.Level()).To(BeZero())
		Expect(f.MaxLevel()).To(BeZero())
	})
})

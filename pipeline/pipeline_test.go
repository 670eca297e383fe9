package pipeline_test

import (
	"math/rand"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/gearbox"
	"github.com/sarchlab/gearstream/pipeline"
	"github.com/sarchlab/gearstream/stream"
)

// sparseWords returns count packetized words of the given width, mostly
// zeros, with a last marker roughly every packetLen words.
func sparseWords(seed int64, count, width, packetLen int) []stream.Word {
	r := rand.New(rand.NewSource(seed))
	mask := uint64(1)<<uint(width) - 1
	words := make([]stream.Word, count)
	for i := range words {
		if r.Intn(3) == 0 {
			words[i].Payload = r.Uint64() & mask
		}
		words[i].Last = r.Intn(packetLen) == 0 || i == count-1
	}
	return words
}

var _ = Describe("Pipeline", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	run := func(words []stream.Word, opts ...pipeline.Option) *pipeline.Result {
		p, err := pipeline.New(cfg, words, opts...)
		Expect(err).NotTo(HaveOccurred())
		result, err := p.Run()
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	Describe("Gearbox only", func() {
		It("should pack bytes into 32-bit words and flush partial packets", func() {
			words := append(stream.Packet(0x01, 0x02, 0x03, 0x04), stream.Packet(0x05, 0x06)...)

			result := run(words)

			Expect(result.Words).To(Equal([]stream.Word{
				{Payload: 0x04030201, Last: true},
				{Payload: 0x0605, Last: true},
			}))
			Expect(result.Packets).To(Equal(2))
			Expect(result.OutputWidth).To(Equal(32))
			Expect(result.Gearbox.PaddingBits).To(Equal(uint64(16)))
		})

		It("should store every word in memory", func() {
			words := stream.Packet(0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88)

			result := run(words)

			Expect(result.Stored).To(Equal([]uint64{0x44332211, 0x88776655}))
			Expect(result.Sink.Words).To(Equal(uint64(2)))
		})

		It("should keep trailing bits without a marker buffered", func() {
			cfg.Gearbox.Packetized = false
			words := stream.Payloads(0x01, 0x02, 0x03, 0x04, 0x05)

			result := run(words)

			Expect(result.Words).To(Equal(stream.Payloads(0x04030201)))
			Expect(result.Packets).To(BeZero())
		})

		It("should run without a FIFO", func() {
			cfg.FIFO.Depth = 0
			words := stream.Packet(0x01, 0x02, 0x03)

			result := run(words)

			Expect(result.Words).To(Equal(stream.Packet(0x030201)))
			Expect(result.FIFOMaxLevel).To(BeZero())
		})
	})

	Describe("With encoder", func() {
		BeforeEach(func() {
			cfg.Gearbox.OutputWidth = 8
			cfg.RLE.Enabled = true
			cfg.RLE.RunLengths = []int{4, 16}
		})

		It("should replace a run of twenty zeros with two codes", func() {
			words := append(make([]stream.Word, 20), stream.Word{Payload: 5, Last: true})

			result := run(words)

			Expect(result.InputMax).To(Equal(uint64(256)))
			Expect(result.OutputWidth).To(Equal(9))
			Expect(result.Words).To(Equal([]stream.Word{
				{Payload: 257},
				{Payload: 256},
				{Payload: 5, Last: true},
			}))
			Expect(result.Encoder.RunCodes).To(Equal(uint64(2)))
		})

		It("should produce output that verifies against the input", func() {
			words := sparseWords(7, 400, 8, 40)

			result := run(words)

			Expect(pipeline.Verify(cfg, words, result.Words)).To(Succeed())
			Expect(len(result.Words)).To(BeNumerically("<", len(words)))
		})
	})

	Describe("Burst gate", func() {
		It("should group sink transfers into bursts", func() {
			cfg.Gearbox.OutputWidth = 8
			cfg.Sink.BurstThreshold = 8
			words := sparseWords(3, 200, 8, 1000)

			result := run(words, pipeline.WithInputPattern(stream.StallEvery(2)))

			Expect(result.Words).To(HaveLen(len(words)))
			Expect(result.Sink.GateStalls).To(BeNumerically(">", 0))
			Expect(result.Sink.Bursts).To(BeNumerically("<", uint64(len(words))))
			Expect(result.FIFOMaxLevel).To(BeNumerically(">=", 8))
		})
	})

	Describe("Backpressure", func() {
		DescribeTable("should reproduce the input under random stalls",
			func(in, out int, encode bool) {
				cfg.Gearbox.InputWidth = in
				cfg.Gearbox.OutputWidth = out
				cfg.RLE.Enabled = encode
				cfg.RLE.RunLengths = []int{2, 4, 8}
				words := sparseWords(int64(in*100+out), 300, in, 25)

				result := run(words,
					pipeline.WithInputPattern(stream.Random(1, 0.6)),
					pipeline.WithOutputPattern(stream.Random(2, 0.5)),
				)

				Expect(pipeline.Verify(cfg, words, result.Words)).To(Succeed())
				Expect(result.Stored).To(HaveLen(len(result.Words)))
			},
			Entry("7 to 3", 7, 3, false),
			Entry("3 to 7", 3, 7, false),
			Entry("16 to 8", 16, 8, false),
			Entry("8 to 12 encoded", 8, 12, true),
			Entry("5 to 5 encoded", 5, 5, true),
		)
	})

	Describe("Akita engine", func() {
		It("should match the plain tick loop", func() {
			words := sparseWords(11, 120, 8, 10)

			plain := run(words)
			clocked := run(words, pipeline.WithEngine())

			Expect(cmp.Diff(plain.Words, clocked.Words)).To(BeEmpty())
			Expect(clocked.Ticks).To(Equal(plain.Ticks))
		})
	})

	Describe("Errors", func() {
		It("should reject an invalid config", func() {
			cfg.Gearbox.OutputWidth = 0
			_, err := pipeline.New(cfg, nil)
			Expect(err).To(MatchError(gearbox.ErrInvalidWidth))
		})

		It("should reject payloads wider than the input", func() {
			_, err := pipeline.New(cfg, stream.Payloads(0x100))
			Expect(err).To(MatchError(pipeline.ErrBadInput))
		})

		It("should reject last on a basic input", func() {
			cfg.Gearbox.Packetized = false
			_, err := pipeline.New(cfg, stream.Packet(1))
			Expect(err).To(MatchError(pipeline.ErrBadInput))
		})

		It("should report a sink that never accepts", func() {
			never := stream.PatternFunc(func(uint64) bool { return false })
			p, err := pipeline.New(cfg, stream.Packet(1, 2, 3, 4, 5, 6, 7, 8),
				pipeline.WithOutputPattern(never),
				pipeline.WithIdleLimit(16),
			)
			Expect(err).NotTo(HaveOccurred())

			result, err := p.Run()
			Expect(err).To(MatchError(pipeline.ErrStuck))
			Expect(result.Stuck).To(BeTrue())
			Expect(result.Words).To(BeEmpty())
		})

		It("should finish an empty run immediately", func() {
			result := run(nil)
			Expect(result.Words).To(BeEmpty())
			Expect(result.Ticks).To(Equal(uint64(1)))
		})
	})
})

var _ = Describe("Verify", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	It("should accept zero padding at the end of a packet", func() {
		input := stream.Packet(0x01, 0x02, 0x03)
		output := stream.Packet(0x030201)
		Expect(pipeline.Verify(cfg, input, output)).To(Succeed())
	})

	It("should reject a changed payload", func() {
		input := stream.Packet(0x01, 0x02, 0x03, 0x04)
		output := stream.Packet(0x04030211)
		Expect(pipeline.Verify(cfg, input, output)).To(MatchError(pipeline.ErrMismatch))
	})

	It("should reject a missing packet", func() {
		input := append(stream.Packet(0x01, 0x02, 0x03, 0x04), stream.Packet(0x05)...)
		output := stream.Packet(0x04030201)
		Expect(pipeline.Verify(cfg, input, output)).To(MatchError(pipeline.ErrMismatch))
	})

	It("should reject an unknown run code", func() {
		cfg.Gearbox.OutputWidth = 8
		cfg.RLE.Enabled = true
		cfg.RLE.RunLengths = []int{4}
		Expect(pipeline.Verify(cfg, stream.Packet(0), stream.Packet(300))).
			To(MatchError(pipeline.ErrMismatch))
	})

	It("should regear in both directions", func() {
		words := stream.Packet(0b101, 0b110, 0b011, 0b111)
		wide, err := pipeline.Regear(words, 3, 7, true)
		Expect(err).NotTo(HaveOccurred())
		back, err := pipeline.Regear(wide, 7, 3, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(wide).To(HaveLen(2))
		Expect(back).To(Equal([]stream.Word{
			{Payload: 0b101},
			{Payload: 0b110},
			{Payload: 0b011},
			{Payload: 0b111},
			{Payload: 0, Last: true},
		}))
	})
})

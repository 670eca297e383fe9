package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gearstream/timing/cache"
)

var _ = Describe("Cache", func() {
	var (
		c      *cache.Cache
		memory *cache.Memory
	)

	BeforeEach(func() {
		memory = cache.NewMemory()
		// Fully associative: 4 lines of 64 bytes.
		config := cache.Config{
			LineSize:      64,
			Lines:         4,
			Associativity: 4,
			HitLatency:    1,
			MissLatency:   10,
		}
		var err error
		c, err = cache.New(config, memory)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Configuration", func() {
		It("should accept the default geometry", func() {
			Expect(cache.DefaultConfig().Validate()).To(Succeed())
		})

		DescribeTable("should reject bad geometry",
			func(lineSize, lines, ways int) {
				_, err := cache.New(cache.Config{
					LineSize:      lineSize,
					Lines:         lines,
					Associativity: ways,
				}, nil)
				Expect(err).To(MatchError(cache.ErrInvalidConfig))
			},
			Entry("line size not a power of two", 48, 4, 4),
			Entry("line size below a word", 4, 4, 4),
			Entry("no lines", 64, 0, 1),
			Entry("no ways", 64, 4, 0),
			Entry("ways not dividing lines", 64, 6, 4),
		)
	})

	Describe("Read operations", func() {
		It("should miss on a cold line", func() {
			memory.Write(0x1000, []byte{0xEF, 0xBE, 0xAD, 0xDE})

			result := c.Read(0x1000, 4)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))
			Expect(result.Data).To(Equal(uint64(0xDEADBEEF)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(BeZero())
		})

		It("should hit on the same line", func() {
			memory.Write(0x1004, []byte{0x22, 0x22})

			c.Read(0x1000, 4)
			result := c.Read(0x1004, 2)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
			Expect(result.Data).To(Equal(uint64(0x2222)))
			Expect(c.Stats().HitRate()).To(BeNumerically("~", 0.5))
		})

		It("should panic on an access crossing a line", func() {
			Expect(func() { c.Read(0x103C, 8) }).To(Panic())
		})
	})

	Describe("Write operations", func() {
		It("should allocate on a write miss and hit afterwards", func() {
			result := c.Write(0x2000, 8, 0x0102030405060708)
			Expect(result.Hit).To(BeFalse())

			result = c.Read(0x2000, 8)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Data).To(Equal(uint64(0x0102030405060708)))
		})

		It("should keep writes in the line until flushed", func() {
			c.Write(0x2000, 2, 0xBEEF)
			Expect(memory.Read(0x2000, 2)).To(Equal([]byte{0, 0}))

			c.Flush()
			Expect(memory.Read(0x2000, 2)).To(Equal([]byte{0xEF, 0xBE}))
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})

		It("should preserve neighbouring bytes of a filled line", func() {
			memory.Write(0x3000, []byte{1, 2, 3, 4})
			c.Write(0x3001, 1, 0xFF)
			c.Flush()
			Expect(memory.Read(0x3000, 4)).To(Equal([]byte{1, 0xFF, 3, 4}))
		})
	})

	Describe("Eviction", func() {
		It("should write back the least recently used dirty line", func() {
			for i := uint64(0); i < 4; i++ {
				c.Write(i*64, 1, i+1)
			}
			// Touch line 0 so that line 1 becomes the victim.
			c.Read(0, 1)

			result := c.Write(4*64, 1, 5)
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint64(64)))
			Expect(memory.Read8(64)).To(Equal(byte(2)))
			Expect(memory.Read8(0)).To(BeZero())

			stats := c.Stats()
			Expect(stats.Evictions).To(Equal(uint64(1)))
			Expect(stats.Writebacks).To(Equal(uint64(1)))
		})

		It("should not write back a clean line", func() {
			for i := uint64(0); i < 5; i++ {
				c.Read(i*64, 1)
			}
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
			Expect(c.Stats().Writebacks).To(BeZero())
		})
	})

	It("should drop lines and statistics on reset", func() {
		c.Write(0, 1, 9)
		c.Reset()
		Expect(c.Stats()).To(Equal(cache.Statistics{}))

		Expect(c.Read(0, 1).Hit).To(BeFalse())
		Expect(memory.Read8(0)).To(BeZero())
	})
})

var _ = Describe("Memory", func() {
	It("should read unwritten bytes as zero", func() {
		m := cache.NewMemory()
		Expect(m.Read(0x5000, 3)).To(Equal([]byte{0, 0, 0}))
		Expect(m.Pages()).To(BeEmpty())
	})

	It("should span page boundaries", func() {
		m := cache.NewMemory()
		m.Write(4094, []byte{1, 2, 3, 4})
		Expect(m.Read(4094, 4)).To(Equal([]byte{1, 2, 3, 4}))
		Expect(m.Pages()).To(Equal([]uint64{0, 4096}))
	})
})

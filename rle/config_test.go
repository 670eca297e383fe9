package rle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gearstream/rle"
)

var _ = Describe("Config", func() {
	DescribeTable("should reject bad run-length lists",
		func(runLengths []int) {
			cfg := rle.Config{RunLengths: runLengths}
			Expect(cfg.Validate()).To(MatchError(rle.ErrInvalidRunLengths))
		},
		Entry("empty", []int{}),
		Entry("unsorted", []int{16, 4}),
		Entry("duplicated", []int{4, 4, 16}),
		Entry("zero", []int{0, 4}),
		Entry("negative", []int{-2, 4}),
	)

	It("should accept a single run length of one", func() {
		Expect(rle.Config{RunLengths: []int{1}}.Validate()).To(Succeed())
	})

	Describe("Alphabet", func() {
		It("should default to the literal width", func() {
			m, err := rle.Config{RunLengths: []int{4}}.Alphabet(8)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(uint64(256)))
		})

		It("should honour an explicit bound", func() {
			m, err := rle.Config{RunLengths: []int{4}, InputMax: 100}.Alphabet(8)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(uint64(100)))
		})

		It("should reject a zero value outside the alphabet", func() {
			_, err := rle.Config{RunLengths: []int{4}, ZeroValue: 256}.Alphabet(8)
			Expect(err).To(MatchError(rle.ErrInvalidAlphabet))
		})

		It("should reject a 64-bit default alphabet", func() {
			_, err := rle.Config{RunLengths: []int{4}}.Alphabet(64)
			Expect(err).To(MatchError(rle.ErrInvalidAlphabet))
		})

		It("should reject codes that overflow", func() {
			_, err := rle.Config{RunLengths: []int{4, 8}, InputMax: ^uint64(0)}.Alphabet(64)
			Expect(err).To(MatchError(rle.ErrInvalidAlphabet))
		})
	})

	Describe("Widths", func() {
		It("should widen the output just enough for the codes", func() {
			cfg := rle.Config{RunLengths: []int{4, 16}}
			Expect(cfg.CodeWidth(256)).To(Equal(9))
			Expect(cfg.CodeWidth(100)).To(Equal(7))
			Expect(rle.LiteralWidth(256)).To(Equal(8))
			Expect(rle.LiteralWidth(100)).To(Equal(7))
		})

		It("should never report a zero width", func() {
			Expect(rle.LiteralWidth(1)).To(Equal(1))
		})
	})

	Describe("Decompose", func() {
		runLengths := []int{4, 16}

		It("should take the largest fitting length first", func() {
			Expect(rle.Decompose(20, runLengths)).To(Equal([]int{1, 0}))
			Expect(rle.Decompose(37, runLengths)).To(Equal([]int{1, 1, 0, -1}))
		})

		It("should use literal zeros below the shortest length", func() {
			Expect(rle.Decompose(3, runLengths)).To(Equal([]int{-1, -1, -1}))
		})

		It("should be empty for an empty run", func() {
			Expect(rle.Decompose(0, runLengths)).To(BeEmpty())
		})
	})

	It("should clone the run lengths", func() {
		cfg := rle.Config{RunLengths: []int{4, 16}}
		clone := cfg.Clone()
		clone.RunLengths[0] = 2
		Expect(cfg.RunLengths[0]).To(Equal(4))
		Expect(cfg.MaxRunLength()).To(Equal(16))
	})
})

package benchmarks

import (
	"math/rand"

	"github.com/sarchlab/gearstream/config"
	"github.com/sarchlab/gearstream/stream"
)

// GetWorkloads returns the standard workload set.
func GetWorkloads() []Workload {
	return []Workload{
		bytePacking(),
		nibbleSplitting(),
		oddWidths(),
		sparseEncoded(),
		burstySink(),
		randomStalls(),
	}
}

// bytePacking packs a byte stream into 32-bit words with no stalls.
func bytePacking() Workload {
	return Workload{
		Name:        "byte_packing",
		Description: "8 to 32 bits, 64-byte packets, no stalls",
		Words:       packets(rand.New(rand.NewSource(1)), 2048, 8, 64, 1.0),
	}
}

// nibbleSplitting narrows bytes to 4 bits; the output side is the
// bottleneck.
func nibbleSplitting() Workload {
	return Workload{
		Name:        "nibble_splitting",
		Description: "8 to 4 bits, output-bound",
		Configure: func(c *config.Config) {
			c.Gearbox.OutputWidth = 4
		},
		Words: packets(rand.New(rand.NewSource(2)), 1024, 8, 32, 1.0),
	}
}

// oddWidths converts between coprime widths with partial flushes.
func oddWidths() Workload {
	return Workload{
		Name:        "odd_widths",
		Description: "7 to 3 bits, short packets",
		Configure: func(c *config.Config) {
			c.Gearbox.InputWidth = 7
			c.Gearbox.OutputWidth = 3
		},
		Words: packets(rand.New(rand.NewSource(3)), 1024, 7, 5, 1.0),
	}
}

// sparseEncoded streams mostly zero bytes through the encoder.
func sparseEncoded() Workload {
	return Workload{
		Name:        "sparse_encoded",
		Description: "8 to 8 bits, 90% zeros, run lengths 2..64",
		Configure: func(c *config.Config) {
			c.Gearbox.OutputWidth = 8
			c.RLE.Enabled = true
			c.RLE.RunLengths = []int{2, 4, 8, 16, 32, 64}
		},
		Words: packets(rand.New(rand.NewSource(4)), 4096, 8, 256, 0.1),
	}
}

// burstySink holds the sink back until the FIFO has a burst ready.
func burstySink() Workload {
	return Workload{
		Name:        "bursty_sink",
		Description: "8 to 16 bits, burst threshold 12 of 16",
		Configure: func(c *config.Config) {
			c.Gearbox.OutputWidth = 16
			c.Sink.BurstThreshold = 12
		},
		Words:        packets(rand.New(rand.NewSource(5)), 2048, 8, 128, 1.0),
		InputPattern: func() stream.Pattern { return stream.StallEvery(3) },
	}
}

// randomStalls applies random backpressure on both ends.
func randomStalls() Workload {
	return Workload{
		Name:        "random_stalls",
		Description: "12 to 5 bits, 70% source and 60% device availability",
		Configure: func(c *config.Config) {
			c.Gearbox.InputWidth = 12
			c.Gearbox.OutputWidth = 5
		},
		Words:         packets(rand.New(rand.NewSource(6)), 1024, 12, 17, 1.0),
		InputPattern:  func() stream.Pattern { return stream.Random(7, 0.7) },
		OutputPattern: func() stream.Pattern { return stream.Random(8, 0.6) },
	}
}

// packets generates n words of the given width in packets of packetLen
// words. Each payload is non-zero with probability density.
func packets(r *rand.Rand, n, width, packetLen int, density float64) []stream.Word {
	mask := stream.Shape{Width: width}.Mask()
	words := make([]stream.Word, n)
	for i := range words {
		if r.Float64() < density {
			words[i].Payload = r.Uint64() & mask
		}
		words[i].Last = (i+1)%packetLen == 0 || i == n-1
	}
	return words
}

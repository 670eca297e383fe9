// Package cache provides the write-back line buffer that sits between a
// stream sink and its backing memory. Tag and replacement state are kept in
// an Akita cache directory.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// ErrInvalidConfig is returned for an unusable line buffer geometry.
var ErrInvalidConfig = errors.New("invalid line buffer configuration")

// Config holds line buffer parameters.
type Config struct {
	// LineSize in bytes; a power of two of at least 8.
	LineSize int
	// Lines is the total number of lines.
	Lines int
	// Associativity (number of ways); must divide Lines.
	Associativity int
	// HitLatency in ticks.
	HitLatency uint64
	// MissLatency in ticks, the time to write back a victim and fill a line.
	MissLatency uint64
}

// DefaultConfig returns a small buffer sized for a burst-oriented sink:
// 16 lines of 64 bytes, 4-way.
func DefaultConfig() Config {
	return Config{
		LineSize:      64,
		Lines:         16,
		Associativity: 4,
		HitLatency:    0,
		MissLatency:   8,
	}
}

// Validate checks the geometry.
func (c Config) Validate() error {
	if c.LineSize < 8 || c.LineSize&(c.LineSize-1) != 0 {
		return fmt.Errorf("line size %d is not a power of two >= 8: %w", c.LineSize, ErrInvalidConfig)
	}
	if c.Lines <= 0 || c.Associativity <= 0 {
		return fmt.Errorf("%d lines, %d ways: %w", c.Lines, c.Associativity, ErrInvalidConfig)
	}
	if c.Lines%c.Associativity != 0 {
		return fmt.Errorf("%d ways do not divide %d lines: %w", c.Associativity, c.Lines, ErrInvalidConfig)
	}
	return nil
}

// AccessResult contains the result of an access.
type AccessResult struct {
	// Hit indicates whether the line was present.
	Hit bool
	// Latency is the number of ticks the access occupies the port.
	Latency uint64
	// Data is the data read (for reads).
	Data uint64
	// Evicted is true if a valid line was replaced.
	Evicted bool
	// EvictedAddr is the line address of the replaced line.
	EvictedAddr uint64
}

// Statistics holds line buffer statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns the fraction of accesses that hit.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore is the memory behind the line buffer.
type BackingStore interface {
	// Read fetches size bytes at addr.
	Read(addr uint64, size int) []byte
	// Write stores data at addr.
	Write(addr uint64, data []byte)
}

// Cache is a write-allocate, write-back line buffer.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	// lines is indexed by setID*Associativity + wayID.
	lines [][]byte

	stats   Statistics
	backing BackingStore
}

// New creates a line buffer in front of backing.
func New(config Config, backing BackingStore) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numSets := config.Lines / config.Associativity
	lines := make([][]byte, config.Lines)
	for i := range lines {
		lines[i] = make([]byte, config.LineSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.LineSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:   lines,
		backing: backing,
	}, nil
}

// Config returns the configuration.
func (c *Cache) Config() Config { return c.config }

// Stats returns statistics.
func (c *Cache) Stats() Statistics { return c.stats }

// Backing returns the backing store.
func (c *Cache) Backing() BackingStore { return c.backing }

// Read returns size bytes at addr as a little-endian value. The access must
// not cross a line.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.checkAccess(addr, size)
	c.stats.Reads++

	block, result := c.lookup(addr)
	line := c.lines[c.lineIndex(block)]
	result.Data = extractData(line, c.offset(addr), size)
	return result
}

// Write stores the low size bytes of data at addr, little endian. The
// access must not cross a line.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	c.checkAccess(addr, size)
	c.stats.Writes++

	block, result := c.lookup(addr)
	line := c.lines[c.lineIndex(block)]
	storeData(line, c.offset(addr), size, data)
	block.IsDirty = true
	return result
}

// Flush writes back all dirty lines and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.writeBack(block)
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all lines without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// lookup finds the line holding addr, filling it on a miss.
func (c *Cache) lookup(addr uint64) (*akitacache.Block, AccessResult) {
	lineAddr := c.lineAddr(addr)

	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return block, AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	result := AccessResult{Latency: c.config.MissLatency}

	victim := c.directory.FindVictim(lineAddr)
	if victim == nil {
		panic(fmt.Sprintf("cache: no victim for line 0x%x", lineAddr))
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		if victim.IsDirty {
			c.writeBack(victim)
		}
	}

	line := c.lines[c.lineIndex(victim)]
	if c.backing != nil {
		copy(line, c.backing.Read(lineAddr, c.config.LineSize))
	} else {
		clear(line)
	}

	// Tag holds the line-aligned address.
	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return victim, result
}

func (c *Cache) writeBack(block *akitacache.Block) {
	if c.backing == nil {
		return
	}
	c.stats.Writebacks++
	c.backing.Write(block.Tag, c.lines[c.lineIndex(block)])
}

func (c *Cache) lineIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) lineAddr(addr uint64) uint64 {
	return addr &^ uint64(c.config.LineSize-1)
}

func (c *Cache) offset(addr uint64) uint64 {
	return addr & uint64(c.config.LineSize-1)
}

func (c *Cache) checkAccess(addr uint64, size int) {
	if size <= 0 || size > 8 || int(c.offset(addr))+size > c.config.LineSize {
		panic(fmt.Sprintf("cache: %d-byte access at 0x%x crosses a %d-byte line",
			size, addr, c.config.LineSize))
	}
}

// extractData reads a little-endian value of size bytes.
func extractData(data []byte, offset uint64, size int) uint64 {
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

// storeData writes a little-endian value of size bytes.
func storeData(data []byte, offset uint64, size int, value uint64) {
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}

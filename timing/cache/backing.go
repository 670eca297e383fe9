package cache

import "golang.org/x/exp/slices"

const pageSize = 4096

// Memory is a sparse byte-addressed store. Unwritten bytes read as zero.
type Memory struct {
	pages map[uint64][]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64][]byte)}
}

// Read fetches size bytes starting at addr.
func (m *Memory) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		a := addr + uint64(i)
		if page, ok := m.pages[a/pageSize]; ok {
			data[i] = page[a%pageSize]
		}
	}
	return data
}

// Write stores data starting at addr.
func (m *Memory) Write(addr uint64, data []byte) {
	for i, b := range data {
		a := addr + uint64(i)
		page, ok := m.pages[a/pageSize]
		if !ok {
			page = make([]byte, pageSize)
			m.pages[a/pageSize] = page
		}
		page[a%pageSize] = b
	}
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	return m.Read(addr, 1)[0]
}

// Pages returns the base addresses of all touched pages in ascending order.
func (m *Memory) Pages() []uint64 {
	bases := make([]uint64, 0, len(m.pages))
	for p := range m.pages {
		bases = append(bases, p*pageSize)
	}
	slices.Sort(bases)
	return bases
}

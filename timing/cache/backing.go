package cache

import (
	"github.com/sarchlab/gbasim/emu"
)

// BusBacking wraps an emu.Bus as a BackingStore.
type BusBacking struct {
	bus emu.Bus
}

// NewBusBacking creates a new BusBacking adapter.
func NewBusBacking(bus emu.Bus) *BusBacking {
	return &BusBacking{bus: bus}
}

// Read fetches size bytes from the bus.
func (b *BusBacking) Read(addr uint32, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = b.bus.Read8(addr + uint32(i))
	}
	return data
}

// Write stores one byte to the bus.
func (b *BusBacking) Write(addr uint32, value uint8) {
	b.bus.Write8(addr, value)
}

// NewBusCache creates a cache in front of bus.
func NewBusCache(config Config, bus emu.Bus) *Cache {
	return New(config, NewBusBacking(bus))
}

var _ emu.Bus = (*Cache)(nil)

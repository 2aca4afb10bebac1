// Package cache provides a functional line cache in front of the GBA bus,
// built on Akita's cache directory.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
}

// DefaultConfig returns a small cache sized for cartridge code:
// 4KB, 4-way, 32B lines.
func DefaultConfig() Config {
	return Config{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     32,
	}
}

// Validate checks that the geometry describes at least one set of
// power-of-two sized lines.
func (c Config) Validate() error {
	if c.BlockSize < 4 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block size %d must be a power of two of at least 4", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be positive, got %d", c.Associativity)
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf("size %d is not a multiple of associativity*block size (%d)",
			c.Size, c.Associativity*c.BlockSize)
	}
	return nil
}

// Statistics holds cache statistics.
type Statistics struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of reads that hit.
func (s Statistics) HitRate() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Reads)
}

// Cache is a write-through, no-write-allocate line cache. It implements
// emu.Bus, so the core can fetch and load through it.
type Cache struct {
	// Configuration
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	// Statistics
	stats Statistics

	// Backing store for line fills and write-through
	backing BackingStore
}

// BackingStore is the next level below the cache.
type BackingStore interface {
	// Read fetches size bytes starting at addr.
	Read(addr uint32, size int) []byte
	// Write stores a single byte.
	Write(addr uint32, value uint8)
}

// New creates a new cache with the given configuration. A configuration
// that fails Validate is replaced by DefaultConfig.
func New(config Config, backing BackingStore) *Cache {
	if config.Validate() != nil {
		config = DefaultConfig()
	}

	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr &^ uint32(c.config.BlockSize-1)
}

// line returns the data of the line holding addr, filling it on a miss.
func (c *Cache) line(addr uint32) []byte {
	c.stats.Reads++

	blockAddr := c.blockAddr(addr)
	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU
		return c.dataStore[c.blockIndex(block)]
	}

	c.stats.Misses++
	return c.fill(blockAddr)
}

// fill loads a line from the backing store into the LRU victim.
func (c *Cache) fill(blockAddr uint32) []byte {
	victim := c.directory.FindVictim(uint64(blockAddr))
	data := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
	}

	copy(data, c.backing.Read(blockAddr, c.config.BlockSize))

	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return data
}

// Read8 reads one byte through the cache.
func (c *Cache) Read8(addr uint32) uint8 {
	data := c.line(addr)
	return data[addr-c.blockAddr(addr)]
}

// Read32 reads a little-endian word. A word that straddles two lines is
// read a byte at a time.
func (c *Cache) Read32(addr uint32) uint32 {
	offset := int(addr - c.blockAddr(addr))
	if offset > c.config.BlockSize-4 {
		return uint32(c.Read8(addr)) |
			uint32(c.Read8(addr+1))<<8 |
			uint32(c.Read8(addr+2))<<16 |
			uint32(c.Read8(addr+3))<<24
	}

	data := c.line(addr)
	return uint32(data[offset]) |
		uint32(data[offset+1])<<8 |
		uint32(data[offset+2])<<16 |
		uint32(data[offset+3])<<24
}

// Write8 writes one byte through to the backing store, updating the cached
// copy on a hit. Misses do not allocate.
func (c *Cache) Write8(addr uint32, value uint8) {
	c.stats.Writes++
	c.backing.Write(addr, value)

	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block == nil || !block.IsValid {
		return
	}

	// Refill from the backing store so writes the bus dropped stay dropped.
	offset := addr - c.blockAddr(addr)
	fresh := c.backing.Read(addr, 1)
	c.dataStore[c.blockIndex(block)][offset] = fresh[0]
	c.directory.Visit(block)
}

// Invalidate marks the line holding addr as invalid.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush invalidates every line. Lines are never dirty, so nothing is
// written back.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// Resident reports whether the line holding addr is cached.
func (c *Cache) Resident(addr uint32) bool {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	return block != nil && block.IsValid
}

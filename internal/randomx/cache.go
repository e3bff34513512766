package randomx

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

// DefaultCacheSize is the light-mode cache size. Light mode evaluates
// hashes against the cache directly, without expanding the full
// dataset.
const DefaultCacheSize = 256 * 1024 * 1024

// fillBlockSize is the size of each chained Blake2b-512 block written
// into the cache, and of the cache windows a VM reads.
const fillBlockSize = 64

// Cache is the memory-hard working set shared by all VMs. It is
// read-only after construction; concurrent VM reads need no locking.
type Cache struct {
	data []byte
	seed []byte
}

// NewCache builds a light cache from seed. The fill derives an Argon2id
// key from the seed and expands it with chained Blake2b blocks. An
// allocation larger than the free physical memory fails early instead
// of driving the host into swap.
func NewCache(logger *zap.Logger, seed []byte, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	if free := memory.FreeMemory(); free > 0 && uint64(size) > free {
		return nil, fmt.Errorf("cache size %s exceeds free memory %s",
			humanize.IBytes(uint64(size)), humanize.IBytes(free))
	}

	logger.Info("Initializing hash cache",
		zap.String("size", humanize.IBytes(uint64(size))),
	)

	key := argon2.IDKey(seed, seed, 1, 64*1024, 1, 32)

	data := make([]byte, size)
	block := blake2b.Sum512(key)
	for off := 0; off < size; off += fillBlockSize {
		copy(data[off:], block[:])
		block = blake2b.Sum512(block[:])
	}

	c := &Cache{
		data: data,
		seed: append([]byte(nil), seed...),
	}
	logger.Debug("Hash cache ready")
	return c, nil
}

// Size returns the cache length in bytes.
func (c *Cache) Size() int { return len(c.data) }

// Seed returns a copy of the seed the cache was built from.
func (c *Cache) Seed() []byte { return append([]byte(nil), c.seed...) }

// window returns a 64-byte cache window selected by a u64 index.
func (c *Cache) window(idx uint64) []byte {
	off := int(idx % uint64(len(c.data)-fillBlockSize))
	return c.data[off : off+fillBlockSize]
}

// VM evaluates hashes against a shared cache. Each mining thread owns
// its own VM; the scratchpad is reused across hashes.
type VM struct {
	cache      *Cache
	scratchpad [160]byte
}

// NewVM creates a VM bound to cache.
func NewVM(cache *Cache) *VM {
	return &VM{cache: cache}
}

// Hash computes the 32-byte digest of input. The first 16 bytes of the
// SHA-256 of input select two 64-byte cache windows, which are folded
// into the scratchpad before the final digest; the result depends on
// the cache contents at those two windows only.
func (vm *VM) Hash(input []byte) [32]byte {
	first := sha256.Sum256(input)

	copy(vm.scratchpad[:32], first[:])
	for round := 0; round < 2; round++ {
		idx := binary.LittleEndian.Uint64(vm.scratchpad[round*8 : round*8+8])
		win := vm.cache.window(idx)
		for i := 0; i < fillBlockSize; i++ {
			vm.scratchpad[32+round*64+i] = win[i] ^ vm.scratchpad[(round*64+i)%32]
		}
	}

	return sha256.Sum256(vm.scratchpad[:160])
}

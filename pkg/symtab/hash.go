package symtab

import "github.com/spaolacci/murmur3"

// boundedHash reduces a deterministic hash of the symbol text into
// [0, maxHash]. maxHash is always a power of two minus one, so masking
// is an exact modulo.
func boundedHash(symbol string, maxHash uint32) uint32 {
	return murmur3.Sum32([]byte(symbol)) & maxHash
}

// nextPow2 returns the smallest power of two >= v, minimum 1.
func nextPow2(v int32) int32 {
	if v <= 1 {
		return 1
	}

	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16

	return v + 1
}

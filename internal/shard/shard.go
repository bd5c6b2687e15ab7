// Package shard maps string keys onto a fixed number of lock shards.
package shard

import "github.com/cespare/xxhash/v2"

// DefaultCount is the shard count used when a caller passes a non-positive value.
const DefaultCount = 32

// Normalize rounds n up to a power of two so Index can mask instead of divide.
func Normalize(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Index returns the shard for key. n must be a power of two (see Normalize).
func Index(key string, n int) int {
	return int(xxhash.Sum64String(key) & uint64(n-1))
}

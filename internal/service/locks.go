package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// stripedLocks serializes work per key. Keys that hash to the same stripe
// share a mutex, which only costs parallelism, never correctness.
type stripedLocks struct {
	stripes [lockStripes]sync.Mutex
}

// lock acquires the stripe for key and returns its release func.
func (l *stripedLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

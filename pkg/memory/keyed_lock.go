package memory

import (
	"hash/fnv"
	"sync"
)

// keyedLockShards is the number of mutex shards for per-triple locking.
// Collisions between distinct triples only cost a little extra
// serialization, never correctness.
const keyedLockShards = 64

// keyedLock serializes writers per (owner, type, key) triple within one
// process. Save holds the triple's lock across its find-then-write so two
// concurrent saves for the same triple cannot both observe "not found"
// and create duplicate live records. It offers no protection across
// processes; see the uniqueness notes on Record.
type keyedLock struct {
	shards [keyedLockShards]sync.Mutex
}

func (l *keyedLock) lock(ownerID string, memoryType Type, key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ownerID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(memoryType))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	mu := &l.shards[h.Sum32()%keyedLockShards]
	mu.Lock()
	return mu
}

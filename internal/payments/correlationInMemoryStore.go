package payments

import (
	"context"
	"hash/fnv"
	"log/slog"
	"stk-relay/internal/payments/entities"
	"sync"
	"time"
)

const shardCount = 256

type correlationRecord struct {
	status    entities.Status
	expiresAt time.Time // zero means no expiry
}

type correlationShard struct {
	sync.RWMutex
	store map[string]correlationRecord
}

// CorrelationInMemoryStore is a sharded map from correlation ID to status.
// Entries live for ttl after their last write; a ttl of zero keeps them for
// the life of the process.
type CorrelationInMemoryStore struct {
	shards [shardCount]*correlationShard
	ttl    time.Duration
	now    func() time.Time
}

func NewCorrelationInMemoryStore(ttl time.Duration) *CorrelationInMemoryStore {
	s := &CorrelationInMemoryStore{ttl: ttl, now: time.Now}
	for i := 0; i < shardCount; i++ {
		s.shards[i] = &correlationShard{
			store: make(map[string]correlationRecord, 64),
		}
	}
	return s
}

func (s *CorrelationInMemoryStore) getShard(key string) *correlationShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Put inserts or overwrites the status for correlationID.
func (s *CorrelationInMemoryStore) Put(ctx context.Context, correlationID string, status entities.Status) error {
	rec := correlationRecord{status: status}
	if s.ttl > 0 {
		rec.expiresAt = s.now().Add(s.ttl)
	}

	shard := s.getShard(correlationID)
	shard.Lock()
	shard.store[correlationID] = rec
	shard.Unlock()
	return nil
}

func (s *CorrelationInMemoryStore) Get(ctx context.Context, correlationID string) (entities.Status, bool, error) {
	shard := s.getShard(correlationID)
	shard.RLock()
	rec, ok := shard.store[correlationID]
	shard.RUnlock()

	if !ok || s.expired(rec, s.now()) {
		return "", false, nil
	}
	return rec.status, true, nil
}

func (s *CorrelationInMemoryStore) expired(rec correlationRecord, now time.Time) bool {
	return !rec.expiresAt.IsZero() && !now.Before(rec.expiresAt)
}

// Sweep drops expired entries and returns how many were removed.
func (s *CorrelationInMemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	now := s.now()
	removed := 0
	for _, shard := range s.shards {
		shard.Lock()
		for k, rec := range shard.store {
			if s.expired(rec, now) {
				delete(shard.store, k)
				removed++
			}
		}
		shard.Unlock()
	}
	return removed
}

// StartJanitor sweeps expired entries every interval until ctx is done.
func (s *CorrelationInMemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		slog.Info("correlation store retention is unbounded")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					slog.Debug("swept expired correlation entries", "removed", n)
				}
			}
		}
	}()
}

func (s *CorrelationInMemoryStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.RLock()
		total += len(shard.store)
		shard.RUnlock()
	}
	return total
}

package bridge

import (
	"sort"
	"sync"
	"time"
)

// DiscoveryRegistry remembers which entities have been observed so that
// announcements go out exactly once per entity. There is no persistence;
// restarting the bridge re-announces everything, which downstream consumers
// treat as idempotent.
type DiscoveryRegistry struct {
	mutex   sync.Mutex
	records map[string]DiscoveryRecord
}

func NewDiscoveryRegistry() *DiscoveryRegistry {
	return &DiscoveryRegistry{records: map[string]DiscoveryRecord{}}
}

// Observe records an entity sighting. It returns true only on the first
// observation of that entity.
func (r *DiscoveryRegistry) Observe(entity EntityRef, now time.Time) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	key := entity.key()
	if _, ok := r.records[key]; ok {
		return false
	}
	r.records[key] = DiscoveryRecord{Entity: entity, FirstSeenAt: now}
	return true
}

// Known reports whether the entity has been observed before.
func (r *DiscoveryRegistry) Known(entity EntityRef) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	_, ok := r.records[entity.key()]
	return ok
}

func (r *DiscoveryRegistry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.records)
}

// All returns every discovery record ordered by first observation.
func (r *DiscoveryRegistry) All() []DiscoveryRecord {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	records := make([]DiscoveryRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].FirstSeenAt.Equal(records[j].FirstSeenAt) {
			return records[i].Entity.key() < records[j].Entity.key()
		}
		return records[i].FirstSeenAt.Before(records[j].FirstSeenAt)
	})
	return records
}

package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/leela-coach/pkg/coachdto"
)

type memEntry struct {
	rec coachdto.GameRecord
	seq int64
}

// MemoryStore keeps game records in process. Development default when no
// external store is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	nextSeq int64
	byID    map[string]memEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]memEntry)}
}

func (m *MemoryStore) SaveGame(_ context.Context, rec coachdto.GameRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("game record needs an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.ID]; exists {
		return ErrDuplicateGame
	}
	m.nextSeq++
	m.byID[rec.ID] = memEntry{rec: cloneRecord(rec), seq: m.nextSeq}
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id string) (*coachdto.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	rec := cloneRecord(entry.rec)
	return &rec, nil
}

func (m *MemoryStore) RecentGames(_ context.Context, limit int) ([]coachdto.GameRecord, error) {
	m.mu.RLock()
	entries := make([]memEntry, 0, len(m.byID))
	for _, e := range m.byID {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	// Newest finish first; insertion order breaks ties.
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].rec.EndedAt.Equal(entries[j].rec.EndedAt) {
			return entries[i].rec.EndedAt.After(entries[j].rec.EndedAt)
		}
		return entries[i].seq > entries[j].seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]coachdto.GameRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, cloneRecord(e.rec))
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneRecord(rec coachdto.GameRecord) coachdto.GameRecord {
	rec.Critiques = append([]coachdto.Critique(nil), rec.Critiques...)
	return rec
}

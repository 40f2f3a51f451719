package service

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// productLocks hands out one mutex per product. Entries are reference
// counted so the map does not grow with the catalog.
type productLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[uuid.UUID]*productLock)}
}

// lock acquires every product's mutex in ascending id order and returns the
// function that releases them. Duplicate ids are locked once.
func (l *productLocks) lock(ids []uuid.UUID) func() {
	ordered := sortedUnique(ids)
	held := make([]*productLock, 0, len(ordered))
	for _, id := range ordered {
		l.mu.Lock()
		pl, ok := l.locks[id]
		if !ok {
			pl = &productLock{}
			l.locks[id] = pl
		}
		pl.refs++
		l.mu.Unlock()

		pl.mu.Lock()
		held = append(held, pl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, ordered[i])
			}
			l.mu.Unlock()
		}
	}
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

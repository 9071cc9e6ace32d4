package waitlist

import (
	"context"
	"sort"
	"sync"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

// Repository defines the interface for waitlist storage.
type Repository interface {
	Enqueue(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	// ListActive returns QUEUED and NOTIFIED entries for the slot, ordered
	// by (priority desc, created_at asc).
	ListActive(ctx context.Context, key scheduling.SlotKey) ([]*Entry, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// InMemoryRepository stores entries in memory, for tests and local runs.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*Entry)}
}

func (r *InMemoryRepository) Enqueue(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *InMemoryRepository) ListActive(ctx context.Context, key scheduling.SlotKey) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*Entry
	for _, entry := range r.entries {
		if entry.SlotKey() != key {
			continue
		}
		if entry.Status != StatusQueued && entry.Status != StatusNotified {
			continue
		}
		cp := *entry
		active = append(active, &cp)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].ranksBefore(active[j])
	})
	return active, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = status
	return nil
}

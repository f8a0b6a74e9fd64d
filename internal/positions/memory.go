package positions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps positions in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]Position
	byOwner map[string][]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]Position),
		byOwner: make(map[string][]uuid.UUID),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, p Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return fmt.Errorf("position %s already exists", p.ID)
	}
	r.byID[p.ID] = p
	r.byOwner[p.Owner] = append(r.byOwner[p.Owner], p.ID)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return Position{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, owner string) ([]Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOwner[owner]
	out := make([]Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

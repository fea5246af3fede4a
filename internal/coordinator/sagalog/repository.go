package sagalog

import (
	"context"
	"sync"

	"github.com/clickmarket/marketplace/internal/pkg/apperr"
)

// Repository persists checkout log entries. Save appends; the log is never
// updated in place.
type Repository interface {
	Save(ctx context.Context, entry *SagaLog) error
	// History returns every entry of a saga, oldest first.
	History(ctx context.Context, sagaID string) ([]*SagaLog, error)
}

// Latest returns the most recent entry of a saga.
func Latest(ctx context.Context, repo Repository, sagaID string) (*SagaLog, error) {
	entries, err := repo.History(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperr.Newf(apperr.NotFound, "no checkout log for %s", sagaID)
	}
	return entries[len(entries)-1], nil
}

// MemoryRepository keeps the log in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []SagaLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Save(_ context.Context, entry *SagaLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryRepository) History(_ context.Context, sagaID string) ([]*SagaLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SagaLog
	for _, e := range m.entries {
		if e.SagaID == sagaID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

package likes

import (
	"context"
	"fmt"
	"sync"

	"github.com/cartcompass/backend/internal/domain"
)

// MemoryLikes is the in-process LikesRepository used when no redis is
// configured. State does not survive restarts.
type MemoryLikes struct {
	mu    sync.RWMutex
	users map[string]map[string]domain.LikedSnapshot
}

func NewMemoryLikes() *MemoryLikes {
	return &MemoryLikes{
		users: make(map[string]map[string]domain.LikedSnapshot),
	}
}

func (m *MemoryLikes) Snapshots(ctx context.Context, userID string) ([]domain.LikedSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := m.users[userID]
	snapshots := make([]domain.LikedSnapshot, 0, len(byID))
	for _, snapshot := range byID {
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (m *MemoryLikes) Add(ctx context.Context, userID string, snapshot domain.LikedSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("%w: snapshot needs a product id", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.users[userID] == nil {
		m.users[userID] = make(map[string]domain.LikedSnapshot)
	}
	m.users[userID][snapshot.ID] = snapshot
	return nil
}

func (m *MemoryLikes) Remove(ctx context.Context, userID string, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users[userID], productID)
	return nil
}

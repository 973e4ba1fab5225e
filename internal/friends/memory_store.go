package friends

import (
	"context"
	"sync"
	"time"

	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/realtime"
	"github.com/inkleaf/backend/internal/repositories"
)

// NewInMemoryRelationshipStore returns a RelationshipStore backed by a map.
// It enforces the same unordered-pair uniqueness the schema does and publishes
// change events to the provided feed, which may be nil. Used by tests and
// redis-less local development.
func NewInMemoryRelationshipStore(feed realtime.Feed) *InMemoryRelationshipStore {
	return &InMemoryRelationshipStore{
		feed:          feed,
		relationships: make(map[string]models.Friendship),
	}
}

// InMemoryRelationshipStore implements RelationshipStore without a database.
type InMemoryRelationshipStore struct {
	feed realtime.Feed

	mu            sync.RWMutex
	relationships map[string]models.Friendship
}

// ListForUser returns every relationship involving the user.
func (s *InMemoryRelationshipStore) ListForUser(_ context.Context, userID string) ([]models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Friendship
	for _, rel := range s.relationships {
		if rel.Involves(userID) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// Find retrieves a relationship by id.
func (s *InMemoryRelationshipStore) Find(_ context.Context, id string) (models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relationships[id]
	if !ok {
		return models.Friendship{}, repositories.ErrNotFound
	}
	return rel, nil
}

// FindBetween retrieves the relationship between the unordered pair {a, b}.
func (s *InMemoryRelationshipStore) FindBetween(_ context.Context, a, b string) (models.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.relationships {
		if (rel.RequesterID == a && rel.AddresseeID == b) || (rel.RequesterID == b && rel.AddresseeID == a) {
			return rel, nil
		}
	}
	return models.Friendship{}, repositories.ErrNotFound
}

// Create stores a new relationship, rejecting a second row for the same pair.
func (s *InMemoryRelationshipStore) Create(ctx context.Context, friendship models.Friendship) error {
	s.mu.Lock()
	for _, rel := range s.relationships {
		if rel.Involves(friendship.RequesterID) && rel.Involves(friendship.AddresseeID) {
			s.mu.Unlock()
			return repositories.ErrConflict
		}
	}
	s.relationships[friendship.ID] = friendship
	s.mu.Unlock()

	s.publish(ctx, friendship, realtime.OpInsert)
	return nil
}

// UpdateStatus transitions the relationship's status in place.
func (s *InMemoryRelationshipStore) UpdateStatus(ctx context.Context, id, status, blockedBy string) error {
	s.mu.Lock()
	rel, ok := s.relationships[id]
	if !ok {
		s.mu.Unlock()
		return repositories.ErrNotFound
	}
	rel.Status = status
	rel.BlockedBy = ""
	if status == models.FriendshipBlocked {
		rel.BlockedBy = blockedBy
	}
	rel.UpdatedAt = time.Now().UTC()
	s.relationships[id] = rel
	s.mu.Unlock()

	s.publish(ctx, rel, realtime.OpUpdate)
	return nil
}

// Delete removes the relationship entirely.
func (s *InMemoryRelationshipStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	rel, ok := s.relationships[id]
	if !ok {
		s.mu.Unlock()
		return repositories.ErrNotFound
	}
	delete(s.relationships, id)
	s.mu.Unlock()

	s.publish(ctx, rel, realtime.OpDelete)
	return nil
}

func (s *InMemoryRelationshipStore) publish(ctx context.Context, rel models.Friendship, op string) {
	if s.feed == nil {
		return
	}
	event := realtime.Event{Table: "friendships", Op: op, RowID: rel.ID}
	_ = s.feed.Publish(ctx, realtime.FriendshipChannel(rel.RequesterID), event)
	_ = s.feed.Publish(ctx, realtime.FriendshipChannel(rel.AddresseeID), event)
}

var _ RelationshipStore = (*InMemoryRelationshipStore)(nil)

package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/realtime"
	"github.com/inkleaf/backend/internal/repositories"
)

// Status is the derived relationship status between the registry's user and a
// counterpart. Blocked carries no direction; only the raw record's BlockedBy
// distinguishes who imposed the block.
type Status string

const (
	StatusNone            Status = "none"
	StatusPendingSent     Status = "pending_sent"
	StatusPendingReceived Status = "pending_received"
	StatusFriends         Status = "friends"
	StatusBlocked         Status = "blocked"
)

// RelationshipStore captures the persistence operations required by the registry.
type RelationshipStore interface {
	ListForUser(ctx context.Context, userID string) ([]models.Friendship, error)
	Find(ctx context.Context, id string) (models.Friendship, error)
	FindBetween(ctx context.Context, a, b string) (models.Friendship, error)
	Create(ctx context.Context, friendship models.Friendship) error
	UpdateStatus(ctx context.Context, id, status, blockedBy string) error
	Delete(ctx context.Context, id string) error
}

const refreshTimeout = 10 * time.Second

// Registry maintains, for one signed-in user, the partitioned view over all
// relationships involving them and the mutation operations that keep the store
// and the view consistent. The view is eventually consistent with the store:
// mutations resolve once the write completes, and the partitions catch up when
// the change-notification feed triggers the next reload.
type Registry struct {
	userID   string
	store    RelationshipStore
	feed     realtime.Feed
	notifier Notifier
	logger   *slog.Logger

	// NowFunc and NewID are overridable for tests.
	NowFunc func() time.Time
	NewID   func() string

	mu              sync.RWMutex
	friends         []models.Friendship
	pendingReceived []models.Friendship
	pendingSent     []models.Friendship
	blocked         []models.Friendship
	byCounterpart   map[string]models.Friendship
	loaded          bool

	closeOnce  sync.Once
	closed     chan struct{}
	cancelFeed func()
	started    bool
	done       chan struct{}
}

// NewRegistry constructs a registry for the provided user. An empty userID is
// permitted and yields a signed-out registry: empty partitions, no fetches,
// and ErrNotAuthenticated from every mutation.
func NewRegistry(userID string, store RelationshipStore, feed realtime.Feed, notifier Notifier, logger *slog.Logger) *Registry {
	if store == nil {
		panic("friends: relationship store must not be nil")
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		userID:        userID,
		store:         store,
		feed:          feed,
		notifier:      notifier,
		logger:        logger,
		NowFunc:       func() time.Time { return time.Now().UTC() },
		NewID:         uuid.NewString,
		byCounterpart: make(map[string]models.Friendship),
		closed:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start performs the initial load and subscribes to the change-notification
// feed. Any later event on the user's friendship channel triggers a full
// reload. Start is a no-op for a signed-out registry.
func (r *Registry) Start(ctx context.Context) error {
	r.started = true

	if r.userID == "" {
		close(r.done)
		return nil
	}

	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("initial friendship load failed", "userId", r.userID, "error", err)
	}

	if r.feed == nil {
		close(r.done)
		return nil
	}

	events, cancel, err := r.feed.Subscribe(ctx, realtime.FriendshipChannel(r.userID))
	if err != nil {
		close(r.done)
		return fmt.Errorf("subscribe friendship feed: %w", err)
	}
	r.cancelFeed = cancel

	go r.run(events)
	return nil
}

func (r *Registry) run(events <-chan realtime.Event) {
	defer close(r.done)

	for {
		select {
		case <-r.closed:
			return
		case _, ok := <-events:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("friendship reload failed", "userId", r.userID, "error", err)
			}
			cancel()
		}
	}
}

// Close unsubscribes from the feed and stops the reload loop. In-flight
// refreshes complete but their results are discarded.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		if r.cancelFeed != nil {
			r.cancelFeed()
		}
	})
	if r.started {
		<-r.done
	}
}

// Refresh reloads every relationship involving the user and rebuilds the four
// partitions. Fetch errors leave the previous view in place so the read path
// degrades to stale rather than empty.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.userID == "" {
		r.mu.Lock()
		r.friends, r.pendingReceived, r.pendingSent, r.blocked = nil, nil, nil, nil
		r.byCounterpart = make(map[string]models.Friendship)
		r.loaded = true
		r.mu.Unlock()
		return nil
	}

	relationships, err := r.store.ListForUser(ctx, r.userID)
	if err != nil {
		return fmt.Errorf("list friendships: %w", err)
	}

	select {
	case <-r.closed:
		// Torn down while the fetch was in flight; drop the result.
		return nil
	default:
	}

	var (
		friendsList, received, sent, blocked []models.Friendship

		index = make(map[string]models.Friendship, len(relationships))
	)

	for _, rel := range relationships {
		switch rel.Status {
		case models.FriendshipAccepted:
			friendsList = append(friendsList, rel)
		case models.FriendshipPending:
			if rel.AddresseeID == r.userID {
				received = append(received, rel)
			} else {
				sent = append(sent, rel)
			}
		case models.FriendshipBlocked:
			blocked = append(blocked, rel)
		default:
			// Rejected rows are deleted on write; skip any stragglers.
			continue
		}
		index[rel.Counterpart(r.userID)] = rel
	}

	r.mu.Lock()
	r.friends = friendsList
	r.pendingReceived = received
	r.pendingSent = sent
	r.blocked = blocked
	r.byCounterpart = index
	r.loaded = true
	r.mu.Unlock()

	return nil
}

// Friends returns the accepted-relationship partition.
func (r *Registry) Friends() []models.Friendship { return r.partition(&r.friends) }

// PendingReceived returns requests awaiting the user's response.
func (r *Registry) PendingReceived() []models.Friendship { return r.partition(&r.pendingReceived) }

// PendingSent returns requests the user has sent and may still cancel.
func (r *Registry) PendingSent() []models.Friendship { return r.partition(&r.pendingSent) }

// Blocked returns every blocked relationship involving the user, regardless of
// who imposed the block.
func (r *Registry) Blocked() []models.Friendship { return r.partition(&r.blocked) }

// BlockedByMe narrows the blocked partition to blocks the user imposed; this
// is the list a settings page shows with an unblock control.
func (r *Registry) BlockedByMe() []models.Friendship {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Friendship
	for _, rel := range r.blocked {
		if rel.BlockedBy == r.userID {
			out = append(out, rel)
		}
	}
	return out
}

func (r *Registry) partition(src *[]models.Friendship) []models.Friendship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Friendship(nil), *src...)
}

// Status derives the relationship status toward the counterpart from the
// loaded view. It is a pure lookup: the same loaded state and counterpart
// always yield the same result.
func (r *Registry) Status(counterpartID string) Status {
	if r.userID == "" {
		return StatusNone
	}

	r.mu.RLock()
	rel, ok := r.byCounterpart[counterpartID]
	r.mu.RUnlock()
	if !ok {
		return StatusNone
	}

	switch rel.Status {
	case models.FriendshipBlocked:
		return StatusBlocked
	case models.FriendshipAccepted:
		return StatusFriends
	case models.FriendshipPending:
		if rel.RequesterID == r.userID {
			return StatusPendingSent
		}
		return StatusPendingReceived
	}
	return StatusNone
}

// FriendshipID returns the id of the relationship with the counterpart, or
// empty when none exists in the loaded view.
func (r *Registry) FriendshipID(counterpartID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rel, ok := r.byCounterpart[counterpartID]; ok {
		return rel.ID
	}
	return ""
}

// SendRequest creates a pending relationship from the user to the target.
func (r *Registry) SendRequest(ctx context.Context, targetID string) error {
	if r.userID == "" {
		r.notifier.Failure(r.userID, "Please log in to send friend requests")
		return ErrNotAuthenticated
	}
	if targetID == "" || targetID == r.userID {
		r.notifier.Failure(r.userID, "You can't send a friend request to yourself")
		return ErrInvalidTarget
	}

	now := r.NowFunc()
	err := r.store.Create(ctx, models.Friendship{
		ID:          r.NewID(),
		RequesterID: r.userID,
		AddresseeID: targetID,
		Status:      models.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			r.notifier.Failure(r.userID, "Friend request already exists")
			return ErrDuplicateRelationship
		}
		r.logger.Error("send friend request", "userId", r.userID, "targetId", targetID, "error", err)
		r.notifier.Failure(r.userID, "Failed to send friend request")
		return ErrStoreUnavailable
	}

	r.notifier.Success(r.userID, "Friend request sent!")
	return nil
}

// Accept transitions a pending request addressed to the user into a friendship.
func (r *Registry) Accept(ctx context.Context, friendshipID string) error {
	if r.userID == "" {
		r.notifier.Failure(r.userID, "Please log in first")
		return ErrNotAuthenticated
	}

	rel, err := r.store.Find(ctx, friendshipID)
	if err != nil {
		r.logger.Error("accept friend request lookup", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, "Failed to accept friend request")
		return ErrStoreUnavailable
	}
	if rel.AddresseeID != r.userID || rel.Status != models.FriendshipPending {
		r.notifier.Failure(r.userID, "Failed to accept friend request")
		return ErrInvalidTarget
	}

	if err := r.store.UpdateStatus(ctx, friendshipID, models.FriendshipAccepted, ""); err != nil {
		r.logger.Error("accept friend request", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, "Failed to accept friend request")
		return ErrStoreUnavailable
	}

	r.notifier.Success(r.userID, "Friend request accepted!")
	return nil
}

// Reject deletes a pending relationship. Either party may call it: the
// addressee to decline, the requester to cancel.
func (r *Registry) Reject(ctx context.Context, friendshipID string) error {
	return r.deleteRelationship(ctx, friendshipID, models.FriendshipPending, "Friend request rejected", "Failed to reject friend request")
}

// RemoveFriend deletes an accepted relationship.
func (r *Registry) RemoveFriend(ctx context.Context, friendshipID string) error {
	return r.deleteRelationship(ctx, friendshipID, models.FriendshipAccepted, "Friend removed", "Failed to remove friend")
}

// Unblock deletes a blocked relationship. Only the blocker may lift the block.
func (r *Registry) Unblock(ctx context.Context, friendshipID string) error {
	if r.userID == "" {
		r.notifier.Failure(r.userID, "Please log in first")
		return ErrNotAuthenticated
	}

	rel, err := r.store.Find(ctx, friendshipID)
	if err != nil {
		r.logger.Error("unblock lookup", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, "Failed to unblock user")
		return ErrStoreUnavailable
	}
	if rel.Status != models.FriendshipBlocked || rel.BlockedBy != r.userID {
		r.notifier.Failure(r.userID, "Failed to unblock user")
		return ErrInvalidTarget
	}

	if err := r.store.Delete(ctx, friendshipID); err != nil {
		r.logger.Error("unblock user", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, "Failed to unblock user")
		return ErrStoreUnavailable
	}

	r.notifier.Success(r.userID, "User unblocked")
	return nil
}

func (r *Registry) deleteRelationship(ctx context.Context, friendshipID, wantStatus, successMsg, failureMsg string) error {
	if r.userID == "" {
		r.notifier.Failure(r.userID, "Please log in first")
		return ErrNotAuthenticated
	}

	rel, err := r.store.Find(ctx, friendshipID)
	if err != nil {
		r.logger.Error("friendship lookup", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, failureMsg)
		return ErrStoreUnavailable
	}
	if !rel.Involves(r.userID) || rel.Status != wantStatus {
		r.notifier.Failure(r.userID, failureMsg)
		return ErrInvalidTarget
	}

	if err := r.store.Delete(ctx, friendshipID); err != nil {
		r.logger.Error("delete friendship", "userId", r.userID, "friendshipId", friendshipID, "error", err)
		r.notifier.Failure(r.userID, failureMsg)
		return ErrStoreUnavailable
	}

	r.notifier.Success(r.userID, successMsg)
	return nil
}

// Block marks the relationship with the target as blocked by the user,
// creating the relationship when none exists. The check-then-act pair is not
// atomic; the store's canonical-pair unique index resolves a lost race into
// ErrDuplicateRelationship instead of a second row.
func (r *Registry) Block(ctx context.Context, targetID string) error {
	if r.userID == "" {
		r.notifier.Failure(r.userID, "Please log in first")
		return ErrNotAuthenticated
	}
	if targetID == "" || targetID == r.userID {
		r.notifier.Failure(r.userID, "You can't block yourself")
		return ErrInvalidTarget
	}

	existing, err := r.store.FindBetween(ctx, r.userID, targetID)
	switch {
	case err == nil:
		if err := r.store.UpdateStatus(ctx, existing.ID, models.FriendshipBlocked, r.userID); err != nil {
			r.logger.Error("block user update", "userId", r.userID, "targetId", targetID, "error", err)
			r.notifier.Failure(r.userID, "Failed to block user")
			return ErrStoreUnavailable
		}
	case errors.Is(err, repositories.ErrNotFound):
		now := r.NowFunc()
		createErr := r.store.Create(ctx, models.Friendship{
			ID:          r.NewID(),
			RequesterID: r.userID,
			AddresseeID: targetID,
			Status:      models.FriendshipBlocked,
			BlockedBy:   r.userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if createErr != nil {
			if errors.Is(createErr, repositories.ErrConflict) {
				r.notifier.Failure(r.userID, "Failed to block user")
				return ErrDuplicateRelationship
			}
			r.logger.Error("block user insert", "userId", r.userID, "targetId", targetID, "error", createErr)
			r.notifier.Failure(r.userID, "Failed to block user")
			return ErrStoreUnavailable
		}
	default:
		r.logger.Error("block user lookup", "userId", r.userID, "targetId", targetID, "error", err)
		r.notifier.Failure(r.userID, "Failed to block user")
		return ErrStoreUnavailable
	}

	r.notifier.Success(r.userID, "User blocked")
	return nil
}

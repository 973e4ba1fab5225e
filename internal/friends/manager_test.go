package friends

import (
	"context"
	"testing"
	"time"

	"github.com/inkleaf/backend/internal/realtime"
)

func TestManagerReusesRegistryPerUser(t *testing.T) {
	feed := realtime.NewMemoryFeed(16)
	defer feed.Close()
	manager := NewManager(NewInMemoryRelationshipStore(feed), feed, &recordingNotifier{}, nil)
	defer manager.Shutdown()

	ctx := context.Background()
	first, err := manager.Registry(ctx, "alice")
	if err != nil {
		t.Fatalf("first registry: %v", err)
	}
	second, err := manager.Registry(ctx, "alice")
	if err != nil {
		t.Fatalf("second registry: %v", err)
	}
	if first != second {
		t.Fatal("expected the same registry instance for one user")
	}

	other, err := manager.Registry(ctx, "bob")
	if err != nil {
		t.Fatalf("bob registry: %v", err)
	}
	if other == first {
		t.Fatal("expected distinct registries for distinct users")
	}
}

func TestManagerEvictsIdleRegistries(t *testing.T) {
	feed := realtime.NewMemoryFeed(16)
	defer feed.Close()
	manager := NewManager(NewInMemoryRelationshipStore(feed), feed, &recordingNotifier{}, nil)
	defer manager.Shutdown()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	ctx := context.Background()
	first, err := manager.Registry(ctx, "alice")
	if err != nil {
		t.Fatalf("first registry: %v", err)
	}

	// Another user's request past the idle TTL triggers the sweep.
	current = current.Add(registryIdleTTL + time.Minute)
	if _, err := manager.Registry(ctx, "bob"); err != nil {
		t.Fatalf("bob registry: %v", err)
	}

	replacement, err := manager.Registry(ctx, "alice")
	if err != nil {
		t.Fatalf("registry after eviction: %v", err)
	}
	if replacement == first {
		t.Fatal("expected the idle registry to be evicted and rebuilt")
	}
}

func TestManagerRejectsAnonymousUser(t *testing.T) {
	manager := NewManager(NewInMemoryRelationshipStore(nil), nil, &recordingNotifier{}, nil)
	defer manager.Shutdown()

	if _, err := manager.Registry(context.Background(), ""); err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated got %v", err)
	}
}

func TestManagerShutdownRejectsFurtherUse(t *testing.T) {
	manager := NewManager(NewInMemoryRelationshipStore(nil), nil, &recordingNotifier{}, nil)

	if _, err := manager.Registry(context.Background(), "alice"); err != nil {
		t.Fatalf("registry before shutdown: %v", err)
	}

	manager.Shutdown()
	manager.Shutdown() // idempotent

	if _, err := manager.Registry(context.Background(), "alice"); err == nil {
		t.Fatal("expected error after shutdown")
	}
}

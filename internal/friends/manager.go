package friends

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inkleaf/backend/internal/realtime"
)

const (
	// registryIdleTTL is how long an untouched registry survives before its
	// goroutine and feed subscription are released.
	registryIdleTTL = 30 * time.Minute

	registrySweepGap = time.Minute
)

type registryEntry struct {
	reg      *Registry
	lastSeen time.Time
}

// Manager hands out one running Registry per signed-in user so the HTTP layer
// shares a single feed subscription and partition cache across requests.
// Registries idle past the TTL are evicted, so users who stop making requests
// do not hold a goroutine and subscription for the life of the process.
type Manager struct {
	store    RelationshipStore
	feed     realtime.Feed
	notifier Notifier
	logger   *slog.Logger

	// now is overridable for tests.
	now func() time.Time

	mu         sync.Mutex
	registries map[string]*registryEntry
	lastSweep  time.Time
	closed     bool
}

// NewManager constructs a registry manager.
func NewManager(store RelationshipStore, feed realtime.Feed, notifier Notifier, logger *slog.Logger) *Manager {
	if store == nil {
		panic("friends: relationship store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		feed:       feed,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		registries: make(map[string]*registryEntry),
	}
}

// Registry returns the running registry for the user, starting one on first use.
func (m *Manager) Registry(ctx context.Context, userID string) (*Registry, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("registry manager is shut down")
	}
	now := m.now()

	// Sweeping on every acquisition would make each request pay for the
	// whole map; once a minute is plenty.
	var idle []*Registry
	if now.Sub(m.lastSweep) >= registrySweepGap {
		for id, entry := range m.registries {
			if now.Sub(entry.lastSeen) > registryIdleTTL {
				delete(m.registries, id)
				idle = append(idle, entry.reg)
			}
		}
		m.lastSweep = now
	}

	if entry, ok := m.registries[userID]; ok {
		entry.lastSeen = now
		m.mu.Unlock()
		for _, r := range idle {
			r.Close()
		}
		return entry.reg, nil
	}

	reg := NewRegistry(userID, m.store, m.feed, m.notifier, m.logger)
	m.registries[userID] = &registryEntry{reg: reg, lastSeen: now}
	m.mu.Unlock()

	for _, r := range idle {
		r.Close()
	}

	if err := reg.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.registries, userID)
		m.mu.Unlock()
		reg.Close()
		return nil, err
	}

	return reg, nil
}

// Shutdown closes every registry and rejects further use.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	registries := m.registries
	m.registries = make(map[string]*registryEntry)
	m.mu.Unlock()

	for _, entry := range registries {
		entry.reg.Close()
	}
}

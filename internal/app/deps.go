package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inkleaf/backend/internal/auth"
	"github.com/inkleaf/backend/internal/chat"
	"github.com/inkleaf/backend/internal/config"
	"github.com/inkleaf/backend/internal/credits"
	"github.com/inkleaf/backend/internal/db"
	"github.com/inkleaf/backend/internal/friends"
	"github.com/inkleaf/backend/internal/handlers"
	"github.com/inkleaf/backend/internal/middleware"
	"github.com/inkleaf/backend/internal/realtime"
	"github.com/inkleaf/backend/internal/repositories"
	"github.com/inkleaf/backend/internal/storage"
)

// services bundles the HTTP dependencies with the long-lived components the
// server must shut down in order.
type services struct {
	deps    handlers.Dependencies
	feed    realtime.Feed
	friends *friends.Manager
	chat    *chat.Hub
}

// buildServices wires together concrete implementations used by the HTTP handlers.
func buildServices(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*services, error) {
	feed, err := buildFeed(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sessionStore := repositories.NewPostgresSessionStore(pool)
	sessions := auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore)

	friendshipRepo := repositories.NewPostgresFriendshipRepository(pool, feed, logger)
	friendManager := friends.NewManager(friendshipRepo, feed, friends.LogNotifier{Logger: logger}, logger)

	chatRepo := repositories.NewPostgresChatRepository(pool)
	hub := chat.NewHub(chatRepo, feed, logger)

	storyRepo := repositories.NewPostgresStoryRepository(pool)
	novelRepo := repositories.NewPostgresNovelRepository(pool)
	creditService := credits.NewService(repositories.NewPostgresCreditRepository(pool), storyRepo, novelRepo, logger)

	var media handlers.MediaUploader
	if strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		mediaStorage, err := storage.NewMediaStorage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("configure media storage: %w", err)
		}
		media = mediaStorage
	} else {
		logger.Warn("media bucket not configured, uploads disabled")
	}

	limiter := middleware.NewIPRateLimiter(
		cfg.AuthRateLimit.Requests,
		cfg.AuthRateLimit.Window,
		cfg.AuthRateLimit.Burst,
		cfg.AuthRateLimit.TTL,
	)

	return &services{
		deps: handlers.Dependencies{
			Users:         repositories.NewPostgresUserRepository(pool),
			Profiles:      repositories.NewPostgresProfileRepository(pool),
			Sessions:      sessions,
			SessionPurger: sessionStore,
			AuthLimiter:   limiter,
			Registries:    friendManager,
			Stories:       storyRepo,
			Diary:         repositories.NewPostgresDiaryRepository(pool),
			Poems:         repositories.NewPostgresPoemRepository(pool),
			Novels:        novelRepo,
			Chat:          hub,
			Credits:       creditService,
			Media:         media,
			Reports:       repositories.NewPostgresReportRepository(pool),
		},
		feed:    feed,
		friends: friendManager,
		chat:    hub,
	}, nil
}

// buildFeed selects the change-notification backend. Without a redis address
// the in-process feed serves a single-instance deployment.
func buildFeed(ctx context.Context, cfg config.Config, logger *slog.Logger) (realtime.Feed, error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		logger.Info("using in-process realtime feed")
		return realtime.NewMemoryFeed(64), nil
	}

	feed, err := realtime.NewRedisFeed(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis feed: %w", err)
	}
	logger.Info("using redis realtime feed", "addr", cfg.Redis.Addr)
	return feed, nil
}

// shutdown stops the long-lived components in dependency order.
func (s *services) shutdown() {
	s.friends.Shutdown()
	s.chat.Shutdown()
	if err := s.feed.Close(); err != nil {
		slog.Default().Warn("close realtime feed", "error", err)
	}
}

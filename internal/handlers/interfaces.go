package handlers

import (
	"context"
	"io"

	"github.com/inkleaf/backend/internal/credits"
	"github.com/inkleaf/backend/internal/friends"
	"github.com/inkleaf/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Delete(ctx context.Context, userID string) error
}

// ProfileStore captures the persistence operations for public profiles.
type ProfileStore interface {
	Create(ctx context.Context, profile models.Profile) error
	Find(ctx context.Context, id string) (models.Profile, error)
	FindByUsername(ctx context.Context, username string) (models.Profile, error)
	Update(ctx context.Context, profile models.Profile) error
	Search(ctx context.Context, query string, limit int) ([]models.Profile, error)
}

// SessionManager issues, refreshes, resolves, and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Resolve(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, refreshToken string)
}

// SessionPurger removes every session a user holds. Used on account deletion.
type SessionPurger interface {
	DeleteForUser(ctx context.Context, userID string) error
}

// FriendshipRegistries hands out the per-user friendship registry.
type FriendshipRegistries interface {
	Registry(ctx context.Context, userID string) (*friends.Registry, error)
}

// StoryStore captures persistence for short fiction.
type StoryStore interface {
	Create(ctx context.Context, story models.Story) error
	Find(ctx context.Context, id string) (models.Story, error)
	ListPublic(ctx context.Context, limit int) ([]models.Story, error)
	ListForUser(ctx context.Context, userID string) ([]models.Story, error)
	Update(ctx context.Context, story models.Story) error
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, id string) error
}

// DiaryStore captures persistence for private journal entries.
type DiaryStore interface {
	Create(ctx context.Context, entry models.DiaryEntry) error
	Find(ctx context.Context, id string) (models.DiaryEntry, error)
	ListForUser(ctx context.Context, userID string) ([]models.DiaryEntry, error)
	Update(ctx context.Context, entry models.DiaryEntry) error
	Delete(ctx context.Context, id string) error
}

// PoemStore captures persistence for verse works.
type PoemStore interface {
	Create(ctx context.Context, poem models.Poem) error
	ListPublic(ctx context.Context, limit int) ([]models.Poem, error)
	ListForUser(ctx context.Context, userID string) ([]models.Poem, error)
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, id string) error
}

// NovelStore captures persistence for serialized novels and their chapters.
type NovelStore interface {
	Create(ctx context.Context, novel models.Novel) error
	Find(ctx context.Context, id string) (models.Novel, error)
	List(ctx context.Context, limit int) ([]models.Novel, error)
	ListForAuthor(ctx context.Context, authorID string) ([]models.Novel, error)
	Update(ctx context.Context, novel models.Novel) error
	Delete(ctx context.Context, id string) error
	RecordView(ctx context.Context, id string) error
	CreateChapter(ctx context.Context, chapter models.Chapter) error
	ListChapters(ctx context.Context, novelID string, publishedOnly bool) ([]models.Chapter, error)
	UpdateChapter(ctx context.Context, chapter models.Chapter) error
	DeleteChapter(ctx context.Context, id string) error
}

// CreditService exposes the writer-credit operations.
type CreditService interface {
	Balance(ctx context.Context, userID string) (models.WriterCredits, error)
	Eligible(ctx context.Context, userID string) ([]credits.Claimable, error)
	ClaimStory(ctx context.Context, userID, storyID string, milestone int64) error
	ClaimNovel(ctx context.Context, userID, novelID string, milestone int64) error
	History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// MediaUploader stores uploaded images and returns their public location.
type MediaUploader interface {
	Save(ctx context.Context, prefix, name, contentType string, r io.Reader) (string, error)
}

// ReportStore captures persistence for story reports and moderator roles.
type ReportStore interface {
	Create(ctx context.Context, report models.Report) error
	List(ctx context.Context, status string) ([]models.Report, error)
	Resolve(ctx context.Context, id, status, notes string) error
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

package models

import "time"

// User represents an account within the Inkleaf platform.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile holds the public-facing identity attached to a user account.
type Profile struct {
	ID                string
	Username          string
	DisplayName       string
	Bio               string
	AvatarURL         string
	PreferredLanguage string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayLabel returns the name shown in lists, falling back to the username.
func (p Profile) DisplayLabel() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

// Friendship statuses. Rejected relationships are deleted rather than stored;
// the constant exists only so legacy rows scan cleanly.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipRejected = "rejected"
	FriendshipBlocked  = "blocked"
)

// Friendship captures a directed friend request and its current disposition
// between two users. Requester and Addressee never change after creation;
// only Status and BlockedBy mutate.
type Friendship struct {
	ID          string
	RequesterID string
	AddresseeID string
	Status      string
	BlockedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined display projections; nil when the join did not resolve.
	Requester *Profile
	Addressee *Profile
}

// Counterpart returns the participant that is not the provided user.
func (f Friendship) Counterpart(userID string) string {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// CounterpartProfile returns the joined profile for the other participant,
// which may be nil when the join did not resolve.
func (f Friendship) CounterpartProfile(userID string) *Profile {
	if f.RequesterID == userID {
		return f.Addressee
	}
	return f.Requester
}

// Involves reports whether the user is either participant.
func (f Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Story is a standalone piece of short fiction.
type Story struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	WordCount int
	IsPublic  bool
	Views     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DiaryEntry is a personal journal entry, private by default.
type DiaryEntry struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	Mood      string
	IsPrivate bool
	IsPinned  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Poem is a short verse work.
type Poem struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	IsPublic  bool
	Views     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Novel is a serialized long-form work composed of chapters.
type Novel struct {
	ID          string
	AuthorID    string
	Title       string
	Description string
	Genre       string
	Language    string
	Status      string
	CoverURL    string
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chapter belongs to a novel; ChapterNumber is unique within the novel.
type Chapter struct {
	ID            string
	NovelID       string
	ChapterNumber int
	Title         string
	Content       string
	Published     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChatRoom is a named public discussion channel.
type ChatRoom struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// ChatMessage is a single message posted to a room.
type ChatMessage struct {
	ID        string
	RoomID    string
	UserID    string
	Content   string
	CreatedAt time.Time

	// Joined sender projection; nil when the join did not resolve.
	Sender *Profile
}

// WriterCredits is the per-user credit ledger.
type WriterCredits struct {
	ID          string
	UserID      string
	Balance     int64
	TotalEarned int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreditTransaction records a single credit movement.
type CreditTransaction struct {
	ID          string
	UserID      string
	Amount      int64
	Type        string
	Description string
	StoryID     string
	NovelID     string
	CreatedAt   time.Time
}

// ViewMilestone marks a claimed view-count reward for a story or novel.
type ViewMilestone struct {
	ID             string
	UserID         string
	StoryID        string
	NovelID        string
	Milestone      int64
	CreditsAwarded int64
	ClaimedAt      time.Time
}

// Report statuses.
const (
	ReportOpen      = "open"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// Report flags a story for moderator review.
type Report struct {
	ID         string
	ReporterID string
	StoryID    string
	Reason     string
	Status     string
	AdminNotes string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoleAdmin grants access to the moderation endpoints.
const RoleAdmin = "admin"

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

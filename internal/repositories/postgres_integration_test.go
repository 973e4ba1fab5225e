package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkleaf/backend/internal/auth"
	"github.com/inkleaf/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		Password:  "secret-hash",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:        uuid.NewString(),
		Email:     user.Email,
		Password:  "another-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if fetched.ID != user.ID || fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := repo.FindByEmail(ctx, user.Email); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresUserRepository_DeleteErasesOwnedRows(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	profileRepo := NewPostgresProfileRepository(testPool)
	storyRepo := NewPostgresStoryRepository(testPool)
	friendshipRepo := NewPostgresFriendshipRepository(testPool, nil, nil)

	author := createTestUser(t, userRepo, "author@example.com")
	other := createTestUser(t, userRepo, "other@example.com")

	createTestProfile(t, profileRepo, author.ID, "author")

	story := models.Story{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		Title:     "Last Story",
		Content:   "It ends here.",
		WordCount: 3,
		IsPublic:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := storyRepo.Create(ctx, story); err != nil {
		t.Fatalf("create story: %v", err)
	}

	friendship := models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: author.ID,
		AddresseeID: other.ID,
		Status:      models.FriendshipAccepted,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := friendshipRepo.Create(ctx, friendship); err != nil {
		t.Fatalf("create friendship: %v", err)
	}

	if err := userRepo.Delete(ctx, author.ID); err != nil {
		t.Fatalf("delete author: %v", err)
	}

	if _, err := storyRepo.Find(ctx, story.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected story to be erased, got %v", err)
	}

	if _, err := friendshipRepo.FindBetween(ctx, author.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected friendship to be erased, got %v", err)
	}

	if _, err := profileRepo.Find(ctx, author.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected profile to be erased, got %v", err)
	}
}

func TestPostgresProfileRepository_CreateFindAndSearch(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	repo := NewPostgresProfileRepository(testPool)

	owner := createTestUser(t, userRepo, "mira@example.com")
	neighbor := createTestUser(t, userRepo, "milo@example.com")

	profile := createTestProfile(t, repo, owner.ID, "mira")
	createTestProfile(t, repo, neighbor.ID, "milo")

	taken := models.Profile{
		ID:        neighbor.ID,
		Username:  profile.Username,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, taken); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate username, got %v", err)
	}

	byName, err := repo.FindByUsername(ctx, profile.Username)
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if byName.ID != owner.ID {
		t.Fatalf("expected profile %s, got %s", owner.ID, byName.ID)
	}

	updated := profile
	updated.DisplayName = "Mira"
	updated.Bio = "Writes short fiction."
	updated.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	fetched, err := repo.Find(ctx, owner.ID)
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}
	if fetched.DisplayName != "Mira" || fetched.Bio != "Writes short fiction." {
		t.Fatalf("expected updated fields to persist, got %+v", fetched)
	}

	results, err := repo.Search(ctx, "mi", 10)
	if err != nil {
		t.Fatalf("search profiles: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 search results, got %d", len(results))
	}

	results, err = repo.Search(ctx, "mira", 10)
	if err != nil {
		t.Fatalf("search profiles narrow: %v", err)
	}
	if len(results) != 1 || results[0].ID != owner.ID {
		t.Fatalf("unexpected narrow search results: %+v", results)
	}
}

func TestPostgresFriendshipRepository_PairUniqueness(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice@example.com")
	bob := createTestUser(t, userRepo, "bob@example.com")

	repo := NewPostgresFriendshipRepository(testPool, nil, nil)

	friendship := models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: alice.ID,
		AddresseeID: bob.ID,
		Status:      models.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, friendship); err != nil {
		t.Fatalf("create friendship: %v", err)
	}

	reversed := models.Friendship{
		ID:          uuid.NewString(),
		RequesterID: bob.ID,
		AddresseeID: alice.ID,
		Status:      models.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, reversed); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reversed duplicate, got %v", err)
	}

	forward, err := repo.FindBetween(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("find between forward: %v", err)
	}
	backward, err := repo.FindBetween(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("find between backward: %v", err)
	}
	if forward.ID != friendship.ID || backward.ID != friendship.ID {
		t.Fatalf("expected the same row regardless of order, got %s and %s", forward.ID, backward.ID)
	}

	if err := repo.UpdateStatus(ctx, friendship.ID, models.FriendshipBlocked, alice.ID); err != nil {
		t.Fatalf("block friendship: %v", err)
	}

	blocked, err := repo.Find(ctx, friendship.ID)
	if err != nil {
		t.Fatalf("find blocked friendship: %v", err)
	}
	if blocked.Status != models.FriendshipBlocked || blocked.BlockedBy != alice.ID {
		t.Fatalf("expected blocked by alice, got %+v", blocked)
	}

	if err := repo.UpdateStatus(ctx, friendship.ID, models.FriendshipAccepted, ""); err != nil {
		t.Fatalf("unblock to accepted: %v", err)
	}
	accepted, err := repo.Find(ctx, friendship.ID)
	if err != nil {
		t.Fatalf("find accepted friendship: %v", err)
	}
	if accepted.BlockedBy != "" {
		t.Fatalf("expected blocked_by cleared, got %q", accepted.BlockedBy)
	}

	if err := repo.Delete(ctx, friendship.ID); err != nil {
		t.Fatalf("delete friendship: %v", err)
	}
	if _, err := repo.FindBetween(ctx, alice.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// The pair is free again after the hard delete.
	fresh := reversed
	fresh.ID = uuid.NewString()
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("recreate friendship after delete: %v", err)
	}

	if err := repo.UpdateStatus(ctx, uuid.NewString(), models.FriendshipAccepted, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating unknown friendship, got %v", err)
	}
}

func TestPostgresFriendshipRepository_ListJoinsProfiles(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	profileRepo := NewPostgresProfileRepository(testPool)

	alice := createTestUser(t, userRepo, "alice@example.com")
	bob := createTestUser(t, userRepo, "bob@example.com")
	carol := createTestUser(t, userRepo, "carol@example.com")

	createTestProfile(t, profileRepo, alice.ID, "alice")
	createTestProfile(t, profileRepo, bob.ID, "bob")
	createTestProfile(t, profileRepo, carol.ID, "carol")

	repo := NewPostgresFriendshipRepository(testPool, nil, nil)

	rows := []models.Friendship{
		{ID: uuid.NewString(), RequesterID: alice.ID, AddresseeID: bob.ID, Status: models.FriendshipAccepted,
			CreatedAt: time.Now().UTC().Add(-time.Hour), UpdatedAt: time.Now().UTC()},
		{ID: uuid.NewString(), RequesterID: carol.ID, AddresseeID: alice.ID, Status: models.FriendshipPending,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
	}
	for _, row := range rows {
		if err := repo.Create(ctx, row); err != nil {
			t.Fatalf("create friendship %s: %v", row.ID, err)
		}
	}

	listed, err := repo.ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friendships: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 friendships, got %d", len(listed))
	}

	// Newest first.
	if listed[0].ID != rows[1].ID {
		t.Fatalf("expected newest friendship first, got %s", listed[0].ID)
	}

	for _, friendship := range listed {
		if friendship.Requester == nil || friendship.Addressee == nil {
			t.Fatalf("expected joined profiles on %s", friendship.ID)
		}
	}
	if listed[0].Requester.Username != "carol" {
		t.Fatalf("expected carol as requester, got %q", listed[0].Requester.Username)
	}

	listed, err = repo.ListForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list friendships for bob: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != rows[0].ID {
		t.Fatalf("unexpected friendships for bob: %+v", listed)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "owner@example.com")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		RefreshToken:    uuid.NewString(),
		AccessToken:     uuid.NewString(),
		UserID:          user.ID,
		ExpiresAt:       expires,
		AccessExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires.UTC(), time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	byAccess, err := store.FindByAccess(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("find session by access token: %v", err)
	}
	if byAccess.RefreshToken != session.RefreshToken || byAccess.UserID != user.ID {
		t.Fatalf("unexpected session by access token: %+v", byAccess)
	}

	rotated := session
	rotated.AccessToken = uuid.NewString()
	rotated.AccessExpiresAt = time.Now().UTC().Add(30 * time.Minute)
	if err := store.Save(ctx, rotated); err != nil {
		t.Fatalf("rotate access token: %v", err)
	}

	if _, err := store.FindByAccess(ctx, session.AccessToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected old access token to be gone, got %v", err)
	}
	if _, err := store.FindByAccess(ctx, rotated.AccessToken); err != nil {
		t.Fatalf("find rotated access token: %v", err)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func TestPostgresNovelRepository_ChapterNumbering(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	author := createTestUser(t, userRepo, "novelist@example.com")

	repo := NewPostgresNovelRepository(testPool)

	novel := models.Novel{
		ID:        uuid.NewString(),
		AuthorID:  author.ID,
		Title:     "Ashes of the Second Sun",
		Status:    "ongoing",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, novel); err != nil {
		t.Fatalf("create novel: %v", err)
	}

	chapters := []models.Chapter{
		{ID: uuid.NewString(), NovelID: novel.ID, ChapterNumber: 1, Title: "The Road Out",
			Content: "It began with a letter.", Published: true,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		{ID: uuid.NewString(), NovelID: novel.ID, ChapterNumber: 2, Title: "Grey Harbor",
			Content: "Draft in progress.", Published: false,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
	}
	for _, chapter := range chapters {
		if err := repo.CreateChapter(ctx, chapter); err != nil {
			t.Fatalf("create chapter %d: %v", chapter.ChapterNumber, err)
		}
	}

	clash := models.Chapter{
		ID: uuid.NewString(), NovelID: novel.ID, ChapterNumber: 1, Title: "Duplicate",
		Content: "Should not land.", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := repo.CreateChapter(ctx, clash); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate chapter number, got %v", err)
	}

	published, err := repo.ListChapters(ctx, novel.ID, true)
	if err != nil {
		t.Fatalf("list published chapters: %v", err)
	}
	if len(published) != 1 || published[0].ChapterNumber != 1 {
		t.Fatalf("expected only chapter 1 published, got %+v", published)
	}

	all, err := repo.ListChapters(ctx, novel.ID, false)
	if err != nil {
		t.Fatalf("list all chapters: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(all))
	}

	if err := repo.RecordView(ctx, novel.ID); err != nil {
		t.Fatalf("record view: %v", err)
	}
	fetched, err := repo.Find(ctx, novel.ID)
	if err != nil {
		t.Fatalf("find novel: %v", err)
	}
	if fetched.Views != 1 {
		t.Fatalf("expected 1 view, got %d", fetched.Views)
	}
}

func TestPostgresCreditRepository_ClaimMilestoneOnce(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	storyRepo := NewPostgresStoryRepository(testPool)
	author := createTestUser(t, userRepo, "writer@example.com")

	story := models.Story{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		Title:     "The Lighthouse Keeper",
		Content:   "The lamp had not been lit in forty years.",
		WordCount: 9,
		IsPublic:  true,
		Views:     120000,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := storyRepo.Create(ctx, story); err != nil {
		t.Fatalf("create story: %v", err)
	}

	repo := NewPostgresCreditRepository(testPool)

	ledger := models.WriterCredits{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.CreateLedger(ctx, ledger); err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	dup := ledger
	dup.ID = uuid.NewString()
	if err := repo.CreateLedger(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second ledger, got %v", err)
	}

	milestone := models.ViewMilestone{
		ID:             uuid.NewString(),
		UserID:         author.ID,
		StoryID:        story.ID,
		Milestone:      50000,
		CreditsAwarded: 100,
		ClaimedAt:      time.Now().UTC(),
	}
	txn := models.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      author.ID,
		Amount:      100,
		Type:        "milestone",
		Description: `50000 views on "The Lighthouse Keeper"`,
		StoryID:     story.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.ClaimMilestone(ctx, milestone, txn); err != nil {
		t.Fatalf("claim milestone: %v", err)
	}

	again := milestone
	again.ID = uuid.NewString()
	txnAgain := txn
	txnAgain.ID = uuid.NewString()
	if err := repo.ClaimMilestone(ctx, again, txnAgain); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on double claim, got %v", err)
	}

	balance, err := repo.FindLedger(ctx, author.ID)
	if err != nil {
		t.Fatalf("find ledger: %v", err)
	}
	if balance.Balance != 100 || balance.TotalEarned != 100 {
		t.Fatalf("expected balance 100 after single claim, got %+v", balance)
	}

	milestones, err := repo.ListMilestones(ctx, author.ID)
	if err != nil {
		t.Fatalf("list milestones: %v", err)
	}
	if len(milestones) != 1 || milestones[0].StoryID != story.ID {
		t.Fatalf("unexpected milestones: %+v", milestones)
	}

	transactions, err := repo.ListTransactions(ctx, author.ID, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 1 || transactions[0].Amount != 100 {
		t.Fatalf("unexpected transactions: %+v", transactions)
	}
}

func TestPostgresChatRepository_RecentMessagesOrder(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	profileRepo := NewPostgresProfileRepository(testPool)
	sender := createTestUser(t, userRepo, "chatter@example.com")
	createTestProfile(t, profileRepo, sender.ID, "chatter")

	roomID := createTestRoom(t, "general")
	otherRoomID := createTestRoom(t, "poetry")

	repo := NewPostgresChatRepository(testPool)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		message := models.ChatMessage{
			ID:        uuid.NewString(),
			RoomID:    roomID,
			UserID:    sender.ID,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.CreateMessage(ctx, message); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}

	stray := models.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    otherRoomID,
		UserID:    sender.ID,
		Content:   "wrong room",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateMessage(ctx, stray); err != nil {
		t.Fatalf("create stray message: %v", err)
	}

	messages, err := repo.RecentMessages(ctx, roomID, 2)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}

	// Oldest first within the window, and the window holds the latest rows.
	if messages[0].Content != "message 1" || messages[1].Content != "message 2" {
		t.Fatalf("unexpected message order: %+v", messages)
	}

	if messages[0].Sender == nil || messages[0].Sender.Username != "chatter" {
		t.Fatalf("expected joined sender profile, got %+v", messages[0].Sender)
	}

	found, err := repo.FindMessage(ctx, messages[1].ID)
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if found.Content != "message 2" || found.Sender == nil || found.Sender.Username != "chatter" {
		t.Fatalf("unexpected found message: %+v", found)
	}

	if _, err := repo.FindMessage(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown message, got %v", err)
	}

	rooms, err := repo.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Name != "general" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
}

func TestPostgresReportRepository_LifecycleAndRoles(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	storyRepo := NewPostgresStoryRepository(testPool)

	reporter := createTestUser(t, userRepo, "reporter@example.com")
	author := createTestUser(t, userRepo, "author@example.com")
	admin := createTestUser(t, userRepo, "admin@example.com")

	story := models.Story{
		ID:        uuid.NewString(),
		UserID:    author.ID,
		Title:     "Contested",
		Content:   "Contested content.",
		WordCount: 2,
		IsPublic:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := storyRepo.Create(ctx, story); err != nil {
		t.Fatalf("create story: %v", err)
	}

	repo := NewPostgresReportRepository(testPool)

	report := models.Report{
		ID:         uuid.NewString(),
		ReporterID: reporter.ID,
		StoryID:    story.ID,
		Reason:     "plagiarism",
		Status:     models.ReportOpen,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, report); err != nil {
		t.Fatalf("create report: %v", err)
	}

	orphan := report
	orphan.ID = uuid.NewString()
	orphan.StoryID = uuid.NewString()
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown story, got %v", err)
	}

	open, err := repo.List(ctx, models.ReportOpen)
	if err != nil {
		t.Fatalf("list open reports: %v", err)
	}
	if len(open) != 1 || open[0].ID != report.ID {
		t.Fatalf("unexpected open reports: %+v", open)
	}

	if err := repo.Resolve(ctx, report.ID, models.ReportResolved, "takedown issued"); err != nil {
		t.Fatalf("resolve report: %v", err)
	}

	open, err = repo.List(ctx, models.ReportOpen)
	if err != nil {
		t.Fatalf("list open reports after resolve: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open reports, got %d", len(open))
	}

	if err := repo.Resolve(ctx, uuid.NewString(), models.ReportDismissed, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound resolving unknown report, got %v", err)
	}

	if _, err := testPool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, admin.ID, models.RoleAdmin); err != nil {
		t.Fatalf("grant admin role: %v", err)
	}

	isAdmin, err := repo.HasRole(ctx, admin.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("check admin role: %v", err)
	}
	if !isAdmin {
		t.Fatalf("expected admin role to be granted")
	}

	isAdmin, err = repo.HasRole(ctx, reporter.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("check reporter role: %v", err)
	}
	if isAdmin {
		t.Fatalf("expected reporter to lack admin role")
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `TRUNCATE TABLE
        chat_messages, chat_rooms, reports, view_milestones, credit_transactions,
        writer_credits, chapters, novels, poems, diary_entries, stories,
        friendships, user_roles, sessions, profiles, users CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestProfile(t *testing.T, repo *PostgresProfileRepository, userID, username string) models.Profile {
	t.Helper()
	profile := models.Profile{
		ID:        userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), profile); err != nil {
		t.Fatalf("create test profile: %v", err)
	}
	return profile
}

func createTestRoom(t *testing.T, name string) string {
	t.Helper()
	id := uuid.NewString()
	if _, err := testPool.Exec(context.Background(), `
        INSERT INTO chat_rooms (id, name, description, created_at)
        VALUES ($1, $2, '', $3)
    `, id, name, time.Now().UTC()); err != nil {
		t.Fatalf("create test room: %v", err)
	}
	return id
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	if a.After(b) {
		return a.Sub(b) <= delta
	}
	return b.Sub(a) <= delta
}

package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/repositories"
)

type memoryLedger struct {
	ledgers    map[string]models.WriterCredits
	milestones []models.ViewMilestone
	txns       []models.CreditTransaction
	err        error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{ledgers: make(map[string]models.WriterCredits)}
}

func (l *memoryLedger) FindLedger(_ context.Context, userID string) (models.WriterCredits, error) {
	if l.err != nil {
		return models.WriterCredits{}, l.err
	}
	ledger, ok := l.ledgers[userID]
	if !ok {
		return models.WriterCredits{}, repositories.ErrNotFound
	}
	return ledger, nil
}

func (l *memoryLedger) CreateLedger(_ context.Context, ledger models.WriterCredits) error {
	if l.err != nil {
		return l.err
	}
	if _, ok := l.ledgers[ledger.UserID]; ok {
		return repositories.ErrConflict
	}
	l.ledgers[ledger.UserID] = ledger
	return nil
}

func (l *memoryLedger) ListMilestones(_ context.Context, userID string) ([]models.ViewMilestone, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []models.ViewMilestone
	for _, m := range l.milestones {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *memoryLedger) ClaimMilestone(_ context.Context, milestone models.ViewMilestone, txn models.CreditTransaction) error {
	if l.err != nil {
		return l.err
	}
	for _, m := range l.milestones {
		if m.UserID == milestone.UserID && m.StoryID == milestone.StoryID &&
			m.NovelID == milestone.NovelID && m.Milestone == milestone.Milestone {
			return repositories.ErrConflict
		}
	}
	l.milestones = append(l.milestones, milestone)
	l.txns = append(l.txns, txn)

	ledger := l.ledgers[milestone.UserID]
	ledger.Balance += milestone.CreditsAwarded
	ledger.TotalEarned += milestone.CreditsAwarded
	l.ledgers[milestone.UserID] = ledger
	return nil
}

func (l *memoryLedger) ListTransactions(_ context.Context, userID string, _ int) ([]models.CreditTransaction, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []models.CreditTransaction
	for _, txn := range l.txns {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type stubStories struct{ stories []models.Story }

func (s stubStories) ListForUser(context.Context, string) ([]models.Story, error) {
	return s.stories, nil
}

type stubNovels struct{ novels []models.Novel }

func (s stubNovels) ListForAuthor(context.Context, string) ([]models.Novel, error) {
	return s.novels, nil
}

func newTestService(ledger Ledger, stories StoryViews, novels NovelViews) *Service {
	svc := NewService(ledger, stories, novels, nil)
	svc.NowFunc = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestBalanceCreatesLedgerOnFirstUse(t *testing.T) {
	ledger := newMemoryLedger()
	svc := newTestService(ledger, nil, nil)

	got, err := svc.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.UserID != "u1" || got.Balance != 0 {
		t.Fatalf("unexpected ledger %+v", got)
	}

	again, err := svc.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second balance: %v", err)
	}
	if again.ID != got.ID {
		t.Fatal("expected the same ledger on repeat lookup")
	}
}

func TestEligibleComputesUnclaimedMilestones(t *testing.T) {
	ledger := newMemoryLedger()
	stories := stubStories{stories: []models.Story{
		{ID: "s1", Title: "First", Views: 120_000, IsPublic: true},
		{ID: "s2", Title: "Quiet", Views: 49_999, IsPublic: true},
	}}
	novels := stubNovels{novels: []models.Novel{
		{ID: "n1", Title: "Saga", Views: 50_000},
	}}
	svc := newTestService(ledger, stories, novels)
	ctx := context.Background()

	eligible, err := svc.Eligible(ctx, "u1")
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	// s1 reached 50k and 100k, n1 reached 50k, s2 reached nothing.
	if len(eligible) != 3 {
		t.Fatalf("expected 3 claimables got %d: %+v", len(eligible), eligible)
	}

	if err := svc.ClaimStory(ctx, "u1", "s1", 50_000); err != nil {
		t.Fatalf("claim: %v", err)
	}

	eligible, err = svc.Eligible(ctx, "u1")
	if err != nil {
		t.Fatalf("eligible after claim: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("expected 2 claimables after claim got %d", len(eligible))
	}
	for _, claimable := range eligible {
		if claimable.StoryID == "s1" && claimable.Milestone == 50_000 {
			t.Fatal("claimed milestone still listed as eligible")
		}
	}
}

func TestClaimAwardsCreditsOnce(t *testing.T) {
	ledger := newMemoryLedger()
	stories := stubStories{stories: []models.Story{{ID: "s1", Title: "First", Views: 60_000, IsPublic: true}}}
	svc := newTestService(ledger, stories, nil)
	ctx := context.Background()

	if err := svc.ClaimStory(ctx, "u1", "s1", 50_000); err != nil {
		t.Fatalf("claim: %v", err)
	}

	balance, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != CreditsPerMilestone || balance.TotalEarned != CreditsPerMilestone {
		t.Fatalf("unexpected balance %+v", balance)
	}

	if err := svc.ClaimStory(ctx, "u1", "s1", 50_000); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed got %v", err)
	}

	history, err := svc.History(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Amount != CreditsPerMilestone || history[0].StoryID != "s1" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestClaimRejectsIneligibleMilestones(t *testing.T) {
	ledger := newMemoryLedger()
	stories := stubStories{stories: []models.Story{{ID: "s1", Title: "First", Views: 60_000, IsPublic: true}}}
	novels := stubNovels{novels: []models.Novel{{ID: "n1", Title: "Saga", Views: 10_000}}}
	svc := newTestService(ledger, stories, novels)
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
	}{
		{"milestone beyond views", svc.ClaimStory(ctx, "u1", "s1", 100_000)},
		{"off-interval milestone", svc.ClaimStory(ctx, "u1", "s1", 42)},
		{"zero milestone", svc.ClaimStory(ctx, "u1", "s1", 0)},
		{"unknown work", svc.ClaimStory(ctx, "u1", "missing", 50_000)},
		{"novel below interval", svc.ClaimNovel(ctx, "u1", "n1", 50_000)},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, ErrNotEligible) {
			t.Fatalf("%s: expected ErrNotEligible got %v", tc.name, tc.err)
		}
	}
}

func TestPrivateStoriesEarnNothing(t *testing.T) {
	ledger := newMemoryLedger()
	stories := stubStories{stories: []models.Story{
		{ID: "s1", Title: "Hidden", Views: 60_000, IsPublic: false},
	}}
	svc := newTestService(ledger, stories, nil)
	ctx := context.Background()

	eligible, err := svc.Eligible(ctx, "u1")
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("private story listed as claimable: %+v", eligible)
	}

	if err := svc.ClaimStory(ctx, "u1", "s1", 50_000); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible got %v", err)
	}
}

func TestClaimNovelMilestone(t *testing.T) {
	ledger := newMemoryLedger()
	novels := stubNovels{novels: []models.Novel{{ID: "n1", Title: "Saga", Views: 150_000}}}
	svc := newTestService(ledger, nil, novels)
	ctx := context.Background()

	for _, milestone := range []int64{50_000, 100_000, 150_000} {
		if err := svc.ClaimNovel(ctx, "u1", "n1", milestone); err != nil {
			t.Fatalf("claim %d: %v", milestone, err)
		}
	}

	balance, err := svc.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 3*CreditsPerMilestone {
		t.Fatalf("expected %d credits got %d", 3*CreditsPerMilestone, balance.Balance)
	}
}

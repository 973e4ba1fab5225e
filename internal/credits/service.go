package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inkleaf/backend/internal/logging"
	"github.com/inkleaf/backend/internal/models"
	"github.com/inkleaf/backend/internal/repositories"
)

const (
	// MilestoneInterval is the view count between consecutive rewards.
	MilestoneInterval = 50_000

	// CreditsPerMilestone is the award for each milestone reached.
	CreditsPerMilestone = 100
)

// ErrAlreadyClaimed is returned when the milestone was claimed before.
var ErrAlreadyClaimed = errors.New("credits: milestone already claimed")

// ErrNotEligible is returned when the work has not reached the milestone or
// does not belong to the claimant.
var ErrNotEligible = errors.New("credits: milestone not eligible")

// Ledger captures the persistence operations the service needs.
type Ledger interface {
	FindLedger(ctx context.Context, userID string) (models.WriterCredits, error)
	CreateLedger(ctx context.Context, ledger models.WriterCredits) error
	ListMilestones(ctx context.Context, userID string) ([]models.ViewMilestone, error)
	ClaimMilestone(ctx context.Context, milestone models.ViewMilestone, txn models.CreditTransaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// StoryViews lists a writer's stories with their view counts.
type StoryViews interface {
	ListForUser(ctx context.Context, userID string) ([]models.Story, error)
}

// NovelViews lists a writer's novels with their view counts.
type NovelViews interface {
	ListForAuthor(ctx context.Context, authorID string) ([]models.Novel, error)
}

// Claimable describes one milestone a writer may claim.
type Claimable struct {
	StoryID   string `json:"storyId,omitempty"`
	NovelID   string `json:"novelId,omitempty"`
	WorkTitle string `json:"workTitle"`
	Milestone int64  `json:"milestone"`
	Credits   int64  `json:"credits"`
}

// Service awards writer credits for view milestones. Every full interval of
// views on a public story or novel unlocks one claim; a claim is one-time per
// work and milestone.
type Service struct {
	ledger  Ledger
	stories StoryViews
	novels  NovelViews
	logger *slog.Logger

	// NowFunc and NewID are overridable for tests.
	NowFunc func() time.Time
	NewID   func() string
}

// NewService constructs the credit service.
func NewService(ledger Ledger, stories StoryViews, novels NovelViews, logger *slog.Logger) *Service {
	if ledger == nil {
		panic("credits: ledger must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:  ledger,
		stories: stories,
		novels:  novels,
		logger:  logger,
		NowFunc: func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Balance returns the user's ledger, creating a zero-balance one on first use.
func (s *Service) Balance(ctx context.Context, userID string) (models.WriterCredits, error) {
	ledger, err := s.ledger.FindLedger(ctx, userID)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.WriterCredits{}, fmt.Errorf("find ledger: %w", err)
	}

	now := s.NowFunc()
	ledger = models.WriterCredits{ID: s.NewID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.ledger.CreateLedger(ctx, ledger); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a create race; the other writer's row is authoritative.
			return s.ledger.FindLedger(ctx, userID)
		}
		return models.WriterCredits{}, fmt.Errorf("create ledger: %w", err)
	}
	return ledger, nil
}

// Eligible lists the milestones the user's works have reached but not claimed.
func (s *Service) Eligible(ctx context.Context, userID string) ([]Claimable, error) {
	claimed, err := s.ledger.ListMilestones(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list claimed milestones: %w", err)
	}
	taken := make(map[string]struct{}, len(claimed))
	for _, m := range claimed {
		taken[claimKey(m.StoryID, m.NovelID, m.Milestone)] = struct{}{}
	}

	var out []Claimable

	if s.stories != nil {
		stories, err := s.stories.ListForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list stories: %w", err)
		}
		for _, story := range stories {
			if !story.IsPublic {
				// Private stories accrue views but never pay out.
				continue
			}
			for _, milestone := range reachedMilestones(story.Views) {
				if _, ok := taken[claimKey(story.ID, "", milestone)]; ok {
					continue
				}
				out = append(out, Claimable{
					StoryID:   story.ID,
					WorkTitle: story.Title,
					Milestone: milestone,
					Credits:   CreditsPerMilestone,
				})
			}
		}
	}

	if s.novels != nil {
		novels, err := s.novels.ListForAuthor(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list novels: %w", err)
		}
		for _, novel := range novels {
			for _, milestone := range reachedMilestones(novel.Views) {
				if _, ok := taken[claimKey("", novel.ID, milestone)]; ok {
					continue
				}
				out = append(out, Claimable{
					NovelID:   novel.ID,
					WorkTitle: novel.Title,
					Milestone: milestone,
					Credits:   CreditsPerMilestone,
				})
			}
		}
	}

	return out, nil
}

// ClaimStory awards the milestone for one of the user's stories.
func (s *Service) ClaimStory(ctx context.Context, userID, storyID string, milestone int64) error {
	if s.stories == nil {
		return ErrNotEligible
	}
	stories, err := s.stories.ListForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list stories: %w", err)
	}
	var views int64 = -1
	var title string
	for _, story := range stories {
		if story.ID == storyID {
			if story.IsPublic {
				views, title = story.Views, story.Title
			}
			break
		}
	}
	return s.claim(ctx, userID, storyID, "", title, views, milestone)
}

// ClaimNovel awards the milestone for one of the user's novels.
func (s *Service) ClaimNovel(ctx context.Context, userID, novelID string, milestone int64) error {
	if s.novels == nil {
		return ErrNotEligible
	}
	novels, err := s.novels.ListForAuthor(ctx, userID)
	if err != nil {
		return fmt.Errorf("list novels: %w", err)
	}
	var views int64 = -1
	var title string
	for _, novel := range novels {
		if novel.ID == novelID {
			views, title = novel.Views, novel.Title
			break
		}
	}
	return s.claim(ctx, userID, "", novelID, title, views, milestone)
}

func (s *Service) claim(ctx context.Context, userID, storyID, novelID, title string, views, milestone int64) error {
	ctx, span := logging.StartSpan(ctx, "credits.claim")
	defer span.End()

	if views < 0 {
		// Work not found among the user's own; claiming another writer's
		// milestones is not a thing.
		return ErrNotEligible
	}
	if milestone <= 0 || milestone%MilestoneInterval != 0 || views < milestone {
		return ErrNotEligible
	}

	// The ledger row must exist before the balance update inside the claim.
	if _, err := s.Balance(ctx, userID); err != nil {
		return err
	}

	now := s.NowFunc()
	err := s.ledger.ClaimMilestone(ctx,
		models.ViewMilestone{
			ID:             s.NewID(),
			UserID:         userID,
			StoryID:        storyID,
			NovelID:        novelID,
			Milestone:      milestone,
			CreditsAwarded: CreditsPerMilestone,
			ClaimedAt:      now,
		},
		models.CreditTransaction{
			ID:          s.NewID(),
			UserID:      userID,
			Amount:      CreditsPerMilestone,
			Type:        "milestone",
			Description: fmt.Sprintf("%d views on %q", milestone, title),
			StoryID:     storyID,
			NovelID:     novelID,
			CreatedAt:   now,
		})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("claim milestone: %w", err)
	}

	s.logger.Info("milestone claimed", "userId", userID, "storyId", storyID, "novelId", novelID, "milestone", milestone)
	return nil
}

// History returns the user's credit transactions, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return s.ledger.ListTransactions(ctx, userID, limit)
}

func reachedMilestones(views int64) []int64 {
	var out []int64
	for m := int64(MilestoneInterval); m <= views; m += MilestoneInterval {
		out = append(out, m)
	}
	return out
}

func claimKey(storyID, novelID string, milestone int64) string {
	return fmt.Sprintf("%s|%s|%d", storyID, novelID, milestone)
}

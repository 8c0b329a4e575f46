package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/matchpoint/internal/repository"
)

// Repository is the storage surface the matching service needs.
type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (*repository.User, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*repository.Profile, error)
	GetSearchPreference(ctx context.Context, userID uuid.UUID) (*repository.SearchPreference, error)
	ListCandidateProfiles(ctx context.Context, seekingGender string, exclude []uuid.UUID) ([]repository.Profile, error)
	SentInterestUserIDs(ctx context.Context, fromUserID uuid.UUID) ([]uuid.UUID, error)
	DeclinedByUserIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error)
	InterestSenderIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error)
	ActiveMatchPartnerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListPreferencesSeeking(ctx context.Context, viewerID uuid.UUID, gender string) ([]repository.PreferenceWithProfile, error)
}

// Service ranks candidate profiles for a viewer.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService wires the matching service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.Named("matching")}
}

// Suggestion is one ranked candidate.
type Suggestion struct {
	Profile repository.Profile `json:"profile"`
	Score   Breakdown          `json:"score"`
}

// SuggestionsPage is a ranked slice of candidates plus the pre-truncation
// total, so clients can show "N more matches".
type SuggestionsPage struct {
	Suggestions []Suggestion `json:"suggestions"`
	Total       int          `json:"total"`
}

const defaultSuggestionLimit = 20

// Suggestions returns the viewer's top candidates, scored against their
// preferences and sorted by descending score. Ties keep candidate creation
// order, so repeated calls return the same ranking.
func (s *Service) Suggestions(ctx context.Context, userID uuid.UUID, limit int) (*SuggestionsPage, error) {
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	viewer, err := s.loadParty(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclude, err := s.excludedUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.ListCandidateProfiles(ctx, viewer.Profile.SeekingGender, exclude)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mustBeVerified := viewer.Preference != nil && viewer.Preference.MustBeVerified

	suggestions := make([]Suggestion, 0, len(candidates))
	for i := range candidates {
		candidate := Party{Profile: &candidates[i], User: &candidates[i].User}
		if mustBeVerified && !isVerified(candidate.User) {
			continue
		}
		if pref, err := s.repo.GetSearchPreference(ctx, candidates[i].UserID); err == nil {
			candidate.Preference = pref
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		suggestions = append(suggestions, Suggestion{
			Profile: candidates[i],
			Score:   Score(viewer, candidate, now),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score.Total > suggestions[j].Score.Total
	})

	total := len(suggestions)
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	s.logger.Debug("suggestions ranked",
		zap.String("user_id", userID.String()),
		zap.Int("candidates", total),
		zap.Int("returned", len(suggestions)))
	return &SuggestionsPage{Suggestions: suggestions, Total: total}, nil
}

// ScoreBetween rates one specific candidate for the viewer.
func (s *Service) ScoreBetween(ctx context.Context, viewerID, candidateID uuid.UUID) (*Breakdown, error) {
	viewer, err := s.loadParty(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.loadParty(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	b := Score(viewer, candidate, time.Now().UTC())
	return &b, nil
}

// Admirers returns profiles of users whose preferences would accept the
// viewer, plus the total count. Callers decide how much of the list the
// viewer is allowed to see.
func (s *Service) Admirers(ctx context.Context, userID uuid.UUID) ([]repository.Profile, int, error) {
	viewer, err := s.loadParty(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	others, err := s.repo.ListPreferencesSeeking(ctx, userID, viewer.Profile.Gender)
	if err != nil {
		return nil, 0, err
	}

	// Users who already sent interest show up in the interest inbox;
	// repeating them here would double-count them.
	senders, err := s.repo.InterestSenderIDs(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	alreadySent := make(map[uuid.UUID]bool, len(senders))
	for _, id := range senders {
		alreadySent[id] = true
	}

	now := time.Now().UTC()
	var admirers []repository.Profile
	for _, other := range others {
		if alreadySent[other.Profile.UserID] {
			continue
		}
		pref := other.Preference
		if accepts(&pref, viewer, now) {
			admirers = append(admirers, other.Profile)
		}
	}
	return admirers, len(admirers), nil
}

func (s *Service) loadParty(ctx context.Context, userID uuid.UUID) (Party, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Party{}, err
	}
	profile, err := s.repo.GetProfileByUser(ctx, userID)
	if err != nil {
		return Party{}, err
	}
	party := Party{Profile: profile, User: user}
	pref, err := s.repo.GetSearchPreference(ctx, userID)
	if err == nil {
		party.Preference = pref
	} else if !errors.Is(err, repository.ErrNotFound) {
		return Party{}, err
	}
	return party, nil
}

// excludedUserIDs collects everyone who should never appear in suggestions:
// the viewer, anyone already contacted, anyone who declined them, and
// current match partners.
func (s *Service) excludedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	exclude := []uuid.UUID{userID}

	sent, err := s.repo.SentInterestUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	declined, err := s.repo.DeclinedByUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	matched, err := s.repo.ActiveMatchPartnerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{userID: true}
	for _, ids := range [][]uuid.UUID{sent, declined, matched} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				exclude = append(exclude, id)
			}
		}
	}
	return exclude, nil
}

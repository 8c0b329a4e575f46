package repository

import (
	"context"

	"github.com/google/uuid"
)

// ListCandidateProfiles returns visible profiles of active users matching
// the viewer's seeking gender (all genders when unset), excluding the given
// user ids. Retrieval order is stable (creation order) so equal-score
// candidates rank deterministically.
func (s *Store) ListCandidateProfiles(ctx context.Context, seekingGender string, exclude []uuid.UUID) ([]Profile, error) {
	query := s.db.WithContext(ctx).
		Model(&Profile{}).
		Preload("User").
		Joins("JOIN users ON users.id = profiles.user_id").
		Where("profiles.is_visible = ?", true).
		Where("users.status = ?", "active")
	if seekingGender != "" {
		query = query.Where("profiles.gender = ?", seekingGender)
	}
	if len(exclude) > 0 {
		query = query.Where("profiles.user_id NOT IN ?", exclude)
	}

	var profiles []Profile
	err := query.Order("profiles.created_at ASC").Find(&profiles).Error
	return profiles, err
}

// SentInterestUserIDs returns ids of users the given user has sent any
// interest to.
func (s *Store) SentInterestUserIDs(ctx context.Context, fromUserID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&Interest{}).
		Where("from_user_id = ?", fromUserID).
		Pluck("to_user_id", &ids).Error
	return ids, err
}

// DeclinedByUserIDs returns ids of users whose interest the given user
// declined.
func (s *Store) DeclinedByUserIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&Interest{}).
		Where("to_user_id = ? AND status = ?", toUserID, "declined").
		Pluck("from_user_id", &ids).Error
	return ids, err
}

// InterestSenderIDs returns ids of users who sent interest to the given
// user, in any status.
func (s *Store) InterestSenderIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&Interest{}).
		Where("to_user_id = ?", toUserID).
		Pluck("from_user_id", &ids).Error
	return ids, err
}

// ActiveMatchPartnerIDs returns ids of users actively matched with the
// given user.
func (s *Store) ActiveMatchPartnerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var matches []Match
	err := s.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?) AND status = ?", userID, userID, "active").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.UserAID == userID {
			ids = append(ids, m.UserBID)
		} else {
			ids = append(ids, m.UserAID)
		}
	}
	return ids, nil
}

// PreferenceWithProfile pairs a user's search preferences with their
// profile for the reverse (who-likes-me) query.
type PreferenceWithProfile struct {
	Preference SearchPreference
	Profile    Profile
}

// ListPreferencesSeeking returns the preferences and profiles of active
// users other than the viewer whose profiles seek the given gender.
func (s *Store) ListPreferencesSeeking(ctx context.Context, viewerID uuid.UUID, gender string) ([]PreferenceWithProfile, error) {
	var prefs []SearchPreference
	query := s.db.WithContext(ctx).
		Model(&SearchPreference{}).
		Joins("JOIN profiles ON profiles.user_id = search_preferences.user_id").
		Joins("JOIN users ON users.id = search_preferences.user_id").
		Where("search_preferences.user_id <> ?", viewerID).
		Where("users.status = ?", "active")
	if gender != "" {
		query = query.Where("profiles.seeking_gender = ?", gender)
	}
	if err := query.Find(&prefs).Error; err != nil {
		return nil, err
	}

	result := make([]PreferenceWithProfile, 0, len(prefs))
	for _, pref := range prefs {
		profile, err := s.GetProfileByUser(ctx, pref.UserID)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		user, err := s.GetUser(ctx, pref.UserID)
		if err == nil {
			profile.User = *user
		}
		result = append(result, PreferenceWithProfile{Preference: pref, Profile: *profile})
	}
	return result, nil
}

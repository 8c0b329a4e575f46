package repository

import (
	"context"

	"github.com/google/uuid"
)

// GetProfileByUser loads a user's profile.
func (s *Store) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

// GetProfile loads a profile by its own id, with the owning user attached.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).Preload("User").First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

// SaveProfile writes back a mutated profile.
func (s *Store) SaveProfile(ctx context.Context, p *Profile) error {
	return s.executeWithRetry(ctx, "repository.save_profile", p.ID.String(), func() error {
		return s.db.WithContext(ctx).Save(p).Error
	})
}

// GetSearchPreference loads a user's search preferences. Absence is not an
// error for the scorer, so callers must check for ErrNotFound.
func (s *Store) GetSearchPreference(ctx context.Context, userID uuid.UUID) (*SearchPreference, error) {
	var pref SearchPreference
	if err := s.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &pref, nil
}

// GetSelfieByUser loads the one selfie a user may have.
func (s *Store) GetSelfieByUser(ctx context.Context, userID uuid.UUID) (*Selfie, error) {
	var selfie Selfie
	if err := s.db.WithContext(ctx).First(&selfie, "user_id = ?", userID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &selfie, nil
}

// SaveSelfie creates or replaces a selfie record in place.
func (s *Store) SaveSelfie(ctx context.Context, selfie *Selfie) error {
	if selfie.ID == uuid.Nil {
		selfie.ID = uuid.New()
	}
	return s.executeWithRetry(ctx, "repository.save_selfie", selfie.UserID.String(), func() error {
		return s.db.WithContext(ctx).Save(selfie).Error
	})
}

// DeleteSelfie removes a selfie record.
func (s *Store) DeleteSelfie(ctx context.Context, selfie *Selfie) error {
	return s.executeWithRetry(ctx, "repository.delete_selfie", selfie.UserID.String(), func() error {
		return s.db.WithContext(ctx).Delete(selfie).Error
	})
}

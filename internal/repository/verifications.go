package repository

import (
	"context"

	"github.com/google/uuid"
)

// CreateVerification persists a new verification attempt.
func (s *Store) CreateVerification(ctx context.Context, v *Verification) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return s.executeWithRetry(ctx, "repository.create_verification", v.ID.String(), func() error {
		return s.db.WithContext(ctx).Create(v).Error
	})
}

// GetVerification loads a verification by id.
func (s *Store) GetVerification(ctx context.Context, id uuid.UUID) (*Verification, error) {
	var v Verification
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &v, nil
}

// SaveVerification writes back a mutated verification.
func (s *Store) SaveVerification(ctx context.Context, v *Verification) error {
	return s.executeWithRetry(ctx, "repository.save_verification", v.ID.String(), func() error {
		return s.db.WithContext(ctx).Save(v).Error
	})
}

// UpdateVerificationStatusIf transitions a verification to the target status
// only while it is still in one of the allowed statuses. Returns false when
// the record has moved on, so cancellation stays last-write-governed.
func (s *Store) UpdateVerificationStatusIf(ctx context.Context, id uuid.UUID, allowed []string, target string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&Verification{}).
		Where("id = ? AND status IN ?", id, allowed).
		Update("status", target)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ApplyVerificationOutcome writes a verification decision and the related
// profile/user mutations in one transaction. Profile and user may be nil
// when the decision does not touch them.
func (s *Store) ApplyVerificationOutcome(ctx context.Context, v *Verification, profile *Profile, user *User) error {
	return s.executeWithRetry(ctx, "repository.apply_verification_outcome", v.ID.String(), func() error {
		return s.Transaction(ctx, func(tx *Store) error {
			if err := tx.db.Save(v).Error; err != nil {
				return err
			}
			if profile != nil {
				if err := tx.db.Save(profile).Error; err != nil {
					return err
				}
			}
			if user != nil {
				if err := tx.db.Save(user).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ListUserVerifications returns a page of a user's verifications, newest
// first, with the unpaginated total.
func (s *Store) ListUserVerifications(ctx context.Context, userID uuid.UUID, status string, page, perPage int) ([]Verification, int64, error) {
	query := s.db.WithContext(ctx).Model(&Verification{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var verifications []Verification
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&verifications).Error
	return verifications, total, err
}

// ListReviewableVerifications returns verifications awaiting review,
// newest submission first.
func (s *Store) ListReviewableVerifications(ctx context.Context, page, perPage int) ([]Verification, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&Verification{}).
		Where("status IN ?", []string{StatusPending, StatusProcessing})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var verifications []Verification
	err := query.
		Order("submitted_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&verifications).Error
	return verifications, total, err
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &u, nil
}

// SaveUser writes back a mutated user.
func (s *Store) SaveUser(ctx context.Context, u *User) error {
	return s.executeWithRetry(ctx, "repository.save_user", u.ID.String(), func() error {
		return s.db.WithContext(ctx).Save(u).Error
	})
}

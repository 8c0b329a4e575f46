// Package selfie manages the one-per-user reference photo and its face
// embedding. The embedding is the comparison anchor for document
// verification, so uploads are validated strictly: exactly one face, of
// usable quality, or the selfie is marked failed.
package selfie

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/matchpoint/internal/face"
	"github.com/example/matchpoint/internal/inference"
	"github.com/example/matchpoint/internal/logging"
	"github.com/example/matchpoint/internal/repository"
)

// Face quality below this is unusable as a comparison anchor.
const minFaceQuality = 0.3

const maxSelfieSize = 10 << 20

var allowedSelfieTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrValidation marks caller mistakes (bad mime type, oversized upload)
// as opposed to processing failures.
var ErrValidation = errors.New("selfie validation failed")

// Repository is the storage surface the selfie service needs.
type Repository interface {
	GetSelfieByUser(ctx context.Context, userID uuid.UUID) (*repository.Selfie, error)
	SaveSelfie(ctx context.Context, selfie *repository.Selfie) error
	DeleteSelfie(ctx context.Context, selfie *repository.Selfie) error
}

// Files is the upload-file surface the selfie service needs.
type Files interface {
	Save(filename string, data []byte, keys ...string) (string, error)
	Read(path string) ([]byte, error)
	Delete(path string) error
}

// Service implements selfie upload, processing, and removal.
type Service struct {
	repo   Repository
	files  Files
	engine inference.Client
	logger *zap.Logger
}

// NewService wires the selfie service.
func NewService(repo Repository, files Files, engine inference.Client, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		files:  files,
		engine: engine,
		logger: logger.Named("selfie"),
	}
}

// Upload stores a new selfie for the user, replacing any previous one in
// place, and attempts to extract its face embedding immediately.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, filename, mimeType string, data []byte) (*repository.Selfie, error) {
	if !allowedSelfieTypes[strings.ToLower(mimeType)] {
		return nil, fmt.Errorf("%w: unsupported file type %q, expected JPEG or PNG", ErrValidation, mimeType)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if len(data) > maxSelfieSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, maxSelfieSize)
	}

	selfie, err := s.repo.GetSelfieByUser(ctx, userID)
	switch {
	case err == nil:
		// Replace in place: same record, new file.
		if selfie.FilePath != "" {
			if removeErr := s.files.Delete(selfie.FilePath); removeErr != nil {
				s.logger.Warn("failed to remove replaced selfie file",
					zap.String("path", selfie.FilePath), zap.Error(removeErr))
			}
		}
	case errors.Is(err, repository.ErrNotFound):
		selfie = &repository.Selfie{ID: uuid.New(), UserID: userID, CreatedAt: time.Now().UTC()}
	default:
		return nil, logging.NewOperationError("selfie.upload", userID.String(), err)
	}

	path, err := s.files.Save(filename, data, "selfies", userID.String())
	if err != nil {
		return nil, logging.NewOperationError("selfie.upload", userID.String(), err)
	}

	selfie.FilePath = path
	selfie.OriginalFilename = filename
	selfie.MimeType = strings.ToLower(mimeType)
	selfie.FileSize = int64(len(data))
	selfie.FaceEmbedding = nil
	selfie.Status = repository.SelfiePending
	selfie.ErrorMessage = ""
	selfie.ProcessedAt = nil

	s.extractEmbedding(ctx, selfie, data)

	if err := s.repo.SaveSelfie(ctx, selfie); err != nil {
		return nil, err
	}
	logging.WithOperation(s.logger, "selfie.upload", userID.String()).Info("selfie stored",
		zap.String("status", selfie.Status))
	return selfie, nil
}

// Reprocess re-runs embedding extraction over the stored file. Useful when
// the inference runtime was down at upload time.
func (s *Service) Reprocess(ctx context.Context, userID uuid.UUID) (*repository.Selfie, error) {
	selfie, err := s.repo.GetSelfieByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := s.files.Read(selfie.FilePath)
	if err != nil {
		return nil, logging.NewOperationError("selfie.reprocess", userID.String(), err)
	}

	selfie.FaceEmbedding = nil
	selfie.Status = repository.SelfiePending
	selfie.ErrorMessage = ""
	selfie.ProcessedAt = nil
	s.extractEmbedding(ctx, selfie, data)

	if err := s.repo.SaveSelfie(ctx, selfie); err != nil {
		return nil, err
	}
	return selfie, nil
}

// Get returns the user's selfie.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*repository.Selfie, error) {
	return s.repo.GetSelfieByUser(ctx, userID)
}

// Delete removes the user's selfie file and record.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	selfie, err := s.repo.GetSelfieByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.files.Delete(selfie.FilePath); err != nil {
		s.logger.Warn("failed to remove selfie file",
			zap.String("path", selfie.FilePath), zap.Error(err))
	}
	return s.repo.DeleteSelfie(ctx, selfie)
}

// extractEmbedding runs face detection and fills in the embedding, or the
// terminal failure state, on the record. Runtime unavailability leaves the
// selfie pending so a later Reprocess can pick it up.
func (s *Service) extractEmbedding(ctx context.Context, selfie *repository.Selfie, data []byte) {
	detection, err := s.engine.DetectFaces(ctx, data)
	if err != nil {
		if errors.Is(err, inference.ErrUnavailable) {
			selfie.Status = repository.SelfiePending
			selfie.ErrorMessage = "face detection unavailable, will retry"
			return
		}
		selfie.Status = repository.SelfieFailed
		selfie.ErrorMessage = "face detection failed"
		s.logger.Error("selfie face detection failed",
			zap.String("user_id", selfie.UserID.String()), zap.Error(err))
		return
	}

	switch {
	case detection == nil || len(detection.Faces) == 0:
		selfie.Status = repository.SelfieFailed
		selfie.ErrorMessage = "no face detected in the photo"
	case len(detection.Faces) > 1:
		selfie.Status = repository.SelfieFailed
		selfie.ErrorMessage = fmt.Sprintf("%d faces detected, upload a photo with only your face", len(detection.Faces))
	case detection.Quality() < minFaceQuality:
		selfie.Status = repository.SelfieFailed
		selfie.ErrorMessage = "face quality too low, upload a clearer photo"
	default:
		f, _ := detection.Largest()
		selfie.FaceEmbedding = face.Embedding(f.Embedding).Bytes()
		selfie.Status = repository.SelfieProcessed
		now := time.Now().UTC()
		selfie.ProcessedAt = &now
	}
}

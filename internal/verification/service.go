// Package verification orchestrates document verification: upload intake,
// the automated passport pipeline, manual review decisions, and result
// caching. Decisions are threshold-driven; anything the pipeline cannot
// settle confidently lands in manual review rather than failing.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/example/matchpoint/internal/config"
	"github.com/example/matchpoint/internal/inference"
	"github.com/example/matchpoint/internal/logging"
	"github.com/example/matchpoint/internal/ocr"
	"github.com/example/matchpoint/internal/repository"
)

const maxDocumentSize = 10 << 20

// minRejectionReason keeps manual rejections reviewable after the fact.
const minRejectionReason = 10

var allowedDocumentTypes = map[string]bool{
	ocr.TypePassport:           true,
	ocr.TypeResidencePermit:    true,
	ocr.TypeDivorceCertificate: true,
	ocr.TypeDiploma:            true,
	ocr.TypeEmploymentProof:    true,
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// Sentinel errors surfaced to the transport layer.
var (
	ErrValidation   = errors.New("verification validation failed")
	ErrInvalidState = errors.New("verification is not in a state that allows this operation")
	ErrForbidden    = errors.New("verification belongs to another user")
	ErrDuplicate    = errors.New("a verification of this type is already in progress")
)

// Repository is the storage surface the verification service needs.
type Repository interface {
	CreateVerification(ctx context.Context, v *repository.Verification) error
	GetVerification(ctx context.Context, id uuid.UUID) (*repository.Verification, error)
	SaveVerification(ctx context.Context, v *repository.Verification) error
	UpdateVerificationStatusIf(ctx context.Context, id uuid.UUID, allowed []string, target string) (bool, error)
	ApplyVerificationOutcome(ctx context.Context, v *repository.Verification, profile *repository.Profile, user *repository.User) error
	ListUserVerifications(ctx context.Context, userID uuid.UUID, status string, page, perPage int) ([]repository.Verification, int64, error)
	ListReviewableVerifications(ctx context.Context, page, perPage int) ([]repository.Verification, int64, error)
	GetSelfieByUser(ctx context.Context, userID uuid.UUID) (*repository.Selfie, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (*repository.Profile, error)
	GetUser(ctx context.Context, id uuid.UUID) (*repository.User, error)
}

// Files is the upload-file surface the verification service needs.
type Files interface {
	Save(filename string, data []byte, keys ...string) (string, error)
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Delete(path string) error
}

// Result is the outcome of one automated processing run.
type Result struct {
	AutoVerified      bool           `json:"auto_verified"`
	Confidence        float64        `json:"confidence"`
	ExtractedData     map[string]any `json:"extracted_data,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	NeedsManualReview bool           `json:"needs_manual_review"`
	FaceMatchScore    *float64       `json:"face_match_score,omitempty"`
}

// UploadInput carries one document submission.
type UploadInput struct {
	DocumentType    string
	DocumentCountry string
	Filename        string
	MimeType        string
	Data            []byte
}

// Service implements the verification flow.
type Service struct {
	repo     Repository
	files    Files
	engine   inference.Client
	cache    Cache
	settings *config.Settings
	logger   *zap.Logger

	workers *semaphore.Weighted

	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewService wires the verification service. workerSlots bounds how many
// documents are processed concurrently in the background.
func NewService(repo Repository, files Files, engine inference.Client, cache Cache, settings *config.Settings, logger *zap.Logger) *Service {
	slots := settings.WorkerSlots
	if slots < 1 {
		slots = 1
	}
	return &Service{
		repo:           repo,
		files:          files,
		engine:         engine,
		cache:          cache,
		settings:       settings,
		logger:         logger.Named("verification"),
		workers:        semaphore.NewWeighted(slots),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Upload stores a submitted document and, when automated verification is
// enabled, queues it for background processing.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*repository.Verification, error) {
	if !allowedDocumentTypes[input.DocumentType] {
		return nil, fmt.Errorf("%w: unsupported document type %q", ErrValidation, input.DocumentType)
	}
	if !allowedMimeTypes[strings.ToLower(input.MimeType)] {
		return nil, fmt.Errorf("%w: unsupported file type %q, expected JPEG, PNG, or PDF", ErrValidation, input.MimeType)
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if len(input.Data) > maxDocumentSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, maxDocumentSize)
	}

	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.checkNoOpenSubmission(ctx, userID, input.DocumentType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	v := &repository.Verification{
		ID:               uuid.New(),
		UserID:           userID,
		DocumentType:     input.DocumentType,
		DocumentCountry:  input.DocumentCountry,
		Status:           repository.StatusPending,
		OriginalFilename: input.Filename,
		MimeType:         strings.ToLower(input.MimeType),
		FileSize:         int64(len(input.Data)),
		CreatedAt:        now,
		SubmittedAt:      &now,
	}

	path, err := s.files.Save(input.Filename, input.Data, "verifications", userID.String(), v.ID.String())
	if err != nil {
		return nil, logging.NewOperationError("verification.upload", v.ID.String(), err)
	}
	v.FilePath = path

	auto := s.settings.AutoVerificationEnabled()
	if auto {
		v.Status = repository.StatusProcessing
	}
	if err := s.repo.CreateVerification(ctx, v); err != nil {
		if removeErr := s.files.Delete(path); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", path), zap.Error(removeErr))
		}
		return nil, err
	}

	logging.WithOperation(s.logger, "verification.upload", v.ID.String()).Info("document submitted",
		zap.String("user_id", userID.String()),
		zap.String("document_type", v.DocumentType),
		zap.Bool("automated", auto))

	if auto {
		s.dispatch(v.ID)
	}
	return v, nil
}

// checkNoOpenSubmission rejects a second in-flight submission of the same
// document type.
func (s *Service) checkNoOpenSubmission(ctx context.Context, userID uuid.UUID, docType string) error {
	open, _, err := s.repo.ListUserVerifications(ctx, userID, "", 1, 50)
	if err != nil {
		return err
	}
	for _, v := range open {
		if v.DocumentType != docType {
			continue
		}
		if v.Status == repository.StatusPending || v.Status == repository.StatusProcessing {
			return fmt.Errorf("%w: %s", ErrDuplicate, docType)
		}
	}
	return nil
}

// dispatch runs the pipeline in the background under the worker semaphore.
// A verification that cannot get a slot in time falls back to pending so a
// reviewer or a retry can pick it up.
func (s *Service) dispatch(id uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.workers.Acquire(ctx, 1); err != nil {
			s.logger.Warn("no worker slot for verification, leaving for manual review",
				zap.String("verification_id", id.String()), zap.Error(err))
			s.resetToPending(id)
			return
		}
		defer s.workers.Release(1)

		if _, err := s.Process(ctx, id); err != nil {
			s.logger.Error("background verification processing failed",
				zap.String("verification_id", id.String()), zap.Error(err))
		}
	}()
}

func (s *Service) resetToPending(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.repo.UpdateVerificationStatusIf(ctx, id,
		[]string{repository.StatusProcessing}, repository.StatusPending); err != nil {
		s.logger.Error("failed to reset verification to pending",
			zap.String("verification_id", id.String()), zap.Error(err))
	}
}

// Get returns a verification, enforcing ownership unless the caller is an
// admin.
func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*repository.Verification, error) {
	v, err := s.repo.GetVerification(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && v.UserID != callerID {
		return nil, ErrForbidden
	}
	return v, nil
}

// List returns a page of the user's verifications.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status string, page, perPage int) ([]repository.Verification, int64, error) {
	return s.repo.ListUserVerifications(ctx, userID, status, page, perPage)
}

// ListReviewable returns verifications awaiting a manual decision.
func (s *Service) ListReviewable(ctx context.Context, page, perPage int) ([]repository.Verification, int64, error) {
	return s.repo.ListReviewableVerifications(ctx, page, perPage)
}

// Cancel withdraws the caller's own in-flight verification. The update is
// conditional on the current status, so a decision that lands first wins.
func (s *Service) Cancel(ctx context.Context, id, callerID uuid.UUID) error {
	v, err := s.repo.GetVerification(ctx, id)
	if err != nil {
		return err
	}
	if v.UserID != callerID {
		return ErrForbidden
	}
	ok, err := s.repo.UpdateVerificationStatusIf(ctx, id,
		[]string{repository.StatusPending, repository.StatusProcessing}, repository.StatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: already finalized", ErrInvalidState)
	}
	logging.WithOperation(s.logger, "verification.cancel", id.String()).Info("verification cancelled")
	return nil
}

// Approve records a manual approval and copies reviewed fields onto the
// profile. overrides let the reviewer correct extracted values first.
func (s *Service) Approve(ctx context.Context, id, reviewerID uuid.UUID, overrides map[string]any) (*repository.Verification, error) {
	v, err := s.repo.GetVerification(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != repository.StatusPending && v.Status != repository.StatusProcessing {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidState, v.Status)
	}

	if len(overrides) > 0 {
		if v.ExtractedData == nil {
			v.ExtractedData = repository.JSONMap{}
		}
		for k, val := range overrides {
			v.ExtractedData[k] = val
		}
	}

	now := time.Now().UTC()
	v.Status = repository.StatusApproved
	v.VerificationMethod = repository.MethodManual
	v.VerifiedBy = &reviewerID
	v.VerifiedAt = &now
	v.RejectionReason = ""

	profile, user, err := s.buildApprovalMutations(ctx, v)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyVerificationOutcome(ctx, v, profile, user); err != nil {
		return nil, err
	}
	logging.WithOperation(s.logger, "verification.approve", id.String()).Info("verification approved manually",
		zap.String("reviewer_id", reviewerID.String()))
	return v, nil
}

// Reject records a manual rejection. The reason is mandatory and must be
// substantial enough to tell the user what to fix.
func (s *Service) Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string) (*repository.Verification, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) < minRejectionReason {
		return nil, fmt.Errorf("%w: rejection reason must be at least %d characters", ErrValidation, minRejectionReason)
	}

	v, err := s.repo.GetVerification(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != repository.StatusPending && v.Status != repository.StatusProcessing {
		return nil, fmt.Errorf("%w: status %s", ErrInvalidState, v.Status)
	}

	now := time.Now().UTC()
	v.Status = repository.StatusRejected
	v.VerificationMethod = repository.MethodManual
	v.VerifiedBy = &reviewerID
	v.VerifiedAt = &now
	v.RejectionReason = reason
	if err := s.repo.SaveVerification(ctx, v); err != nil {
		return nil, err
	}
	logging.WithOperation(s.logger, "verification.reject", id.String()).Info("verification rejected manually",
		zap.String("reviewer_id", reviewerID.String()))
	return v, nil
}

// GetResult returns the latest processing result, served from cache when the
// pipeline ran recently, otherwise derived from the stored record.
func (s *Service) GetResult(ctx context.Context, id, callerID uuid.UUID, isAdmin bool) (*Result, error) {
	v, err := s.Get(ctx, id, callerID, isAdmin)
	if err != nil {
		return nil, err
	}

	cacheKey := resultCacheKey(id)
	if cached, err := s.withRedisGet(ctx, id.String(), "cache.get.result", cacheKey); err == nil {
		if cached == "processing" {
			return &Result{FailureReason: "processing in progress"}, nil
		}
		var result Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
		logging.WithOperation(s.logger, "verification.get_result", id.String()).Warn("failed to decode cached result")
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(s.logger, "verification.get_result", id.String()).Warn("failed to read cache", zap.Error(err))
	}

	return resultFromRecord(v), nil
}

// resultFromRecord reconstructs a result view from the persisted record when
// nothing is cached.
func resultFromRecord(v *repository.Verification) *Result {
	result := &Result{
		AutoVerified:      v.Status == repository.StatusApproved && v.VerificationMethod == repository.MethodAutomated,
		ExtractedData:     v.ExtractedData,
		NeedsManualReview: v.Status == repository.StatusPending || v.Status == repository.StatusProcessing,
	}
	if v.Status == repository.StatusRejected {
		result.FailureReason = v.RejectionReason
	}
	if v.ExtractedData != nil {
		if score, ok := v.ExtractedData["face_match_score"].(float64); ok {
			result.FaceMatchScore = &score
			result.Confidence = score
		}
	}
	return result
}

func resultCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("verification:%s", id)
}

// StatusSummary is a user-facing rollup of verification progress.
type StatusSummary struct {
	OverallStatus string            `json:"overall_status"`
	Documents     map[string]string `json:"documents"`
	SelfieStatus  string            `json:"selfie_status"`
	MissingSteps  []string          `json:"missing_steps,omitempty"`
}

// Summary reports where the user stands: selfie state, latest status per
// document type, and an overall rollup driven by the passport.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*StatusSummary, error) {
	summary := &StatusSummary{
		OverallStatus: "unverified",
		Documents:     make(map[string]string),
		SelfieStatus:  "missing",
	}

	selfie, err := s.repo.GetSelfieByUser(ctx, userID)
	switch {
	case err == nil:
		summary.SelfieStatus = selfie.Status
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	verifications, _, err := s.repo.ListUserVerifications(ctx, userID, "", 1, 100)
	if err != nil {
		return nil, err
	}
	// Newest first, so the first status seen per type is the latest attempt.
	for _, v := range verifications {
		if _, seen := summary.Documents[v.DocumentType]; !seen {
			summary.Documents[v.DocumentType] = v.Status
		}
	}

	inProgress := false
	approvedAny := false
	for _, status := range summary.Documents {
		switch status {
		case repository.StatusPending, repository.StatusProcessing:
			inProgress = true
		case repository.StatusApproved:
			approvedAny = true
		}
	}
	switch {
	case summary.Documents[ocr.TypePassport] == repository.StatusApproved:
		summary.OverallStatus = "verified"
	case inProgress:
		summary.OverallStatus = "in_progress"
	case approvedAny:
		summary.OverallStatus = "partially_verified"
	}

	if summary.SelfieStatus != repository.SelfieProcessed {
		summary.MissingSteps = append(summary.MissingSteps, "upload a clear selfie")
	}
	if summary.Documents[ocr.TypePassport] != repository.StatusApproved {
		summary.MissingSteps = append(summary.MissingSteps, "verify your passport")
	}
	return summary, nil
}

// CheckPrerequisites tells the client whether an upload of the given type
// can be processed automatically right now. Uploads are still accepted when
// prerequisites are missing; they just end up in manual review.
func (s *Service) CheckPrerequisites(ctx context.Context, userID uuid.UUID, docType string) (bool, string, error) {
	if !allowedDocumentTypes[docType] {
		return false, fmt.Sprintf("unsupported document type %q", docType), nil
	}
	if !s.settings.AutoVerificationEnabled() {
		return false, "automated verification is currently disabled, documents go to manual review", nil
	}
	if docType == ocr.TypePassport {
		selfie, err := s.repo.GetSelfieByUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, "upload a selfie first so the passport photo can be compared against it", nil
		}
		if err != nil {
			return false, "", err
		}
		if selfie.Status != repository.SelfieProcessed || len(selfie.FaceEmbedding) == 0 {
			return false, "your selfie has not been processed yet, re-upload or retry it first", nil
		}
	}
	if !s.engine.Available(ctx) {
		return false, "automated processing is temporarily unavailable, documents go to manual review", nil
	}
	return true, "", nil
}

func (s *Service) withRedisRetry(ctx context.Context, entityID, operation string, fn func() error) error {
	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, entityID)
	var err error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, entityID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == s.retryAttempts-1 {
			return logging.NewOperationError(operation, entityID, err)
		}
		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, entityID, err)
}

func (s *Service) withRedisGet(ctx context.Context, entityID, operation, cacheKey string) (string, error) {
	var result string
	err := s.withRedisRetry(ctx, entityID, operation, func() error {
		value, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}

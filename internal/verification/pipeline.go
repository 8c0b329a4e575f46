package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/matchpoint/internal/face"
	"github.com/example/matchpoint/internal/mrz"
	"github.com/example/matchpoint/internal/ocr"
	"github.com/example/matchpoint/internal/repository"
)

// Confidence levels for runs that stop short of a face comparison. A valid
// MRZ with no selfie to compare against is worth more than keyword-detected
// text from a non-passport document.
const (
	confidenceMRZOnly     = 0.5
	confidenceKeywordScan = 0.3
)

const (
	rawTextLimitPassport = 1000
	rawTextLimitOther    = 2000
	maxExtractedDates    = 5
)

// decision is the pipeline's verdict on one document before it is written
// back to storage.
type decision struct {
	status     string
	confidence float64
	data       repository.JSONMap
	reason     string
	score      *float64
	docExpiry  *time.Time
}

// Process runs the automated pipeline over a stored verification and applies
// the outcome. Any internal failure resets the record to pending so a human
// reviewer can take over; the pipeline never strands a document in
// processing.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (result *Result, err error) {
	v, err := s.repo.GetVerification(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.settings.AutoVerificationEnabled() {
		if v.Status == repository.StatusProcessing {
			s.resetToPending(id)
		}
		return &Result{
			NeedsManualReview: true,
			FailureReason:     "automated verification is disabled",
		}, nil
	}

	switch v.Status {
	case repository.StatusProcessing:
	case repository.StatusPending:
		v.Status = repository.StatusProcessing
		if err := s.repo.SaveVerification(ctx, v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: status %s", ErrInvalidState, v.Status)
	}

	cacheKey := resultCacheKey(id)
	if err := s.withRedisRetry(ctx, id.String(), "cache.set.processing", func() error {
		return s.cache.Set(ctx, cacheKey, "processing", time.Minute)
	}); err != nil {
		s.logger.Warn("failed to set processing flag", zap.String("verification_id", id.String()), zap.Error(err))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification pipeline panicked",
				zap.String("verification_id", id.String()), zap.Any("panic", r))
			s.resetToPending(id)
			result = &Result{
				NeedsManualReview: true,
				FailureReason:     "internal processing error, routed to manual review",
			}
			err = nil
		}
	}()

	d := s.runPipeline(ctx, v)
	if applyErr := s.applyDecision(ctx, v, d); applyErr != nil {
		s.resetToPending(id)
		return nil, applyErr
	}

	result = &Result{
		AutoVerified:      d.status == repository.StatusApproved,
		Confidence:        d.confidence,
		ExtractedData:     d.data,
		NeedsManualReview: d.status == repository.StatusPending,
		FaceMatchScore:    d.score,
	}
	if d.status != repository.StatusApproved {
		result.FailureReason = d.reason
	}

	if serialized, marshalErr := json.Marshal(result); marshalErr == nil {
		if cacheErr := s.withRedisRetry(ctx, id.String(), "cache.set.result", func() error {
			return s.cache.Set(ctx, cacheKey, string(serialized), 5*time.Minute)
		}); cacheErr != nil {
			s.logger.Warn("failed to cache verification result",
				zap.String("verification_id", id.String()), zap.Error(cacheErr))
		}
	}

	s.logger.Info("verification processed",
		zap.String("verification_id", id.String()),
		zap.String("document_type", v.DocumentType),
		zap.String("outcome", d.status),
		zap.Float64("confidence", d.confidence))
	return result, nil
}

func (s *Service) runPipeline(ctx context.Context, v *repository.Verification) decision {
	data, d, ok := s.loadDocumentImage(ctx, v)
	if !ok {
		return d
	}
	if v.DocumentType == ocr.TypePassport {
		return s.processPassport(ctx, v, data)
	}
	return s.processOther(ctx, v, data)
}

// loadDocumentImage reads the stored upload and rasterizes PDFs. A document
// that cannot be turned into an image goes straight to manual review.
func (s *Service) loadDocumentImage(ctx context.Context, v *repository.Verification) ([]byte, decision, bool) {
	if !s.files.Exists(v.FilePath) {
		return nil, pendingDecision(nil, "stored document file is missing"), false
	}
	data, err := s.files.Read(v.FilePath)
	if err != nil {
		return nil, pendingDecision(nil, "stored document file could not be read"), false
	}
	if v.MimeType != "application/pdf" {
		return data, decision{}, true
	}

	image, err := s.engine.RasterizePDF(ctx, data)
	if err != nil {
		s.logger.Warn("pdf rasterization failed",
			zap.String("verification_id", v.ID.String()), zap.Error(err))
		// Best effort: some sidecars can OCR the PDF directly, so keep
		// whatever text comes back for the reviewer.
		d := pendingDecision(nil, "could not convert the PDF document to an image")
		if text, _, ocrErr := s.engine.ExtractText(ctx, data); ocrErr == nil && strings.TrimSpace(text) != "" {
			d.data = repository.JSONMap{"raw_text": ocr.Truncate(text, rawTextLimitOther)}
		}
		return nil, d, false
	}
	return image, decision{}, true
}

// processPassport runs the full identity pipeline: MRZ decode, selfie
// lookup, face comparison, threshold decision.
func (s *Service) processPassport(ctx context.Context, v *repository.Verification, image []byte) decision {
	text, lines, err := s.engine.ExtractText(ctx, image)
	if err != nil {
		return pendingDecision(nil, "text extraction is unavailable, routed to manual review")
	}

	rec := extractMRZ(text, lines)
	if rec == nil || !rec.Valid {
		data := repository.JSONMap{"raw_text": ocr.Truncate(text, rawTextLimitPassport)}
		if rec != nil {
			mergeMRZData(data, rec)
		}
		return pendingDecision(data, "could not read a valid machine-readable zone from the passport")
	}

	// Expiry never gates the decision; the date is recorded so account
	// verification lapses with the document.
	data := repository.JSONMap{}
	mergeMRZData(data, rec)

	selfie, err := s.repo.GetSelfieByUser(ctx, v.UserID)
	if err != nil || selfie.Status != repository.SelfieProcessed || len(selfie.FaceEmbedding) == 0 {
		d := pendingDecision(data, "no processed selfie available for face comparison")
		d.confidence = confidenceMRZOnly
		d.docExpiry = rec.ExpiryDate
		return d
	}

	detection, err := s.engine.DetectFaces(ctx, image)
	if err != nil {
		d := pendingDecision(data, "face detection is unavailable, routed to manual review")
		d.confidence = confidenceMRZOnly
		d.docExpiry = rec.ExpiryDate
		return d
	}
	documentFace, ok := detection.Largest()
	if !ok {
		d := pendingDecision(data, "no face could be found in the passport photo")
		d.confidence = confidenceMRZOnly
		d.docExpiry = rec.ExpiryDate
		return d
	}

	selfieEmbedding, err := face.EmbeddingFromBytes(selfie.FaceEmbedding)
	if err != nil {
		d := pendingDecision(data, "stored selfie embedding is corrupt, re-upload the selfie")
		d.confidence = confidenceMRZOnly
		return d
	}

	score := face.Similarity(face.Embedding(documentFace.Embedding), selfieEmbedding)
	data["face_match_score"] = score
	thresholds := s.settings.FaceMatchThresholds()

	d := decision{
		confidence: score,
		data:       data,
		score:      &score,
		docExpiry:  rec.ExpiryDate,
	}
	switch {
	case score >= thresholds.Approve:
		d.status = repository.StatusApproved
	case score <= thresholds.Reject:
		d.status = repository.StatusRejected
		d.reason = fmt.Sprintf("face match score %.2f is below the rejection threshold, likely identity mismatch", score)
	default:
		d.status = repository.StatusPending
		d.reason = fmt.Sprintf("face match score %.2f is inconclusive, manual review required", score)
	}
	return d
}

// processOther handles non-passport documents: keyword-detect the type and
// collect review context. These documents always go to a human.
func (s *Service) processOther(ctx context.Context, v *repository.Verification, image []byte) decision {
	text, _, err := s.engine.ExtractText(ctx, image)
	if err != nil {
		return pendingDecision(nil, "text extraction is unavailable, routed to manual review")
	}
	if strings.TrimSpace(text) == "" {
		return pendingDecision(nil, "no text could be extracted from the document")
	}

	data := repository.JSONMap{
		"raw_text": ocr.Truncate(text, rawTextLimitOther),
	}
	if detected := ocr.DetectDocumentType(text); detected != "" {
		data["detected_type"] = detected
		if detected != v.DocumentType {
			data["type_mismatch"] = true
		}
	}
	if dates := ocr.ExtractDates(text); len(dates) > 0 {
		if len(dates) > maxExtractedDates {
			dates = dates[:maxExtractedDates]
		}
		data["found_dates"] = dates
	}
	names := ocr.ExtractNames(text)
	if names.FirstName != "" {
		data["first_name"] = names.FirstName
	}
	if names.LastName != "" {
		data["last_name"] = names.LastName
	}

	d := pendingDecision(data, "non-passport documents require manual review")
	d.confidence = confidenceKeywordScan
	return d
}

// applyDecision writes the pipeline verdict back to storage. Approvals copy
// verified fields onto the profile and user in one transaction.
func (s *Service) applyDecision(ctx context.Context, v *repository.Verification, d decision) error {
	v.ExtractedData = d.data
	v.DocumentExpiryDate = d.docExpiry

	switch d.status {
	case repository.StatusApproved:
		now := time.Now().UTC()
		v.Status = repository.StatusApproved
		v.VerificationMethod = repository.MethodAutomated
		v.VerifiedAt = &now
		v.RejectionReason = ""
		profile, user, err := s.buildApprovalMutations(ctx, v)
		if err != nil {
			return err
		}
		return s.repo.ApplyVerificationOutcome(ctx, v, profile, user)
	case repository.StatusRejected:
		v.Status = repository.StatusRejected
		v.VerificationMethod = repository.MethodAutomated
		v.RejectionReason = d.reason
		return s.repo.SaveVerification(ctx, v)
	default:
		v.Status = repository.StatusPending
		if d.reason != "" {
			if v.ExtractedData == nil {
				v.ExtractedData = repository.JSONMap{}
			}
			v.ExtractedData["processing_note"] = d.reason
		}
		return s.repo.SaveVerification(ctx, v)
	}
}

// buildApprovalMutations prepares the profile and user updates that
// accompany an approval. Only a passport changes the account-level
// verification status; other documents just fill in profile fields.
func (s *Service) buildApprovalMutations(ctx context.Context, v *repository.Verification) (*repository.Profile, *repository.User, error) {
	var profile *repository.Profile
	if applier, ok := profileAppliers[v.DocumentType]; ok {
		p, err := s.repo.GetProfileByUser(ctx, v.UserID)
		if err == nil {
			applier(p, v)
			profile = p
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, err
		}
	}

	var user *repository.User
	if v.DocumentType == ocr.TypePassport {
		u, err := s.repo.GetUser(ctx, v.UserID)
		if err != nil {
			return nil, nil, err
		}
		u.VerificationStatus = "verified"
		u.VerificationExpiresAt = v.DocumentExpiryDate
		user = u
	}
	return profile, user, nil
}

func extractMRZ(text string, lines []string) *mrz.Record {
	if len(lines) > 0 {
		if line1, line2, ok := mrz.FindLines(lines); ok {
			return mrz.Parse(line1, line2)
		}
	}
	return mrz.ExtractFromText(text)
}

func mergeMRZData(data repository.JSONMap, rec *mrz.Record) {
	data["mrz_valid"] = rec.Valid
	if rec.FirstName != "" {
		data["first_name"] = rec.FirstName
	}
	if rec.LastName != "" {
		data["last_name"] = rec.LastName
	}
	if rec.BirthDate != nil {
		data["birth_date"] = rec.BirthDate.Format("2006-01-02")
	}
	if rec.ExpiryDate != nil {
		data["expiry_date"] = rec.ExpiryDate.Format("2006-01-02")
	}
	if rec.Nationality != "" {
		data["nationality"] = rec.Nationality
		data["nationality_name"] = mrz.CountryName(rec.Nationality)
	}
	if rec.DocumentNumber != "" {
		data["document_number"] = rec.DocumentNumber
	}
	if rec.Sex != "" {
		data["sex"] = rec.Sex
	}
	if rec.IssuingCountry != "" {
		data["issuing_country"] = rec.IssuingCountry
	}
}

func pendingDecision(data repository.JSONMap, reason string) decision {
	return decision{status: repository.StatusPending, data: data, reason: reason}
}

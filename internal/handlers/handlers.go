// Package handlers wires the HTTP API to the Gin router. Handlers stay
// thin: decode, delegate to a service, map errors to status codes.
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/matchpoint/internal/auth"
	"github.com/example/matchpoint/internal/config"
	"github.com/example/matchpoint/internal/matching"
	"github.com/example/matchpoint/internal/repository"
	"github.com/example/matchpoint/internal/selfie"
	"github.com/example/matchpoint/internal/verification"
)

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	Selfies       *selfie.Service
	Verifications *verification.Service
	Matching      *matching.Service
	Settings      *config.Settings
	Logger        *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// guards everything except the health probe.
func RegisterRoutes(router *gin.Engine, h *Handlers, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", authMiddleware)

	api.POST("/selfie", h.uploadSelfie)
	api.GET("/selfie", h.getSelfie)
	api.POST("/selfie/reprocess", h.reprocessSelfie)
	api.DELETE("/selfie", h.deleteSelfie)

	api.POST("/verifications", h.uploadVerification)
	api.GET("/verifications", h.listVerifications)
	api.GET("/verifications/status", h.verificationSummary)
	api.GET("/verifications/prerequisites", h.checkPrerequisites)
	api.GET("/verifications/:id", h.getVerification)
	api.GET("/verifications/:id/result", h.getVerificationResult)
	api.POST("/verifications/:id/cancel", h.cancelVerification)

	api.GET("/matches/suggestions", h.suggestions)
	api.GET("/matches/score/:user_id", h.compatibilityScore)
	api.GET("/matches/admirers", h.admirers)

	admin := api.Group("/admin", auth.RequireAdmin())
	admin.GET("/verifications", h.reviewQueue)
	admin.POST("/verifications/:id/approve", h.approveVerification)
	admin.POST("/verifications/:id/reject", h.rejectVerification)
	admin.POST("/verifications/:id/process", h.processVerification)
	admin.GET("/settings/verification", h.getVerificationSettings)
	admin.PUT("/settings/verification", h.updateVerificationSettings)
}

func (h *Handlers) currentUserID(c *gin.Context) (uuid.UUID, bool) {
	subject, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid subject"})
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func readUpload(c *gin.Context, field string) (*multipart.FileHeader, []byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file is required"})
		return nil, nil, false
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open " + field})
		return nil, nil, false
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + field})
		return nil, nil, false
	}
	return file, data, true
}

// respondError maps service errors to HTTP statuses. Unknown errors are
// logged and surfaced as an opaque 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, verification.ErrValidation), errors.Is(err, selfie.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, verification.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, verification.ErrDuplicate), errors.Is(err, verification.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handlers) uploadSelfie(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	file, data, ok := readUpload(c, "photo")
	if !ok {
		return
	}

	record, err := h.Selfies.Upload(c.Request.Context(), userID, file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, selfieView(record))
}

func (h *Handlers) getSelfie(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	record, err := h.Selfies.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, selfieView(record))
}

func (h *Handlers) reprocessSelfie(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	record, err := h.Selfies.Reprocess(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, selfieView(record))
}

func (h *Handlers) deleteSelfie(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	if err := h.Selfies.Delete(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func selfieView(s *repository.Selfie) gin.H {
	return gin.H{
		"id":            s.ID,
		"status":        s.Status,
		"error_message": s.ErrorMessage,
		"uploaded_at":   s.CreatedAt,
		"processed_at":  s.ProcessedAt,
	}
}

func (h *Handlers) uploadVerification(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	docType := c.PostForm("document_type")
	if docType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_type is required"})
		return
	}
	file, data, ok := readUpload(c, "document")
	if !ok {
		return
	}

	record, err := h.Verifications.Upload(c.Request.Context(), userID, verification.UploadInput{
		DocumentType:    docType,
		DocumentCountry: c.PostForm("document_country"),
		Filename:        file.Filename,
		MimeType:        file.Header.Get("Content-Type"),
		Data:            data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, verificationView(record))
}

func (h *Handlers) listVerifications(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	page, perPage := pagination(c)
	records, total, err := h.Verifications.List(c.Request.Context(), userID, c.Query("status"), page, perPage)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verifications": verificationViews(records),
		"total":         total,
		"page":          page,
		"per_page":      perPage,
	})
}

func (h *Handlers) verificationSummary(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	summary, err := h.Verifications.Summary(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handlers) checkPrerequisites(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	docType := c.Query("document_type")
	if docType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_type is required"})
		return
	}
	ready, reason, err := h.Verifications.CheckPrerequisites(c.Request.Context(), userID, docType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": ready, "reason": reason})
}

func (h *Handlers) getVerification(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	record, err := h.Verifications.Get(c.Request.Context(), id, userID, auth.IsAdmin(c.Request.Context()))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verificationView(record))
}

func (h *Handlers) getVerificationResult(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.Verifications.GetResult(c.Request.Context(), id, userID, auth.IsAdmin(c.Request.Context()))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) cancelVerification(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Verifications.Cancel(c.Request.Context(), id, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (h *Handlers) suggestions(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, err := h.Matching.Suggestions(c.Request.Context(), userID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) compatibilityScore(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	candidateID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	score, err := h.Matching.ScoreBetween(c.Request.Context(), userID, candidateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// admirers returns who-likes-me. Unverified viewers only get the count;
// seeing the actual profiles is a verification perk.
func (h *Handlers) admirers(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	profiles, count, err := h.Matching.Admirers(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	summary, err := h.Verifications.Summary(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if summary.OverallStatus != "verified" {
		c.JSON(http.StatusOK, gin.H{"count": count, "profiles_hidden": true})
		return
	}

	views := make([]gin.H, 0, len(profiles))
	for i := range profiles {
		views = append(views, profileView(&profiles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "admirers": views})
}

func (h *Handlers) reviewQueue(c *gin.Context) {
	page, perPage := pagination(c)
	records, total, err := h.Verifications.ListReviewable(c.Request.Context(), page, perPage)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verifications": verificationViews(records),
		"total":         total,
		"page":          page,
		"per_page":      perPage,
	})
}

func (h *Handlers) approveVerification(c *gin.Context) {
	reviewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Overrides map[string]any `json:"overrides"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	record, err := h.Verifications.Approve(c.Request.Context(), id, reviewerID, body.Overrides)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verificationView(record))
}

func (h *Handlers) rejectVerification(c *gin.Context) {
	reviewerID, ok := h.currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	record, err := h.Verifications.Reject(c.Request.Context(), id, reviewerID, body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, verificationView(record))
}

func (h *Handlers) processVerification(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.Verifications.Process(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) getVerificationSettings(c *gin.Context) {
	thresholds := h.Settings.FaceMatchThresholds()
	c.JSON(http.StatusOK, gin.H{
		"auto_verification_enabled": h.Settings.AutoVerificationEnabled(),
		"auto_approve_threshold":    thresholds.Approve,
		"auto_reject_threshold":     thresholds.Reject,
	})
}

func (h *Handlers) updateVerificationSettings(c *gin.Context) {
	var body struct {
		AutoVerificationEnabled *bool    `json:"auto_verification_enabled"`
		AutoApproveThreshold    *float64 `json:"auto_approve_threshold"`
		AutoRejectThreshold     *float64 `json:"auto_reject_threshold"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if body.AutoApproveThreshold != nil || body.AutoRejectThreshold != nil {
		thresholds := h.Settings.FaceMatchThresholds()
		if body.AutoApproveThreshold != nil {
			thresholds.Approve = *body.AutoApproveThreshold
		}
		if body.AutoRejectThreshold != nil {
			thresholds.Reject = *body.AutoRejectThreshold
		}
		if err := h.Settings.SetFaceMatchThresholds(thresholds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if body.AutoVerificationEnabled != nil {
		h.Settings.SetAutoVerificationEnabled(*body.AutoVerificationEnabled)
	}
	h.getVerificationSettings(c)
}

func verificationView(v *repository.Verification) gin.H {
	return gin.H{
		"id":                v.ID,
		"user_id":           v.UserID,
		"document_type":     v.DocumentType,
		"document_country":  v.DocumentCountry,
		"status":            v.Status,
		"rejection_reason":  v.RejectionReason,
		"extracted_data":    v.ExtractedData,
		"method":            v.VerificationMethod,
		"submitted_at":      v.SubmittedAt,
		"verified_at":       v.VerifiedAt,
		"document_expires":  v.DocumentExpiryDate,
		"original_filename": v.OriginalFilename,
	}
}

func verificationViews(records []repository.Verification) []gin.H {
	views := make([]gin.H, 0, len(records))
	for i := range records {
		views = append(views, verificationView(&records[i]))
	}
	return views
}

func profileView(p *repository.Profile) gin.H {
	return gin.H{
		"id":                  p.ID,
		"user_id":             p.UserID,
		"first_name":          p.VerifiedFirstName,
		"last_initial":        p.VerifiedLastInitial,
		"nationality":         p.VerifiedNationality,
		"residence_country":   p.VerifiedResidenceCountry,
		"current_city":        p.CurrentCity,
		"ethnicity":           p.Ethnicity,
		"religious_practice":  p.ReligiousPractice,
		"height_cm":           p.HeightCm,
		"verified_marital":    p.VerifiedMaritalStatus,
		"verified_education":  p.VerifiedEducationLevel,
		"verification_status": p.User.VerificationStatus,
	}
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

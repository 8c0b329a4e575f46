package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/matchpoint/internal/auth"
	"github.com/example/matchpoint/internal/config"
	"github.com/example/matchpoint/internal/inference"
	"github.com/example/matchpoint/internal/matching"
	"github.com/example/matchpoint/internal/repository"
	"github.com/example/matchpoint/internal/selfie"
	"github.com/example/matchpoint/internal/verification"
)

const testJWTSecret = "test-secret"

// memoryRepo backs all three services in handler tests.
type memoryRepo struct {
	users         map[uuid.UUID]*repository.User
	profiles      map[uuid.UUID]*repository.Profile
	selfies       map[uuid.UUID]*repository.Selfie
	verifications map[uuid.UUID]*repository.Verification
	preferences   map[uuid.UUID]*repository.SearchPreference
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:         make(map[uuid.UUID]*repository.User),
		profiles:      make(map[uuid.UUID]*repository.Profile),
		selfies:       make(map[uuid.UUID]*repository.Selfie),
		verifications: make(map[uuid.UUID]*repository.Verification),
		preferences:   make(map[uuid.UUID]*repository.SearchPreference),
	}
}

func (r *memoryRepo) GetUser(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) GetProfileByUser(ctx context.Context, userID uuid.UUID) (*repository.Profile, error) {
	if p, ok := r.profiles[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) GetSearchPreference(ctx context.Context, userID uuid.UUID) (*repository.SearchPreference, error) {
	if p, ok := r.preferences[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) GetSelfieByUser(ctx context.Context, userID uuid.UUID) (*repository.Selfie, error) {
	if s, ok := r.selfies[userID]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) SaveSelfie(ctx context.Context, s *repository.Selfie) error {
	r.selfies[s.UserID] = s
	return nil
}

func (r *memoryRepo) DeleteSelfie(ctx context.Context, s *repository.Selfie) error {
	delete(r.selfies, s.UserID)
	return nil
}

func (r *memoryRepo) CreateVerification(ctx context.Context, v *repository.Verification) error {
	r.verifications[v.ID] = v
	return nil
}

func (r *memoryRepo) GetVerification(ctx context.Context, id uuid.UUID) (*repository.Verification, error) {
	if v, ok := r.verifications[id]; ok {
		return v, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) SaveVerification(ctx context.Context, v *repository.Verification) error {
	r.verifications[v.ID] = v
	return nil
}

func (r *memoryRepo) UpdateVerificationStatusIf(ctx context.Context, id uuid.UUID, allowed []string, target string) (bool, error) {
	v, ok := r.verifications[id]
	if !ok {
		return false, nil
	}
	for _, status := range allowed {
		if v.Status == status {
			v.Status = target
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ApplyVerificationOutcome(ctx context.Context, v *repository.Verification, profile *repository.Profile, user *repository.User) error {
	r.verifications[v.ID] = v
	if profile != nil {
		r.profiles[profile.UserID] = profile
	}
	if user != nil {
		r.users[user.ID] = user
	}
	return nil
}

func (r *memoryRepo) ListUserVerifications(ctx context.Context, userID uuid.UUID, status string, page, perPage int) ([]repository.Verification, int64, error) {
	var out []repository.Verification
	for _, v := range r.verifications {
		if v.UserID == userID && (status == "" || v.Status == status) {
			out = append(out, *v)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) ListReviewableVerifications(ctx context.Context, page, perPage int) ([]repository.Verification, int64, error) {
	var out []repository.Verification
	for _, v := range r.verifications {
		if v.Status == repository.StatusPending || v.Status == repository.StatusProcessing {
			out = append(out, *v)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) ListCandidateProfiles(ctx context.Context, seekingGender string, exclude []uuid.UUID) ([]repository.Profile, error) {
	return nil, nil
}

func (r *memoryRepo) SentInterestUserIDs(ctx context.Context, fromUserID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *memoryRepo) DeclinedByUserIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *memoryRepo) InterestSenderIDs(ctx context.Context, toUserID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *memoryRepo) ActiveMatchPartnerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *memoryRepo) ListPreferencesSeeking(ctx context.Context, viewerID uuid.UUID, gender string) ([]repository.PreferenceWithProfile, error) {
	var out []repository.PreferenceWithProfile
	for id, pref := range r.preferences {
		if id == viewerID {
			continue
		}
		if p, ok := r.profiles[id]; ok {
			out = append(out, repository.PreferenceWithProfile{Preference: *pref, Profile: *p})
		}
	}
	return out, nil
}

type memoryFiles struct{ saved map[string][]byte }

func (f *memoryFiles) Save(filename string, data []byte, keys ...string) (string, error) {
	path := "/uploads/" + strings.Join(append(keys, filename), "/")
	f.saved[path] = data
	return path, nil
}

func (f *memoryFiles) Exists(path string) bool          { _, ok := f.saved[path]; return ok }
func (f *memoryFiles) Read(path string) ([]byte, error) { return f.saved[path], nil }
func (f *memoryFiles) Delete(path string) error         { delete(f.saved, path); return nil }

type memoryCache struct{ values map[string]string }

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.values[key] = value.(string)
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

type nopEngine struct{}

func (nopEngine) Available(ctx context.Context) bool { return false }
func (nopEngine) ExtractText(ctx context.Context, imageData []byte) (string, []string, error) {
	return "", nil, inference.ErrUnavailable
}
func (nopEngine) DetectFaces(ctx context.Context, imageData []byte) (*inference.Detection, error) {
	return nil, inference.ErrUnavailable
}
func (nopEngine) RasterizePDF(ctx context.Context, pdfData []byte) ([]byte, error) {
	return nil, inference.ErrUnavailable
}

type testServer struct {
	router *gin.Engine
	repo   *memoryRepo
	userID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	settings.SetAutoVerificationEnabled(false)

	repo := newMemoryRepo()
	files := &memoryFiles{saved: make(map[string][]byte)}
	cache := &memoryCache{values: make(map[string]string)}
	logger := zap.NewNop()

	h := &Handlers{
		Selfies:       selfie.NewService(repo, files, nopEngine{}, logger),
		Verifications: verification.NewService(repo, files, nopEngine{}, cache, settings, logger),
		Matching:      matching.NewService(repo, logger),
		Settings:      settings,
		Logger:        logger,
	}

	router := gin.New()
	RegisterRoutes(router, h, auth.JWTMiddleware(testJWTSecret, ""))

	userID := uuid.New()
	repo.users[userID] = &repository.User{ID: userID, Status: "active", VerificationStatus: "unverified"}
	repo.profiles[userID] = &repository.Profile{ID: uuid.New(), UserID: userID, Gender: "female", SeekingGender: "male"}

	return &testServer{router: router, repo: repo, userID: userID}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func buildTestToken(t *testing.T, subject, role string) string {
	t.Helper()
	claims := auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func buildMultipartBody(t *testing.T, field, contentType string, payload []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/health", "", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/v1/verifications", "", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAdminRoutesNeedAdminRole(t *testing.T) {
	ts := newTestServer(t)
	userToken := buildTestToken(t, ts.userID.String(), "")

	resp := ts.do(t, http.MethodGet, "/api/v1/admin/settings/verification", userToken, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a plain user, got %d", resp.Code)
	}

	adminToken := buildTestToken(t, ts.userID.String(), auth.RoleAdmin)
	resp = ts.do(t, http.MethodGet, "/api/v1/admin/settings/verification", adminToken, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateSettingsValidatesThresholds(t *testing.T) {
	ts := newTestServer(t)
	adminToken := buildTestToken(t, ts.userID.String(), auth.RoleAdmin)

	body := bytes.NewBufferString(`{"auto_approve_threshold": 0.3, "auto_reject_threshold": 0.6}`)
	resp := ts.do(t, http.MethodPut, "/api/v1/admin/settings/verification", adminToken, body, "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted thresholds, got %d", resp.Code)
	}

	body = bytes.NewBufferString(`{"auto_approve_threshold": 0.8, "auto_reject_threshold": 0.2}`)
	resp = ts.do(t, http.MethodPut, "/api/v1/admin/settings/verification", adminToken, body, "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload["auto_approve_threshold"] != 0.8 {
		t.Fatalf("expected threshold persisted, got %v", payload)
	}
}

func TestUploadVerificationValidation(t *testing.T) {
	ts := newTestServer(t)
	token := buildTestToken(t, ts.userID.String(), "")

	// Missing document_type.
	body, contentType := buildMultipartBody(t, "document", "image/jpeg", []byte("img"), nil)
	resp := ts.do(t, http.MethodPost, "/api/v1/verifications", token, body, contentType)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without document_type, got %d", resp.Code)
	}

	// Unsupported document type.
	body, contentType = buildMultipartBody(t, "document", "image/jpeg", []byte("img"),
		map[string]string{"document_type": "library_card"})
	resp = ts.do(t, http.MethodPost, "/api/v1/verifications", token, body, contentType)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad type, got %d", resp.Code)
	}

	// Happy path.
	body, contentType = buildMultipartBody(t, "document", "image/jpeg", []byte("img"),
		map[string]string{"document_type": "passport", "document_country": "Uzbekistan"})
	resp = ts.do(t, http.MethodPost, "/api/v1/verifications", token, body, contentType)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUploadSelfieRejectsPDF(t *testing.T) {
	ts := newTestServer(t)
	token := buildTestToken(t, ts.userID.String(), "")

	body, contentType := buildMultipartBody(t, "photo", "application/pdf", []byte("pdf"), nil)
	resp := ts.do(t, http.MethodPost, "/api/v1/selfie", token, body, contentType)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a PDF selfie, got %d", resp.Code)
	}
}

func TestGetVerificationEnforcesOwnership(t *testing.T) {
	ts := newTestServer(t)
	otherID := uuid.New()
	v := &repository.Verification{ID: uuid.New(), UserID: otherID, Status: repository.StatusPending}
	ts.repo.verifications[v.ID] = v

	token := buildTestToken(t, ts.userID.String(), "")
	resp := ts.do(t, http.MethodGet, "/api/v1/verifications/"+v.ID.String(), token, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's verification, got %d", resp.Code)
	}

	adminToken := buildTestToken(t, ts.userID.String(), auth.RoleAdmin)
	resp = ts.do(t, http.MethodGet, "/api/v1/verifications/"+v.ID.String(), adminToken, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d", resp.Code)
	}
}

func TestCancelFinalizedVerificationConflicts(t *testing.T) {
	ts := newTestServer(t)
	v := &repository.Verification{ID: uuid.New(), UserID: ts.userID, Status: repository.StatusApproved}
	ts.repo.verifications[v.ID] = v

	token := buildTestToken(t, ts.userID.String(), "")
	resp := ts.do(t, http.MethodPost, "/api/v1/verifications/"+v.ID.String()+"/cancel", token, nil, "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a finalized verification, got %d", resp.Code)
	}
}

func TestRejectNeedsSubstantialReason(t *testing.T) {
	ts := newTestServer(t)
	v := &repository.Verification{ID: uuid.New(), UserID: ts.userID, Status: repository.StatusPending}
	ts.repo.verifications[v.ID] = v

	adminToken := buildTestToken(t, ts.userID.String(), auth.RoleAdmin)
	body := bytes.NewBufferString(`{"reason": "bad"}`)
	resp := ts.do(t, http.MethodPost, "/api/v1/admin/verifications/"+v.ID.String()+"/reject", adminToken, body, "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a short reason, got %d", resp.Code)
	}
}

func TestAdmirersHidesProfilesForUnverified(t *testing.T) {
	ts := newTestServer(t)

	admirerID := uuid.New()
	ts.repo.users[admirerID] = &repository.User{ID: admirerID, Status: "active"}
	ts.repo.profiles[admirerID] = &repository.Profile{ID: uuid.New(), UserID: admirerID, Gender: "male", SeekingGender: "female"}
	ts.repo.preferences[admirerID] = &repository.SearchPreference{MinAge: 18, MaxAge: 99}

	birth := time.Date(1994, 3, 15, 0, 0, 0, 0, time.UTC)
	ts.repo.profiles[ts.userID].VerifiedBirthDate = &birth

	token := buildTestToken(t, ts.userID.String(), "")
	resp := ts.do(t, http.MethodGet, "/api/v1/matches/admirers", token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if payload["profiles_hidden"] != true {
		t.Fatalf("expected profiles hidden for an unverified viewer, got %v", payload)
	}
	if payload["count"] != float64(1) {
		t.Fatalf("expected admirer count 1, got %v", payload["count"])
	}
}

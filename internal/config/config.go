package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Thresholds holds the auto-verification decision policy. A passport is
// auto-approved when the face similarity is at or above Approve, auto-rejected
// at or below Reject, and routed to manual review in between.
type Thresholds struct {
	Approve float64
	Reject  float64
}

const (
	defaultApproveThreshold = 0.65
	defaultRejectThreshold  = 0.35
)

// Settings carries process configuration. The auto-verification knobs are
// guarded by a mutex so the admin API can tune them at runtime.
type Settings struct {
	DatabaseDSN   string
	RedisAddr     string
	InferenceAddr string
	JWTSecret     string
	JWTAudience   string
	UploadDir     string
	ListenAddr    string
	OCRLanguages  []string
	WorkerSlots   int64

	mu          sync.RWMutex
	autoEnabled bool
	thresholds  Thresholds
}

// Load reads settings from the environment, falling back to development
// defaults.
func Load() (*Settings, error) {
	s := &Settings{
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=matchpoint port=5432 sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		InferenceAddr: getEnv("INFERENCE_ADDR", "inference:50051"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:   os.Getenv("JWT_AUDIENCE"),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		OCRLanguages:  []string{"en", "ru", "uz"},
		WorkerSlots:   4,

		autoEnabled: getEnvBool("ENABLE_AUTO_VERIFICATION", true),
		thresholds: Thresholds{
			Approve: defaultApproveThreshold,
			Reject:  defaultRejectThreshold,
		},
	}

	if v := os.Getenv("FACE_MATCH_AUTO_APPROVE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FACE_MATCH_AUTO_APPROVE_THRESHOLD: %w", err)
		}
		s.thresholds.Approve = f
	}
	if v := os.Getenv("FACE_MATCH_AUTO_REJECT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FACE_MATCH_AUTO_REJECT_THRESHOLD: %w", err)
		}
		s.thresholds.Reject = f
	}
	if v := os.Getenv("VERIFICATION_WORKERS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid VERIFICATION_WORKERS: %q", v)
		}
		s.WorkerSlots = n
	}
	if err := validateThresholds(s.thresholds); err != nil {
		return nil, err
	}
	return s, nil
}

// AutoVerificationEnabled reports whether automated document processing is on.
func (s *Settings) AutoVerificationEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoEnabled
}

// SetAutoVerificationEnabled flips the global automated-processing switch.
func (s *Settings) SetAutoVerificationEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoEnabled = enabled
}

// FaceMatchThresholds returns the current decision thresholds.
func (s *Settings) FaceMatchThresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetFaceMatchThresholds updates the decision thresholds at runtime.
func (s *Settings) SetFaceMatchThresholds(t Thresholds) error {
	if err := validateThresholds(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = t
	return nil
}

func validateThresholds(t Thresholds) error {
	if t.Approve < 0 || t.Approve > 1 || t.Reject < 0 || t.Reject > 1 {
		return fmt.Errorf("thresholds must be within [0,1], got approve=%v reject=%v", t.Approve, t.Reject)
	}
	if t.Reject >= t.Approve {
		return fmt.Errorf("reject threshold %v must be below approve threshold %v", t.Reject, t.Approve)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

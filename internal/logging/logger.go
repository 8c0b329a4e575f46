package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds the production structured logger used across services.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with an operation name and the id of
// the entity being worked on (verification id, user id, ...).
func WithOperation(logger *zap.Logger, operation, entityID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if entityID != "" {
		fields = append(fields, zap.String("entity_id", entityID))
	}
	return logger.With(fields...)
}

package ports

import "context"

// Logger is the structured logging contract used across the engine, adapters and API.
// Implementations live in internal/adapters/logger (stdlib and zerolog backed).
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a message at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err together with a message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

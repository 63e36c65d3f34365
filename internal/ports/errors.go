package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these so callers can use errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Price Provider Errors
	ErrProviderUnavailable  = errors.New("price provider is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the price provider")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("price provider authentication failed (check API keys)")
	ErrNoPriceData          = errors.New("no price data returned")
	ErrMarketClosed         = errors.New("market session is closed")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)

// IsPersistenceFailure reports whether err originates from the store.
// These are the only failures the engine propagates instead of reporting as an outcome.
func IsPersistenceFailure(err error) bool {
	return errors.Is(err, ErrDBConnection) ||
		errors.Is(err, ErrQueryFailed) ||
		errors.Is(err, ErrUpdateFailed) ||
		errors.Is(err, ErrDuplicateEntry)
}

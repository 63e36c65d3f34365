package sqlite

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"paperTrader/internal/ports"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var migrateMu sync.Mutex

func (r *Repository) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&gooseLogger{ctx: ctx, logger: r.logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db, "migrations"); err != nil {
		return fmt.Errorf("%w: goose up: %w", ports.ErrUpdateFailed, err)
	}
	return nil
}

// gooseLogger routes goose output through ports.Logger.
type gooseLogger struct {
	ctx    context.Context
	logger ports.Logger
}

func (g *gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Debug(g.ctx, fmt.Sprintf(format, v...), map[string]interface{}{"component": "goose"})
}

// Fatalf logs instead of exiting; goose.Up still returns the underlying error.
func (g *gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Error(g.ctx, fmt.Errorf(format, v...), "goose migration failure")
}

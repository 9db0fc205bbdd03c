package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

// RunStore handles run history persistence.
type RunStore interface {
	SaveAnalysis(ctx context.Context, a *models.HeavyAnalysis) error
	GetRun(ctx context.Context, id string) (*models.HeavyAnalysis, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for state persistence.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore = (*DB)(nil)
	_ Migrator   = (*DB)(nil)
	_ RunStore   = (*DB)(nil)
)

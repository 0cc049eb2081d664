package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/davidrenteria/boltbridge-backend/pkg/logger"
)

type snapshotRetirer interface {
	DeactivateExpiredSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotCleanupJobParams configure the expired snapshot sweeper.
type SnapshotCleanupJobParams struct {
	Logger *logger.Logger
	Carts  snapshotRetirer
}

// NewSnapshotCleanupJob builds the cron job that deactivates checkout
// snapshots whose expiry has passed without a payment arriving.
func NewSnapshotCleanupJob(params SnapshotCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("carts repository required")
	}
	return &snapshotCleanupJob{
		logg:  params.Logger,
		carts: params.Carts,
		now:   time.Now,
	}, nil
}

type snapshotCleanupJob struct {
	logg  *logger.Logger
	carts snapshotRetirer
	now   func() time.Time
}

func (j *snapshotCleanupJob) Name() string { return "snapshot-cleanup" }

func (j *snapshotCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	retired, err := j.carts.DeactivateExpiredSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("snapshot cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"rows_affected": retired,
	})
	j.logg.Info(logCtx, "snapshot cleanup complete")
	return nil
}

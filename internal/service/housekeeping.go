package service

import (
	"context"

	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"github.com/Payphone-Digital/portfolio-service/pkg/housekeeping"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
)

type HousekeepingConfig struct {
	RepairBatch int
	FullScan    bool
	ScanBatch   int
}

// HousekeepingTasks returns the periodic maintenance run by the background
// runner: the expired-code sweep, the repair queue drain, and the optional
// full relationship scan.
func HousekeepingTasks(ledger *OTPLedger, coordinator *RelationshipCoordinator, cfg HousekeepingConfig) []housekeeping.Task {
	tasks := []housekeeping.Task{
		{
			Name: "sweep-expired-codes",
			Run: func(ctx context.Context) error {
				ctx = ctxutil.WithFunction(ctx, "housekeeping", "SweepExpiredCodes")
				n, err := ledger.SweepExpired(ctx)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.InfoWithContext(ctx, "Expired codes removed").Int64("count", n).Log()
				}
				return nil
			},
		},
		{
			Name: "drain-relationship-repairs",
			Run: func(ctx context.Context) error {
				ctx = ctxutil.WithFunction(ctx, "housekeeping", "DrainRepairs")
				n, err := coordinator.DrainRepairs(ctx, cfg.RepairBatch)
				if n > 0 {
					logger.InfoWithContext(ctx, "Relationship repairs applied").Int("count", n).Log()
				}
				return err
			},
		},
	}

	if cfg.FullScan {
		tasks = append(tasks, housekeeping.Task{
			Name: "reconcile-relationships",
			Run: func(ctx context.Context) error {
				ctx = ctxutil.WithFunction(ctx, "housekeeping", "ReconcileAll")
				n, err := coordinator.ReconcileAll(ctx, cfg.ScanBatch)
				logger.InfoWithContext(ctx, "Relationship scan finished").Int("fixed", n).Err(err).Log()
				return err
			},
		})
	}
	return tasks
}

// Package retention schedules the purge of soft-deleted contracts.
// Deleted contracts are kept for a grace period so operators can
// recover them; once the period lapses the next scheduled run removes
// the contract plus its collaborators and signatures.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"dealdesk/pkg/config"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/store"
)

// defaultPeriod is the grace window applied when none is configured.
const defaultPeriod = 30 * 24 * time.Hour

var storedCfg *config.Config

// SetConfig stores the effective config so admin triggers and tests
// can invoke retention runs on-demand.
func SetConfig(cfg *config.Config) { storedCfg = cfg }

// RunImmediate triggers a single retention run using the stored config.
func RunImmediate() error {
	if storedCfg == nil {
		return fmt.Errorf("no config registered for retention run")
	}
	return runOnce(storedCfg)
}

// Start starts the retention scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, statePath string) (context.CancelFunc, error) {
	if !cfg.Retention.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	if statePath != "" {
		if err := os.MkdirAll(statePath, 0o700); err != nil {
			logger.Error("retention_path_create_failed", "path", statePath, "error", err)
			return nil, err
		}
	}

	cronExpr := cfg.Retention.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Retention.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Retention.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", cfg.Retention.Period)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, statePath, cronExpr)
	logger.Info("retention_scheduler_started")
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron
// expression with gronx and sleeps until then.
func runScheduler(ctx context.Context, cfg *config.Config, statePath, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runAndRecord(cfg, statePath)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runAndRecord(cfg, statePath)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

func runAndRecord(cfg *config.Config, statePath string) {
	if err := runOnce(cfg); err != nil {
		logger.Error("retention_run_error", "error", err)
		return
	}
	if statePath != "" {
		marker := filepath.Join(statePath, "last_run")
		_ = os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)), 0o600)
	}
}

// runOnce purges soft-deleted contracts whose grace period has lapsed.
func runOnce(cfg *config.Config) error {
	period := defaultPeriod
	if p := cfg.Retention.Period; p != "" {
		d, err := time.ParseDuration(p)
		if err != nil {
			return fmt.Errorf("invalid retention period %q: %w", p, err)
		}
		period = d
	}
	cutoff := time.Now().UTC().Add(-period)
	purged, err := store.PurgeDeletedContracts(cutoff)
	if err != nil {
		return err
	}
	logger.Info("retention_run_complete", "purged", purged, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}

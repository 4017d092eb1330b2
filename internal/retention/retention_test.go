package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealdesk/pkg/config"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

func TestRunImmediatePurgesExpired(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.Period = "24h"
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	mk := func() *models.Contract {
		c := &models.Contract{
			ID:        utils.GenContractID(),
			Title:     "expired",
			Type:      "producer",
			Status:    models.ContractDraft,
			CreatedBy: "alice",
			Data:      map[string]interface{}{},
			CreatedTS: time.Now().UTC().UnixNano(),
		}
		if err := store.CreateContract(c); err != nil {
			t.Fatalf("CreateContract: %v", err)
		}
		return c
	}

	expired := mk()
	recent := mk()
	live := mk()

	for _, c := range []*models.Contract{expired, recent} {
		if err := store.SoftDeleteContract(c.ID); err != nil {
			t.Fatalf("SoftDeleteContract: %v", err)
		}
	}
	// push the first deletion past the retention period
	c, err := store.GetContract(expired.ID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	c.DeletedTS = time.Now().Add(-48 * time.Hour).UTC().UnixNano()
	if err := store.SaveContract(c); err != nil {
		t.Fatalf("SaveContract: %v", err)
	}

	if err := RunImmediate(); err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}

	if _, err := store.GetContract(expired.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expired contract should be purged; got %v", err)
	}
	if _, err := store.GetContract(recent.ID); err != nil {
		t.Fatalf("recently deleted contract should survive: %v", err)
	}
	if _, err := store.GetContract(live.ID); err != nil {
		t.Fatalf("live contract should survive: %v", err)
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	cfg := &config.Config{}
	cfg.Retention.Enabled = true
	cfg.Retention.Cron = "not a cron"
	if _, err := Start(context.Background(), cfg, t.TempDir()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

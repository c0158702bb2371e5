package aggregator

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/postgres"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:         envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:         port,
		Database:     envOrDefault("TEST_POSTGRES_DB", "fakenews_test"),
		User:         envOrDefault("TEST_POSTGRES_USER", "fakenews"),
		Password:     envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:      "disable",
		MaxOpenConns: 2,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	store := NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DB.ExecContext(ctx, `TRUNCATE `+table); err != nil {
		t.Fatal(err)
	}

	agg := analytics.NewAggregator()
	e := analytics.NewEvent(analytics.EventPredict, "xgboost")
	e.Label = "FAKE"
	e.PFake = 0.9
	agg.Record(e)
	if err := store.SaveSnapshot(ctx, agg.Stats()); err != nil {
		t.Fatal(err)
	}
	agg.Record(e)
	if err := store.SaveSnapshot(ctx, agg.Stats()); err != nil {
		t.Fatal(err)
	}

	latest, err := store.LatestSnapshot(ctx)
	if err != nil || latest == nil {
		t.Fatalf("LatestSnapshot = %v, %v", latest, err)
	}
	if latest.TotalPredictions != 2 || latest.ByModel["xgboost"].Fake != 2 {
		t.Errorf("latest = %+v", latest)
	}
	all, err := store.ListSnapshots(ctx, 10)
	if err != nil || len(all) != 2 || all[1].TotalPredictions != 1 {
		t.Errorf("ListSnapshots = %+v, %v", all, err)
	}
}

package integration_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	alertapp "solarwatch/internal/alerts/application"
	alertpostgres "solarwatch/internal/alerts/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestAlertLifecycle_Postgres(t *testing.T) {
	db := openDB(t)
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()
	cleanupAlerts(ctx, db)

	repo := alertpostgres.NewAlertRepository(db)
	store, err := alertapp.NewWatchedStore(repo, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	tracker, err := alertapp.NewTracker(store, alertapp.WithIDFactory(func() string { return "it-alert-1" }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	if err := tracker.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, v := range []float64{55, 48, 45, 52} {
		tracker.Process(ctx, base.Add(time.Duration(i)*time.Second), v)
	}

	alert, err := repo.GetByID(ctx, "it-alert-1")
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if alert.IsActive {
		t.Error("alert should be closed")
	}
	if alert.MinVoltage != 45 {
		t.Errorf("min_voltage = %v, want 45", alert.MinVoltage)
	}
	if alert.AvgVoltage != 46.5 {
		t.Errorf("avg_voltage = %v, want 46.5", alert.AvgVoltage)
	}
	if alert.DurationSeconds != 2 {
		t.Errorf("duration_seconds = %d, want 2", alert.DurationSeconds)
	}

	if active, err := repo.FindActive(ctx); err != nil || active != nil {
		t.Errorf("FindActive = %v, %v, want nil, nil", active, err)
	}
}

func TestAlertAdoptionAcrossRestart_Postgres(t *testing.T) {
	db := openDB(t)
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()
	cleanupAlerts(ctx, db)

	repo := alertpostgres.NewAlertRepository(db)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := alertapp.NewTracker(repo, alertapp.WithIDFactory(func() string { return "it-restart-1" }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	first.Process(ctx, base, 42)

	// Simulated restart: a fresh tracker adopts the open alert.
	second, err := alertapp.NewTracker(repo, alertapp.WithIDFactory(func() string { return "it-restart-2" }))
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	second.Process(ctx, base.Add(time.Minute), 40)
	second.Process(ctx, base.Add(2*time.Minute), 60)

	rows, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single continued alert, got %d", len(rows))
	}
	alert := rows[0]
	if alert.ID != "it-restart-1" {
		t.Errorf("id = %s, want the adopted alert", alert.ID)
	}
	if alert.MinVoltage != 40 {
		t.Errorf("min_voltage = %v, want 40", alert.MinVoltage)
	}
	if alert.IsActive {
		t.Error("alert should be closed after the normal sample")
	}
}

func cleanupAlerts(ctx context.Context, db *sql.DB) {
	_, _ = db.ExecContext(ctx, "DELETE FROM voltage_alerts")
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func applyMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_voltage_alerts.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}

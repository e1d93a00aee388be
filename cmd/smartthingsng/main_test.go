package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/infrastructure/database"
	"github.com/DSorlov/smartthingsng/internal/installation"
)

func testRepository(t *testing.T) installation.Repository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE installations (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			installed_app_id TEXT NOT NULL UNIQUE,
			location_id TEXT NOT NULL,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expires_at TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return installation.NewSQLiteRepository(db)
}

func TestRotateTokensPersistsThroughStore(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	inst := &installation.Installation{
		ID:             "inst-001",
		AppID:          "app-aaa",
		InstalledAppID: "iapp-111",
		LocationID:     "loc-home",
		AccessToken:    "at-stale",
		RefreshToken:   "rt-stored",
	}
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var exchanged string
	refresh := func(_ context.Context, _ *smartthings.OAuthConfig, refreshToken string) (*smartthings.TokenResponse, error) {
		exchanged = refreshToken
		return &smartthings.TokenResponse{
			AccessToken:  "at-rotated",
			RefreshToken: "rt-rotated",
			ExpiresIn:    86400,
		}, nil
	}

	store := installation.NewTokenStore(repo, "iapp-111")
	resp, err := rotateTokens(ctx, store, &smartthings.OAuthConfig{}, refresh)
	if err != nil {
		t.Fatalf("rotateTokens: %v", err)
	}

	if exchanged != "rt-stored" {
		t.Errorf("exchanged refresh token: got %q, want %q", exchanged, "rt-stored")
	}
	if resp.AccessToken != "at-rotated" {
		t.Errorf("access token: got %q, want %q", resp.AccessToken, "at-rotated")
	}

	persisted, err := repo.GetByInstalledAppID(ctx, "iapp-111")
	if err != nil {
		t.Fatalf("GetByInstalledAppID: %v", err)
	}
	if persisted.AccessToken != "at-rotated" || persisted.RefreshToken != "rt-rotated" {
		t.Errorf("persisted tokens: got %q/%q, want rotated pair",
			persisted.AccessToken, persisted.RefreshToken)
	}
	if persisted.TokenExpiresAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("token expiry not derived from expires_in: %v", persisted.TokenExpiresAt)
	}
}

func TestRotateTokensWithoutStoredPair(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	inst := &installation.Installation{
		ID:             "inst-002",
		AppID:          "app-aaa",
		InstalledAppID: "iapp-222",
		LocationID:     "loc-home",
	}
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create: %v", err)
	}

	refresh := func(context.Context, *smartthings.OAuthConfig, string) (*smartthings.TokenResponse, error) {
		t.Fatal("refresh must not be called without stored tokens")
		return nil, nil
	}

	store := installation.NewTokenStore(repo, "iapp-222")
	_, err := rotateTokens(ctx, store, &smartthings.OAuthConfig{}, refresh)
	if !errors.Is(err, installation.ErrNoTokens) {
		t.Errorf("expected ErrNoTokens, got %v", err)
	}
}

func TestRotateTokensExchangeFailureKeepsStoredPair(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	inst := &installation.Installation{
		ID:             "inst-003",
		AppID:          "app-aaa",
		InstalledAppID: "iapp-333",
		LocationID:     "loc-home",
		AccessToken:    "at-stored",
		RefreshToken:   "rt-stored",
	}
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create: %v", err)
	}

	refresh := func(context.Context, *smartthings.OAuthConfig, string) (*smartthings.TokenResponse, error) {
		return nil, fmt.Errorf("token endpoint unavailable")
	}

	store := installation.NewTokenStore(repo, "iapp-333")
	if _, err := rotateTokens(ctx, store, &smartthings.OAuthConfig{}, refresh); err == nil {
		t.Fatal("expected error from failed exchange")
	}

	persisted, err := repo.GetByInstalledAppID(ctx, "iapp-333")
	if err != nil {
		t.Fatalf("GetByInstalledAppID: %v", err)
	}
	if persisted.RefreshToken != "rt-stored" {
		t.Errorf("stored refresh token clobbered: %q", persisted.RefreshToken)
	}
}

// TestMigrateSubcommand walks the schema through up, status and down using
// the migrations embedded by the blank migrations import.
func TestMigrateSubcommand(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "smartthingsng.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	var out bytes.Buffer
	if err := applyMigrateAction(ctx, db, "up", &out); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	var count int
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='installations'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("installations table not created by migrate up")
	}

	out.Reset()
	if err := applyMigrateAction(ctx, db, "status", &out); err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	if !strings.Contains(out.String(), "applied") {
		t.Errorf("status output missing applied migrations: %q", out.String())
	}

	if err := applyMigrateAction(ctx, db, "down", &out); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='installations'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	if count != 0 {
		t.Error("installations table not dropped by migrate down")
	}

	if err := applyMigrateAction(ctx, db, "sideways", &out); err == nil {
		t.Error("expected error for unknown action")
	}
}

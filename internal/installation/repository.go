package installation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for installation persistence operations.
type Repository interface {
	Create(ctx context.Context, inst *Installation) error
	Get(ctx context.Context, id string) (*Installation, error)
	GetByInstalledAppID(ctx context.Context, installedAppID string) (*Installation, error)
	List(ctx context.Context) ([]Installation, error)
	UpdateTokens(ctx context.Context, installedAppID, accessToken, refreshToken string, expiresAt time.Time) error
	Delete(ctx context.Context, installedAppID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed installation repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new installation record.
func (r *SQLiteRepository) Create(ctx context.Context, inst *Installation) error {
	const query = `INSERT INTO installations
		(id, app_id, installed_app_id, location_id, access_token, refresh_token, token_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		inst.ID, inst.AppID, inst.InstalledAppID, inst.LocationID,
		inst.AccessToken, inst.RefreshToken, nullTime(inst.TokenExpiresAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: installed app %s", ErrAlreadyExists, inst.InstalledAppID)
		}
		return fmt.Errorf("inserting installation %s: %w", inst.InstalledAppID, err)
	}
	return nil
}

// Get returns a single installation by internal ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Installation, error) {
	const query = selectColumns + ` WHERE id = ?`
	return scanInstallation(r.db.QueryRowContext(ctx, query, id))
}

// GetByInstalledAppID returns the installation owning the given installed app.
func (r *SQLiteRepository) GetByInstalledAppID(ctx context.Context, installedAppID string) (*Installation, error) {
	const query = selectColumns + ` WHERE installed_app_id = ?`
	return scanInstallation(r.db.QueryRowContext(ctx, query, installedAppID))
}

// List returns all installation records ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Installation, error) {
	const query = selectColumns + ` ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying installations: %w", err)
	}
	defer rows.Close()

	var installations []Installation
	for rows.Next() {
		inst, err := scanInstallationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning installation row: %w", err)
		}
		installations = append(installations, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installation rows: %w", err)
	}
	return installations, nil
}

// UpdateTokens replaces the stored token pair for an installation.
// SmartThings rotates the refresh token on every use, so both tokens
// are always written together.
func (r *SQLiteRepository) UpdateTokens(ctx context.Context, installedAppID, accessToken, refreshToken string, expiresAt time.Time) error {
	const query = `UPDATE installations
		SET access_token = ?, refresh_token = ?, token_expires_at = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE installed_app_id = ?`
	result, err := r.db.ExecContext(ctx, query,
		accessToken, refreshToken, nullTime(expiresAt), installedAppID)
	if err != nil {
		return fmt.Errorf("updating tokens for %s: %w", installedAppID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return fmt.Errorf("%w: installed app %s", ErrNotFound, installedAppID)
	}
	return nil
}

// Delete removes an installation record. Used when the cloud reports the
// installation gone (401/403 during setup) or on UNINSTALL lifecycle events.
func (r *SQLiteRepository) Delete(ctx context.Context, installedAppID string) error {
	const query = `DELETE FROM installations WHERE installed_app_id = ?`
	result, err := r.db.ExecContext(ctx, query, installedAppID)
	if err != nil {
		return fmt.Errorf("deleting installation %s: %w", installedAppID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return fmt.Errorf("%w: installed app %s", ErrNotFound, installedAppID)
	}
	return nil
}

const selectColumns = `SELECT id, app_id, installed_app_id, location_id,
	access_token, refresh_token, token_expires_at, created_at, updated_at
	FROM installations`

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanInstallation scans a single row (for QueryRow).
func scanInstallation(row *sql.Row) (*Installation, error) {
	inst, err := scanInstallationRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return inst, nil
}

// scanInstallationRow scans an installation from any scanner.
func scanInstallationRow(row rowScanner) (*Installation, error) {
	var inst Installation
	var expiresAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&inst.ID, &inst.AppID, &inst.InstalledAppID, &inst.LocationID,
		&inst.AccessToken, &inst.RefreshToken, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning installation: %w", err)
	}

	if expiresAt.Valid {
		inst.TokenExpiresAt = parseTime(expiresAt.String)
	}
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return &inst, nil
}

// nullTime converts a time to sql.NullString for nullable timestamp columns.
func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// parseTime parses the timestamp formats SQLite produces.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Try the SQLite default format without timezone.
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
)

// PostgresStore implements AlertStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres-based alert store from a DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &PostgresStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		target_price DOUBLE PRECISION,
		condition TEXT,
		percentage_change DOUBLE PRECISION,
		percentage_condition TEXT,
		base_price DOUBLE PRECISION,
		conditions TEXT,
		condition_operator TEXT,
		recurring TEXT NOT NULL,
		notes TEXT,
		triggered INTEGER DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		last_checked TIMESTAMPTZ,
		triggered_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS watchlist (
		symbol TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL,
		target_price DOUBLE PRECISION DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts(symbol);
	CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAlert saves an alert to the database.
func (s *PostgresStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	conditions, err := marshalConditions(alert.Conditions)
	if err != nil {
		return apperrors.NewStoreError("save", alert.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			asset_type = EXCLUDED.asset_type,
			alert_type = EXCLUDED.alert_type,
			target_price = EXCLUDED.target_price,
			condition = EXCLUDED.condition,
			percentage_change = EXCLUDED.percentage_change,
			percentage_condition = EXCLUDED.percentage_condition,
			base_price = EXCLUDED.base_price,
			conditions = EXCLUDED.conditions,
			condition_operator = EXCLUDED.condition_operator,
			recurring = EXCLUDED.recurring,
			notes = EXCLUDED.notes,
			triggered = EXCLUDED.triggered,
			created_at = EXCLUDED.created_at,
			last_checked = EXCLUDED.last_checked,
			triggered_at = EXCLUDED.triggered_at
	`, alert.ID, alert.Symbol, alert.AssetType, alert.Type,
		alert.TargetPrice, alert.Condition,
		alert.PercentageChange, alert.PercentCondition, alert.BasePrice,
		conditions, alert.Operator,
		alert.Recurring, alert.Notes, boolToInt(alert.Triggered),
		alert.CreatedAt, alert.LastChecked, alert.TriggeredAt)
	if err != nil {
		return apperrors.NewStoreError("save", alert.ID, err)
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id)
	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrAlertNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", id, err)
	}
	return alert, nil
}

// ListBySymbol retrieves all alerts for a symbol.
func (s *PostgresStore) ListBySymbol(ctx context.Context, symbol string) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE symbol = $1 ORDER BY created_at ASC`, symbol)
}

// ListActive retrieves all active (non-triggered) alerts.
func (s *PostgresStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE triggered = 0 ORDER BY created_at ASC`)
}

// ListDue retrieves active alerts whose recurrence policy permits evaluation at now.
func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]models.Alert, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return dueAlerts(active, now), nil
}

// UpdateLastChecked records an evaluation attempt for an active alert.
func (s *PostgresStore) UpdateLastChecked(ctx context.Context, id string, t time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET last_checked = $1 WHERE id = $2 AND triggered = 0
	`, t, id)
	if err != nil {
		return apperrors.NewStoreError("update_last_checked", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// TriggerAlert marks an alert as triggered in a single guarded statement.
func (s *PostgresStore) TriggerAlert(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET triggered = 1, triggered_at = $1 WHERE id = $2 AND triggered = 0
	`, at, id)
	if err != nil {
		return apperrors.NewStoreError("trigger", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		var triggered int
		err := s.db.QueryRowContext(ctx, `SELECT triggered FROM alerts WHERE id = $1`, id).Scan(&triggered)
		if err == sql.ErrNoRows {
			return apperrors.ErrAlertNotFound
		}
		if err != nil {
			return apperrors.NewStoreError("trigger", id, err)
		}
		return apperrors.ErrAlertTriggered
	}
	return nil
}

// ResetAlert returns an alert to the active state.
func (s *PostgresStore) ResetAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET triggered = 0, triggered_at = NULL, last_checked = NULL WHERE id = $1
	`, id)
	if err != nil {
		return apperrors.NewStoreError("reset", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// DeleteAlert removes an alert.
func (s *PostgresStore) DeleteAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewStoreError("delete", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// AddWatch adds a symbol to the watchlist.
func (s *PostgresStore) AddWatch(ctx context.Context, entry models.WatchEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchlist (symbol, asset_type, target_price, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			asset_type = EXCLUDED.asset_type,
			target_price = EXCLUDED.target_price
	`, entry.Symbol, entry.AssetType, entry.TargetPrice, entry.CreatedAt)
	if err != nil {
		return apperrors.NewStoreError("add_watch", "", err)
	}
	return nil
}

// RemoveWatch removes a symbol from the watchlist.
func (s *PostgresStore) RemoveWatch(ctx context.Context, symbol string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = $1`, symbol)
	if err != nil {
		return apperrors.NewStoreError("remove_watch", "", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrSymbolNotFound
	}
	return nil
}

// ListWatches retrieves all watchlist entries.
func (s *PostgresStore) ListWatches(ctx context.Context) ([]models.WatchEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, asset_type, target_price, created_at FROM watchlist ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, apperrors.NewStoreError("list_watches", "", err)
	}
	defer rows.Close()

	var entries []models.WatchEntry
	for rows.Next() {
		var e models.WatchEntry
		if err := rows.Scan(&e.Symbol, &e.AssetType, &e.TargetPrice, &e.CreatedAt); err != nil {
			return nil, apperrors.NewStoreError("list_watches", "", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetWatchTarget updates the target price of a watched symbol.
func (s *PostgresStore) SetWatchTarget(ctx context.Context, symbol string, target float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE watchlist SET target_price = $1 WHERE symbol = $2
	`, target, symbol)
	if err != nil {
		return apperrors.NewStoreError("set_watch_target", "", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrSymbolNotFound
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("query", "", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan", "", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

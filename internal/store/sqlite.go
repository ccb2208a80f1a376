package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/models"
)

// SQLiteStore implements AlertStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based alert store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Alerts table
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		asset_type TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		target_price REAL,
		condition TEXT,
		percentage_change REAL,
		percentage_condition TEXT,
		base_price REAL,
		conditions TEXT,
		condition_operator TEXT,
		recurring TEXT NOT NULL,
		notes TEXT,
		triggered INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		last_checked DATETIME,
		triggered_at DATETIME
	);

	-- Watchlist table
	CREATE TABLE IF NOT EXISTS watchlist (
		symbol TEXT PRIMARY KEY,
		asset_type TEXT NOT NULL,
		target_price REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts(symbol);
	CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts(triggered);
	`

	_, err := s.db.Exec(schema)
	return err
}

const alertColumns = `id, symbol, asset_type, alert_type, target_price, condition,
	percentage_change, percentage_condition, base_price, conditions, condition_operator,
	recurring, notes, triggered, created_at, last_checked, triggered_at`

// SaveAlert saves an alert to the database.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	conditions, err := marshalConditions(alert.Conditions)
	if err != nil {
		return apperrors.NewStoreError("save", alert.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
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
func (s *SQLiteStore) ListBySymbol(ctx context.Context, symbol string) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE symbol = ? ORDER BY created_at ASC`, symbol)
}

// ListActive retrieves all active (non-triggered) alerts.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]models.Alert, error) {
	return s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE triggered = 0 ORDER BY created_at ASC`)
}

// ListDue retrieves active alerts whose recurrence policy permits evaluation at now.
func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time) ([]models.Alert, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return dueAlerts(active, now), nil
}

// UpdateLastChecked records an evaluation attempt for an active alert.
func (s *SQLiteStore) UpdateLastChecked(ctx context.Context, id string, t time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET last_checked = ? WHERE id = ? AND triggered = 0
	`, t, id)
	if err != nil {
		return apperrors.NewStoreError("update_last_checked", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// TriggerAlert marks an alert as triggered. The flag and timestamp are set in
// one statement guarded on triggered = 0, so the transition is atomic and a
// replay after a crashed tick is a no-op.
func (s *SQLiteStore) TriggerAlert(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET triggered = 1, triggered_at = ? WHERE id = ? AND triggered = 0
	`, at, id)
	if err != nil {
		return apperrors.NewStoreError("trigger", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return s.triggerMissReason(ctx, id)
	}
	return nil
}

// triggerMissReason distinguishes a missing alert from one already triggered.
func (s *SQLiteStore) triggerMissReason(ctx context.Context, id string) error {
	var triggered int
	err := s.db.QueryRowContext(ctx, `SELECT triggered FROM alerts WHERE id = ?`, id).Scan(&triggered)
	if err == sql.ErrNoRows {
		return apperrors.ErrAlertNotFound
	}
	if err != nil {
		return apperrors.NewStoreError("trigger", id, err)
	}
	return apperrors.ErrAlertTriggered
}

// ResetAlert returns an alert to the active state. This is a management
// action; the engine itself never resets.
func (s *SQLiteStore) ResetAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET triggered = 0, triggered_at = NULL, last_checked = NULL WHERE id = ?
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
func (s *SQLiteStore) DeleteAlert(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStoreError("delete", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrAlertNotFound
	}
	return nil
}

// AddWatch adds a symbol to the watchlist.
func (s *SQLiteStore) AddWatch(ctx context.Context, entry models.WatchEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO watchlist (symbol, asset_type, target_price, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Symbol, entry.AssetType, entry.TargetPrice, entry.CreatedAt)
	if err != nil {
		return apperrors.NewStoreError("add_watch", "", err)
	}
	return nil
}

// RemoveWatch removes a symbol from the watchlist.
func (s *SQLiteStore) RemoveWatch(ctx context.Context, symbol string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return apperrors.NewStoreError("remove_watch", "", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrSymbolNotFound
	}
	return nil
}

// ListWatches retrieves all watchlist entries.
func (s *SQLiteStore) ListWatches(ctx context.Context) ([]models.WatchEntry, error) {
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
func (s *SQLiteStore) SetWatchTarget(ctx context.Context, symbol string, target float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE watchlist SET target_price = ? WHERE symbol = ?
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
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*models.Alert, error) {
	var (
		a          models.Alert
		condition  sql.NullString
		pctCond    sql.NullString
		conditions sql.NullString
		operator   sql.NullString
		notes      sql.NullString
		target     sql.NullFloat64
		pctChange  sql.NullFloat64
		basePrice  sql.NullFloat64
		triggered  int
	)
	err := row.Scan(&a.ID, &a.Symbol, &a.AssetType, &a.Type,
		&target, &condition,
		&pctChange, &pctCond, &basePrice,
		&conditions, &operator,
		&a.Recurring, &notes, &triggered,
		&a.CreatedAt, &a.LastChecked, &a.TriggeredAt)
	if err != nil {
		return nil, err
	}

	a.TargetPrice = target.Float64
	a.Condition = models.Comparator(condition.String)
	a.PercentageChange = pctChange.Float64
	a.PercentCondition = models.PercentCondition(pctCond.String)
	a.BasePrice = basePrice.Float64
	a.Operator = models.Operator(operator.String)
	a.Notes = notes.String
	a.Triggered = triggered == 1

	if conditions.Valid && conditions.String != "" {
		if err := json.Unmarshal([]byte(conditions.String), &a.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions: %w", err)
		}
	}
	return &a, nil
}

func marshalConditions(conditions []models.Condition) (string, error) {
	if len(conditions) == 0 {
		return "", nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

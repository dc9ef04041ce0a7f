package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const taskColumns = `id, user_id, description, due, remind_at, duration, status, reminded, event_id`

func (s *sqliteStore) CreateTask(ctx context.Context, userID int64, d TaskDraft) (Task, error) {
	status := d.Status
	if status == "" {
		status = StatusInbox
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(user_id, description, due, remind_at, duration, status, reminded)
		 VALUES(?,?,?,?,?,?,0)`,
		userID, d.Description, nullUnix(d.Due), nullInt(d.RemindAt), nullInt(d.Duration), string(status),
	)
	if err != nil {
		return Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, err
	}
	return s.TaskByID(ctx, id)
}

func (s *sqliteStore) TaskByID(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *sqliteStore) TasksByUser(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) SetEventID(ctx context.Context, id int64, eventID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET event_id = ? WHERE id = ?`, eventID, id)
	return err
}

func (s *sqliteStore) MarkReminded(ctx context.Context, id int64) error {
	// Monotonic: never resets, and a row deleted mid-poll is a no-op.
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET reminded = 1 WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) DueForReminder(ctx context.Context, now time.Time) ([]Task, error) {
	// Half-open window: due - remindAt <= now < due. Once now passes due
	// the task is permanently excluded.
	ts := now.UTC().Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE due IS NOT NULL AND remind_at IS NOT NULL AND reminded = 0
		   AND due - remind_at*60 <= ? AND ? < due`, ts, ts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const userColumns = `id, telegram_id, name, timezone, access_token, refresh_token, token_expiry`

func (s *sqliteStore) GetOrCreateUser(ctx context.Context, telegramID int64, name string) (User, error) {
	// Upsert keeps the stored name fresh without racing concurrent intake.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(telegram_id, name) VALUES(?,?)
		 ON CONFLICT(telegram_id) DO UPDATE SET name = CASE WHEN excluded.name != '' THEN excluded.name ELSE users.name END`,
		telegramID, name,
	)
	if err != nil {
		return User{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	return scanUser(row)
}

func (s *sqliteStore) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *sqliteStore) SetTimezone(ctx context.Context, userID int64, tz string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET timezone = ? WHERE id = ?`, tz, userID)
	return err
}

func (s *sqliteStore) SetCredentials(ctx context.Context, userID int64, c Credentials) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET access_token = ?, refresh_token = ?, token_expiry = ? WHERE id = ?`,
		c.AccessToken, c.RefreshToken, c.Expiry.UTC().Unix(), userID)
	return err
}

func (s *sqliteStore) ClearCredentials(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET access_token = NULL, refresh_token = NULL, token_expiry = NULL WHERE id = ?`,
		userID)
	return err
}

// ---- row scanning ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var (
		t        Task
		due      sql.NullInt64
		remindAt sql.NullInt64
		duration sql.NullInt64
		status   string
		reminded int64
		eventID  sql.NullString
	)
	err := r.Scan(&t.ID, &t.UserID, &t.Description, &due, &remindAt, &duration, &status, &reminded, &eventID)
	if err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Reminded = reminded != 0
	if due.Valid {
		ts := time.Unix(due.Int64, 0).UTC()
		t.Due = &ts
	}
	if remindAt.Valid {
		v := int(remindAt.Int64)
		t.RemindAt = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		t.Duration = &v
	}
	if eventID.Valid {
		t.EventID = &eventID.String
	}
	return t, nil
}

func scanUser(r rowScanner) (User, error) {
	var (
		u       User
		access  sql.NullString
		refresh sql.NullString
		expiry  sql.NullInt64
	)
	err := r.Scan(&u.ID, &u.TelegramID, &u.Name, &u.Timezone, &access, &refresh, &expiry)
	if err != nil {
		return User{}, err
	}
	if access.Valid {
		u.AccessToken = &access.String
	}
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	if expiry.Valid {
		ts := time.Unix(expiry.Int64, 0).UTC()
		u.TokenExpiry = &ts
	}
	return u, nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

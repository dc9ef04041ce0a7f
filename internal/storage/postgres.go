package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadrozzy/Assistant-AI/pkg/logx"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    telegram_id   BIGINT NOT NULL UNIQUE,
    name          TEXT   NOT NULL DEFAULT '',
    timezone      TEXT   NOT NULL DEFAULT '+03:00',
    access_token  TEXT,
    refresh_token TEXT,
    token_expiry  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tasks (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    description TEXT   NOT NULL,
    due         TIMESTAMPTZ,
    remind_at   INT,
    duration    INT,
    status      TEXT   NOT NULL DEFAULT 'inbox',
    reminded    BOOLEAN NOT NULL DEFAULT FALSE,
    event_id    TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_due  ON tasks(due) WHERE due IS NOT NULL;
`

type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	st := &pgStore{pool: pool, log: log}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *pgStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *pgStore) CreateTask(ctx context.Context, userID int64, d TaskDraft) (Task, error) {
	status := d.Status
	if status == "" {
		status = StatusInbox
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks(user_id, description, due, remind_at, duration, status)
		 VALUES($1,$2,$3,$4,$5,$6) RETURNING id`,
		userID, d.Description, d.Due, d.RemindAt, d.Duration, string(status),
	).Scan(&id)
	if err != nil {
		return Task{}, err
	}
	return s.TaskByID(ctx, id)
}

func (s *pgStore) TaskByID(ctx context.Context, id int64) (Task, error) {
	t, err := s.scanOneTask(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *pgStore) scanOneTask(ctx context.Context, query string, args ...any) (Task, error) {
	var (
		t      Task
		status string
	)
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&t.ID, &t.UserID, &t.Description, &t.Due, &t.RemindAt, &t.Duration, &status, &t.Reminded, &t.EventID)
	if err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	normalizeTaskTimes(&t)
	return t, nil
}

func (s *pgStore) TasksByUser(ctx context.Context, userID int64) ([]Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *pgStore) DeleteTask(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (s *pgStore) SetEventID(ctx context.Context, id int64, eventID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tasks SET event_id = $1 WHERE id = $2`, eventID, id)
	return err
}

func (s *pgStore) MarkReminded(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE tasks SET reminded = TRUE WHERE id = $1`, id)
	return err
}

func (s *pgStore) DueForReminder(ctx context.Context, now time.Time) ([]Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE due IS NOT NULL AND remind_at IS NOT NULL AND NOT reminded
		   AND due - make_interval(mins => remind_at) <= $1 AND $1 < due`, now.UTC())
}

func (s *pgStore) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var (
			t      Task
			status string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Due, &t.RemindAt, &t.Duration, &status, &t.Reminded, &t.EventID); err != nil {
			return nil, err
		}
		t.Status = Status(status)
		normalizeTaskTimes(&t)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgStore) GetOrCreateUser(ctx context.Context, telegramID int64, name string) (User, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users(telegram_id, name) VALUES($1,$2)
		 ON CONFLICT(telegram_id) DO UPDATE SET name = CASE WHEN EXCLUDED.name != '' THEN EXCLUDED.name ELSE users.name END`,
		telegramID, name)
	if err != nil {
		return User{}, err
	}
	return s.scanOneUser(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
}

func (s *pgStore) UserByID(ctx context.Context, id int64) (User, error) {
	u, err := s.scanOneUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *pgStore) scanOneUser(ctx context.Context, query string, args ...any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.TelegramID, &u.Name, &u.Timezone, &u.AccessToken, &u.RefreshToken, &u.TokenExpiry)
	if err != nil {
		return User{}, err
	}
	if u.TokenExpiry != nil {
		ts := u.TokenExpiry.UTC()
		u.TokenExpiry = &ts
	}
	return u, nil
}

func (s *pgStore) SetTimezone(ctx context.Context, userID int64, tz string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET timezone = $1 WHERE id = $2`, tz, userID)
	return err
}

func (s *pgStore) SetCredentials(ctx context.Context, userID int64, c Credentials) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET access_token = $1, refresh_token = $2, token_expiry = $3 WHERE id = $4`,
		c.AccessToken, c.RefreshToken, c.Expiry.UTC(), userID)
	return err
}

func (s *pgStore) ClearCredentials(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET access_token = NULL, refresh_token = NULL, token_expiry = NULL WHERE id = $1`,
		userID)
	return err
}

// normalizeTaskTimes pins nullable timestamps to UTC so callers can compare
// instants without caring which driver produced them.
func normalizeTaskTimes(t *Task) {
	if t.Due != nil {
		ts := t.Due.UTC()
		t.Due = &ts
	}
}

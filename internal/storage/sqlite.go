//go:build sqlite
// +build sqlite

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

	"punchd/internal/punch"
	logx "punchd/pkg/logx"
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

func (s *sqliteStore) AppendOutcome(ctx context.Context, o punch.Outcome) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	var executed any
	if o.ExecutedTime != nil {
		executed = o.ExecutedTime.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes(id, status, scheduled_time, executed_time, offset_seconds, response, error, attempts, reason)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		o.ID, string(o.Status), o.ScheduledTime.Format(time.RFC3339Nano), executed,
		o.OffsetSeconds, nullStr(o.Response), nullStr(o.Error), o.Attempts, nullStr(o.Reason),
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, n int) ([]punch.Outcome, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, scheduled_time, executed_time, offset_seconds, response, error, attempts, reason
		 FROM outcomes ORDER BY scheduled_time DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []punch.Outcome
	for rows.Next() {
		var (
			o                       punch.Outcome
			status, scheduled       string
			executed                sql.NullString
			response, errMsg, reason sql.NullString
		)
		if err := rows.Scan(&o.ID, &status, &scheduled, &executed, &o.OffsetSeconds,
			&response, &errMsg, &o.Attempts, &reason); err != nil {
			return out, err
		}
		o.Status = punch.Status(status)
		if t, err := time.Parse(time.RFC3339Nano, scheduled); err == nil {
			o.ScheduledTime = t
		}
		if executed.Valid {
			if t, err := time.Parse(time.RFC3339Nano, executed.String); err == nil {
				o.ExecutedTime = &t
			}
		}
		o.Response = response.String
		o.Error = errMsg.String
		o.Reason = reason.String
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

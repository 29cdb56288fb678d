package index

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func isSQLiteBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		if se.Code() == sqlite3.SQLITE_BUSY {
			return true
		}
	}
	return false
}

func retryDelay(attempt int) time.Duration {
	delay := time.Duration(attempt+1) * 40 * time.Millisecond
	if delay > 300*time.Millisecond {
		delay = 300 * time.Millisecond
	}
	return delay
}

// retryBusy runs fn again while SQLite reports SQLITE_BUSY, until the
// store's lock timeout elapses or ctx is done.
func (s *Store) retryBusy(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isSQLiteBusy(err) {
			slog.Debug("sql done", "op", op, "duration_ms", time.Since(start).Milliseconds(), "attempts", attempt+1, "err", err)
			return err
		}
		if s.lockTimeout <= 0 {
			slog.Debug("sql done", "op", op, "attempts", attempt+1, "err", err, "reason", "no-timeout")
			return err
		}
		if ctx.Err() != nil {
			slog.Debug("sql done", "op", op, "attempts", attempt+1, "err", ctx.Err(), "reason", "context")
			return ctx.Err()
		}
		if time.Since(start) >= s.lockTimeout {
			slog.Debug("sql done", "op", op, "attempts", attempt+1, "err", err, "reason", "timeout")
			return err
		}
		slog.Debug("sql busy", "op", op, "attempt", attempt+1)
		time.Sleep(retryDelay(attempt))
	}
}

func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := s.retryBusy(ctx, "exec", func() error {
		var err error
		res, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

func (s *Store) queryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.retryBusy(ctx, "query", func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, query, args...)
		return err
	})
	return rows, err
}

func (s *Store) rollbackTx(tx *sql.Tx, name string) {
	if tx == nil {
		return
	}
	err := tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return
	}
	slog.Warn("sql tx rollback failed", "op", name, "err", err)
}

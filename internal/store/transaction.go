package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/audio2srt/internal/platform/logger"
)

// TxFn runs inside a transaction opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction opens a transaction with opts (nil for driver defaults),
// runs fn, and commits when fn returns nil. Any error from fn, or a panic,
// rolls the transaction back. A failed rollback is joined to fn's error so
// errors.Is still matches the original.
func RunInTransaction(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		p := recover()
		if p == nil && err == nil {
			return
		}
		rbErr := tx.Rollback()
		switch {
		case rbErr == nil:
			log.Debug("transaction rolled back", slog.Any("cause", causeOf(err, p)))
		case errors.Is(rbErr, sql.ErrTxDone):
			// a failed commit already ended the transaction
		default:
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.Any("cause", causeOf(err, p)))
			if p == nil {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			}
		}
		if p != nil {
			// ALLOW-PANIC: re-raise after rollback
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func causeOf(err error, p any) any {
	if p != nil {
		return p
	}
	return err.Error()
}

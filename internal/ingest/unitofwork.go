package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"media-ingest/internal/logging"
)

// unitOfWork scopes one item's placement: a store transaction plus a list of
// compensating actions for filesystem effects performed inside the scope.
// Rollback undoes in reverse order; a commit failure also compensates, so a
// moved file never outlives a discarded row.
type unitOfWork struct {
	tx            *sql.Tx
	compensations []func() error
	done          bool
}

func begin(ctx context.Context, mut MetadataMutation) (*unitOfWork, error) {
	tx, err := mut.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx}, nil
}

// onRollback registers an action undoing a side effect that has already
// happened. Actions run last-registered first.
func (u *unitOfWork) onRollback(undo func() error) {
	u.compensations = append(u.compensations, undo)
}

func (u *unitOfWork) commit() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		u.compensate()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (u *unitOfWork) rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback()
	u.compensate()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (u *unitOfWork) compensate() {
	for i := len(u.compensations) - 1; i >= 0; i-- {
		if err := u.compensations[i](); err != nil {
			logging.Error("compensating action failed: %v", err)
		}
	}
}

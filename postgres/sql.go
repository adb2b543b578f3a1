// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// serializationFailure is the SQLSTATE PostgreSQL reports when a
// transaction conflicts with a concurrent one and should be retried.
const serializationFailure = "40001"

// withTx calls some function with a database/sql transaction object.
// If f panics or returns a non-nil error, rolls the transaction back;
// otherwise commits it before returning.  Returns the error value from
// f, or some other error related to transaction management.
func withTx(ctx context.Context, db *sql.DB, readOnly bool, f func(*sql.Tx) error) (err error) {
	var (
		tx   *sql.Tx
		done bool
	)

	// If we have a failure, roll back; and if that rollback fails
	// and we don't yet have an error, set the error
	defer func() {
		if tx != nil && !done {
			err2 := tx.Rollback()
			if err == nil {
				err = err2
			}
		}
	}()

	// Run in a loop, repeating the work on serialization errors
	for {
		tx, err = db.BeginTx(ctx, nil)
		if err != nil {
			return
		}

		level := "REPEATABLE READ"
		if readOnly {
			level += " READ ONLY"
		}
		_, err = tx.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL "+level)
		if err != nil {
			return
		}

		err = f(tx)

		// If that succeeded, commit
		if err == nil {
			err = tx.Commit()
			done = true
		}

		// If we specifically got a serialization error,
		// retry
		if pqerr, ok := err.(*pq.Error); ok && pqerr.Code == serializationFailure {
			err = tx.Rollback()
			if err == sql.ErrTxDone {
				// Already rolled back; not an error
				err = nil
			} else if err != nil {
				return
			}
			tx = nil
			done = false
			continue
		}

		break
	}
	return
}

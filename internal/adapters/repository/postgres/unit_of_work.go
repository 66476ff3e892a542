package postgres

import (
	"context"
	"database/sql"
)

// UnitOfWork runs session row operations inside one transaction
type UnitOfWork struct {
	db *sql.DB
	tx *sql.Tx
}

// NewUnitOfWork creates a UnitOfWork on db
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Sessions returns the session rows repository bound to the current transaction, if any
func (u *UnitOfWork) Sessions() *SessionRows {
	if u.tx != nil {
		return NewSessionRows(u.tx)
	}
	return NewSessionRows(u.db)
}

// Execute runs fn in a transaction, committing only if fn returns nil
func (u *UnitOfWork) Execute(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	uowWithTx := &UnitOfWork{db: u.db, tx: tx}

	if err := fn(uowWithTx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

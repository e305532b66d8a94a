// Package sql implements sessions over database/sql drivers.
package sql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
)

func NewSession(ctx context.Context, db *sql.DB) *Session {
	return &Session{
		QuerySignals: session.NewQuerySignals(),
		ctx:          ctx,
		id:           uuid.New(),
		db:           db,
		exec:         db,
	}
}

// Session runs statements on a database, a transaction or a savepoint of
// it. Nested Atomic calls use savepoints.
type Session struct {
	*session.QuerySignals
	ctx   context.Context
	id    uuid.UUID
	db    *sql.DB
	tx    *sql.Tx
	exec  executor
	depth int
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Connection() session.DbConnection {
	return &connection{session: s}
}

func (s *Session) Atomic(callback session.SessionCallback) error {
	if s.tx != nil {
		return s.savepoint(callback)
	}
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}
	txSession := s.nested(tx)
	err = callback(txSession)
	if err != nil {
		if txErr := tx.Rollback(); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(); txErr != nil {
		return errors.Wrap(txErr, "failed to commit transaction")
	}
	return nil
}

func (s *Session) savepoint(callback session.SessionCallback) error {
	name := fmt.Sprintf("sp_%d", s.depth)
	if _, err := s.tx.ExecContext(s.ctx, "SAVEPOINT "+name); err != nil {
		return errors.Wrap(err, "unable to start savepoint")
	}
	err := callback(s.nested(s.tx))
	if err != nil {
		if _, spErr := s.tx.ExecContext(s.ctx, "ROLLBACK TO SAVEPOINT "+name); spErr != nil {
			return multierror.Append(err, spErr)
		}
		return err
	}
	if _, spErr := s.tx.ExecContext(s.ctx, "RELEASE SAVEPOINT "+name); spErr != nil {
		return errors.Wrap(spErr, "failed to release savepoint")
	}
	return nil
}

func (s *Session) nested(tx *sql.Tx) *Session {
	return &Session{
		QuerySignals: s.QuerySignals,
		ctx:          s.ctx,
		id:           s.id,
		db:           s.db,
		tx:           tx,
		exec:         tx,
		depth:        s.depth + 1,
	}
}

// executor is implemented by both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// connection implements session.DbConnection
type connection struct {
	session *Session
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	var result sql.Result
	err := c.session.Observe(c.session, c, query, args, func() (err error) {
		result, err = c.session.exec.ExecContext(c.session.ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	var rows *sql.Rows
	err := c.session.Observe(c.session, c, query, args, func() (err error) {
		rows, err = c.session.exec.QueryContext(c.session.ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	var row *sql.Row
	_ = c.session.Observe(c.session, c, query, args, func() error {
		row = c.session.exec.QueryRowContext(c.session.ctx, query, args...)
		return row.Err()
	})
	return row
}

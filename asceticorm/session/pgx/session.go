// Package pgx implements sessions over a pgx connection pool.
package pgx

import (
	"context"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session/result"
)

// Session represents a database session without transaction
type Session struct {
	*session.QuerySignals
	ctx  context.Context
	id   uuid.UUID
	conn *pgxpool.Conn
}

func NewSession(ctx context.Context, conn *pgxpool.Conn) *Session {
	return &Session{
		QuerySignals: session.NewQuerySignals(),
		ctx:          ctx,
		id:           uuid.New(),
		conn:         conn,
	}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Connection() session.DbConnection {
	return &connection{session: s, signals: s.QuerySignals, exec: s.conn}
}

func (s *Session) Atomic(callback session.SessionCallback) error {
	tx, err := s.conn.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}
	return runInTx(s.ctx, tx, newTransactionSession(s, tx), callback, "failed to commit transaction")
}

// TransactionSession represents a session inside a transaction or a
// savepoint of it. pgx starts a savepoint when Begin is called on a Tx.
type TransactionSession struct {
	*session.QuerySignals
	ctx    context.Context
	id     uuid.UUID
	tx     pgx.Tx
	parent session.Session
}

func newTransactionSession(parent *Session, tx pgx.Tx) *TransactionSession {
	return &TransactionSession{
		QuerySignals: parent.QuerySignals,
		ctx:          parent.ctx,
		id:           parent.id,
		tx:           tx,
		parent:       parent,
	}
}

func (s *TransactionSession) Context() context.Context {
	return s.ctx
}

func (s *TransactionSession) ID() uuid.UUID {
	return s.id
}

func (s *TransactionSession) Parent() session.Session {
	return s.parent
}

func (s *TransactionSession) Connection() session.DbConnection {
	return &connection{session: s, signals: s.QuerySignals, exec: s.tx}
}

func (s *TransactionSession) Atomic(callback session.SessionCallback) error {
	nestedTx, err := s.tx.Begin(s.ctx)
	if err != nil {
		return errors.Wrap(err, "unable to start savepoint")
	}
	nested := &TransactionSession{
		QuerySignals: s.QuerySignals,
		ctx:          s.ctx,
		id:           s.id,
		tx:           nestedTx,
		parent:       s,
	}
	return runInTx(s.ctx, nestedTx, nested, callback, "failed to release savepoint")
}

func runInTx(ctx context.Context, tx pgx.Tx, sess session.Session, callback session.SessionCallback, commitMsg string) error {
	err := callback(sess)
	if err != nil {
		if txErr := tx.Rollback(ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(ctx); txErr != nil {
		return errors.Wrap(txErr, commitMsg)
	}
	return nil
}

// executor interface for both *pgxpool.Conn and pgx.Tx
type executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// connection implements session.DbConnection
type connection struct {
	session session.DbSession
	signals *session.QuerySignals
	exec    executor
}

func (c *connection) observe(query string, args []any, run func() error) error {
	return c.signals.Observe(c.session, c, query, args, run)
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	var tag pgconn.CommandTag
	err := c.observe(query, args, func() (err error) {
		tag, err = c.exec.Exec(c.session.Context(), query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result.NewResult(0, tag.RowsAffected()), nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	var rows pgx.Rows
	err := c.observe(query, args, func() (err error) {
		rows, err = c.exec.Query(c.session.Context(), query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{rows}, nil
}

// QueryRow defers the statement until Scan, pgx reports errors there.
func (c *connection) QueryRow(query string, args ...any) session.Row {
	return &rowAdapter{conn: c, query: query, args: args}
}

// rowsAdapter adapts pgx.Rows, whose Close reports nothing, to session.Rows.
type rowsAdapter struct {
	pgx.Rows
}

func (r *rowsAdapter) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}

type rowAdapter struct {
	conn  *connection
	query string
	args  []any
	err   error
}

func (r *rowAdapter) Err() error {
	return r.err
}

func (r *rowAdapter) Scan(dest ...any) error {
	r.err = r.conn.observe(r.query, r.args, func() error {
		return r.conn.exec.QueryRow(r.conn.session.Context(), r.query, r.args...).Scan(dest...)
	})
	return r.err
}

package testutils

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session/result"
)

// NewDbSessionStub returns a session whose queries all read rows.
func NewDbSessionStub(rows *RowsStub) *DbSessionStub {
	stub := &DbSessionStub{
		QuerySignals: session.NewQuerySignals(),
		Rows:         rows,
		id:           uuid.New(),
	}
	stub.conn = &connectionStub{session: stub}
	return stub
}

type DbSessionStub struct {
	*session.QuerySignals
	Rows         *RowsStub
	QueryErr     error
	ActualQuery  string
	ActualParams []any
	Queries      int
	id           uuid.UUID
	conn         *connectionStub
}

func (s *DbSessionStub) Context() context.Context {
	return context.Background()
}

func (s *DbSessionStub) ID() uuid.UUID {
	return s.id
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return callback(s)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return s.conn
}

type connectionStub struct {
	session *DbSessionStub
}

func (c *connectionStub) record(query string, args []any, run func() error) error {
	c.session.ActualQuery = query
	c.session.ActualParams = args
	c.session.Queries++
	return c.session.Observe(c.session, c, query, args, run)
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	err := c.record(query, args, func() error { return c.session.QueryErr })
	if err != nil {
		return nil, err
	}
	return result.NewResult(0, 0), nil
}

func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	err := c.record(query, args, func() error { return c.session.QueryErr })
	if err != nil {
		return nil, err
	}
	c.session.Rows.idx = -1
	c.session.Rows.Closed = false
	return c.session.Rows, nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	err := c.record(query, args, func() error { return c.session.QueryErr })
	c.session.Rows.idx = -1
	if err == nil && !c.session.Rows.Next() {
		err = sql.ErrNoRows
	}
	return &RowStub{rows: c.session.Rows, err: err}
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows    [][]any
	idx     int
	Closed  bool
	NextErr error
}

func (r *RowsStub) Close() error {
	r.Closed = true
	return nil
}

func (r *RowsStub) Err() error {
	return r.NextErr
}

func (r *RowsStub) Next() bool {
	r.idx++
	if r.NextErr != nil {
		return false
	}
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return errors.New("destination count mismatch")
	}
	for i, val := range row {
		switch d := dest[i].(type) {
		case *any:
			*d = val
		case *int:
			*d = toInt(val)
		case *int64:
			*d = toInt64(val)
		case *string:
			*d = val.(string)
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = toFloat64(val)
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func toInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	default:
		panic("cannot convert to int")
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		panic("cannot convert to int64")
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		panic("cannot convert to float64")
	}
}

type RowStub struct {
	rows *RowsStub
	err  error
}

func (r *RowStub) Err() error {
	return r.err
}

func (r *RowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Scan(dest...)
}

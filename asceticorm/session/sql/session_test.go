package sql

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, s session.DbSession) int {
	t.Helper()
	var n int
	require.NoError(t, s.Connection().QueryRow(`SELECT count(*) FROM notes`).Scan(&n))
	return n
}

func insert(s session.Session, body string) error {
	_, err := s.(session.DbSession).Connection().Exec(`INSERT INTO notes (body) VALUES (?)`, body)
	return err
}

func TestAtomicCommitsAndRollsBack(t *testing.T) {
	s := NewSession(context.Background(), openMemory(t))

	require.NoError(t, s.Atomic(func(tx session.Session) error {
		return insert(tx, "kept")
	}))
	assert.Equal(t, 1, count(t, s))

	failure := errors.New("abort")
	err := s.Atomic(func(tx session.Session) error {
		if err := insert(tx, "dropped"); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 1, count(t, s))
}

func TestNestedAtomicUsesSavepoints(t *testing.T) {
	s := NewSession(context.Background(), openMemory(t))
	failure := errors.New("abort")

	err := s.Atomic(func(tx session.Session) error {
		if err := insert(tx, "outer"); err != nil {
			return err
		}
		nestedErr := tx.Atomic(func(sp session.Session) error {
			if err := insert(sp, "inner"); err != nil {
				return err
			}
			return failure
		})
		assert.ErrorIs(t, nestedErr, failure)
		return tx.Atomic(func(sp session.Session) error {
			return insert(sp, "second")
		})
	})
	require.NoError(t, err)

	rows, err := s.Connection().Query(`SELECT body FROM notes ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var bodies []string
	for rows.Next() {
		var body string
		require.NoError(t, rows.Scan(&body))
		bodies = append(bodies, body)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"outer", "second"}, bodies)
}

func TestQuerySignals(t *testing.T) {
	s := NewSession(context.Background(), openMemory(t))
	var started []string
	var ended []session.QueryEndedEvent
	s.OnQueryStarted().Attach(func(e session.QueryStartedEvent) {
		started = append(started, e.Query)
	}, "started")
	s.OnQueryEnded().Attach(func(e session.QueryEndedEvent) {
		ended = append(ended, e)
	}, "ended")

	require.NoError(t, s.Atomic(func(tx session.Session) error {
		return insert(tx, "a")
	}))
	_, err := s.Connection().Query(`SELECT nope FROM notes`)
	assert.Error(t, err)

	assert.Equal(t, []string{`INSERT INTO notes (body) VALUES (?)`, `SELECT nope FROM notes`}, started)
	require.Len(t, ended, 2)
	assert.Equal(t, []any{"a"}, ended[0].Params)
	assert.Equal(t, s.ID(), ended[0].Session.ID())
	assert.NoError(t, ended[0].Err)
	assert.Error(t, ended[1].Err)
}

func TestLogQueries(t *testing.T) {
	s := NewSession(context.Background(), openMemory(t))
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	d := session.LogQueries(s, logger)

	count(t, s)
	_, _ = s.Connection().Exec(`DELETE FROM missing`)
	d.Dispose()
	count(t, s)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, s.ID().String(), entries[0].Data["session"])
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
}

func TestSessionPool(t *testing.T) {
	pool := NewSessionPool(openMemory(t))
	var events []string
	pool.OnSessionStarted().Attach(func(session.SessionScopeStartedEvent) { events = append(events, "started") }, "s")
	pool.OnSessionEnded().Attach(func(session.SessionScopeEndedEvent) { events = append(events, "ended") }, "e")

	err := pool.Session(context.Background(), func(s session.Session) error {
		events = append(events, "callback")
		return insert(s, "x")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"started", "callback", "ended"}, events)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pool.Session(ctx, func(session.Session) error { return nil }), context.Canceled)
}

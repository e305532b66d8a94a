package main

import (
	"database/sql"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/execution"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	pgxsession "github.com/krew-solutions/ascetic-orm-go/asceticorm/session/pgx"
	sqlsession "github.com/krew-solutions/ascetic-orm-go/asceticorm/session/sql"
)

var errExecUnsupported = errors.New("exec runs on sqlite and postgresql only")

func getCmdExec(gs *globalState) *cobra.Command {
	var qf queryFlags
	execCmd := &cobra.Command{
		Use:   "exec <entity> [predicate]",
		Short: "Run a query and print its entities as JSON lines",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := gs.environment()
			if err != nil {
				return err
			}
			built, params, err := qf.build(env.model, args[0], args[1:])
			if err != nil {
				return err
			}
			pool, closePool, err := openPool(gs, env.provider.Name(), env.cfg.DSN.String)
			if err != nil {
				return err
			}
			defer closePool()

			executor := execution.NewQueryExecutor(env.compiler, execution.WithLogger(gs.logger))
			encoder := json.NewEncoder(gs.stdOut)
			return pool.Session(gs.ctx, func(s session.Session) error {
				dbSession := s.(session.DbSession)
				defer session.LogQueries(dbSession, gs.logger).Dispose()
				entities, err := executor.ToList(gs.ctx, dbSession, built, params)
				if err != nil {
					return err
				}
				for _, e := range entities {
					if err := encoder.Encode(e.Map()); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	qf.register(execCmd)
	return execCmd
}

func openPool(gs *globalState, provider, dsn string) (session.SessionPool, func(), error) {
	switch provider {
	case "sqlite":
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(1)
		return sqlsession.NewSessionPool(db), func() { db.Close() }, nil
	case "postgresql":
		pool, err := pgxpool.New(gs.ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		sessionPool := pgxsession.NewSessionPool(pool)
		return sessionPool, sessionPool.Close, nil
	}
	return nil, nil, errors.Wrap(errExecUnsupported, provider)
}

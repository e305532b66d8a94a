package testutils

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	pgxsession "github.com/krew-solutions/ascetic-orm-go/asceticorm/session/pgx"
)

// NewPgxSessionPool connects to the database named by the DB_* variables
// and pings it.
func NewPgxSessionPool(ctx context.Context) (*pgxsession.SessionPool, error) {
	var dbUsername string = getEnv("DB_USERNAME", "devel")
	var dbPassword string = getEnv("DB_PASSWORD", "devel")
	var dbHost string = getEnv("DB_HOST", "localhost")
	var dbPort string = getEnv("DB_PORT", "5432")
	var dbBasename string = getEnv("DB_DATABASE", "devel_orm")

	connString := "postgres://" + dbUsername + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbBasename

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pgxsession.NewSessionPool(pool), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

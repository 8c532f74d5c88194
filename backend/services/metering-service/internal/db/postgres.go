package db

import (
	"context"
	"database/sql"

	libdb "submeter/backend/libs/db"
)

// NewPostgres connects to Postgres and makes sure the settlement journal table exists.
func NewPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := libdb.NewPostgresDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := libdb.EnsureSettlementsSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

package db

import (
	"context"

	"github.com/go-pg/pg/v10"
)

// DB wraps the pg connection pool.
type DB struct {
	*pg.DB
}

func New(db *pg.DB) DB {
	return DB{DB: db}
}

// Ping tests the connection.
func (d DB) Ping(ctx context.Context) error {
	_, err := d.DB.ExecContext(ctx, "SELECT 1")
	return err
}

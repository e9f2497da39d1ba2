// Package schema holds the weft database schema.
package schema

import (
	"context"
	_ "embed"

	kpool "github.com/opst/weft/pkg/conn/db/postgres/pool"
)

//go:embed tables.sql
var tables string

// Apply creates all weft tables and indexes which do not exist yet.
//
// Every statement is guarded with "if not exists", so Apply is
// idempotent and runs at every startup.
func Apply(ctx context.Context, pool kpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, tables)
	return err
}

package database

import (
	"github.com/jmoiron/sqlx"
)

// Tx is an open transaction. It carries the same query surface as the
// pool plus row-level locking via ordinary SELECT ... FOR UPDATE
// statements issued through it. Lifetime is managed by DB.WithTx; a Tx
// must not outlive its closure.
type Tx struct {
	runner
	tx *sqlx.Tx
}

// Package dbtx lets gorm repositories run on a *sql.Tx opened by a service.
package dbtx

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Conn returns a session bound to ctx that executes on tx when tx is non-nil.
// gorm's default write transaction is skipped automatically because *sql.Tx
// cannot begin a nested transaction.
func Conn(ctx context.Context, db *gorm.DB, tx *sql.Tx) *gorm.DB {
	session := db.WithContext(ctx)
	if tx != nil {
		session.Statement.ConnPool = tx
	}
	return session
}

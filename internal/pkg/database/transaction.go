package database

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxFunc defines a transaction function
type TxFunc func(ctx context.Context, tx *gorm.DB) error

type txKey struct{}

// Transaction runs fn inside a transaction. Repositories called with the
// ctx passed to fn join the same transaction through Conn.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
			db.logger.WithContext(ctx).Debug("transaction rolled back", zap.Error(err))
			return err
		}
		return nil
	})
}

// Conn returns the transaction bound to ctx, or the plain connection.
func (db *DB) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.DB.WithContext(ctx)
}

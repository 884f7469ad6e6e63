package repository

import (
	"context"

	domainRepo "github.com/sangkips/installments-api/internal/domain/repository"
	"gorm.io/gorm"
)

type ctxKey string

// txKey is the context key under which the open *gorm.DB transaction travels
const txKey ctxKey = "gorm_tx"

type transactionManager struct {
	db *gorm.DB
}

// NewTransactionManager creates a transaction manager over db
func NewTransactionManager(db *gorm.DB) domainRepo.TransactionManager {
	return &transactionManager{db: db}
}

// WithinTransaction begins a transaction (or a savepoint when ctx already
// carries one), commits when fn returns nil and rolls back otherwise.
func (m *transactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return conn(ctx, m.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// conn returns the transaction carried by ctx, or db outside of one
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	domainRepo "github.com/sangkips/installments-api/internal/domain/repository"
	"gorm.io/gorm"
)

type paymentTransactionRepository struct {
	db *gorm.DB
}

// NewPaymentTransactionRepository creates a new payment transaction repository
func NewPaymentTransactionRepository(db *gorm.DB) domainRepo.PaymentTransactionRepository {
	return &paymentTransactionRepository{db: db}
}

func (r *paymentTransactionRepository) Create(ctx context.Context, transaction *entity.PaymentTransaction) error {
	return conn(ctx, r.db).Create(transaction).Error
}

func (r *paymentTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentTransaction, error) {
	var transaction entity.PaymentTransaction
	err := conn(ctx, r.db).First(&transaction, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &transaction, err
}

func (r *paymentTransactionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.TransactionStatus) error {
	return conn(ctx, r.db).Model(&entity.PaymentTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *paymentTransactionRepository) ListByInstallment(ctx context.Context, installmentID uuid.UUID) ([]entity.PaymentTransaction, error) {
	var transactions []entity.PaymentTransaction
	err := conn(ctx, r.db).
		Where("installment_id = ?", installmentID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *paymentTransactionRepository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]entity.PaymentTransaction, error) {
	var transactions []entity.PaymentTransaction
	err := conn(ctx, r.db).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *paymentTransactionRepository) CountCompletedAfter(ctx context.Context, transaction *entity.PaymentTransaction) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.PaymentTransaction{}).
		Where("installment_id = ? AND status = ? AND id <> ? AND created_at > ?",
			transaction.InstallmentID, enum.TransactionStatusCompleted, transaction.ID, transaction.CreatedAt).
		Count(&count).Error
	return count, err
}

func (r *paymentTransactionRepository) Purge(ctx context.Context) (int64, error) {
	result := conn(ctx, r.db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entity.PaymentTransaction{})
	return result.RowsAffected, result.Error
}

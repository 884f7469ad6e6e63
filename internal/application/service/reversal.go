package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"github.com/sangkips/installments-api/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RevertPayment undoes one payment transaction. The transaction is kept
// as cancelled; an installment that falls back to pending gets its
// original due date back and loses its notes and paid date. The schedule
// of the other installments is not recomputed.
func (s *InstallmentService) RevertPayment(ctx context.Context, installmentID, transactionID uuid.UUID) (*entity.Installment, error) {
	var reverted *entity.Installment
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, installmentID)
		if err != nil {
			return err
		}

		tx, err := s.transactionRepo.GetByID(ctx, transactionID)
		if err != nil {
			return apperror.WrapIO("load payment transaction", err)
		}
		if tx == nil {
			return apperror.NewNotFoundError("Payment transaction")
		}
		if tx.InstallmentID != inst.ID {
			return apperror.NewIntegrityError("payment transaction does not belong to this installment")
		}
		if tx.Status == enum.TransactionStatusCancelled {
			return apperror.NewIntegrityError("payment transaction is already cancelled")
		}

		newer, err := s.transactionRepo.CountCompletedAfter(ctx, tx)
		if err != nil {
			return apperror.WrapIO("count payment transactions", err)
		}
		if newer > 0 {
			logger.FromContext(ctx, s.log).Warn("reverting a payment that has newer payments on the same installment",
				zap.String("installment_id", inst.ID.String()),
				zap.String("transaction_id", tx.ID.String()),
				zap.Int64("newer_payments", newer),
			)
		}

		inst.PaidAmount = decimal.Max(decimal.Zero, inst.PaidAmount.Sub(tx.Amount))
		inst.Reconcile()
		if !inst.IsPaid() {
			inst.Notes = nil
			inst.DueDate = inst.OriginalDueDate
			inst.PaidDate = nil
		}
		if err := s.installmentRepo.Update(ctx, inst); err != nil {
			return apperror.WrapIO("update installment", err)
		}
		if err := s.transactionRepo.UpdateStatus(ctx, tx.ID, enum.TransactionStatusCancelled); err != nil {
			return apperror.WrapIO("cancel payment transaction", err)
		}
		if err := s.syncSaleStatus(ctx, inst.SaleID); err != nil {
			return err
		}

		reverted = inst
		return nil
	})
	if err != nil {
		return nil, apperror.WrapIO("revert payment", err)
	}

	logger.FromContext(ctx, s.log).Info("payment reverted",
		zap.String("installment_id", installmentID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.String("status", string(reverted.Status)),
	)
	fillDaysOverdue(reverted, s.today())
	return reverted, nil
}

package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/schedule"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"github.com/sangkips/installments-api/pkg/apperror"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	notePaidEarly       = "Pago adelantado"
	referenceMarkedPaid = "Marcado como pagado"
)

// RecordPaymentInput represents a payment against one installment
type RecordPaymentInput struct {
	InstallmentID uuid.UUID
	Amount        decimal.Decimal
	Method        string
	Reference     *string
	PaymentDate   string
}

// PaymentResult is the outcome of a payment. Rescheduled holds the first
// due date shift caused by the payment, if any.
type PaymentResult struct {
	Installment *entity.Installment        `json:"installment"`
	Transaction *entity.PaymentTransaction `json:"transaction,omitempty"`
	Rescheduled *schedule.Update           `json:"rescheduled,omitempty"`
}

// RecordPayment applies a full or partial payment. Overpayment is
// rejected without touching the ledger.
func (s *InstallmentService) RecordPayment(ctx context.Context, input *RecordPaymentInput) (*PaymentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, apperror.NewFieldError("amount", "amount must be greater than zero")
	}
	paymentDate, err := s.paymentDate(input.PaymentDate)
	if err != nil {
		return nil, err
	}
	method := strings.TrimSpace(input.Method)
	if method == "" {
		method = enum.PaymentMethodCash
	}

	result := &PaymentResult{}
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, input.InstallmentID)
		if err != nil {
			return err
		}

		remaining := inst.Remaining()
		if input.Amount.GreaterThan(remaining) {
			return apperror.NewFieldError("amount", "amount exceeds the remaining balance of "+remaining.StringFixed(2))
		}

		inst.PaidAmount = inst.PaidAmount.Add(input.Amount)
		inst.Reconcile()
		if inst.IsPaid() {
			inst.PaidDate = &paymentDate
		}
		if paidBefore(paymentDate, inst.DueDate) {
			note := notePaidEarly
			inst.Notes = &note
		}
		if err := s.installmentRepo.Update(ctx, inst); err != nil {
			return apperror.WrapIO("update installment", err)
		}

		tx := &entity.PaymentTransaction{
			SaleID:           inst.SaleID,
			InstallmentID:    inst.ID,
			Amount:           input.Amount,
			PaymentMethod:    method,
			PaymentReference: input.Reference,
			TransactionDate:  paymentDate,
			Status:           enum.TransactionStatusCompleted,
		}
		if err := s.transactionRepo.Create(ctx, tx); err != nil {
			return apperror.WrapIO("create payment transaction", err)
		}
		result.Transaction = tx

		return s.afterPayment(ctx, inst, result)
	})
	if err != nil {
		return nil, apperror.WrapIO("record payment", err)
	}

	logger.FromContext(ctx, s.log).Info("payment recorded",
		zap.String("installment_id", input.InstallmentID.String()),
		zap.String("amount", input.Amount.StringFixed(2)),
		zap.String("status", string(result.Installment.Status)),
	)
	return result, nil
}

// MarkAsPaid closes an installment regardless of its balance. Any
// remainder is recorded as a cash transaction.
func (s *InstallmentService) MarkAsPaid(ctx context.Context, id uuid.UUID, paymentDate string) (*PaymentResult, error) {
	date, err := s.paymentDate(paymentDate)
	if err != nil {
		return nil, err
	}

	result := &PaymentResult{}
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		remainder := inst.Remaining()
		if remainder.IsPositive() {
			reference := referenceMarkedPaid
			tx := &entity.PaymentTransaction{
				SaleID:           inst.SaleID,
				InstallmentID:    inst.ID,
				Amount:           remainder,
				PaymentMethod:    enum.PaymentMethodCash,
				PaymentReference: &reference,
				TransactionDate:  date,
				Status:           enum.TransactionStatusCompleted,
			}
			if err := s.transactionRepo.Create(ctx, tx); err != nil {
				return apperror.WrapIO("create payment transaction", err)
			}
			result.Transaction = tx
			inst.PaidAmount = inst.PaidAmount.Add(remainder)
		}

		inst.Reconcile()
		if inst.PaidDate == nil || remainder.IsPositive() {
			inst.PaidDate = &date
		}
		if err := s.installmentRepo.Update(ctx, inst); err != nil {
			return apperror.WrapIO("update installment", err)
		}

		return s.afterPayment(ctx, inst, result)
	})
	if err != nil {
		return nil, apperror.WrapIO("mark installment as paid", err)
	}

	logger.FromContext(ctx, s.log).Info("installment marked as paid",
		zap.String("installment_id", id.String()),
		zap.Bool("remainder_recorded", result.Transaction != nil),
	)
	return result, nil
}

// ApplyLateFee adds a flat fee to a pending installment. The balance is
// recomputed right away so it always equals amount minus paid amount.
func (s *InstallmentService) ApplyLateFee(ctx context.Context, id uuid.UUID, fee decimal.Decimal) (*entity.Installment, error) {
	if !fee.IsPositive() {
		return nil, apperror.NewFieldError("fee", "fee must be greater than zero")
	}

	var updated *entity.Installment
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if inst.IsPaid() {
			return apperror.NewFieldError("fee", "a late fee cannot be applied to a paid installment")
		}

		inst.Amount = inst.Amount.Add(fee)
		inst.LateFee = inst.LateFee.Add(fee)
		inst.LateFeeApplied = true
		inst.Reconcile()
		if err := s.installmentRepo.Update(ctx, inst); err != nil {
			return apperror.WrapIO("update installment", err)
		}
		updated = inst
		return nil
	})
	if err != nil {
		return nil, apperror.WrapIO("apply late fee", err)
	}

	logger.FromContext(ctx, s.log).Info("late fee applied",
		zap.String("installment_id", id.String()),
		zap.String("fee", fee.StringFixed(2)),
	)
	fillDaysOverdue(updated, s.today())
	return updated, nil
}

// afterPayment reschedules the sale once the installment is paid, resyncs
// the sale status and reloads the installment into result
func (s *InstallmentService) afterPayment(ctx context.Context, inst *entity.Installment, result *PaymentResult) error {
	if inst.IsPaid() {
		if updates := s.reschedule(ctx, inst.SaleID); len(updates) > 0 {
			result.Rescheduled = &updates[0]
		}
	}
	if err := s.syncSaleStatus(ctx, inst.SaleID); err != nil {
		return err
	}

	reloaded, err := s.load(ctx, inst.ID)
	if err != nil {
		return err
	}
	fillDaysOverdue(reloaded, s.today())
	result.Installment = reloaded
	return nil
}

// paymentDate defaults to today and must parse as an ISO-8601 date or
// timestamp
func (s *InstallmentService) paymentDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today(), nil
	}
	if _, err := schedule.ParseTimestamp(raw); err != nil {
		return "", apperror.NewFieldError("payment_date", "payment_date must be an ISO-8601 date or timestamp")
	}
	return raw, nil
}

// paidBefore compares calendar dates, ignoring any time of day
func paidBefore(paymentDate, dueDate string) bool {
	paid, err := schedule.ParseDate(paymentDate)
	if err != nil {
		return false
	}
	due, err := schedule.ParseDate(dueDate)
	if err != nil {
		return false
	}
	return paid.Before(due)
}

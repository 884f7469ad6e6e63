package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	domainRepo "github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// installmentBatchSize keeps each insert under SQLite's bound parameter limit
const installmentBatchSize = 50

type installmentRepository struct {
	db *gorm.DB
}

// NewInstallmentRepository creates a new installment repository
func NewInstallmentRepository(db *gorm.DB) domainRepo.InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []entity.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	return conn(ctx, r.db).Omit(clause.Associations).CreateInBatches(&installments, installmentBatchSize).Error
}

func (r *installmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Installment, error) {
	var installment entity.Installment
	err := conn(ctx, r.db).First(&installment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &installment, err
}

func (r *installmentRepository) ListBySale(ctx context.Context, saleID uuid.UUID) ([]entity.Installment, error) {
	var installments []entity.Installment
	err := conn(ctx, r.db).
		Where("sale_id = ?", saleID).
		Order("installment_number ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) Update(ctx context.Context, installment *entity.Installment) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(installment).Error
}

func (r *installmentRepository) UpdateDueDate(ctx context.Context, id uuid.UUID, dueDate string) error {
	return conn(ctx, r.db).Model(&entity.Installment{}).
		Where("id = ?", id).
		Update("due_date", dueDate).Error
}

func (r *installmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Delete(&entity.Installment{}, "id = ?", id).Error
}

func (r *installmentRepository) List(ctx context.Context, params *domainRepo.InstallmentFilterParams) ([]entity.Installment, int64, error) {
	var installments []entity.Installment
	var total int64

	query := conn(ctx, r.db).Model(&entity.Installment{})
	if params.SaleID != nil {
		query = query.Where("sale_id = ?", *params.SaleID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.DueFrom != "" {
		query = query.Where("due_date >= ?", params.DueFrom)
	}
	if params.DueTo != "" {
		query = query.Where("due_date <= ?", params.DueTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if params.Pagination == nil {
		params.Pagination = &pagination.PaginationParams{}
	}
	params.Pagination.Validate()
	err := query.
		Offset(params.Pagination.Offset()).
		Limit(params.Pagination.PerPage).
		Order("due_date ASC, installment_number ASC").
		Find(&installments).Error

	return installments, total, err
}

func (r *installmentRepository) ListOverdue(ctx context.Context, today string) ([]entity.Installment, error) {
	var installments []entity.Installment
	err := conn(ctx, r.db).
		Preload("Sale.Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("status = ? AND due_date < ? AND balance > 0", enum.InstallmentStatusPending, today).
		Order("due_date ASC, installment_number ASC").
		Find(&installments).Error
	return installments, err
}

func (r *installmentRepository) ListDueBetween(ctx context.Context, from, to string, limit int) ([]entity.Installment, error) {
	var installments []entity.Installment
	query := conn(ctx, r.db).
		Preload("Sale.Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("status = ? AND due_date >= ? AND due_date <= ? AND balance > 0", enum.InstallmentStatusPending, from, to).
		Order("due_date ASC, installment_number ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&installments).Error
	return installments, err
}

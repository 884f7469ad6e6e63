package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	domainRepo "github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *gorm.DB) domainRepo.SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *entity.Sale) error {
	return conn(ctx, r.db).Omit(clause.Associations).Create(sale).Error
}

func (r *saleRepository) CreateItems(ctx context.Context, items []entity.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	return conn(ctx, r.db).Create(&items).Error
}

func (r *saleRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	var sale entity.Sale
	err := conn(ctx, r.db).First(&sale, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &sale, err
}

func (r *saleRepository) GetByIDWithDetails(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	var sale entity.Sale
	err := conn(ctx, r.db).
		Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("installment_number ASC") }).
		First(&sale, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &sale, err
}

func (r *saleRepository) Update(ctx context.Context, sale *entity.Sale) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(sale).Error
}

func (r *saleRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enum.SalePaymentStatus) error {
	return conn(ctx, r.db).Model(&entity.Sale{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

// Delete removes dependents explicitly; foreign key cascades are not
// relied on since SQLite enforces them only when the pragma is on.
func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := conn(ctx, r.db)
	if err := db.Where("sale_id = ?", id).Delete(&entity.PaymentTransaction{}).Error; err != nil {
		return err
	}
	if err := db.Where("sale_id = ?", id).Delete(&entity.Installment{}).Error; err != nil {
		return err
	}
	if err := db.Where("sale_id = ?", id).Delete(&entity.SaleItem{}).Error; err != nil {
		return err
	}
	return db.Delete(&entity.Sale{}, "id = ?", id).Error
}

func (r *saleRepository) List(ctx context.Context, params *domainRepo.SaleFilterParams) ([]entity.Sale, int64, error) {
	var sales []entity.Sale
	var total int64

	query := conn(ctx, r.db).Model(&entity.Sale{})

	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where(
			"LOWER(sale_number) LIKE ? OR LOWER(reference_code) LIKE ? OR customer_id IN (SELECT id FROM customers WHERE LOWER(name) LIKE ?)",
			like, like, like,
		)
	}
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.PaymentType != "" {
		query = query.Where("payment_type = ?", params.PaymentType)
	}
	if params.PaymentStatus != "" {
		query = query.Where("payment_status = ?", params.PaymentStatus)
	}
	if params.DateFrom != "" {
		query = query.Where("SUBSTR(date, 1, 10) >= ?", params.DateFrom)
	}
	if params.DateTo != "" {
		query = query.Where("SUBSTR(date, 1, 10) <= ?", params.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if params.Pagination == nil {
		params.Pagination = &pagination.PaginationParams{}
	}
	params.Pagination.Validate()
	err := query.
		Preload("Customer", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Offset(params.Pagination.Offset()).
		Limit(params.Pagination.PerPage).
		Order("date DESC, created_at DESC").
		Find(&sales).Error

	return sales, total, err
}

func (r *saleRepository) ExistsBySaleNumber(ctx context.Context, saleNumber string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.Sale{}).Where("sale_number = ?", saleNumber).Count(&count).Error
	return count > 0, err
}

func (r *saleRepository) ExistsByReferenceCode(ctx context.Context, referenceCode string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.Sale{}).Where("reference_code = ?", referenceCode).Count(&count).Error
	return count > 0, err
}

func (r *saleRepository) CountBySaleNumberSuffix(ctx context.Context, suffix string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&entity.Sale{}).Where("sale_number LIKE ?", "%"+suffix).Count(&count).Error
	return count, err
}

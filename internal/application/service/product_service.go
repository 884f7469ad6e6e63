package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/pkg/apperror"
	"github.com/sangkips/installments-api/pkg/pagination"
	"github.com/sangkips/installments-api/pkg/utils"
	"github.com/shopspring/decimal"
)

// ProductService handles product-related operations
type ProductService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new product service
func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

// CreateProductInput represents the create product input
type CreateProductInput struct {
	Name  string
	Code  string
	Stock int
	Price decimal.Decimal
	Notes *string
}

// CreateProduct creates a new product
func (s *ProductService) CreateProduct(ctx context.Context, input *CreateProductInput) (*entity.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewFieldError("name", "name is required")
	}
	if input.Stock < 0 {
		return nil, apperror.NewFieldError("stock", "stock cannot be negative")
	}
	if input.Price.IsNegative() {
		return nil, apperror.NewFieldError("price", "price cannot be negative")
	}

	// Auto-generate code if not provided
	code := strings.TrimSpace(input.Code)
	if code == "" {
		code = utils.GenerateProductCode()
	}
	if err := s.ensureCodeFree(ctx, code, uuid.Nil); err != nil {
		return nil, err
	}

	product := &entity.Product{
		Name:  name,
		Code:  code,
		Stock: input.Stock,
		Price: input.Price,
		Notes: input.Notes,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, apperror.WrapIO("create product", err)
	}

	return product, nil
}

// GetProduct retrieves a product by ID
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.WrapIO("load product", err)
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// ListProducts lists products
func (s *ProductService) ListProducts(ctx context.Context, params *pagination.PaginationParams, search string) (*pagination.PaginatedResult[entity.Product], error) {
	params.Validate()
	products, total, err := s.productRepo.List(ctx, params, search)
	if err != nil {
		return nil, apperror.WrapIO("list products", err)
	}

	pag := pagination.NewPagination(params.Page, params.PerPage, total)
	return pagination.NewPaginatedResult(products, pag), nil
}

// UpdateProductInput represents the update product input
type UpdateProductInput struct {
	ID    uuid.UUID
	Name  *string
	Code  *string
	Stock *int
	Price *decimal.Decimal
	Notes *string
}

// UpdateProduct updates a product
func (s *ProductService) UpdateProduct(ctx context.Context, input *UpdateProductInput) (*entity.Product, error) {
	product, err := s.GetProduct(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Code != nil && *input.Code != product.Code {
		if err := s.ensureCodeFree(ctx, *input.Code, product.ID); err != nil {
			return nil, err
		}
		product.Code = *input.Code
	}
	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, apperror.NewFieldError("stock", "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, apperror.NewFieldError("price", "price cannot be negative")
		}
		product.Price = *input.Price
	}
	if input.Notes != nil {
		product.Notes = input.Notes
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, apperror.WrapIO("update product", err)
	}

	return product, nil
}

// DeleteProduct soft-deletes a product. Past sale lines keep their name
// snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	return apperror.WrapIO("delete product", s.productRepo.Delete(ctx, id))
}

func (s *ProductService) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.productRepo.GetByCode(ctx, code)
	if err != nil {
		return apperror.WrapIO("check product code", err)
	}
	if existing != nil && existing.ID != self {
		return apperror.NewIntegrityError("Product code already exists")
	}
	return nil
}

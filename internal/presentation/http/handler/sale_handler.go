package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/installments-api/internal/application/backup"
	"github.com/sangkips/installments-api/internal/application/service"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"github.com/sangkips/installments-api/internal/presentation/http/dto/request"
	"github.com/sangkips/installments-api/internal/presentation/http/dto/response"
	"github.com/sangkips/installments-api/pkg/apperror"
	"go.uber.org/zap"
)

// maxBackupSize bounds the body accepted by the import endpoint
const maxBackupSize = 10 << 20

// SaleHandler handles sale-related HTTP requests
type SaleHandler struct {
	saleService        *service.SaleService
	installmentService *service.InstallmentService
	log                *zap.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(saleService *service.SaleService, installmentService *service.InstallmentService, log *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService:        saleService,
		installmentService: installmentService,
		log:                log,
	}
}

// ImportFailure reports a backup record that could not be restored
type ImportFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ImportSummary is the result of a backup import
type ImportSummary struct {
	Imported int             `json:"imported"`
	SaleIDs  []string        `json:"sale_ids"`
	Failed   []ImportFailure `json:"failed"`
}

// List handles listing sales
func (h *SaleHandler) List(c *gin.Context) {
	var filter request.SaleFilterRequest
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	customerID, ok := parseOptionalID(c, filter.CustomerID, "customer_id")
	if !ok {
		return
	}

	params := &repository.SaleFilterParams{
		Pagination:    pageParams(filter.Page, filter.PerPage),
		Search:        filter.Search,
		CustomerID:    customerID,
		PaymentType:   enum.PaymentType(filter.PaymentType),
		PaymentStatus: enum.SalePaymentStatus(filter.PaymentStatus),
		DateFrom:      filter.DateFrom,
		DateTo:        filter.DateTo,
	}

	result, err := h.saleService.ListSales(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Sales retrieved successfully", result)
}

// Create handles creating a sale with its installment schedule
func (h *SaleHandler) Create(c *gin.Context) {
	var req request.CreateSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	items := make([]service.SaleItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.SaleItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	sale, err := h.saleService.CreateSale(c.Request.Context(), &service.CreateSaleInput{
		CustomerID:           req.CustomerID,
		Date:                 req.Date,
		Items:                items,
		Discount:             req.Discount,
		Tax:                  req.Tax,
		PaymentType:          req.PaymentType,
		NumberOfInstallments: req.NumberOfInstallments,
		Notes:                req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Sale created successfully", sale)
}

// Import restores sales from a backup document. Each record is imported
// on its own so one bad record does not block the rest.
func (h *SaleHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBackupSize))
	if err != nil {
		response.BadRequest(c, "Could not read backup")
		return
	}

	records, err := backup.Decode(body)
	if err != nil {
		response.Error(c, apperror.NewFieldError("backup", err.Error()))
		return
	}

	log := logger.FromContext(c.Request.Context(), h.log)
	summary := ImportSummary{SaleIDs: []string{}, Failed: []ImportFailure{}}
	for i, record := range records {
		input, err := backup.NormalizeSale(record)
		if err == nil {
			imported, importErr := h.saleService.ImportFromBackup(c.Request.Context(), input)
			if importErr == nil {
				summary.Imported++
				summary.SaleIDs = append(summary.SaleIDs, imported.ID.String())
				continue
			}
			err = importErr
		}

		appErr := apperror.GetAppError(err)
		message := appErr.Message
		for _, fe := range appErr.Errors {
			message += "; " + fe.Field + ": " + fe.Message
		}
		log.Warn("backup record rejected", zap.Int("index", i), zap.Error(err))
		summary.Failed = append(summary.Failed, ImportFailure{Index: i, Error: message})
	}

	status := http.StatusOK
	if summary.Imported > 0 {
		status = http.StatusCreated
	}
	response.Success(c, status, "Backup processed", summary)
}

// Get handles getting a single sale with items and installments
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "sale")
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale retrieved successfully", sale)
}

// Update handles editing the sale header
func (h *SaleHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "sale")
	if !ok {
		return
	}

	var req request.UpdateSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	sale, err := h.saleService.UpdateSale(c.Request.Context(), &service.UpdateSaleInput{
		ID:            id,
		Date:          req.Date,
		PaymentStatus: req.PaymentStatus,
		Notes:         req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale updated successfully", sale)
}

// Delete handles deleting a sale and everything that hangs off it
func (h *SaleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "sale")
	if !ok {
		return
	}

	if err := h.saleService.DeleteSale(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale deleted successfully", nil)
}

// Installments handles listing the schedule of a sale
func (h *SaleHandler) Installments(c *gin.Context) {
	id, ok := parseID(c, "id", "sale")
	if !ok {
		return
	}

	installments, err := h.installmentService.GetBySale(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installments retrieved successfully", installments)
}

// Transactions handles listing the payment audit log of a sale
func (h *SaleHandler) Transactions(c *gin.Context) {
	id, ok := parseID(c, "id", "sale")
	if !ok {
		return
	}

	transactions, err := h.saleService.ListTransactions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment transactions retrieved successfully", transactions)
}

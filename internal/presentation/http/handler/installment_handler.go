package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/installments-api/internal/application/service"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/internal/presentation/http/dto/request"
	"github.com/sangkips/installments-api/internal/presentation/http/dto/response"
	"github.com/shopspring/decimal"
)

// InstallmentHandler handles installment and payment HTTP requests
type InstallmentHandler struct {
	installmentService *service.InstallmentService
	defaultLateFee     decimal.Decimal
}

// NewInstallmentHandler creates a new installment handler
func NewInstallmentHandler(installmentService *service.InstallmentService, defaultLateFee float64) *InstallmentHandler {
	return &InstallmentHandler{
		installmentService: installmentService,
		defaultLateFee:     decimal.NewFromFloat(defaultLateFee),
	}
}

// List handles listing installments across sales
func (h *InstallmentHandler) List(c *gin.Context) {
	var filter request.InstallmentFilterRequest
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	saleID, ok := parseOptionalID(c, filter.SaleID, "sale_id")
	if !ok {
		return
	}

	result, err := h.installmentService.GetAll(c.Request.Context(), &repository.InstallmentFilterParams{
		Pagination: pageParams(filter.Page, filter.PerPage),
		SaleID:     saleID,
		Status:     enum.InstallmentStatus(filter.Status),
		DueFrom:    filter.DueFrom,
		DueTo:      filter.DueTo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Installments retrieved successfully", result)
}

// Create handles appending an installment to a sale
func (h *InstallmentHandler) Create(c *gin.Context) {
	var req request.CreateInstallmentRequest
	if !bindJSON(c, &req) {
		return
	}

	installment, err := h.installmentService.CreateInstallment(c.Request.Context(), &service.CreateInstallmentInput{
		SaleID:  req.SaleID,
		DueDate: req.DueDate,
		Amount:  req.Amount,
		Notes:   req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Installment created successfully", installment)
}

// Overdue handles listing installments past their due date
func (h *InstallmentHandler) Overdue(c *gin.Context) {
	installments, err := h.installmentService.GetOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Overdue installments retrieved successfully", installments)
}

// Upcoming handles listing installments due soon
func (h *InstallmentHandler) Upcoming(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	installments, err := h.installmentService.GetUpcoming(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Upcoming installments retrieved successfully", installments)
}

// Get handles getting a single installment
func (h *InstallmentHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	installment, err := h.installmentService.GetInstallment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installment retrieved successfully", installment)
}

// Update handles a manual installment edit
func (h *InstallmentHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	var req request.UpdateInstallmentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.installmentService.UpdateInstallment(c.Request.Context(), id, &service.UpdateInstallmentInput{
		DueDate:    req.DueDate,
		Status:     req.Status,
		Amount:     req.Amount,
		PaidAmount: req.PaidAmount,
		Balance:    req.Balance,
		Notes:      req.Notes,
		PaidDate:   req.PaidDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installment updated successfully", gin.H{
		"installment": result.Installment,
		"rescheduled": result.Rescheduled,
	})
}

// Delete handles removing the last installment of a sale
func (h *InstallmentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	if err := h.installmentService.DeleteInstallment(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installment deleted successfully", nil)
}

// RecordPayment handles a full or partial payment
func (h *InstallmentHandler) RecordPayment(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	var req request.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.installmentService.RecordPayment(c.Request.Context(), &service.RecordPaymentInput{
		InstallmentID: id,
		Amount:        req.Amount,
		Method:        req.Method,
		Reference:     req.Reference,
		PaymentDate:   req.PaymentDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment recorded successfully", result)
}

// MarkPaid handles settling the remaining balance of an installment
func (h *InstallmentHandler) MarkPaid(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	var req request.MarkPaidRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.installmentService.MarkAsPaid(c.Request.Context(), id, req.PaymentDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Installment marked as paid", result)
}

// LateFee handles adding a late fee to an installment
func (h *InstallmentHandler) LateFee(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	var req request.LateFeeRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	fee := h.defaultLateFee
	if req.Fee != nil {
		fee = *req.Fee
	}

	installment, err := h.installmentService.ApplyLateFee(c.Request.Context(), id, fee)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Late fee applied successfully", installment)
}

// RevertPayment handles cancelling a completed payment transaction
func (h *InstallmentHandler) RevertPayment(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}
	transactionID, ok := parseID(c, "transactionId", "transaction")
	if !ok {
		return
	}

	installment, err := h.installmentService.RevertPayment(c.Request.Context(), id, transactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment reverted successfully", installment)
}

// Transactions handles listing the payment audit log of an installment
func (h *InstallmentHandler) Transactions(c *gin.Context) {
	id, ok := parseID(c, "id", "installment")
	if !ok {
		return
	}

	transactions, err := h.installmentService.ListTransactions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment transactions retrieved successfully", transactions)
}

// PurgeTransactions handles wiping the payment audit log. The caller must
// pass confirm=true.
func (h *InstallmentHandler) PurgeTransactions(c *gin.Context) {
	if c.Query("confirm") != "true" {
		response.BadRequest(c, "Pass confirm=true to purge payment transactions")
		return
	}

	removed, err := h.installmentService.PurgeTransactions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment transactions purged", gin.H{"removed": removed})
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/installments-api/internal/config"
	domainRepo "github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/internal/presentation/http/handler"
	"github.com/sangkips/installments-api/internal/presentation/http/middleware"
	"github.com/sangkips/installments-api/pkg/utils"
	"go.uber.org/zap"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Customer    *handler.CustomerHandler
	Product     *handler.ProductHandler
	Sale        *handler.SaleHandler
	Installment *handler.InstallmentHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	Logger          *zap.Logger
	RateLimiter     *middleware.ClientRateLimiter
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	v1 := router.Group("/api/v1")
	if deps.Cfg.Auth.Enabled {
		v1.Use(middleware.AuthMiddleware(deps.JWTManager))
	} else if deps.JWTManager != nil {
		v1.Use(middleware.OptionalAuthMiddleware(deps.JWTManager))
	}
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	v1.Use(middleware.Idempotency(middleware.IdempotencyConfig{
		Repo:   deps.IdempotencyRepo,
		Logger: deps.Logger,
	}))

	registerCustomerRoutes(v1, h)
	registerProductRoutes(v1, h)
	registerSaleRoutes(v1, h)
	registerInstallmentRoutes(v1, h)
	registerAdminRoutes(v1, h, deps)

	return router
}

func registerCustomerRoutes(v1 *gin.RouterGroup, h *Handlers) {
	customers := v1.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.POST("", h.Customer.Create)
		customers.GET("/:id", h.Customer.Get)
		customers.PUT("/:id", h.Customer.Update)
		customers.DELETE("/:id", h.Customer.Delete)
	}
}

func registerProductRoutes(v1 *gin.RouterGroup, h *Handlers) {
	products := v1.Group("/products")
	{
		products.GET("", h.Product.List)
		products.POST("", h.Product.Create)
		products.GET("/:id", h.Product.Get)
		products.PUT("/:id", h.Product.Update)
		products.DELETE("/:id", h.Product.Delete)
	}
}

func registerSaleRoutes(v1 *gin.RouterGroup, h *Handlers) {
	sales := v1.Group("/sales")
	{
		sales.GET("", h.Sale.List)
		sales.POST("", h.Sale.Create)
		sales.POST("/import", h.Sale.Import)
		sales.GET("/:id", h.Sale.Get)
		sales.PATCH("/:id", h.Sale.Update)
		sales.DELETE("/:id", h.Sale.Delete)
		sales.GET("/:id/installments", h.Sale.Installments)
		sales.GET("/:id/transactions", h.Sale.Transactions)
	}
}

func registerInstallmentRoutes(v1 *gin.RouterGroup, h *Handlers) {
	installments := v1.Group("/installments")
	{
		installments.GET("", h.Installment.List)
		installments.POST("", h.Installment.Create)
		installments.GET("/overdue", h.Installment.Overdue)
		installments.GET("/upcoming", h.Installment.Upcoming)
		installments.GET("/:id", h.Installment.Get)
		installments.PATCH("/:id", h.Installment.Update)
		installments.DELETE("/:id", h.Installment.Delete)
		installments.POST("/:id/payments", h.Installment.RecordPayment)
		installments.POST("/:id/payments/:transactionId/revert", h.Installment.RevertPayment)
		installments.POST("/:id/mark-paid", h.Installment.MarkPaid)
		installments.POST("/:id/late-fee", h.Installment.LateFee)
		installments.GET("/:id/transactions", h.Installment.Transactions)
	}
}

func registerAdminRoutes(v1 *gin.RouterGroup, h *Handlers, deps *Deps) {
	admin := v1.Group("/admin")
	if deps.Cfg.Auth.Enabled {
		admin.Use(middleware.RequireRole(utils.RoleAdmin))
	}
	{
		admin.DELETE("/payment-transactions", h.Installment.PurgeTransactions)
	}
}

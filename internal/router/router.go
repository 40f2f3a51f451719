package router

import (
	"time"

	"dutyfree/internal/config"
	"dutyfree/internal/handler"
	"dutyfree/internal/infra"
	"dutyfree/internal/middleware"
	"dutyfree/internal/repository"
	"dutyfree/internal/service"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Roles carried in the token's role claim.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Deps are the process-wide resources built in main.
type Deps struct {
	DB           *gorm.DB
	Redis        *redis.Client // nil when the queue runs in-process
	ReceiptCB    *infra.CircuitBreaker
	ReceiptQueue service.ReceiptQueue
	Node         *snowflake.Node
	Registry     *prometheus.Registry
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(d.DB)
	batchRepo := repository.NewStockBatchRepository(d.DB)
	saleRepo := repository.NewSaleRepository(d.DB)
	registerRepo := repository.NewRegisterRepository(d.DB)
	paymentRepo := repository.NewPaymentRepository(d.DB)
	receivingRepo := repository.NewPurchaseReceiptRepository(d.DB)
	receiptRepo := repository.NewReceiptRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	var metrics *service.Metrics
	if d.Registry != nil {
		metrics = service.NewMetrics(d.Registry)
	}
	productSvc := service.NewProductService(productRepo)
	stockSvc := service.NewStockService(batchRepo, metrics)
	registerSvc := service.NewRegisterService(registerRepo, paymentRepo)
	receiptSvc := service.NewReceiptService(receiptRepo, d.ReceiptQueue, d.ReceiptCB, d.Node)
	receivingSvc := service.NewReceivingService(receivingRepo, stockSvc, productSvc)
	saleSvc := service.NewSaleService(
		saleRepo, stockSvc, productSvc, registerSvc, paymentRepo, receiptSvc,
		metrics, cfg.DefaultCurrency,
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(productSvc)
	stockH := handler.NewStockHandler(stockSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	registersH := handler.NewRegistersHandler(registerSvc)
	receivingsH := handler.NewReceivingsHandler(receivingSvc)
	receiptsH := handler.NewReceiptsHandler(receiptSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.ReceiptCB))
	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	anyone := middleware.RequireRole(RoleCashier, RoleSupervisor, RoleAdmin)
	managers := middleware.RequireRole(RoleSupervisor, RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		sales := v1.Group("/sales", anyone)
		{
			sales.POST("", salesH.Create)
			sales.GET("", salesH.List)
			sales.GET("/:id", salesH.Get)
			sales.POST("/:id/payments", salesH.ApplyPayment)
			sales.POST("/:id/complete", salesH.Complete)
			sales.POST("/:id/cancel", salesH.Cancel)
			sales.GET("/:id/receipt", receiptsH.GetBySale)
		}

		registers := v1.Group("/registers", anyone)
		{
			registers.POST("/open", registersH.Open)
			registers.POST("/:id/close", registersH.Close)
			registers.GET("/:id", registersH.Get)
		}

		// Catalog reads for every role, writes for managers
		v1.GET("/products", anyone, productsH.List)
		v1.GET("/products/:id", anyone, productsH.Get)
		v1.GET("/products/:id/stock", anyone, stockH.GetProductStock)
		prods := v1.Group("/products", managers)
		{
			prods.POST("", productsH.Create)
			prods.DELETE("/:id", productsH.Deactivate)
			prods.POST("/:id/stock/reserve", stockH.Reserve)
			prods.POST("/:id/stock/release", stockH.Release)
			prods.POST("/:id/stock/consume", stockH.Consume)
		}

		stock := v1.Group("/stock", managers)
		{
			stock.POST("/batches", stockH.AddBatch)
			stock.PATCH("/batches/:id", stockH.AdjustBatch)
			stock.GET("/expiring", stockH.Expiring)
			stock.GET("/expired", stockH.Expired)
		}

		v1.POST("/receivings", managers, receivingsH.Receive)
	}

	return r
}

package api

import (
	"context"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/transflow/tms-backend/internal/api/handler"
	"github.com/transflow/tms-backend/internal/api/middleware"
	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
	"github.com/transflow/tms-backend/internal/core/service"
	mongodb "github.com/transflow/tms-backend/internal/infrastructure/db/mongo"
	redisdb "github.com/transflow/tms-backend/internal/infrastructure/db/redis"
	"github.com/transflow/tms-backend/internal/infrastructure/queue"
)

// Options carries the runtime wiring the router needs beyond its storage
// handles.
type Options struct {
	JWTSecret    string
	RuleCacheTTL time.Duration // 0 disables the Redis rule cache
	Workers      int
	Logger       zerolog.Logger
}

// NewRouter builds the Echo instance with all routes registered and starts
// the background location dispatcher. The dispatcher stops when ctx is
// cancelled.
func NewRouter(ctx context.Context, client *mongo.Client, db *mongo.Database, rdb *redis.Client, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("tms"))

	// --- Repositories ---
	shipmentRepo := mongodb.NewShipmentRepository(db)
	driverRepo := mongodb.NewDriverRepository(db)
	customerRepo := mongodb.NewCustomerRepository(db)
	tripRepo := mongodb.NewTripRepository(db)
	assignmentRepo := mongodb.NewAssignmentRepository(db)
	timelineRepo := mongodb.NewTimelineEventRepository(db)
	financeRepo := mongodb.NewFinancialEntryRepository(db)
	authRepo := mongodb.NewAuthRepository(db)
	transactor := mongodb.NewTransactor(client)

	var ruleRepo ports.RuleRepository = mongodb.NewRuleRepository(db)
	if rdb != nil && opts.RuleCacheTTL > 0 {
		ruleRepo = redisdb.NewCachedRuleRepository(ruleRepo, rdb, opts.RuleCacheTTL, opts.Logger)
	}

	// --- Services ---
	engine := service.NewRuleEngine(ruleRepo, opts.Logger)
	pricingService := service.NewPricingService(engine, shipmentRepo, customerRepo, opts.Logger)
	salaryService := service.NewDriverSalaryService(engine, tripRepo, financeRepo, opts.Logger)
	shipmentService := service.NewShipmentService(shipmentRepo, driverRepo, assignmentRepo, timelineRepo, transactor, opts.Logger)
	authService := service.NewAuthService(authRepo, opts.JWTSecret, 24*time.Hour)

	dispatcher := queue.NewDispatcher(opts.Workers, shipmentService, opts.Logger)
	dispatcher.Start(ctx)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authService)
	quoteHandler := handler.NewQuoteHandler(pricingService)
	shipmentHandler := handler.NewShipmentHandler(shipmentService)
	payrollHandler := handler.NewPayrollHandler(salaryService, shipmentService, driverRepo, tripRepo)
	locationHandler := handler.NewLocationHandler(dispatcher)
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	auth := middleware.Auth(opts.JWTSecret)
	backOffice := middleware.RBAC(domain.RoleDispatcher, domain.RoleFinance)
	dispatch := middleware.RBAC(domain.RoleDispatcher)
	finance := middleware.RBAC(domain.RoleFinance)
	driver := middleware.RBAC(domain.RoleDriver)

	// --- Public routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Authenticated API ---
	v1 := e.Group("/v1", auth)

	v1.POST("/quotes", quoteHandler.Generate, backOffice)
	v1.POST("/shipments/:id/fees", quoteHandler.AddFee, finance)

	v1.GET("/shipments", shipmentHandler.List)
	v1.GET("/shipments/:id", shipmentHandler.Get)
	v1.GET("/shipments/number/:number", shipmentHandler.GetByNumber)

	v1.POST("/shipments/:id/confirm", shipmentHandler.Confirm, backOffice)
	v1.POST("/shipments/:id/convert", shipmentHandler.Convert, backOffice)
	v1.POST("/shipments/:id/assign", shipmentHandler.AssignDriver, dispatch)
	v1.POST("/shipments/:id/acknowledge", shipmentHandler.Acknowledge, driver)
	v1.POST("/shipments/:id/pickup", shipmentHandler.StartPickup, driver)
	v1.POST("/shipments/:id/transit", shipmentHandler.StartTransit, driver)
	v1.POST("/shipments/:id/deliver", shipmentHandler.CompleteDelivery, driver)
	v1.POST("/shipments/:id/complete", shipmentHandler.Complete, finance)
	v1.POST("/shipments/:id/cancel", shipmentHandler.Cancel, backOffice)

	v1.POST("/payroll/commissions", payrollHandler.Calculate, finance)
	v1.POST("/payroll/commissions/batch", payrollHandler.CalculateBatch, finance)

	v1.POST("/drivers/:id/location", locationHandler.Update, driver)

	return e
}

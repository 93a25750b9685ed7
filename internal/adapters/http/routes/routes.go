package routes

import (
	"easymoney-loans/internal/adapters/http/handlers"
	"easymoney-loans/internal/adapters/http/middleware"
	"easymoney-loans/internal/adapters/persistence/repositories"
	"easymoney-loans/internal/config"
	"easymoney-loans/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and returns the
// scheduler so main can stop it on shutdown
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.SchedulerService {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// Initialize services
	auditService := services.NewAuditService(auditRepo)
	calcService := services.NewCalcService()
	fraudService := services.NewFraudService()
	directoryService := services.NewDirectoryService()
	settingsService := services.NewSettingsService(settingsRepo, userRepo, auditService, directoryService)
	authService := services.NewAuthService(userRepo, refreshTokenRepo, settingsService, directoryService, auditService)
	userService := services.NewUserService(userRepo, auditService)
	customerService := services.NewCustomerService(customerRepo, userRepo, auditService)
	loanService := services.NewLoanService(loanRepo, paymentRepo, customerRepo, userRepo, calcService, fraudService, auditService)
	paymentService := services.NewPaymentService(paymentRepo, loanRepo, auditService)
	archiveService := services.NewArchiveService(customerRepo, loanRepo, auditService)
	exportService := services.NewExportService(customerRepo, loanRepo, paymentRepo, userRepo, settingsRepo, auditService)
	backupService := services.NewBackupService(userRepo, customerRepo, loanRepo, paymentRepo, auditRepo, settingsRepo, auditService)
	dashboardService := services.NewDashboardService(customerRepo, loanRepo, paymentRepo, fraudService)
	schedulerService := services.NewSchedulerService(backupService, cfg.Backup.CronSpec)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	loanHandler := handlers.NewLoanHandler(loanService, paymentService, archiveService)
	auditHandler := handlers.NewAuditHandler(auditService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	exportHandler := handlers.NewExportHandler(exportService)
	backupHandler := handlers.NewBackupHandler(backupService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")

	// Master password routes (public, pre-login unlock flow)
	masterRoutes := apiV1.Group("/master-password")
	masterRoutes.Get("/status", settingsHandler.MasterPasswordStatus)
	masterRoutes.Post("/setup", middleware.StrictRateLimiter(), settingsHandler.SetupMasterPassword)
	masterRoutes.Post("/verify", middleware.AuthRateLimiter(), settingsHandler.VerifyMasterPassword)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", middleware.AuthMiddleware(cfg), authHandler.Me)

	// User management routes (Admin only)
	userRoutes := apiV1.Group("/users")
	userRoutes.Use(middleware.AuthMiddleware(cfg))
	userRoutes.Use(middleware.AdminOnly())
	userRoutes.Get("/", userHandler.List)
	userRoutes.Post("/", userHandler.Create)
	userRoutes.Put("/:id/active", userHandler.SetActive)

	// Customer routes (authenticated)
	customerRoutes := apiV1.Group("/customers")
	customerRoutes.Use(middleware.AuthMiddleware(cfg))
	customerRoutes.Get("/", customerHandler.List)
	customerRoutes.Post("/", customerHandler.Create)
	customerRoutes.Get("/:id", customerHandler.GetByID)

	// Loan routes (authenticated; override is Manager/Admin)
	loanRoutes := apiV1.Group("/loans")
	loanRoutes.Use(middleware.AuthMiddleware(cfg))
	loanRoutes.Get("/", loanHandler.List)
	loanRoutes.Post("/", loanHandler.Create)
	loanRoutes.Post("/override-field", middleware.ManagerOrAdmin(), loanHandler.Override)
	loanRoutes.Get("/:id", loanHandler.GetByID)

	// Payment routes (authenticated, any role may settle installments)
	paymentRoutes := apiV1.Group("/payments")
	paymentRoutes.Use(middleware.AuthMiddleware(cfg))
	paymentRoutes.Post("/mark-paid", loanHandler.MarkPaid)

	// Archive routes (Admin only)
	archiveRoutes := apiV1.Group("/archive")
	archiveRoutes.Use(middleware.AuthMiddleware(cfg))
	archiveRoutes.Use(middleware.AdminOnly())
	archiveRoutes.Post("/", loanHandler.Archive)

	// Audit ledger routes (read-only; verify is Admin)
	auditRoutes := apiV1.Group("/audit-logs")
	auditRoutes.Use(middleware.AuthMiddleware(cfg))
	auditRoutes.Get("/", auditHandler.List)
	auditRoutes.Get("/verify-integrity", middleware.AdminOnly(), auditHandler.Verify)

	// Settings routes
	settingsRoutes := apiV1.Group("/settings")
	settingsRoutes.Use(middleware.AuthMiddleware(cfg))
	settingsRoutes.Get("/", settingsHandler.Get)
	settingsRoutes.Put("/", middleware.AdminOnly(), settingsHandler.Update)
	settingsRoutes.Get("/ad-config", middleware.AdminOnly(), settingsHandler.GetADConfig)
	settingsRoutes.Put("/ad-config", middleware.AdminOnly(), settingsHandler.UpdateADConfig)
	settingsRoutes.Post("/ad-config/test", middleware.AdminOnly(), settingsHandler.TestADConnection)

	// Export routes (Manager/Admin)
	exportRoutes := apiV1.Group("/export")
	exportRoutes.Use(middleware.AuthMiddleware(cfg))
	exportRoutes.Use(middleware.ManagerOrAdmin())
	exportRoutes.Post("/", exportHandler.Export)

	// Backup routes (Admin only; restore is rate-limited on top)
	backupRoutes := apiV1.Group("/backup")
	backupRoutes.Use(middleware.AuthMiddleware(cfg))
	backupRoutes.Use(middleware.AdminOnly())
	backupRoutes.Get("/status", backupHandler.Status)
	backupRoutes.Put("/config", backupHandler.UpdateConfig)
	backupRoutes.Post("/create", backupHandler.Create)
	backupRoutes.Post("/restore", middleware.StrictRateLimiter(), backupHandler.Restore)

	// Dashboard routes (authenticated)
	dashboardRoutes := apiV1.Group("/dashboard")
	dashboardRoutes.Use(middleware.AuthMiddleware(cfg))
	dashboardRoutes.Get("/stats", dashboardHandler.Stats)

	return schedulerService
}

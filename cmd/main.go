package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spegrid/execreview-backend/internal/data/db"
	"github.com/spegrid/execreview-backend/internal/data/repos"
	"github.com/spegrid/execreview-backend/internal/handlers"
	"github.com/spegrid/execreview-backend/internal/middleware"
	"github.com/spegrid/execreview-backend/internal/platform/convertapi"
	"github.com/spegrid/execreview-backend/internal/platform/envutil"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/platform/openai"
	"github.com/spegrid/execreview-backend/internal/platform/sendgrid"
	"github.com/spegrid/execreview-backend/internal/progress"
	"github.com/spegrid/execreview-backend/internal/server"
	"github.com/spegrid/execreview-backend/internal/services"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := envutil.Str("PORT", "5000")
	storageRoot := envutil.Str("STORAGE_ROOT", "data")
	referencePDF := envutil.Str("REFERENCE_PDF_PATH", "assets/reference-summary.pdf")
	defaultRecipients := envutil.Str("EXECUTIVE_MAIL_TO", "")
	adminEmail := envutil.Str("ADMIN_EMAIL", "admin@example.com")
	adminPassword := envutil.Str("ADMIN_PASSWORD", "admin")
	jwtSecretKey := envutil.Str("JWT_SECRET_KEY", "defaultsecret")
	accessTokenTTL := envutil.Int("ACCESS_TOKEN_TTL", 86400)
	allowOrigins := envutil.Str("CORS_ALLOW_ORIGINS", "")

	// SQLite
	sqliteService, err := db.NewSQLiteService(log)
	if err != nil {
		log.Error("SQLite init failed", "error", err)
		os.Exit(1)
	}
	if err = sqliteService.AutoMigrateAll(); err != nil {
		log.Error("SQLite auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := sqliteService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	businessRepo := repos.NewBusinessRepo(theDB, log)

	// Progress registry
	registry := progress.New(log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	convertClient, err := convertapi.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init ConvertAPI client", "error", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	sendgridClient, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init SendGrid client", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	store, err := services.NewReportStore(log, storageRoot)
	if err != nil {
		log.Error("Could not init ReportStore", "error", err)
		os.Exit(1)
	}
	converter := services.NewFileConverter(log, convertClient)
	extractor := services.NewSummaryExtractor(log, openaiClient)
	renderer := services.NewDocumentRenderer(log)
	mailer := services.NewMailer(log, sendgridClient)
	summaryService := services.NewSummaryService(log, registry, store, converter, extractor, renderer, mailer, referencePDF)
	regenerateService := services.NewRegenerateService(log, store, converter, renderer)
	authService := services.NewAuthService(log, adminEmail, adminPassword, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	businessHandler := handlers.NewBusinessHandler(businessRepo)
	reportHandler := handlers.NewReportHandler(log, summaryService, regenerateService, store, registry, defaultRecipients)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	var origins []string
	if allowOrigins != "" {
		for _, o := range strings.Split(allowOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		BusinessHandler: businessHandler,
		ReportHandler:   reportHandler,
		AllowOrigins:    origins,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}

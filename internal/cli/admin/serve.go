package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/grantpilot/grantpilot/internal/api/handlers"
	"github.com/grantpilot/grantpilot/internal/config"
	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/jobs"
	"github.com/grantpilot/grantpilot/internal/openai"
	"github.com/grantpilot/grantpilot/internal/repository"
	"github.com/grantpilot/grantpilot/internal/server"
	"github.com/grantpilot/grantpilot/internal/service"
	"github.com/grantpilot/grantpilot/internal/storage"
	"github.com/grantpilot/grantpilot/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the grantpilot API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	approvalRepo := repository.NewApprovalRepository(pool)
	grantRepo := repository.NewGrantRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var s3Client *storage.S3Client
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	}

	var embeddingClient service.EmbeddingClient
	var generationClient service.GenerationClient
	var embeddingWorker *jobs.Worker
	if cfg.HasOpenAI() {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey)
		generationClient = openai.NewGenerationClient(cfg.OpenAIAPIKey, cfg.GenerationModel)

		embeddingSvc := service.NewEmbeddingService(embeddingClient, chunkRepo)
		embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
		embeddingWorker = jobs.NewWorker(embeddingProcessor, 10*time.Second)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	} else {
		generationClient = &noOpGenerationClient{}
		log.Println("OPENAI_API_KEY not set: generation disabled, retrieval uses lexical ranking")
	}

	uuidGen := &service.DefaultUUIDGenerator{}

	retrievalEngine := service.NewRetrievalEngine(chunkRepo, embeddingClient, cfg.TopK)
	scanner := service.NewScanner(service.ScannerConfig{
		CulturalTerms:           cfg.CulturalVocabulary,
		CulturalTermThreshold:   cfg.CulturalTermThreshold,
		FinancialDigitThreshold: cfg.FinancialDigitThreshold,
	})
	evaluator := service.NewEvaluator(service.EvaluatorConfig{
		Weights: cfg.CognitiveWeights,
		Targets: cfg.MetricTargets,
		Jargon:  cfg.JargonVocabulary,
		Markers: config.DefaultCompetencyMarkers(),
	})
	decisionEngine := service.NewDecisionEngine(service.DecisionConfig{
		CognitiveThreshold:  cfg.CognitiveThreshold,
		CompetencyThreshold: cfg.CompetencyThreshold,
		MaxRegenerations:    cfg.MaxRegenerations,
	})
	approvalSvc := service.NewApprovalService(txRunner, approvalRepo, grantRepo, uuidGen, cfg.GrantTTL)
	pipelineSvc := service.NewPipelineService(
		retrievalEngine,
		generationClient,
		scanner,
		evaluator,
		decisionEngine,
		approvalSvc,
		auditRepo,
		uuidGen,
		service.PipelineConfig{
			TopK:              cfg.TopK,
			GenerationRetries: cfg.GenerationRetries,
			GenerationTimeout: cfg.GenerationTimeout,
		},
	)
	ingestSvc := service.NewIngestService(txRunner, cfg.EmbeddingDimensions, uuidGen)

	queryHandler := handlers.NewQueryHandler(pipelineSvc)
	var draftArchive handlers.DraftArchive
	var contentArchive handlers.ArchiveStore
	var documentArchive handlers.DocumentArchive
	if s3Client != nil {
		draftArchive = s3Client
		contentArchive = s3Client
		documentArchive = s3Client
	}
	approvalHandler := handlers.NewApprovalHandler(approvalSvc, draftArchive)
	grantHandler := handlers.NewGrantHandler(approvalSvc, contentArchive)
	chunkHandler := handlers.NewChunkHandler(ingestSvc, documentArchive)
	auditHandler := handlers.NewAuditHandler(auditRepo)

	router := server.NewRouter(server.RouterConfig{
		QueryHandler:    queryHandler,
		ApprovalHandler: approvalHandler,
		GrantHandler:    grantHandler,
		ChunkHandler:    chunkHandler,
		AuditHandler:    auditHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// noOpGenerationClient rejects query submissions when no generation
// provider is configured.
type noOpGenerationClient struct{}

func (c *noOpGenerationClient) Generate(ctx context.Context, req service.GenerationRequest) (string, error) {
	return "", domain.NewDomainError(domain.ErrCodeConfiguration, "generation not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL, sourceURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}

package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"docstore/internal/config"
	"docstore/internal/handler"
	"docstore/internal/middleware"
	"docstore/internal/repository/postgres"
	"docstore/internal/service/docstore"
	"docstore/internal/storage/blob"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to setup log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	// Create table names and schema
	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.Migrate(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	logger.Info("database connected", "tables_prefix", cfg.TablePrefix)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	docRepo := postgres.NewDocumentRepository(repoConfig)
	versionRepo := postgres.NewVersionRepository(repoConfig)
	tombstoneRepo := postgres.NewTombstoneRepository(repoConfig)
	lockRepo := postgres.NewLockRepository(repoConfig)
	idGenerator := postgres.NewIDGenerator(repoConfig)
	folderResolver := postgres.NewFolderResolver(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Create blob store
	blobStore, err := blob.NewFileStore(cfg.BlobDir, cfg.QuotaBytes, logger)
	if err != nil {
		log.Fatalf("Failed to create blob store: %v", err)
	}

	// Create the document store facade
	executor := docstore.NewExecutor(docRepo, versionRepo, tombstoneRepo, lockRepo, logger)
	gate := docstore.NewPermissionGate(folderResolver)
	lockManager := docstore.NewLockManager(lockRepo, logger)
	notifier := docstore.NewChangeNotifier(docstore.NewLogSink(logger), logger)
	store := docstore.NewService(
		docRepo,
		versionRepo,
		tombstoneRepo,
		idGenerator,
		txManager,
		executor,
		blobStore,
		gate,
		lockManager,
		notifier,
		logger,
	)

	docHandler := handler.NewDocumentHandler(store, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", docHandler.HealthCheck)

	// Document routes
	mux.HandleFunc("POST /api/documents", docHandler.CreateDocument)
	mux.HandleFunc("POST /api/documents/remove", docHandler.RemoveDocuments)
	mux.HandleFunc("GET /api/documents/{id}", docHandler.GetDocument)
	mux.HandleFunc("PUT /api/documents/{id}", docHandler.UpdateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", docHandler.DeleteDocument)
	mux.HandleFunc("GET /api/documents/{id}/content", docHandler.GetContent)
	mux.HandleFunc("GET /api/documents/{id}/versions", docHandler.ListVersions)
	mux.HandleFunc("POST /api/documents/{id}/versions/remove", docHandler.RemoveVersions)
	mux.HandleFunc("POST /api/documents/{id}/lock", docHandler.LockDocument)
	mux.HandleFunc("DELETE /api/documents/{id}/lock", docHandler.UnlockDocument)

	// Folder-scoped routes
	mux.HandleFunc("GET /api/folders/{folderID}/documents", docHandler.ListDocuments)
	mux.HandleFunc("GET /api/folders/{folderID}/documents/count", docHandler.CountDocuments)
	mux.HandleFunc("GET /api/folders/{folderID}/documents/delta", docHandler.GetDelta)
	mux.HandleFunc("GET /api/folders/{folderID}/documents/empty", docHandler.FolderEmpty)
	mux.HandleFunc("GET /api/folders/{folderID}/documents/foreign", docHandler.FolderForeignObjects)
	mux.HandleFunc("DELETE /api/folders/{folderID}/documents", docHandler.ClearFolder)

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Session → Routes
	httpHandler = middleware.Session()(httpHandler)
	httpHandler = middleware.Recovery(logger)(httpHandler)

	// CORS - Must come first to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow large content downloads
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

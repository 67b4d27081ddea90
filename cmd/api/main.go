package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/expense-tracker/internal/api"
	"github.com/dvloznov/expense-tracker/internal/api/handlers"
	"github.com/dvloznov/expense-tracker/internal/auth"
	"github.com/dvloznov/expense-tracker/internal/config"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/dvloznov/expense-tracker/internal/gcsuploader"
	infraBQ "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/expense-tracker/internal/locale"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
	"github.com/dvloznov/expense-tracker/internal/pipeline"
	"github.com/dvloznov/expense-tracker/internal/preferences"
	"github.com/dvloznov/expense-tracker/internal/wizard"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", os.Getenv("EXPENSE_TRACKER_CONFIG"), "Path to the YAML config file (or set EXPENSE_TRACKER_CONFIG env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize repositories
	project := cfg.GCP.Project
	if project == "" {
		project = bigquery.DetectProjectID
	}
	repo, err := infraBQ.NewRepository(ctx, project, cfg.GCP.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	files, closeFiles := objectStore(ctx, cfg, log)
	defer closeFiles()

	gateway, err := extraction.NewGeminiGateway(ctx, cfg.Extraction.Model, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction gateway")
	}

	resolver, err := locale.New(cfg.Locale.Default)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load locales")
	}

	// Auth
	roles, err := auth.LoadRoleBook(cfg.Auth.RolesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load role book")
	}
	directory := auth.NewDirectory(auth.NewFileWhitelist(cfg.Auth.WhitelistFile), roles)
	verifier := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)

	prefs := preferences.NewFileStore(cfg.Storage.PreferencesFile, preferences.DefaultKeys(resolver.Supported()))
	if err := prefs.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load preferences")
	}

	manager := wizard.NewManager()

	// Pipelines and jobs
	extract := pipeline.NewExtractionPipeline(pipeline.ExtractionDeps{
		Runs:      repo,
		Documents: repo,
		Files:     files,
		Gateway:   gateway,
		Catalog:   repo,
		Model:     cfg.Extraction.Model,
	})
	persistDeps := pipeline.PersistDeps{Writer: repo, Documents: repo}
	if cfg.NotionEnabled() {
		persistDeps.Exporter = notionsync.NewExporter(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID)
		log.Info().Msg("Notion export enabled")
	}
	persist := pipeline.NewPersistPipeline(persistDeps)

	jobMux := jobs.NewMux()
	pipeline.NewProcessor(manager, extract, persist).Register(jobMux)
	dispatch := jobMux.Handler()
	jobHandler := func(ctx context.Context, job *jobs.Job) error {
		if job.Type == jobs.JobTypeExtractStatement && cfg.Extraction.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Extraction.Timeout)
			defer cancel()
		}
		return dispatch(ctx, job)
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.Buffer, jobStore, inmemory.WithWorkers(cfg.Jobs.Workers))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	if cfg.Wizard.IdleTimeout > 0 {
		go manager.RunSweeper(workerCtx, time.Minute, cfg.Wizard.IdleTimeout, func(n int) {
			log.Info().Int("removed", n).Msg("Swept idle wizards")
		})
	}

	// Initialize handlers
	h := api.Handlers{
		Session: handlers.NewSessionHandler(resolver),
		Wizards: handlers.NewWizardsHandler(handlers.WizardsConfig{
			Manager:   manager,
			Documents: repo,
			Files:     files,
			Publisher: jobQueue,
			JobStore:  jobStore,
			Catalog:   repo,
			Notices:   handlers.NewNotices(resolver),
			MaxUpload: cfg.Server.MaxUploadBytes,
		}),
		Categories:  handlers.NewCategoriesHandler(repo, resolver),
		Whitelist:   handlers.NewWhitelistHandler(directory),
		Preferences: handlers.NewPreferencesHandler(prefs),
		Jobs:        handlers.NewJobsHandler(jobStore),
	}
	sec := api.Security{
		Verifier:  verifier,
		List:      directory,
		Locales:   resolver,
		Preferred: preferredLocale(prefs),
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(log, h, sec),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// objectStore picks GCS when a bucket is configured and the local directory
// otherwise.
func objectStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (gcsuploader.ObjectStore, func()) {
	if cfg.GCP.Bucket == "" {
		log.Warn().Str("dir", cfg.Storage.LocalDir).Msg("No GCS bucket configured - storing uploads locally")
		local, err := gcsuploader.NewLocalStore(cfg.Storage.LocalDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local upload store")
		}
		return local, func() {}
	}
	gcs, err := gcsuploader.NewGCSStore(ctx, cfg.GCP.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	return gcs, func() {
		if err := gcs.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close GCS client")
		}
	}
}

func preferredLocale(prefs *preferences.FileStore) func(string) string {
	return func(user string) string {
		v, ok, err := prefs.Get(user, preferences.KeyLocale)
		if err != nil || !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	}
}

// Command api serves the HTTP surface: aggregator connections, statement
// uploads, ledger queries, webhooks and job status. Jobs run on an embedded
// in-memory queue; point the worker at a real broker to split them out.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/api/handlers"
	"github.com/ametsa/bachat-core/internal/api/middleware"
	"github.com/ametsa/bachat-core/internal/banksync"
	"github.com/ametsa/bachat-core/internal/categorize"
	"github.com/ametsa/bachat-core/internal/config"
	"github.com/ametsa/bachat-core/internal/docstore"
	infrabq "github.com/ametsa/bachat-core/internal/infra/bigquery"
	"github.com/ametsa/bachat-core/internal/jobs"
	"github.com/ametsa/bachat-core/internal/jobs/inmemory"
	"github.com/ametsa/bachat-core/internal/logger"
	"github.com/ametsa/bachat-core/internal/pipeline"
	"github.com/ametsa/bachat-core/internal/statement"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	repo, err := infrabq.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to bigquery")
	}
	defer repo.Close()

	docs, err := docstore.NewStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to document store")
	}
	defer docs.Close()

	aaClient := aggregator.NewClient(aggregator.Config{
		BaseURL:               cfg.Aggregator.BaseURL,
		ClientID:              cfg.Aggregator.ClientID,
		ClientSecret:          cfg.Aggregator.ClientSecret,
		ProductInstanceID:     cfg.Aggregator.ProductInstanceID,
		VUASuffix:             cfg.Aggregator.VUASuffix,
		ConsentDurationMonths: cfg.Aggregator.ConsentMonths,
	}, log)

	var categorizer categorize.Categorizer = categorize.NewKeywordCategorizer()
	var extractor pipeline.TextExtractor = pipeline.PlainTextExtractor{}
	if cfg.Gemini.Enabled {
		gemCat, err := categorize.NewGeminiCategorizer(ctx, cfg.Gemini.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("creating gemini categorizer")
		}
		gemExt, err := pipeline.NewGeminiTextExtractor(ctx, cfg.Gemini.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("creating gemini extractor")
		}
		categorizer, extractor = gemCat, gemExt
	}

	syncSvc := banksync.New(aaClient, repo, categorizer, banksync.Config{
		DataFetchMonths: cfg.Aggregator.DataFetchMonths,
	}, log)

	ingestor := pipeline.NewIngestor(
		repo, repo, docs, extractor,
		statement.NewRegistry(), categorizer, log,
	)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)
	defer queue.Close()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := queue.Start(workerCtx, jobHandler(ingestor, syncSvc, log)); err != nil {
		log.Fatal().Err(err).Msg("starting job workers")
	}

	connections := handlers.NewConnectionsHandler(syncSvc, repo, queue, log)
	statements := handlers.NewStatementsHandler(repo, docs, queue, log)
	transactions := handlers.NewTransactionsHandler(repo, log)
	webhook := handlers.NewWebhookHandler(syncSvc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/connections", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			connections.Initiate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			connections.ListAccounts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
		accountID, action, _ := strings.Cut(rest, "/")
		if accountID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "account ID is required")
			return
		}
		switch {
		case action == "" && r.Method == http.MethodGet:
			connections.GetAccount(w, r, accountID)
		case action == "" && r.Method == http.MethodDelete:
			connections.Disconnect(w, r, accountID)
		case action == "sync" && r.Method == http.MethodPost:
			connections.EnqueueSync(w, r, accountID)
		case action == "consent/refresh" && r.Method == http.MethodPost:
			connections.RefreshConsent(w, r, accountID)
		case action == "history" && r.Method == http.MethodGet:
			connections.History(w, r, accountID)
		default:
			middleware.WriteError(w, http.StatusNotFound, "not found")
		}
	})

	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			statements.Upload(w, r)
		case http.MethodGet:
			statements.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/statements/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		statementID := strings.TrimPrefix(r.URL.Path, "/api/statements/")
		if statementID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "statement ID is required")
			return
		}
		statements.Get(w, r, statementID)
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactions.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/webhooks/aggregator", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			webhook.Receive(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "job ID is required")
			return
		}
		jobsHandler.Get(w, r, jobID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(log, mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("draining job queue")
	}
}

// jobHandler dispatches queued work to the statement pipeline or the
// aggregator sync service based on job type.
func jobHandler(ingestor *pipeline.Ingestor, syncSvc *banksync.Service, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) error {
		switch job.Type {
		case jobs.JobTypeParseStatement:
			return ingestor.IngestStatementFromGCS(ctx, job.StatementID)
		case jobs.JobTypeSyncAccount:
			_, err := syncSvc.SyncAccount(ctx, job.AccountID, job.Trigger)
			return err
		default:
			log.Warn().Str("job_type", string(job.Type)).Msg("unknown job type")
			return fmt.Errorf("jobHandler: unknown job type %q", job.Type)
		}
	}
}

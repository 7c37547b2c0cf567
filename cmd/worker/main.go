// Command worker runs the background side of the service without the HTTP
// surface: the job queue consumers plus a scheduled sync loop that enqueues
// a refresh for every account with an active consent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/banksync"
	"github.com/ametsa/bachat-core/internal/categorize"
	"github.com/ametsa/bachat-core/internal/config"
	"github.com/ametsa/bachat-core/internal/docstore"
	"github.com/ametsa/bachat-core/internal/domain"
	infrabq "github.com/ametsa/bachat-core/internal/infra/bigquery"
	"github.com/ametsa/bachat-core/internal/jobs"
	"github.com/ametsa/bachat-core/internal/jobs/inmemory"
	"github.com/ametsa/bachat-core/internal/logger"
	"github.com/ametsa/bachat-core/internal/pipeline"
	"github.com/ametsa/bachat-core/internal/statement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Pretty).With().Str("component", "worker").Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	handler := func(ctx context.Context, job *jobs.Job) error {
		switch job.Type {
		case jobs.JobTypeParseStatement:
			return ingestor.IngestStatementFromGCS(ctx, job.StatementID)
		case jobs.JobTypeSyncAccount:
			_, err := syncSvc.SyncAccount(ctx, job.AccountID, job.Trigger)
			return err
		default:
			return fmt.Errorf("worker: unknown job type %q", job.Type)
		}
	}
	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("starting job workers")
	}

	if cfg.Jobs.SyncIntervalHours > 0 {
		go syncLoop(ctx, repo, queue, time.Duration(cfg.Jobs.SyncIntervalHours)*time.Hour, log)
	}

	log.Info().
		Int("workers", cfg.Jobs.Workers).
		Int("sync_interval_hours", cfg.Jobs.SyncIntervalHours).
		Msg("worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("draining job queue")
	}
}

// syncLoop enqueues a scheduled refresh for every ACTIVE account on each
// tick. Syncs are dedupe-guarded downstream, so overlapping a manual sync
// wastes a fetch at worst.
func syncLoop(ctx context.Context, repo *infrabq.Repository, publisher jobs.Publisher, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		accounts, err := repo.ListAccountsByConsentStatus(ctx, domain.ConsentActive)
		if err != nil {
			log.Error().Err(err).Msg("listing active accounts for scheduled sync")
			continue
		}
		for _, account := range accounts {
			job := jobs.NewSyncAccountJob(account.ID, domain.TriggerScheduled)
			if err := publisher.Publish(ctx, job); err != nil {
				log.Error().Err(err).Str("account_id", account.ID).Msg("enqueueing scheduled sync")
				continue
			}
			log.Debug().Str("account_id", account.ID).Str("job_id", job.JobID).Msg("scheduled sync enqueued")
		}
	}
}

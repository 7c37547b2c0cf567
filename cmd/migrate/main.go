// Command migrate applies the SQL files under migrations/bigquery to a
// BigQuery dataset, tracking applied versions in schema_migrations.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/ametsa/bachat-core/internal/logger"
)

var migrationFilePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

func main() {
	var (
		projectID     = flag.String("project", "", "GCP project ID (required)")
		datasetID     = flag.String("dataset", "bachat", "BigQuery dataset ID")
		appliedBy     = flag.String("applied-by", "migrate-cli", "recorded as the applier of each migration")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "path to migration files")
	)
	flag.Parse()

	log := logger.Setup("info", true)

	if *projectID == "" {
		log.Fatal().Msg("-project flag is required")
	}

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("creating bigquery client")
	}
	defer client.Close()

	table := fmt.Sprintf("`%s.%s.schema_migrations`", *projectID, *datasetID)
	if err := runDDL(ctx, client, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version     INT64 NOT NULL,
			name        STRING NOT NULL,
			applied_at  TIMESTAMP NOT NULL,
			checksum    STRING,
			applied_by  STRING
		)
	`, table)); err != nil {
		log.Fatal().Err(err).Msg("ensuring schema_migrations table")
	}

	migrations, err := loadMigrations(*migrationsDir, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("loading migration files")
	}
	log.Info().Int("count", len(migrations)).Msg("migration files found")

	applied, err := appliedVersions(ctx, client, table)
	if err != nil {
		log.Fatal().Err(err).Msg("reading applied migrations")
	}

	ran := 0
	for _, m := range migrations {
		if applied[m.Version] {
			log.Info().Int("version", m.Version).Str("name", m.Name).Msg("already applied, skipping")
			continue
		}
		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying")
		if err := runDDL(ctx, client, m.SQL); err != nil {
			log.Fatal().Err(err).Int("version", m.Version).Str("name", m.Name).Msg("migration failed")
		}
		if err := record(ctx, client, table, m, *appliedBy); err != nil {
			log.Fatal().Err(err).Int("version", m.Version).Msg("recording migration")
		}
		ran++
	}

	if ran == 0 {
		log.Info().Msg("dataset is up to date")
	} else {
		log.Info().Int("applied", ran).Msg("migrations applied")
	}
}

// loadMigrations reads NNNN_name.sql files, substitutes the project and
// dataset placeholders, and returns them sorted by version. Checksums are
// taken over the raw file so they don't vary per target.
func loadMigrations(dir, projectID, datasetID string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loadMigrations: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loadMigrations: reading %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, migration{
			Version:  version,
			Name:     matches[2],
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func appliedVersions(ctx context.Context, client *bigquery.Client, table string) (map[int]bool, error) {
	q := client.Query(fmt.Sprintf(`SELECT version FROM %s ORDER BY version`, table))
	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return map[int]bool{}, nil
		}
		return nil, err
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}

func runDDL(ctx context.Context, client *bigquery.Client, sql string) error {
	job, err := client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	return status.Err()
}

func record(ctx context.Context, client *bigquery.Client, table string, m migration, appliedBy string) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	return status.Err()
}

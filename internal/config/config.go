// Package config loads service configuration from file and environment.
// Env var overrides use the prefix BACHAT_, e.g. BACHAT_BIGQUERY_PROJECT_ID.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full service configuration.
type Config struct {
	Server     ServerConfig
	BigQuery   BigQueryConfig
	Storage    StorageConfig
	Aggregator AggregatorConfig
	Gemini     GeminiConfig
	Jobs       JobsConfig
	Log        LogConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

// BigQueryConfig locates the dataset backing the ledger.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

// StorageConfig locates the statement document bucket.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// AggregatorConfig holds account-aggregator provider credentials.
type AggregatorConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	ProductInstanceID string `mapstructure:"product_instance_id"`
	VUASuffix         string `mapstructure:"vua_suffix"`
	ConsentMonths     int    `mapstructure:"consent_months"`
	DataFetchMonths   int    `mapstructure:"data_fetch_months"`
}

// GeminiConfig holds model settings for text extraction and categorization.
type GeminiConfig struct {
	Model   string `mapstructure:"model"`
	Enabled bool   `mapstructure:"enabled"`
}

// JobsConfig tunes the in-memory job queue and the scheduled sync loop.
type JobsConfig struct {
	BufferSize        int `mapstructure:"buffer_size"`
	Workers           int `mapstructure:"workers"`
	SyncIntervalHours int `mapstructure:"sync_interval_hours"` // 0 disables scheduled sync
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from file and env. A config file is optional;
// BACHAT_CONFIG points at one explicitly, otherwise ./config.yaml is tried.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15)
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset_id", "bachat")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("aggregator.base_url", "")
	v.SetDefault("aggregator.client_id", "")
	v.SetDefault("aggregator.client_secret", "")
	v.SetDefault("aggregator.product_instance_id", "")
	v.SetDefault("aggregator.vua_suffix", "@onemoney")
	v.SetDefault("aggregator.consent_months", 12)
	v.SetDefault("aggregator.data_fetch_months", 6)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.enabled", true)
	v.SetDefault("jobs.buffer_size", 64)
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.sync_interval_hours", 6)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv("BACHAT_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BACHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	return c, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	if c.BigQuery.ProjectID == "" {
		return fmt.Errorf("bigquery.project_id is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	return nil
}

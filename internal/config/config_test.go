package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.BigQuery.DatasetID != "bachat" {
		t.Errorf("default dataset = %q", cfg.BigQuery.DatasetID)
	}
	if cfg.Aggregator.VUASuffix != "@onemoney" {
		t.Errorf("default vua suffix = %q", cfg.Aggregator.VUASuffix)
	}
	if cfg.Aggregator.ConsentMonths != 12 {
		t.Errorf("default consent months = %d", cfg.Aggregator.ConsentMonths)
	}
	if cfg.Jobs.Workers != 4 {
		t.Errorf("default workers = %d", cfg.Jobs.Workers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BACHAT_SERVER_PORT", "9090")
	t.Setenv("BACHAT_BIGQUERY_PROJECT_ID", "test-project")
	t.Setenv("BACHAT_AGGREGATOR_BASE_URL", "https://fiu.example.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.BigQuery.ProjectID != "test-project" {
		t.Errorf("project = %q", cfg.BigQuery.ProjectID)
	}
	if cfg.Aggregator.BaseURL != "https://fiu.example.test" {
		t.Errorf("base url = %q", cfg.Aggregator.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty config should not validate")
	}
	cfg.BigQuery.ProjectID = "p"
	cfg.Storage.Bucket = "b"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

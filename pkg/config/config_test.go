package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8000 || cfg.Models.TiePolicy != "real" || cfg.Transformer.MaxTokens != 512 {
		t.Errorf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Scraper.MinTextLength != 100 || cfg.Kafka.Topics.DeadLetter != "article-dead-letter" {
		t.Errorf("scraper/kafka defaults: %+v %+v", cfg.Scraper, cfg.Kafka.Topics)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
server:
  port: 9001
  requestTimeout: 3s
models:
  artifactDir: /srv/models
  enabled: [xgboost]
training:
  seed: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9001 || cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Models.ArtifactDir != "/srv/models" || len(cfg.Models.Enabled) != 1 || cfg.Training.Seed != 7 {
		t.Errorf("models = %+v seed = %d", cfg.Models, cfg.Training.Seed)
	}
	// Untouched sections keep their defaults.
	if cfg.Training.TestRatio != 0.2 {
		t.Errorf("TestRatio = %v", cfg.Training.TestRatio)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FN_SERVER_PORT", "7000")
	t.Setenv("FN_MODELS_TIE_POLICY", "FAKE")
	t.Setenv("FN_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FN_REDIS_ENABLED", "true")
	t.Setenv("FN_POSTGRES_ENABLED", "not-a-bool")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 || cfg.Models.TiePolicy != "fake" {
		t.Errorf("port %d tie %q", cfg.Server.Port, cfg.Models.TiePolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || !cfg.Redis.Enabled || cfg.Postgres.Enabled {
		t.Errorf("kafka %v redis %v postgres %v", cfg.Kafka.Brokers, cfg.Redis.Enabled, cfg.Postgres.Enabled)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"test ratio", "training:\n  testRatio: 1.5\n", "testRatio"},
		{"max terms", "training:\n  maxTerms: -1\n", "maxTerms"},
		{"tie policy", "models:\n  tiePolicy: coin\n", "tiePolicy"},
		{"sample fraction", "training:\n  sampleFraction: 2\n", "sampleFraction"},
		{"malformed", "server: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "cfg.yaml", tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("FN_LOGGING_LEVEL", "warn")
	path := writeFile(t, ".env", "FN_LOGGING_LEVEL=debug\nFN_DOTENV_CHECK=from-file\n")
	t.Cleanup(func() { os.Unsetenv("FN_DOTENV_CHECK") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("FN_DOTENV_CHECK"); got != "from-file" {
		t.Errorf("FN_DOTENV_CHECK = %q", got)
	}
	if got := os.Getenv("FN_LOGGING_LEVEL"); got != "warn" {
		t.Errorf("existing variable overwritten: %q", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	want := "host=db port=5433 user=u password=p dbname=d sslmode=require"
	if got := p.DSN(); got != want {
		t.Errorf("DSN = %q", got)
	}
}

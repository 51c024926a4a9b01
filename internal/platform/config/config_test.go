package config

import (
	"os"
	"testing"
	"time"
)

// clearEnv unsets all LEARN_ environment variables for a clean test.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LEARN_SERVER_PORT",
		"LEARN_SERVER_HOST",
		"LEARN_EXAM_NAME",
		"LEARN_EXAM_DATE",
		"LEARN_STORAGE_DRIVER",
		"LEARN_DATA_DIR",
		"LEARN_STATE_TABLE",
		"LEARN_SCORES_TABLE",
		"LEARN_SCRATCH_DIR",
		"LEARN_SQLITE_PATH",
		"LEARN_DATABASE_URL",
		"LEARN_DATABASE_MAX_CONNS",
		"LEARN_DATABASE_MIN_CONNS",
		"LEARN_CACHE_ENABLED",
		"LEARN_CACHE_URL",
		"LEARN_CACHE_TTL_MINUTES",
		"LEARN_AI_OPENROUTER_API_KEY",
		"LEARN_AI_OPENROUTER_MODEL",
		"LEARN_AI_OPENROUTER_BASE_URL",
		"LEARN_AI_OLLAMA_URL",
		"LEARN_AI_OLLAMA_MODEL",
		"LEARN_AI_TOKEN_BUDGET",
		"LEARN_AI_FANOUT_LIMIT",
		"LEARN_CATALOG_PATH",
		"LEARN_CORS_ORIGINS",
		"LEARN_LOG_LEVEL",
		"LEARN_LOG_FORMAT",
	}
	for _, v := range envVars {
		_ = os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != DriverCSV {
		t.Errorf("Storage.Driver = %q, want csv", cfg.Storage.Driver)
	}
	if cfg.Storage.StateTable != "stato_argomenti" {
		t.Errorf("Storage.StateTable = %q, want stato_argomenti", cfg.Storage.StateTable)
	}
	if cfg.Storage.ScoresTable != "punteggi_test" {
		t.Errorf("Storage.ScoresTable = %q, want punteggi_test", cfg.Storage.ScoresTable)
	}
	if cfg.Storage.ScratchDir != "./data/temp_test_files" {
		t.Errorf("Storage.ScratchDir = %q, want ./data/temp_test_files", cfg.Storage.ScratchDir)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
	}
	if cfg.AI.FanOutLimit != 4 {
		t.Errorf("AI.FanOutLimit = %d, want 4", cfg.AI.FanOutLimit)
	}
	if cfg.CatalogPath != "argomenti_orali.csv" {
		t.Errorf("CatalogPath = %q, want argomenti_orali.csv", cfg.CatalogPath)
	}
	if cfg.HasAIProvider() {
		t.Error("HasAIProvider() = true, want false")
	}
	if !cfg.Exam.Date.IsZero() {
		t.Errorf("Exam.Date = %v, want zero", cfg.Exam.Date)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %v, want [http://localhost:3000]", cfg.CORSOrigins)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("LEARN_SERVER_PORT", "9090")
	t.Setenv("LEARN_EXAM_DATE", "2025-09-24")
	t.Setenv("LEARN_STORAGE_DRIVER", "SQLite")
	t.Setenv("LEARN_DATA_DIR", "/var/lib/studio")
	t.Setenv("LEARN_CACHE_ENABLED", "1")
	t.Setenv("LEARN_AI_OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("LEARN_AI_TOKEN_BUDGET", "50000")
	t.Setenv("LEARN_CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	want := time.Date(2025, 9, 24, 0, 0, 0, 0, time.UTC)
	if !cfg.Exam.Date.Equal(want) {
		t.Errorf("Exam.Date = %v, want %v", cfg.Exam.Date, want)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.SQLitePath != "/var/lib/studio/studio.db" {
		t.Errorf("Storage.SQLitePath = %q, want /var/lib/studio/studio.db", cfg.Storage.SQLitePath)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.AI.TokenBudget != 50000 {
		t.Errorf("AI.TokenBudget = %d, want 50000", cfg.AI.TokenBudget)
	}
	if !cfg.HasAIProvider() {
		t.Error("HasAIProvider() = false, want true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("CORSOrigins = %v, want [http://a.test http://b.test]", cfg.CORSOrigins)
	}
}

func TestLoad_InvalidExamDate(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEARN_EXAM_DATE", "24/09/2025")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on a malformed exam date")
	}
}

func TestValidate(t *testing.T) {
	exam := time.Date(2025, 9, 24, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing exam date", func(c *Config) { c.Exam.Date = time.Time{} }, true},
		{"missing catalog", func(c *Config) { c.CatalogPath = "" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, true},
		{"postgres without url", func(c *Config) {
			c.Storage.Driver = DriverPostgres
			c.Database.URL = ""
		}, true},
		{"postgres with url", func(c *Config) { c.Storage.Driver = DriverPostgres }, false},
		{"zero fan-out", func(c *Config) { c.AI.FanOutLimit = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			cfg.Exam.Date = exam
			tt.modify(cfg)

			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHasAIProvider_Ollama(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEARN_AI_OLLAMA_URL", "http://localhost:11434")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.HasAIProvider() {
		t.Error("HasAIProvider() = false, want true")
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("LEARN_TEST_INT", "not-a-number")
	if got := envInt("LEARN_TEST_INT", 42); got != 42 {
		t.Errorf("envInt() = %d, want 42", got)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"yes", false},
	}
	for _, tt := range tests {
		t.Setenv("LEARN_TEST_BOOL", tt.val)
		if got := envBool("LEARN_TEST_BOOL", false); got != tt.want {
			t.Errorf("envBool(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

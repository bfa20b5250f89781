package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q, want gemini-2.5-flash", cfg.Gemini.Model)
	}
	if cfg.Gemini.LightModel != "gemini-2.5-flash-lite" {
		t.Errorf("Gemini.LightModel = %q, want gemini-2.5-flash-lite", cfg.Gemini.LightModel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Query.MaxArticles != 200 {
		t.Errorf("Query.MaxArticles = %d, want 200", cfg.Query.MaxArticles)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("DATABASE_URL", "postgres://env-host/spectra")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "key-from-alternate-name")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Database.URL != "postgres://env-host/spectra" {
		t.Errorf("Database.URL = %q, want env value", cfg.Database.URL)
	}
	if cfg.Gemini.APIKey != "key-from-alternate-name" {
		t.Errorf("Gemini.APIKey = %q, want env value", cfg.Gemini.APIKey)
	}
}

func TestLoadCachesConfig(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	second, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if first != second {
		t.Error("expected repeated Load() to return the cached config")
	}
}

// Package config loads application configuration from a YAML file, .env and
// environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  Database  `mapstructure:"database"`
	Gemini    Gemini    `mapstructure:"gemini"`
	Translate Translate `mapstructure:"translate"`
	Crawl     Crawl     `mapstructure:"crawl"`
	Query     Query     `mapstructure:"query"`
	Server    Server    `mapstructure:"server"`
}

// Database holds the relational store configuration.
type Database struct {
	URL string `mapstructure:"url"`
}

// Gemini holds the LLM and embedding service configuration.
type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`       // heavy calls: spectrum definition, classification
	LightModel     string `mapstructure:"light_model"` // cheap calls: labels, summaries, relations
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// Translate holds the machine-translation provider configuration. When
// APIKey is empty the client falls back to Application Default Credentials.
type Translate struct {
	ProjectID string `mapstructure:"project_id"`
	APIKey    string `mapstructure:"api_key"`
}

// Crawl holds crawler tuning.
type Crawl struct {
	Timeout   string `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
}

// Query holds retrieval tuning for the query path.
type Query struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxArticles         int     `mapstructure:"max_articles"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var globalConfig *Config

// Load loads the configuration from various sources.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".spectra")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.light_model", "gemini-2.5-flash-lite")
	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")

	viper.SetDefault("crawl.timeout", "20s")
	viper.SetDefault("crawl.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36")

	viper.SetDefault("query.similarity_threshold", 0.63)
	viper.SetDefault("query.max_articles", 200)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"*"})
}

// bindEnvironmentVariables maps well-known environment variable names onto
// config keys.
func bindEnvironmentVariables() {
	bindEnvKeys("database.url", []string{"DATABASE_URL"})
	bindEnvKeys("gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("translate.project_id", []string{"GOOGLE_PROJECT_ID"})
	bindEnvKeys("translate.api_key", []string{"GOOGLE_TRANSLATE_API_KEY"})
}

// bindEnvKeys binds the first set environment variable from the candidate
// list to a viper key.
func bindEnvKeys(key string, envVars []string) {
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			viper.Set(key, value)
			return
		}
	}
	if len(envVars) > 0 {
		_ = viper.BindEnv(append([]string{key}, envVars...)...)
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/campaign-agent/internal/models"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig         `mapstructure:"database"`
	AI         models.AIConfig        `mapstructure:"ai"`
	WordPress  models.WordPressConfig `mapstructure:"wordpress"`
	Generation GenerationConfig       `mapstructure:"generation"`
	Publishing PublishingConfig       `mapstructure:"publishing"`
	Images     ImageConfig            `mapstructure:"images"`
	History    HistoryConfig          `mapstructure:"history"`
	Scheduler  SchedulerConfig        `mapstructure:"scheduler"`
	Logging    LoggingConfig          `mapstructure:"logging"`
}

// DatabaseConfig holds local history database settings
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // SQLite file path
}

// GenerationConfig holds campaign generation defaults
type GenerationConfig struct {
	DefaultPostCount int     `mapstructure:"default_post_count"`
	DefaultTone      string  `mapstructure:"default_tone"`
	DefaultGoal      string  `mapstructure:"default_goal"`
	Temperature      float64 `mapstructure:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens"`
}

// PublishingConfig holds WordPress publishing settings
type PublishingConfig struct {
	// Delay between consecutive publish calls during bulk publish,
	// to respect third-party rate limits.
	BulkDelay time.Duration `mapstructure:"bulk_delay"`
}

// ImageConfig holds image generation settings
type ImageConfig struct {
	GeminiModel string `mapstructure:"gemini_model"` // Imagen model for the Gemini provider
	OpenAIModel string `mapstructure:"openai_model"` // DALL-E model for OpenAI/OpenRouter
	PreviewDir  string `mapstructure:"preview_dir"`  // where transient preview files are written
}

// HistoryConfig bounds the persisted campaign history
type HistoryConfig struct {
	Limit int `mapstructure:"limit"`
}

// SchedulerConfig holds scheduler daemon settings
type SchedulerConfig struct {
	PublishCron string `mapstructure:"publish_cron"`
	HealthPort  string `mapstructure:"health_port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".campaign-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("CAMPAIGN")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("ai.provider", "CAMPAIGN_AI_PROVIDER")
	v.BindEnv("ai.api_key", "CAMPAIGN_AI_API_KEY")
	v.BindEnv("ai.model", "CAMPAIGN_AI_MODEL")
	v.BindEnv("ai.validated", "CAMPAIGN_AI_VALIDATED")
	v.BindEnv("wordpress.url", "CAMPAIGN_WORDPRESS_URL")
	v.BindEnv("wordpress.username", "CAMPAIGN_WORDPRESS_USERNAME")
	v.BindEnv("wordpress.app_password", "CAMPAIGN_WORDPRESS_APP_PASSWORD")
	v.BindEnv("wordpress.validated", "CAMPAIGN_WORDPRESS_VALIDATED")
	v.BindEnv("database.dsn", "CAMPAIGN_DATABASE_DSN")
	v.BindEnv("scheduler.publish_cron", "CAMPAIGN_SCHEDULER_PUBLISH_CRON")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.dsn", "./data/campaigns.db")

	// AI defaults
	v.SetDefault("ai.provider", string(models.ProviderGemini))
	v.SetDefault("ai.model", "")

	// Generation defaults
	v.SetDefault("generation.default_post_count", 4)
	v.SetDefault("generation.default_tone", string(models.ToneProfessional))
	v.SetDefault("generation.default_goal", string(models.GoalBrandAwareness))
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.max_tokens", 4096)

	// Publishing defaults
	v.SetDefault("publishing.bulk_delay", 2*time.Second)

	// Image defaults
	v.SetDefault("images.gemini_model", "imagen-3.0-generate-002")
	v.SetDefault("images.openai_model", "dall-e-3")
	v.SetDefault("images.preview_dir", "")

	// History defaults
	v.SetDefault("history.limit", 20)

	// Scheduler defaults
	v.SetDefault("scheduler.publish_cron", "*/5 * * * *") // Every 5 minutes
	v.SetDefault("scheduler.health_port", "10000")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, ok := models.DefaultModels[c.AI.Provider]; !ok {
		return fmt.Errorf("ai.provider must be one of gemini, openai, claude, openrouter")
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	AI         AIConfig         `mapstructure:"ai"`
	Database   DatabaseConfig   `mapstructure:"database"`
	State      StateConfig      `mapstructure:"state"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Context    ContextConfig    `mapstructure:"context"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token          string        `mapstructure:"token"`
	Webhook        WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout  int           `mapstructure:"update_timeout"`
	SupportContact string        `mapstructure:"support_contact"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
	Secret  string `mapstructure:"secret"`
}

// AIConfig selects the completion provider and the media/transcription backends.
type AIConfig struct {
	Provider       string              `mapstructure:"provider"`
	RequestTimeout time.Duration       `mapstructure:"request_timeout"`
	Groq           OpenAICompatConfig  `mapstructure:"groq"`
	OpenAI         OpenAICompatConfig  `mapstructure:"openai"`
	Yandex         YandexConfig        `mapstructure:"yandex"`
	Transcription  TranscriptionConfig `mapstructure:"transcription"`
	Image          GeneratorConfig     `mapstructure:"image"`
	Video          GeneratorConfig     `mapstructure:"video"`
}

type OpenAICompatConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type YandexConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	FolderID    string  `mapstructure:"folder_id"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type TranscriptionConfig struct {
	// Backend is "groq" or "openai"; credentials are shared with the completion section.
	Backend  string `mapstructure:"backend"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type GeneratorConfig struct {
	// Backend is "url" (template, no HTTP call) or "openai" (Images API).
	Backend  string `mapstructure:"backend"`
	Template string `mapstructure:"template"`
	Model    string `mapstructure:"model"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	// Delivery is how the result is sent: "photo" or "video". Telegram only
	// accepts MPEG4 links as video, so image endpoints must deliver as photo.
	Delivery string `mapstructure:"delivery"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	Migrate      bool   `mapstructure:"migrate"`
}

type StateConfig struct {
	Type  string        `mapstructure:"type"`
	Redis RedisConfig   `mapstructure:"redis"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type ContextConfig struct {
	HistoryLimit int    `mapstructure:"history_limit"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

const DefaultSystemPrompt = "Ты полезный AI-помощник. Отвечай кратко и по делу на русском языке. Ты помнишь предыдущие сообщения в разговоре."

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.update_timeout", 60)
	v.SetDefault("bot.support_contact", "@NerdIdk")
	v.SetDefault("bot.webhook.enabled", false)
	v.SetDefault("bot.webhook.port", 8080)
	v.SetDefault("bot.webhook.path", "/api/webhook")

	v.SetDefault("ai.provider", "groq")
	v.SetDefault("ai.request_timeout", 2*time.Minute)
	v.SetDefault("ai.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("ai.groq.temperature", 0.7)
	v.SetDefault("ai.groq.max_tokens", 2000)
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.temperature", 0.7)
	v.SetDefault("ai.openai.max_tokens", 2000)
	v.SetDefault("ai.yandex.model", "yandexgpt-lite")
	v.SetDefault("ai.yandex.temperature", 0.6)
	v.SetDefault("ai.yandex.max_tokens", 2000)
	v.SetDefault("ai.transcription.backend", "groq")
	v.SetDefault("ai.transcription.model", "whisper-large-v3")
	v.SetDefault("ai.transcription.language", "ru")
	v.SetDefault("ai.image.backend", "url")
	v.SetDefault("ai.image.template", "https://image.pollinations.ai/prompt/{prompt}?width={width}&height={height}&model={model}&nologo=true")
	v.SetDefault("ai.image.model", "flux")
	v.SetDefault("ai.image.width", 1024)
	v.SetDefault("ai.image.height", 1024)
	v.SetDefault("ai.image.delivery", "photo")
	v.SetDefault("ai.video.backend", "url")
	v.SetDefault("ai.video.template", "https://image.pollinations.ai/prompt/{prompt}?width={width}&height={height}&model={model}&nologo=true")
	v.SetDefault("ai.video.model", "turbo")
	v.SetDefault("ai.video.width", 1280)
	v.SetDefault("ai.video.height", 720)
	// The default video endpoint renders a still frame.
	v.SetDefault("ai.video.delivery", "photo")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.migrate", true)

	v.SetDefault("state.type", "memory")
	v.SetDefault("state.ttl", time.Duration(0))
	v.SetDefault("state.redis.addr", "127.0.0.1:6379")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.max_size", 1000)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 20)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("context.history_limit", 10)
	v.SetDefault("context.system_prompt", DefaultSystemPrompt)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("monitoring.metrics.enabled", false)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "ru")
	v.SetDefault("i18n.languages", []string{"ru", "en"})
}

// LoadConfig loads configuration from file and environment variables.
// A missing file is not an error: serverless deployments configure the bot
// through the environment only.
func LoadConfig(configPath string) (*Config, error) {
	config, err := load(configPath)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadBotConfig loads only what webhook maintenance needs: the token and
// the webhook section.
func LoadBotConfig(configPath string) (*BotConfig, error) {
	config, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	return &config.Bot, nil
}

func load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("bot.token", "BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("bot.webhook.url", "WEBHOOK_URL")
	v.BindEnv("bot.webhook.secret", "WEBHOOK_SECRET")
	v.BindEnv("bot.webhook.port", "PORT")
	v.BindEnv("ai.provider", "AI_PROVIDER")
	v.BindEnv("ai.groq.api_key", "GROQ_API_KEY")
	v.BindEnv("ai.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.yandex.api_key", "YANDEX_API_KEY")
	v.BindEnv("ai.yandex.folder_id", "YANDEX_FOLDER_ID")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("state.redis.password", "REDIS_PASSWORD")
	v.BindEnv("state.redis.db", "REDIS_DB")
	v.BindEnv("logging.level", "LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := os.Getenv("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.State.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Bot.Webhook.Enabled && cfg.Bot.Webhook.Path == "" {
		return fmt.Errorf("webhook path is required when webhook is enabled")
	}

	switch cfg.AI.Provider {
	case "groq":
		if cfg.AI.Groq.APIKey == "" {
			return fmt.Errorf("groq api key is required")
		}
	case "openai":
		if cfg.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("openai api key is required")
		}
	case "yandex":
		if cfg.AI.Yandex.APIKey == "" || cfg.AI.Yandex.FolderID == "" {
			return fmt.Errorf("yandex api key and folder id are required")
		}
	default:
		return fmt.Errorf("unsupported ai provider: %s", cfg.AI.Provider)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite3", "mysql":
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch cfg.State.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported state type: %s", cfg.State.Type)
	}

	for kind, gen := range map[string]GeneratorConfig{"image": cfg.AI.Image, "video": cfg.AI.Video} {
		switch gen.Delivery {
		case "photo", "video":
		default:
			return fmt.Errorf("unsupported %s delivery: %s", kind, gen.Delivery)
		}
	}

	if cfg.Context.HistoryLimit <= 0 {
		return fmt.Errorf("context history limit must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Bot      BotConfig
	Security SecurityConfig
	Telegram TelegramConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// AllowedOrigins - браузерные origins дашборда (CORS и WebSocket)
	AllowedOrigins []string
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ExchangeConfig - настройки биржевого шлюза
type ExchangeConfig struct {
	// Name - имя биржи: bit2me или mexc
	Name      string
	APIKey    string
	SecretKey string

	// QuoteCurrency - котируемая валюта, из которой достраиваются
	// торговые пары ("ETH" -> "ETH/USDT")
	QuoteCurrency string

	// TakerFee - доля комиссии тейкера (0.0026 = 0.26%)
	TakerFee float64
}

// BotConfig - периодичность и параметры защитных задач
type BotConfig struct {
	TrailingStopInterval     time.Duration
	LimitSellGuardInterval   time.Duration
	SignalEvaluationInterval time.Duration

	// DefaultStopLossPercent - trailing stop-loss процент при отсутствии
	// персональной записи для символа (2.25 = 2.25%)
	DefaultStopLossPercent float64

	// SignalRetentionDays - хранение записей market_signal, дней
	SignalRetentionDays int
}

// SecurityConfig - настройки доступа к HTTP API
type SecurityConfig struct {
	// APITokenHash - bcrypt-хеш bearer-токена админского API.
	// Сам токен в конфигурации не хранится.
	APITokenHash string
}

// TelegramConfig - доставка уведомлений в Telegram
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   int64
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string

	// File - путь к файлу логов; пусто = stdout
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "stopguard"),
			User:            getEnv("DB_USER", "stopguard"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Exchange: ExchangeConfig{
			Name:          strings.ToLower(getEnv("EXCHANGE_NAME", "bit2me")),
			APIKey:        getEnv("EXCHANGE_API_KEY", ""),
			SecretKey:     getEnv("EXCHANGE_SECRET_KEY", ""),
			QuoteCurrency: strings.ToUpper(getEnv("QUOTE_CURRENCY", "USDT")),
			TakerFee:      getEnvAsFloat("TAKER_FEE", 0.0026),
		},
		Bot: BotConfig{
			TrailingStopInterval:     getEnvAsDuration("TRAILING_STOP_INTERVAL", 1*time.Minute),
			LimitSellGuardInterval:   getEnvAsDuration("LIMIT_SELL_GUARD_INTERVAL", 1*time.Minute),
			SignalEvaluationInterval: getEnvAsDuration("SIGNAL_EVALUATION_INTERVAL", 5*time.Minute),
			DefaultStopLossPercent:   getEnvAsFloat("DEFAULT_STOP_LOSS_PERCENT", 2.25),
			SignalRetentionDays:      getEnvAsInt("SIGNAL_RETENTION_DAYS", 30),
		},
		Security: SecurityConfig{
			APITokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Telegram: TelegramConfig{
			Enabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate проверяет критичные параметры до старта процесса
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.APIKey == "" {
		return fmt.Errorf("EXCHANGE_API_KEY is required")
	}
	if c.Exchange.SecretKey == "" {
		return fmt.Errorf("EXCHANGE_SECRET_KEY is required")
	}
	if c.Exchange.QuoteCurrency == "" {
		return fmt.Errorf("QUOTE_CURRENCY cannot be empty")
	}
	if c.Exchange.TakerFee <= 0 || c.Exchange.TakerFee >= 0.05 {
		return fmt.Errorf("TAKER_FEE must be a fraction in (0, 0.05), got %v", c.Exchange.TakerFee)
	}

	if c.Bot.TrailingStopInterval <= 0 {
		return fmt.Errorf("TRAILING_STOP_INTERVAL must be positive, got %v", c.Bot.TrailingStopInterval)
	}
	if c.Bot.LimitSellGuardInterval <= 0 {
		return fmt.Errorf("LIMIT_SELL_GUARD_INTERVAL must be positive, got %v", c.Bot.LimitSellGuardInterval)
	}
	if c.Bot.SignalEvaluationInterval <= 0 {
		return fmt.Errorf("SIGNAL_EVALUATION_INTERVAL must be positive, got %v", c.Bot.SignalEvaluationInterval)
	}
	if c.Bot.DefaultStopLossPercent < 0.25 || c.Bot.DefaultStopLossPercent > 20.0 {
		return fmt.Errorf("DEFAULT_STOP_LOSS_PERCENT must be within [0.25, 20.0], got %v",
			c.Bot.DefaultStopLossPercent)
	}
	if c.Bot.SignalRetentionDays < 1 {
		return fmt.Errorf("SIGNAL_RETENTION_DAYS must be at least 1, got %d", c.Bot.SignalRetentionDays)
	}

	if c.Security.APITokenHash == "" {
		return fmt.Errorf("API_TOKEN_HASH is required (bcrypt hash of the admin API token)")
	}
	if !strings.HasPrefix(c.Security.APITokenHash, "$2") {
		return fmt.Errorf("API_TOKEN_HASH does not look like a bcrypt hash")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED=true")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_ENABLED=true")
		}
	}

	return nil
}

// Addr возвращает адрес прослушивания HTTP сервера
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Centrifugo CentrifugoConfig `mapstructure:"centrifugo"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Channel    ChannelConfig    `mapstructure:"channel"`
	Bot        BotConfig        `mapstructure:"bot"`
	Oven       OvenConfig       `mapstructure:"oven"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=America/Sao_Paulo",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type CentrifugoConfig struct {
	URL           string `mapstructure:"url"`
	APIKey        string `mapstructure:"api_key"`
	HMACSecretKey string `mapstructure:"hmac_secret_key"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessDuration  time.Duration `mapstructure:"access_duration"`
	RefreshDuration time.Duration `mapstructure:"refresh_duration"`
}

// ChannelConfig cấu hình chung cho channel adapters
type ChannelConfig struct {
	// CloudAPIBaseURL base URL của Graph API (VD: https://graph.facebook.com/v18.0)
	CloudAPIBaseURL string `mapstructure:"cloud_api_base_url"`

	// CloudVerifyToken token cho webhook verification handshake
	CloudVerifyToken string `mapstructure:"cloud_verify_token"`

	// StaticDir thư mục media tĩnh cho waweb outbound
	StaticDir string `mapstructure:"static_dir"`

	// QueueDrainInterval chu kỳ drain của inbound queue
	QueueDrainInterval time.Duration `mapstructure:"queue_drain_interval"`
}

// BotConfig cấu hình bot runtime
type BotConfig struct {
	// SweepInterval chu kỳ quét expiry/idle của conversations
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// MessageDelay delay giữa hai tin liên tiếp khi bot gửi nhiều tin
	MessageDelay time.Duration `mapstructure:"message_delay"`
}

// OvenConfig cấu hình oven dispatcher
type OvenConfig struct {
	// SweepInterval chu kỳ kiểm tra oven đến hạn bake
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IsProduction checks if app is in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment checks if app is in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Bind environment variables - this allows ENV vars to override config
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values from config file with env expansion
	cfg := &Config{
		App: AppConfig{
			Name: getEnvOrDefault("APP_NAME", v.GetString("app.name")),
			Env:  getEnvOrDefault("APP_ENV", v.GetString("app.env")),
			Port: getEnvOrDefaultInt("APP_PORT", v.GetInt("app.port")),
		},
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("DB_HOST", v.GetString("database.host")),
			Port:            getEnvOrDefaultInt("DB_PORT", v.GetInt("database.port")),
			User:            getEnvOrDefault("DB_USER", v.GetString("database.user")),
			Password:        getEnvOrDefault("DB_PASSWORD", v.GetString("database.password")),
			Name:            getEnvOrDefault("DB_NAME", v.GetString("database.name")),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", v.GetString("database.ssl_mode")),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Centrifugo: CentrifugoConfig{
			URL:           getEnvOrDefault("CENTRIFUGO_URL", v.GetString("centrifugo.url")),
			APIKey:        getEnvOrDefault("CENTRIFUGO_API_KEY", v.GetString("centrifugo.api_key")),
			HMACSecretKey: getEnvOrDefault("CENTRIFUGO_HMAC_SECRET_KEY", v.GetString("centrifugo.hmac_secret_key")),
		},
		JWT: JWTConfig{
			Secret:          getEnvOrDefault("JWT_SECRET", v.GetString("jwt.secret")),
			AccessDuration:  v.GetDuration("jwt.access_duration"),
			RefreshDuration: v.GetDuration("jwt.refresh_duration"),
		},
		Channel: ChannelConfig{
			CloudAPIBaseURL:    getEnvOrDefault("CLOUD_API_BASE_URL", v.GetString("channel.cloud_api_base_url")),
			CloudVerifyToken:   getEnvOrDefault("CLOUD_VERIFY_TOKEN", v.GetString("channel.cloud_verify_token")),
			StaticDir:          getEnvOrDefault("STATIC_DIR", v.GetString("channel.static_dir")),
			QueueDrainInterval: v.GetDuration("channel.queue_drain_interval"),
		},
		Bot: BotConfig{
			SweepInterval: v.GetDuration("bot.sweep_interval"),
			MessageDelay:  v.GetDuration("bot.message_delay"),
		},
		Oven: OvenConfig{
			SweepInterval: v.GetDuration("oven.sweep_interval"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", v.GetString("logging.level")),
			Format: getEnvOrDefault("LOG_FORMAT", v.GetString("logging.format")),
		},
	}

	// Set defaults
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.JWT.AccessDuration == 0 {
		cfg.JWT.AccessDuration = 15 * time.Minute
	}
	if cfg.JWT.RefreshDuration == 0 {
		cfg.JWT.RefreshDuration = 168 * time.Hour
	}
	if cfg.Channel.CloudAPIBaseURL == "" {
		cfg.Channel.CloudAPIBaseURL = "https://graph.facebook.com/v18.0"
	}
	if cfg.Channel.StaticDir == "" {
		cfg.Channel.StaticDir = "static"
	}
	if cfg.Channel.QueueDrainInterval == 0 {
		cfg.Channel.QueueDrainInterval = time.Second
	}
	if cfg.Bot.SweepInterval == 0 {
		cfg.Bot.SweepInterval = 10 * time.Second
	}
	if cfg.Bot.MessageDelay == 0 {
		cfg.Bot.MessageDelay = 2 * time.Second
	}
	if cfg.Oven.SweepInterval == 0 {
		cfg.Oven.SweepInterval = 30 * time.Second
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// getEnvOrDefault returns env value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	// Handle ${VAR:default} pattern in defaultVal
	if strings.HasPrefix(defaultVal, "${") && strings.HasSuffix(defaultVal, "}") {
		inner := defaultVal[2 : len(defaultVal)-1]
		parts := strings.SplitN(inner, ":", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return defaultVal
}

// getEnvOrDefaultInt returns env value as int or default
func getEnvOrDefaultInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var intVal int
		fmt.Sscanf(val, "%d", &intVal)
		if intVal > 0 {
			return intVal
		}
	}
	if defaultVal > 0 {
		return defaultVal
	}
	return 0
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.App.Port)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	return nil
}

// LoadConfig is a helper function for backward compatibility
func LoadConfig() (*Config, error) {
	return Load("configs/config.yaml")
}

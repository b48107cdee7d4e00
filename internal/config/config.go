package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"hotelbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Booking       BookingConfig      `yaml:"booking"`
	Catalog       CatalogConfig      `yaml:"catalog"`
	Mail          MailConfig         `yaml:"mail"`
	Google        GoogleConfig       `yaml:"google"`
	Notifications NotificationConfig `yaml:"notifications"`
	Exports       ExportConfig       `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BookingConfig struct {
	MaxStayDays           int `yaml:"max_stay_days"`
	SearchCacheTTLSeconds int `yaml:"search_cache_ttl_seconds"`
	SubmitLimit           int `yaml:"submit_limit"`
	SubmitWindowSeconds   int `yaml:"submit_window_seconds"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
}

type APIHTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Port       int    `yaml:"port"`
	UserHeader string `yaml:"user_header"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
	MigrationTable string `yaml:"migration_table"`
}

// DSN renders a pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode, p.MaxConnections)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	BookingSheetName      string `yaml:"bookings_sheet_name"`
}

type NotificationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MaxRetries     int    `yaml:"max_retries"`
	BaseDelay      string `yaml:"base_delay"`
	MaxDelay       string `yaml:"max_delay"`
	QueueKey       string `yaml:"queue_key"`
	DeadLetterKey  string `yaml:"dead_letter_key"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Booking.MaxStayDays < 1 {
		return fmt.Errorf("booking.max_stay_days must be positive, got %d", c.Booking.MaxStayDays)
	}

	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "") {
		return errors.New("mail host and from are required when mail is enabled")
	}

	return ValidateAPIKeys(c.API.Auth)
}

func ValidateAPIKeys(auth APIAuthConfig) error {
	if !auth.Enabled {
		return nil
	}
	seen := make(map[string]bool)
	for _, k := range auth.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 10
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.UserHeader == "" {
		c.API.HTTP.UserHeader = "X-User-ID"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if len(c.API.CORS.AllowedOrigins) == 0 {
		c.API.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Booking.MaxStayDays == 0 {
		c.Booking.MaxStayDays = models.DefaultMaxStayDays
	}
	if c.Booking.SearchCacheTTLSeconds == 0 {
		c.Booking.SearchCacheTTLSeconds = models.DefaultSearchCacheTTL
	}
	if c.Booking.SubmitLimit == 0 {
		c.Booking.SubmitLimit = models.BookingSubmitLimit
	}
	if c.Booking.SubmitWindowSeconds == 0 {
		c.Booking.SubmitWindowSeconds = models.BookingSubmitWindow
	}

	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Google.BookingSheetName == "" {
		c.Google.BookingSheetName = "Bookings"
	}

	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Notifications.BaseDelay == "" {
		c.Notifications.BaseDelay = "2s"
	}
	if c.Notifications.MaxDelay == "" {
		c.Notifications.MaxDelay = "1m"
	}
	if c.Notifications.QueueKey == "" {
		c.Notifications.QueueKey = "hotelbook:outbox"
	}
	if c.Notifications.DeadLetterKey == "" {
		c.Notifications.DeadLetterKey = "hotelbook:outbox:dead"
	}
	if c.Notifications.PollIntervalMS == 0 {
		c.Notifications.PollIntervalMS = 1000
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Shopify  ShopifyConfig
	DeepSeek DeepSeekConfig
	Chat     ChatConfig
	IndexDB  IndexDBConfig
	Cache    CacheConfig
	Orders   OrdersConfig
	Reindex  ReindexConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"flashbot-backend"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ShopifyConfig holds the commerce platform API settings.
type ShopifyConfig struct {
	Token          string        `envconfig:"SHOPIFY_TOKEN" default:""`
	StoreDomain    string        `envconfig:"SHOPIFY_STORE_DOMAIN" default:""`
	APIVersion     string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-10"`
	StoreBaseURL   string        `envconfig:"STORE_BASE_URL" default:""`
	PageSize       int           `envconfig:"SHOPIFY_PAGE_SIZE" default:"250"`
	MaxPages       int           `envconfig:"SHOPIFY_MAX_PAGES" default:"40"`
	InventoryBatch int           `envconfig:"SHOPIFY_INVENTORY_BATCH" default:"50"`
	Timeout        time.Duration `envconfig:"SHOPIFY_TIMEOUT" default:"40s"`
	RetryAfter     time.Duration `envconfig:"SHOPIFY_RETRY_AFTER" default:"1200ms"`
	RequestsPerSec float64       `envconfig:"SHOPIFY_REQUESTS_PER_SEC" default:"2"`
	Burst          int           `envconfig:"SHOPIFY_BURST" default:"4"`
}

// AdminBase returns the admin API base URL for the configured store.
func (s *ShopifyConfig) AdminBase() string {
	return fmt.Sprintf("https://%s/admin/api/%s", s.StoreDomain, s.APIVersion)
}

// DeepSeekConfig holds the language model API settings.
type DeepSeekConfig struct {
	APIKey      string        `envconfig:"DEEPSEEK_API_KEY" default:""`
	Model       string        `envconfig:"DEEPSEEK_MODEL" default:"deepseek-chat"`
	BaseURL     string        `envconfig:"DEEPSEEK_BASE_URL" default:"https://api.deepseek.com"`
	Temperature float64       `envconfig:"DEEPSEEK_TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"DEEPSEEK_TIMEOUT" default:"40s"`
}

// ChatConfig holds retrieval and answer assembly settings.
type ChatConfig struct {
	TopK           int      `envconfig:"CHAT_TOP_K" default:"5"`
	RefusalPhrases []string `envconfig:"CHAT_REFUSAL_PHRASES" default:"lo siento,no dispongo de esa información,no tengo información"`
}

// IndexDBConfig holds catalog index store settings.
type IndexDBConfig struct {
	Type string `envconfig:"INDEX_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Dir  string `envconfig:"INDEX_DB_DIR" default:"./data"`
	// MySQL settings
	Host     string `envconfig:"INDEX_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"INDEX_DB_PORT" default:"3306"`
	Name     string `envconfig:"INDEX_DB_NAME" default:"flashbot"`
	User     string `envconfig:"INDEX_DB_USER" default:"root"`
	Password string `envconfig:"INDEX_DB_PASS" default:""`
}

// MySQLDSN returns the MySQL data source name.
func (i *IndexDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		i.User, i.Password, i.Host, i.Port, i.Name)
}

// CacheConfig holds cache settings for the orders report.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"45s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// OrdersConfig holds the published orders report settings.
type OrdersConfig struct {
	PubHTMLURL string        `envconfig:"ORDERS_PUBHTML_URL" default:""`
	TTL        time.Duration `envconfig:"ORDERS_TTL" default:"45s"`
	Timeout    time.Duration `envconfig:"ORDERS_TIMEOUT" default:"20s"`
}

// ReindexConfig holds rebuild scheduling settings.
type ReindexConfig struct {
	Interval time.Duration `envconfig:"REINDEX_INTERVAL" default:"6h"`
	OnStart  bool          `envconfig:"REINDEX_ON_START" default:"true"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

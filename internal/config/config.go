package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TESTGRADE"

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty: console only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// StoreConfig selects where definitions and submissions live.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"` // memory|sql|redis
	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // 0 disables the definition cache
}

type WatchConfig struct {
	Backend       string   `mapstructure:"backend"` // gochannel|kafka|redis
	Topic         string   `mapstructure:"topic"`
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type BlobConfig struct {
	Driver         string        `mapstructure:"driver"` // fs|minio
	BasePath       string        `mapstructure:"base_path"`
	MinioEndpoint  string        `mapstructure:"minio_endpoint"`
	MinioAccessKey string        `mapstructure:"minio_access_key"`
	MinioSecretKey string        `mapstructure:"minio_secret_key"`
	MinioBucket    string        `mapstructure:"minio_bucket"`
	MinioUseSSL    bool          `mapstructure:"minio_use_ssl"`
	URLExpiry      time.Duration `mapstructure:"url_expiry"`
}

type AuthConfig struct {
	HMACSecret    string        `mapstructure:"hmac_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	EnableLocal   bool          `mapstructure:"enable_local"`
	AdminUser     string        `mapstructure:"admin_user"`
	AdminPassHash string        `mapstructure:"admin_pass_hash"` // bcrypt
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig bounds submissions per client IP. MaxRequests 0
// disables the limit.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.public_url", "")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("store.backend", "sql")
	v.SetDefault("store.db_driver", "sqlite")
	v.SetDefault("store.db_dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)

	v.SetDefault("watch.backend", "gochannel")
	v.SetDefault("watch.topic", "test-definition-changed")
	v.SetDefault("watch.brokers", []string{"localhost:9092"})
	v.SetDefault("watch.consumer_group", "")

	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.base_path", "./data")
	v.SetDefault("blob.minio_endpoint", "localhost:9000")
	v.SetDefault("blob.minio_access_key", "")
	v.SetDefault("blob.minio_secret_key", "")
	v.SetDefault("blob.minio_bucket", "testgrade")
	v.SetDefault("blob.minio_use_ssl", false)
	v.SetDefault("blob.url_expiry", 24*time.Hour)

	v.SetDefault("auth.hmac_secret", "supersecret-dev-key")
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("auth.enable_local", true)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_pass_hash", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("rate_limit.max_requests", 60)
	v.SetDefault("rate_limit.window", time.Minute)
}

// Load reads, in increasing priority, defaults, config.yaml from the given
// directories, a .env file and TESTGRADE_* environment variables
// (TESTGRADE_STORE_BACKEND for store.backend). Missing files are fine.
func Load(paths ...string) (*Config, error) {
	// .env only fills variables that are not already set
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.Watch.Brokers = splitList(cfg.Watch.Brokers)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("store.backend: unsupported %q", c.Store.Backend)
	}
	switch c.Watch.Backend {
	case "gochannel", "kafka", "redis":
	default:
		return fmt.Errorf("watch.backend: unsupported %q", c.Watch.Backend)
	}
	switch c.Blob.Driver {
	case "fs", "minio":
	default:
		return fmt.Errorf("blob.driver: unsupported %q", c.Blob.Driver)
	}
	if (c.Store.Backend == "redis" || c.Watch.Backend == "redis") && c.Redis.Addr == "" {
		return errors.New("redis.addr is required by the redis backends")
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Alturino/storefront/internal/constants"
)

type Application struct {
	Env  string `mapstructure:"env"  json:"env"`
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

type Database struct {
	Name           string `mapstructure:"name"            json:"name"`
	Host           string `mapstructure:"host"            json:"host"`
	MigrationPath  string `mapstructure:"migration_path"  json:"migration_path"`
	Password       string `mapstructure:"password"        json:"-"`
	TimeZone       string `mapstructure:"timezone"        json:"timezone"`
	Username       string `mapstructure:"username"        json:"username"`
	MaxConnections int    `mapstructure:"max_connections" json:"max_connections"`
	MinConnections int    `mapstructure:"min_connections" json:"min_connections"`
	Port           uint16 `mapstructure:"port"            json:"port"`
}

type Cache struct {
	Host     string `mapstructure:"host"     json:"host"`
	Password string `mapstructure:"password" json:"-"`
	Database int    `mapstructure:"database" json:"database"`
	Port     uint16 `mapstructure:"port"     json:"port"`
}

type Otel struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// Commerce points at the query-forwarding function in front of the commerce platform.
type Commerce struct {
	Endpoint       string        `mapstructure:"endpoint"        json:"endpoint"`
	ApiKey         string        `mapstructure:"api_key"         json:"-"`
	Timeout        time.Duration `mapstructure:"timeout"         json:"timeout"`
	ProductCount   int           `mapstructure:"product_count"   json:"product_count"`
	CatalogTTL     time.Duration `mapstructure:"catalog_ttl"     json:"catalog_ttl"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout" json:"breaker_timeout"`
}

type Cart struct {
	MirrorDebounce      time.Duration `mapstructure:"mirror_debounce"       json:"mirror_debounce"`
	MirrorMaxRetries    uint64        `mapstructure:"mirror_max_retries"    json:"mirror_max_retries"`
	MirrorRetryInterval time.Duration `mapstructure:"mirror_retry_interval" json:"mirror_retry_interval"`
	NoticeTTL           time.Duration `mapstructure:"notice_ttl"            json:"notice_ttl"`
	StorageTTL          time.Duration `mapstructure:"storage_ttl"           json:"storage_ttl"`
	SessionIdleTTL      time.Duration `mapstructure:"session_idle_ttl"      json:"session_idle_ttl"`
}

type Auth struct {
	JwtSecret string `mapstructure:"jwt_secret" json:"-"`
	Issuer    string `mapstructure:"issuer"     json:"issuer"`
}

type Config struct {
	Application `mapstructure:"application" json:"application"`
	Database    `mapstructure:"db"          json:"db"`
	Cache       `mapstructure:"cache"       json:"cache"`
	Otel        `mapstructure:"otel"        json:"otel"`
	Commerce    `mapstructure:"commerce"    json:"commerce"`
	Cart        `mapstructure:"cart"        json:"cart"`
	Auth        `mapstructure:"auth"        json:"auth"`
}

var (
	once   sync.Once
	config *Config
)

func setDefaults() {
	viper.SetDefault("application.env", "production")
	viper.SetDefault("application.host", "0.0.0.0")
	viper.SetDefault("application.port", 8080)
	viper.SetDefault("db.migration_path", "file://migrations")
	viper.SetDefault("db.max_connections", 10)
	viper.SetDefault("db.min_connections", 2)
	viper.SetDefault("otel.host", "otel-collector")
	viper.SetDefault("otel.port", 4317)
	viper.SetDefault("commerce.timeout", 10*time.Second)
	viper.SetDefault("commerce.product_count", 250)
	viper.SetDefault("commerce.catalog_ttl", 5*time.Minute)
	viper.SetDefault("commerce.breaker_timeout", 30*time.Second)
	viper.SetDefault("cart.mirror_debounce", time.Second)
	viper.SetDefault("cart.mirror_max_retries", 5)
	viper.SetDefault("cart.mirror_retry_interval", 500*time.Millisecond)
	viper.SetDefault("cart.notice_ttl", 4*time.Second)
	viper.SetDefault("cart.storage_ttl", 30*24*time.Hour)
	viper.SetDefault("cart.session_idle_ttl", 30*time.Minute)
	viper.SetDefault("auth.issuer", "")
}

func Get(c context.Context, filename string) *Config {
	once.Do(func() {
		logger := zerolog.Ctx(c).
			With().
			Str(constants.KEY_TAG, "config Get").
			Str(constants.KEY_PROCESS, "init config").
			Str("filename", filename).
			Logger()

		setDefaults()
		viper.SetConfigName(filename)
		viper.AddConfigPath("./env")
		viper.SetConfigType("yaml")
		viper.AutomaticEnv()

		logger = logger.With().Str(constants.KEY_PROCESS, "reading config").Logger()
		logger.Info().Msg("reading config")
		err := viper.ReadInConfig()
		if err != nil {
			err = fmt.Errorf("error when reading config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("read config")

		logger = logger.With().Str(constants.KEY_PROCESS, "unmarshaling config").Logger()
		logger.Info().Msg("unmarshaling config")
		cfg := Config{}
		err = viper.Unmarshal(&cfg)
		if err != nil {
			err = fmt.Errorf("error unmarshaling config with error=%w", err)
			logger.Fatal().Err(err).Msg(err.Error())
		}
		config = &cfg
		logger = logger.With().Any(constants.KEY_CONFIG, cfg).Logger()
		logger.Info().Msg("unmarshaled config")
	})
	return config
}

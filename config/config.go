package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       int // максимальный размер запроса в МБ
	}

	Catalog struct {
		BaseURL      string        // адрес API каталога
		APIKey       string        // ключ приложения (заголовок x-api-key)
		AccessToken  string        // OAuth2 токен доступа
		ShopID       int64         // идентификатор магазина
		Timeout      time.Duration // таймаут HTTP-запроса
		MaxRetries   int           // повторы на уровне запроса
		RetryBackoff time.Duration // начальная задержка между повторами
		TaxonomyTTL  time.Duration // срок жизни кэша дерева таксономии
	}

	Sync struct {
		PageSize        int           // размер страницы при выгрузке листингов
		FetchWorkers    int           // количество параллельных запросов страниц
		FetchBatchPause time.Duration // пауза между пакетами страниц
		PageRetries     int           // дополнительные попытки на страницу
		PageRetryPause  time.Duration // задержка перед повтором страницы
		ApplyBatchSize  int           // размер пакета применяемых изменений
		PreImageBatch   int           // размер подпакета при выборке прообразов
		CheckpointTTL   time.Duration // срок жизни контрольной точки
		DefaultTaxonomy string        // узел таксономии для новых листингов без категории
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host            string
		Port            int
		Password        string
		DB              int
		PoolSize        int           // размер пула соединений
		MinIdleConns    int           // минимальное количество неактивных соединений
		ConnectTimeout  time.Duration // таймаут соединения
		ReadTimeout     time.Duration // таймаут чтения
		WriteTimeout    time.Duration // таймаут записи
		MaxRetries      int           // максимальное количество повторных попыток
		MinRetryBackoff time.Duration // минимальное время между повторными попытками
		MaxRetryBackoff time.Duration // максимальное время между повторными попытками
	}

	Kafka struct {
		Brokers         []string      `mapstructure:"brokers"`
		GroupID         string        `mapstructure:"group_id"`
		CommandsTopic   string        `mapstructure:"commands_topic"`
		EventsTopic     string        `mapstructure:"events_topic"`
		DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
		AutoOffsetReset string        `mapstructure:"auto_offset_reset"`
		SessionTimeout  time.Duration `mapstructure:"session_timeout"`
	}

	Metrics struct {
		Enabled     bool
		ServiceName string
		Endpoint    string
		Port        int `mapstructure:"port"`
	}

	Security struct {
		JWTSecret        string
		JWTExpirationMin time.Duration
		CORSAllowOrigins []string
	}

	Keycloak KeycloakConfig `mapstructure:"keycloak"`
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	// Установка значений по умолчанию
	setDefaults()

	// Привязка переменных окружения
	bindEnvVariables()

	// Чтение конфигурации в структуру
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "listing-sync")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")
	viper.SetDefault("server.bodyLimit", 10) // 10 МБ

	// Настройки API каталога
	viper.SetDefault("catalog.baseURL", "https://api.marketplace.example/v3/application")
	viper.SetDefault("catalog.timeout", "30s")
	viper.SetDefault("catalog.maxRetries", 3)
	viper.SetDefault("catalog.retryBackoff", "1s")
	viper.SetDefault("catalog.taxonomyTTL", "1h")

	// Настройки синхронизации
	viper.SetDefault("sync.pageSize", 100)
	viper.SetDefault("sync.fetchWorkers", 5)
	viper.SetDefault("sync.fetchBatchPause", "200ms")
	viper.SetDefault("sync.pageRetries", 2)
	viper.SetDefault("sync.pageRetryPause", "1s")
	viper.SetDefault("sync.applyBatchSize", 5)
	viper.SetDefault("sync.preImageBatch", 10)
	viper.SetDefault("sync.checkpointTTL", "168h") // неделя
	viper.SetDefault("sync.defaultTaxonomy", "Other")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "postgres")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolSize", 10)
	viper.SetDefault("redis.minIdleConns", 2)
	viper.SetDefault("redis.connectTimeout", "1s")
	viper.SetDefault("redis.readTimeout", "1s")
	viper.SetDefault("redis.writeTimeout", "1s")
	viper.SetDefault("redis.maxRetries", 3)
	viper.SetDefault("redis.minRetryBackoff", "8ms")
	viper.SetDefault("redis.maxRetryBackoff", "512ms")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.groupID", "listing-sync")
	viper.SetDefault("kafka.commandsTopic", "sync-commands")
	viper.SetDefault("kafka.eventsTopic", "sync-events")
	viper.SetDefault("kafka.deadLetterTopic", "sync-dead-letter")
	viper.SetDefault("kafka.autoOffsetReset", "latest")
	viper.SetDefault("kafka.sessionTimeout", "10s")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.serviceName", "listing-sync")
	viper.SetDefault("metrics.endpoint", "/metrics")
	viper.SetDefault("metrics.port", 9100)

	// Настройки безопасности
	viper.SetDefault("security.jwtSecret", "your-secret-key")
	viper.SetDefault("security.jwtExpirationMin", "60m")
	viper.SetDefault("security.corsAllowOrigins", []string{"*"})

	// Настройки Keycloak
	viper.SetDefault("keycloak.enabled", false)
	viper.SetDefault("keycloak.server_url", "http://localhost:8180")
	viper.SetDefault("keycloak.realm", "listing-sync")
	viper.SetDefault("keycloak.client_id", "listing-sync-api")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables() {
	// Основные настройки
	viper.BindEnv("appName", "APP_NAME")
	viper.BindEnv("version", "APP_VERSION")
	viper.BindEnv("logLevel", "LOG_LEVEL")
	viper.BindEnv("env", "APP_ENV")

	// Настройки сервера
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	viper.BindEnv("server.bodyLimit", "SERVER_BODY_LIMIT")

	// Настройки API каталога
	viper.BindEnv("catalog.baseURL", "CATALOG_BASE_URL")
	viper.BindEnv("catalog.apiKey", "CATALOG_API_KEY")
	viper.BindEnv("catalog.accessToken", "CATALOG_ACCESS_TOKEN")
	viper.BindEnv("catalog.shopID", "CATALOG_SHOP_ID")
	viper.BindEnv("catalog.timeout", "CATALOG_TIMEOUT")
	viper.BindEnv("catalog.maxRetries", "CATALOG_MAX_RETRIES")
	viper.BindEnv("catalog.retryBackoff", "CATALOG_RETRY_BACKOFF")
	viper.BindEnv("catalog.taxonomyTTL", "CATALOG_TAXONOMY_TTL")

	// Настройки синхронизации
	viper.BindEnv("sync.pageSize", "SYNC_PAGE_SIZE")
	viper.BindEnv("sync.fetchWorkers", "SYNC_FETCH_WORKERS")
	viper.BindEnv("sync.fetchBatchPause", "SYNC_FETCH_BATCH_PAUSE")
	viper.BindEnv("sync.pageRetries", "SYNC_PAGE_RETRIES")
	viper.BindEnv("sync.pageRetryPause", "SYNC_PAGE_RETRY_PAUSE")
	viper.BindEnv("sync.applyBatchSize", "SYNC_APPLY_BATCH_SIZE")
	viper.BindEnv("sync.preImageBatch", "SYNC_PRE_IMAGE_BATCH")
	viper.BindEnv("sync.checkpointTTL", "SYNC_CHECKPOINT_TTL")
	viper.BindEnv("sync.defaultTaxonomy", "SYNC_DEFAULT_TAXONOMY")

	// Настройки Postgres
	viper.BindEnv("postgres.host", "POSTGRES_HOST")
	viper.BindEnv("postgres.port", "POSTGRES_PORT")
	viper.BindEnv("postgres.user", "POSTGRES_USER")
	viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	viper.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	viper.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	viper.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	viper.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	// Настройки Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.poolSize", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.minIdleConns", "REDIS_MIN_IDLE_CONNS")
	viper.BindEnv("redis.connectTimeout", "REDIS_CONNECT_TIMEOUT")
	viper.BindEnv("redis.readTimeout", "REDIS_READ_TIMEOUT")
	viper.BindEnv("redis.writeTimeout", "REDIS_WRITE_TIMEOUT")
	viper.BindEnv("redis.maxRetries", "REDIS_MAX_RETRIES")
	viper.BindEnv("redis.minRetryBackoff", "REDIS_MIN_RETRY_BACKOFF")
	viper.BindEnv("redis.maxRetryBackoff", "REDIS_MAX_RETRY_BACKOFF")

	// Настройки Kafka
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.groupID", "KAFKA_GROUP_ID")
	viper.BindEnv("kafka.commandsTopic", "KAFKA_COMMANDS_TOPIC")
	viper.BindEnv("kafka.eventsTopic", "KAFKA_EVENTS_TOPIC")
	viper.BindEnv("kafka.deadLetterTopic", "KAFKA_DEAD_LETTER_TOPIC")
	viper.BindEnv("kafka.autoOffsetReset", "KAFKA_AUTO_OFFSET_RESET")
	viper.BindEnv("kafka.sessionTimeout", "KAFKA_SESSION_TIMEOUT")

	// Настройки метрик
	viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	viper.BindEnv("metrics.serviceName", "METRICS_SERVICE_NAME")
	viper.BindEnv("metrics.endpoint", "METRICS_ENDPOINT")
	viper.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	viper.BindEnv("security.jwtSecret", "JWT_SECRET")
	viper.BindEnv("security.jwtExpirationMin", "JWT_EXPIRATION_MIN")
	viper.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")

	// Настройки Keycloak
	viper.BindEnv("keycloak.enabled", "KEYCLOAK_ENABLED")
	viper.BindEnv("keycloak.server_url", "KEYCLOAK_SERVER_URL")
	viper.BindEnv("keycloak.realm", "KEYCLOAK_REALM")
	viper.BindEnv("keycloak.client_id", "KEYCLOAK_CLIENT_ID")
	viper.BindEnv("keycloak.client_secret", "KEYCLOAK_CLIENT_SECRET")
}

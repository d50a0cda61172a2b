package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort int `env:"HTTP_PORT"`

	DBConfig struct {
		Host     string `env:"PAYMENTS_DB_HOST"`
		Port     int    `env:"PAYMENTS_DB_PORT"`
		User     string `env:"PAYMENTS_DB_USER"`
		Password string `env:"PAYMENTS_DB_PASSWORD"`
		Name     string `env:"PAYMENTS_DB_NAME"`
		SSLMode  string `env:"PAYMENTS_DB_SSLMODE"`
		DSN      string `env:"PAYMENTS_DB_DSN"`
	}
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	KafkaBrokerURL          string        `env:"KAFKA_BROKER_URL"`
	KafkaOrderEventsTopic   string        `env:"KAFKA_ORDER_EVENTS_TOPIC"`
	KafkaPaymentEventsTopic string        `env:"KAFKA_PAYMENT_EVENTS_TOPIC"`
	KafkaConsumerGroup      string        `env:"KAFKA_CONSUMER_GROUP"`
	KafkaWorkers            int           `env:"KAFKA_WORKERS"`
	KafkaTopicPartitions    int           `env:"KAFKA_TOPIC_PARTITIONS"`
	KafkaHandlerMaxAttempts int           `env:"KAFKA_HANDLER_MAX_ATTEMPTS"`
	KafkaHandlerBackoff     time.Duration `env:"KAFKA_HANDLER_BACKOFF"`
	PublishQueueSize        int           `env:"PUBLISH_QUEUE_SIZE"`
	PublishWorkers          int           `env:"PUBLISH_WORKERS"`
	PublishEnqueueTimeout   time.Duration `env:"PUBLISH_ENQUEUE_TIMEOUT"`

	RandomAPI struct {
		BaseURL string        `env:"RANDOM_API_BASE_URL"`
		Path    string        `env:"RANDOM_API_PATH"`
		Min     int           `env:"RANDOM_API_MIN"`
		Max     int           `env:"RANDOM_API_MAX"`
		Count   int           `env:"RANDOM_API_COUNT"`
		Timeout time.Duration `env:"RANDOM_API_TIMEOUT"`
	}

	CreateTimeout time.Duration `env:"CREATE_TIMEOUT"`
}

// LoadConfig reads the environment, optionally seeded from a .env file in the
// working directory. Missing .env is not an error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8082)

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")
	cfg.DBConfig.DSN = getEnvOrDefault("PAYMENTS_DB_DSN", "")
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "order-created")
	cfg.KafkaPaymentEventsTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment-events")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "payment-service-group")
	cfg.KafkaWorkers = getEnvAsInt("KAFKA_WORKERS", 4)
	cfg.KafkaTopicPartitions = getEnvAsInt("KAFKA_TOPIC_PARTITIONS", 4)
	cfg.KafkaHandlerMaxAttempts = getEnvAsInt("KAFKA_HANDLER_MAX_ATTEMPTS", 10)
	cfg.KafkaHandlerBackoff = getEnvAsDuration("KAFKA_HANDLER_BACKOFF", 500*time.Millisecond)
	cfg.PublishQueueSize = getEnvAsInt("PUBLISH_QUEUE_SIZE", 256)
	cfg.PublishWorkers = getEnvAsInt("PUBLISH_WORKERS", 2)
	cfg.PublishEnqueueTimeout = getEnvAsDuration("PUBLISH_ENQUEUE_TIMEOUT", 100*time.Millisecond)

	cfg.RandomAPI.BaseURL = getEnvOrDefault("RANDOM_API_BASE_URL", "http://www.randomnumberapi.com")
	cfg.RandomAPI.Path = getEnvOrDefault("RANDOM_API_PATH", "/api/v1.0/random")
	cfg.RandomAPI.Min = getEnvAsInt("RANDOM_API_MIN", 1)
	cfg.RandomAPI.Max = getEnvAsInt("RANDOM_API_MAX", 100)
	cfg.RandomAPI.Count = getEnvAsInt("RANDOM_API_COUNT", 1)
	cfg.RandomAPI.Timeout = getEnvAsDuration("RANDOM_API_TIMEOUT", 2000*time.Millisecond)

	cfg.CreateTimeout = getEnvAsDuration("CREATE_TIMEOUT", 10*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.HTTPPort <= 0 || c.HTTPPort > 65535:
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	case c.KafkaWorkers < 1:
		return fmt.Errorf("KAFKA_WORKERS must be at least 1, got %d", c.KafkaWorkers)
	case c.KafkaHandlerMaxAttempts < 1:
		return fmt.Errorf("KAFKA_HANDLER_MAX_ATTEMPTS must be at least 1, got %d", c.KafkaHandlerMaxAttempts)
	case c.PublishWorkers < 1:
		return fmt.Errorf("PUBLISH_WORKERS must be at least 1, got %d", c.PublishWorkers)
	case c.PublishQueueSize < 1:
		return fmt.Errorf("PUBLISH_QUEUE_SIZE must be at least 1, got %d", c.PublishQueueSize)
	case c.RandomAPI.Count < 1:
		return fmt.Errorf("RANDOM_API_COUNT must be at least 1, got %d", c.RandomAPI.Count)
	case c.RandomAPI.Min > c.RandomAPI.Max:
		return fmt.Errorf("RANDOM_API_MIN (%d) is greater than RANDOM_API_MAX (%d)", c.RandomAPI.Min, c.RandomAPI.Max)
	case c.RandomAPI.Timeout <= 0:
		return errors.New("RANDOM_API_TIMEOUT must be positive")
	case c.CreateTimeout <= 0:
		return errors.New("CREATE_TIMEOUT must be positive")
	case c.PublishEnqueueTimeout < 0:
		return errors.New("PUBLISH_ENQUEUE_TIMEOUT must not be negative")
	case c.KafkaTopicPartitions < 1:
		return fmt.Errorf("KAFKA_TOPIC_PARTITIONS must be at least 1, got %d", c.KafkaTopicPartitions)
	case c.KafkaOrderEventsTopic == "" || c.KafkaPaymentEventsTopic == "":
		return errors.New("kafka topics must not be empty")
	}
	return nil
}

func (c *Config) GetDBConnectionString() string {
	if c.DBConfig.DSN != "" {
		return c.DBConfig.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	if c.DBConfig.DSN != "" && strings.HasPrefix(c.DBConfig.DSN, "postgres") {
		return c.DBConfig.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokerURL, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

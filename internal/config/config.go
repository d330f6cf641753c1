package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server        ServerConfig
	MongoDB       MongoDBConfig
	Redis         RedisConfig
	RabbitMQ      RabbitMQConfig
	Consul        ConsulConfig
	Performance   PerformanceConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ServiceName    string
	ServiceAddress string
	ServiceID      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowOrigins   []string
}

type MongoDBConfig struct {
	URI      string
	Database string
	PoolSize uint64
	Timeout  time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Enabled  bool
}

type RabbitMQConfig struct {
	URI       string
	Exchange  string
	QueueName string
}

type ConsulConfig struct {
	ConsulAddress string
}

type PerformanceConfig struct {
	StoreTimeout    time.Duration
	MaxApplyRetries int
	CacheTTL        time.Duration
	ReconcileBatch  int
}

type ObservabilityConfig struct {
	LogMode     string
	OtelEnabled bool
	Environment string
	Version     string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	serviceName := getEnv("PERFORMANCE_SERVICE_NAME", "performance-service")
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "6666"),
			Host:           getEnv("HOST", "0.0.0.0"),
			ServiceName:    serviceName,
			ServiceAddress: getEnv("PERFORMANCE_SERVICE_ADDRESS", "performance-service"),
			ServiceID:      serviceName + "-" + getEnv("HOSTNAME", "performance"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			AllowOrigins:   getEnvAsList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "performance_service"),
			PoolSize: getEnvAsUint64("MONGODB_POOL_SIZE", 100),
			Timeout:  getEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		RabbitMQ: RabbitMQConfig{
			URI:       getEnv("RABBITMQ_URI", ""),
			Exchange:  getEnv("RABBITMQ_EXCHANGE", "performance.events"),
			QueueName: getEnv("RABBITMQ_QUEUE", "performance-service-submissions"),
		},
		Consul: ConsulConfig{
			ConsulAddress: getEnv("CONSUL_ADDR", ""),
		},
		Performance: PerformanceConfig{
			StoreTimeout:    getEnvAsDuration("STORE_TIMEOUT", 5*time.Second),
			MaxApplyRetries: getEnvAsInt("APPLY_MAX_RETRIES", 3),
			CacheTTL:        getEnvAsDuration("CACHE_TTL", time.Minute),
			ReconcileBatch:  getEnvAsInt("RECONCILE_BATCH", 50),
		},
		Observability: ObservabilityConfig{
			LogMode:     getEnv("LOG_MODE", "dev"),
			OtelEnabled: getEnvAsBool("OTEL_ENABLED", false),
			Environment: getEnv("ENVIRONMENT", "local"),
			Version:     getEnv("SERVICE_VERSION", "dev"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("error retrieve int env var %s: %s", key, err)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			log.Printf("error retrieve uint env var %s: %s", key, err)
			return defaultValue
		}
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("error retrieve duration env var %s: %s", key, err)
			return defaultValue
		}
		return d
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			log.Printf("error retrieve bool env var %s: %s", key, err)
			return defaultValue
		}
		return b
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

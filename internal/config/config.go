// Package config loads process configuration from the environment into a
// single typed struct, failing fast at startup rather than letting a
// missing variable surface as a nil-pointer panic deep in a request path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting the service needs.
type Config struct {
	Host string
	Port string

	DatabaseURL string
	DBPoolMinConns           int
	DBPoolMaxConns           int
	DBAcquireTimeoutSeconds  int

	Ed25519SigningKey string

	LogLevel  string
	LogPretty bool

	MaxJSONPayloadSize int64

	BulkInsertChunkSize int
	MaxPaginationSize   int
	DefaultPaginationSize int
	ReturnQueryCount    bool

	CSVStreamWorkers     int
	CSVTransformWorkers  int
	CSVWorkerQueueDepth  int
	MaxStreamsPerUser    int

	EnablePruneJob            bool
	PruneJobRunIntervalSeconds int
	PruneJobTimeoutSeconds    int
	PruneRetentionHours       int

	TemporalDeleteHours    int
	MaxAPIKeysPerUser      int
	TokenExpirationSeconds int
	TokenAPIKeyExpirationHours int
	ProtectSuperuser       bool

	CacheEnabled bool
	RedisAddr    string
	RedisPassword string
	EntitlementCacheTTLSeconds int

	EventsEnabled bool
	NATSUrl       string
}

// Load reads Config from the environment, returning an error naming every
// required variable that is missing.
func Load() (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Host:              required("HOST"),
		Port:               required("PORT"),
		DatabaseURL:        required("DATABASE_URL"),
		Ed25519SigningKey:  required("ED25519_SIGNING_KEY"),

		DBPoolMinConns:          getEnvInt("DB_POOL_MIN_CONN", 2),
		DBPoolMaxConns:          getEnvInt("DB_POOL_MAX_CONN", 10),
		DBAcquireTimeoutSeconds: getEnvInt("DB_ACQUIRE_CONNECTION_TIMEOUT_SEC", 5),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		MaxJSONPayloadSize: int64(getEnvInt("MAX_JSON_PAYLOAD_SIZE", 5*1024*1024)),

		BulkInsertChunkSize:   getEnvInt("BULK_INSERT_CHUNK_SIZE", 500),
		MaxPaginationSize:     getEnvInt("MAX_PAGINATION_SIZE", 200),
		DefaultPaginationSize: getEnvInt("DEFAULT_PAGINATION_SIZE", 50),
		ReturnQueryCount:      getEnvBool("RETURN_QUERY_COUNT", false),

		CSVStreamWorkers:    getEnvInt("DB_CSV_STREAM_WORKERS", 4),
		CSVTransformWorkers: getEnvInt("DB_CSV_TRANSFORM_WORKERS", 4),
		CSVWorkerQueueDepth: getEnvInt("DB_CSV_WORKER_QUEUE_DEPTH", 64),
		MaxStreamsPerUser:   getEnvInt("DB_MAX_STREAMS_PER_USER", 2),

		EnablePruneJob:             getEnvBool("ENABLE_PRUNE_JOB", false),
		PruneJobRunIntervalSeconds: getEnvInt("PRUNE_JOB_RUN_INTERVAL_SECONDS", 3600),
		PruneJobTimeoutSeconds:     getEnvInt("PRUNE_JOB_TIMEOUT_SECONDS", 300),
		PruneRetentionHours:        getEnvInt("PRUNE_RETENTION_HOURS", 24*30),

		TemporalDeleteHours:        getEnvInt("TEMPORAL_DELETE_HOURS", 24),
		MaxAPIKeysPerUser:          getEnvInt("MAX_API_KEYS_PER_USER", 5),
		TokenExpirationSeconds:     getEnvInt("TOKEN_EXPIRATION_SECONDS", 3600),
		TokenAPIKeyExpirationHours: getEnvInt("TOKEN_API_KEY_EXPIRATION_HOURS", 24),
		ProtectSuperuser:           getEnvBool("PROTECT_SUPERUSER", true),

		CacheEnabled:  getEnvBool("CACHE_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		EntitlementCacheTTLSeconds: getEnvInt("ENTITLEMENT_CACHE_TTL_SECONDS", 60),

		EventsEnabled: getEnvBool("EVENTS_ENABLED", false),
		NATSUrl:       getEnv("NATS_URL", "nats://localhost:4222"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultValue
}

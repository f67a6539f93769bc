package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string

	// Feed & posts
	PostIngest           string
	FeedFetchConcurrency int
	DefaultAvatarURL     string

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
	MigrationsPath    string

	// Redis (per-user edit lock)
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration
	LockWait      time.Duration
}

const (
	IngestKafka  = "kafka"
	IngestDirect = "direct"
)

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	// TLS is enabled only when both files are set

	viper.SetDefault("POST_INGEST", IngestKafka)
	viper.SetDefault("FEED_FETCH_CONCURRENCY", 16)
	viper.SetDefault("DEFAULT_AVATAR_URL", "images/default.png")

	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "post-ingest")
	viper.SetDefault("KAFKA_GROUP_ID", "ingest-workers")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "socialfeed")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	viper.SetDefault("MIGRATIONS_PATH", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC can be empty

	// Empty REDIS_ADDR falls back to an in-process lock
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("LOCK_TTL", "5s")
	viper.SetDefault("LOCK_WAIT", "2s")

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:                 viper.GetString("MODE"),
		ServerAddr:           viper.GetString("SERVER_ADDR"),
		TLSCertFile:          viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:           viper.GetString("TLS_KEY_FILE"),
		PostIngest:           viper.GetString("POST_INGEST"),
		FeedFetchConcurrency: viper.GetInt("FEED_FETCH_CONCURRENCY"),
		DefaultAvatarURL:     viper.GetString("DEFAULT_AVATAR_URL"),
		KafkaBroker:          viper.GetString("KAFKA_BROKER"),
		KafkaTopic:           viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:         viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:       viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:          parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:         parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:        viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace:    viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername:    viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword:    viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:     parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:          viper.GetString("CASSANDRA_DC"),
		MigrationsPath:       viper.GetString("MIGRATIONS_PATH"),
		RedisAddr:            viper.GetString("REDIS_ADDR"),
		RedisPassword:        viper.GetString("REDIS_PASSWORD"),
		LockTTL:              parseDuration(viper.GetString("LOCK_TTL"), 5*time.Second),
		LockWait:             parseDuration(viper.GetString("LOCK_WAIT"), 2*time.Second),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}

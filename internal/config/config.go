package config

import (
	"os"
	"time"

	pkgconfig "github.com/weiawesome/wes-io-live/messenger-service/pkg/config"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Cassandra  CassandraConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Events     EventsConfig
	PubSub     pubsub.Config `mapstructure:"pubsub"`
	Projector  ProjectorConfig
	Pagination PaginationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string // cassandra, memory
}

type CassandraConfig struct {
	Hosts             []string
	Port              int
	Keyspace          string
	Username          string
	Password          string
	Consistency       string
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	Timeout           time.Duration
	NumConns          int           `mapstructure:"num_conns"`
	ConnectAttempts   int           `mapstructure:"connect_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type EventsConfig struct {
	Enabled bool
}

type ProjectorConfig struct {
	Enabled bool
}

type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
	MaxPage      int `mapstructure:"max_page"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads config.yaml from configPath and applies defaults and
// environment overrides.
func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("storage.driver", "cassandra")
	v.SetDefault("cassandra.hosts", []string{"localhost"})
	v.SetDefault("cassandra.port", 9042)
	v.SetDefault("cassandra.keyspace", "messenger")
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")
	v.SetDefault("cassandra.consistency", "LOCAL_ONE")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("cassandra.connect_attempts", 5)
	v.SetDefault("cassandra.backoff_base", "1s")
	v.SetDefault("cassandra.replication_factor", 1)
	v.SetDefault("cassandra.auto_migrate", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.prefix", "messenger:history")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("events.enabled", false)
	v.SetDefault("projector.enabled", false)

	ps := pubsub.DefaultConfig()
	v.SetDefault("pubsub.driver", ps.Driver)
	v.SetDefault("pubsub.redis.address", ps.Redis.Address)
	v.SetDefault("pubsub.redis.pool_size", ps.Redis.PoolSize)
	v.SetDefault("pubsub.redis.read_timeout", ps.Redis.ReadTimeout)
	v.SetDefault("pubsub.redis.write_timeout", ps.Redis.WriteTimeout)
	v.SetDefault("pubsub.kafka.brokers", ps.Kafka.Brokers)
	v.SetDefault("pubsub.kafka.group_id", ps.Kafka.GroupID)
	v.SetDefault("pubsub.kafka.partitions", ps.Kafka.Partitions)
	v.SetDefault("pubsub.kafka.replication_factor", ps.Kafka.ReplicationFactor)
	v.SetDefault("pubsub.kafka.auto_offset_reset", ps.Kafka.AutoOffsetReset)

	v.SetDefault("pagination.default_limit", 20)
	v.SetDefault("pagination.max_limit", 100)
	v.SetDefault("pagination.max_page", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Env overrides (for Docker)
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("cassandra.port", "CASSANDRA_PORT")
	_ = v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	_ = v.BindEnv("cassandra.username", "CASSANDRA_USERNAME")
	_ = v.BindEnv("cassandra.password", "CASSANDRA_PASSWORD")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra" or "host1,host2".
	// CASSANDRA_HOST names a single node.
	if hosts := pkgconfig.SplitList(os.Getenv("CASSANDRA_HOSTS")); len(hosts) > 0 {
		cfg.Cassandra.Hosts = hosts
	} else if host := os.Getenv("CASSANDRA_HOST"); host != "" {
		cfg.Cassandra.Hosts = []string{host}
	}

	return &cfg, nil
}

// Package config loads and validates the single JSON configuration
// document NLDS consumers share (spec.md §6), mirroring the required-key
// schema of the original Python implementation's CONFIG_SCHEMA.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AuthenticationConfig configures the external identity-provider client.
type AuthenticationConfig struct {
	AuthenticatorBackend string `mapstructure:"authenticator_backend"`
	TokenIntrospectURL   string `mapstructure:"oauth_token_introspect_url"`
	UserProfileURL       string `mapstructure:"user_profile_url"`
	UserServicesURL      string `mapstructure:"user_services_url"`
	UserGrantsURL        string `mapstructure:"user_grants_url"`
}

// ExchangeConfig describes one AMQP topic exchange to declare.
type ExchangeConfig struct {
	Name  string `mapstructure:"name"`
	Type  string `mapstructure:"type"`
	Delay int    `mapstructure:"delayed_exchange_offset,omitempty"`
}

// RabbitMQConfig configures the bus connection every consumer shares.
type RabbitMQConfig struct {
	User      string           `mapstructure:"user"`
	Password  string           `mapstructure:"password"`
	Server    string           `mapstructure:"server"`
	Port      int              `mapstructure:"port"`
	VHost     string           `mapstructure:"vhost"`
	Exchange  string           `mapstructure:"exchange"`
	Exchanges []ExchangeConfig `mapstructure:"exchanges"`
	Root      string           `mapstructure:"root"` // routing-key root segment, default "nlds"
	Heartbeat int              `mapstructure:"heartbeat"` // seconds, default 300
	Compress  bool             `mapstructure:"compress"`
}

// HeartbeatDuration returns the configured heartbeat, defaulting to 300s
// as the original publisher.py does when the key is absent or zero.
func (r RabbitMQConfig) HeartbeatDuration() time.Duration {
	if r.Heartbeat <= 0 {
		return 300 * time.Second
	}
	return time.Duration(r.Heartbeat) * time.Second
}

// LoggingConfig configures logrus for every consumer.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // text|json
}

// IndexerConfig configures the indexer consumer (spec.md §4.3).
type IndexerConfig struct {
	FilelistMaxLength int   `mapstructure:"filelist_max_length"`
	MessageThreshold  int64 `mapstructure:"message_threshold"`
	MaxRetries        int   `mapstructure:"max_retries"`
	PrintTracebacks   bool  `mapstructure:"print_tracebacks_fl"`
}

// AggregatorConfig configures the aggregator's binning target (spec.md §4.4).
type AggregatorConfig struct {
	TargetAggregationSize int64 `mapstructure:"target_aggregation_size"`
}

// TransferConfig configures the transfer workers (spec.md §4.6).
type TransferConfig struct {
	ChunkSize int `mapstructure:"chunk_size"` // bytes, default 256 KiB
}

// ArchiveConfig configures the archive workers and tape resource.
type ArchiveConfig struct {
	TapeURL         string `mapstructure:"tape_url"`
	TapeServer      string `mapstructure:"tape_server"`
	StagingDir      string `mapstructure:"staging_dir"` // local dir tar files are built in before being written to tape
	ArchiveNextCron string `mapstructure:"archive_next_schedule"` // e.g. "@daily"
}

// RouterConfig configures the NLDS worker's RPC and scheduling limits.
type RouterConfig struct {
	RPCPublisherTimeLimit int `mapstructure:"rpc_publisher_time_limit"` // seconds, default 30
}

// CatalogConfig configures the catalog store's Postgres DSN.
type CatalogConfig struct {
	DSN string `mapstructure:"db_dsn"`
}

// MonitorConfig configures the monitor store's Postgres DSN.
type MonitorConfig struct {
	DSN string `mapstructure:"db_dsn"`
}

// ObjectStoreConfig configures the S3-compatible client.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	Tenancy         string `mapstructure:"tenancy"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// RedisConfig configures the transaction-scoped identity/quota cache.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// Config is the complete NLDS configuration document (spec.md §6).
type Config struct {
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	RabbitMQ       RabbitMQConfig       `mapstructure:"rabbitMQ"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Indexer        IndexerConfig        `mapstructure:"indexer_q"`
	Aggregator     AggregatorConfig     `mapstructure:"aggregator"`
	Transfer       TransferConfig       `mapstructure:"transfer_q"`
	Archive        ArchiveConfig        `mapstructure:"archive_q"`
	Router         RouterConfig         `mapstructure:"nlds_q"`
	Catalog        CatalogConfig        `mapstructure:"catalog_q"`
	Monitor        MonitorConfig        `mapstructure:"monitor_q"`
	ObjectStore    ObjectStoreConfig    `mapstructure:"objectstore"`
	Redis          RedisConfig          `mapstructure:"redis"`
}

// requiredKey names one (section, key) pair that must be non-empty after
// load, mirroring the original's CONFIG_SCHEMA tuple-of-tuples.
type requiredKey struct {
	section string
	key     string
}

// schema is the required-key set validated at load time. It deliberately
// stays small and structural (not "every field everywhere") — matching
// the original's intent of catching a missing section, not enforcing
// every optional tuning knob.
var schema = []requiredKey{
	{"authentication", "authenticator_backend"},
	{"rabbitMQ", "user"},
	{"rabbitMQ", "password"},
	{"rabbitMQ", "server"},
	{"rabbitMQ", "vhost"},
	{"rabbitMQ", "exchange"},
}

// Load reads the JSON configuration document at path, applies the
// package defaults, and validates the required-key schema.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := validateSchema(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rabbitMQ.heartbeat", 300)
	v.SetDefault("rabbitMQ.root", "nlds")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("indexer_q.filelist_max_length", 1000)
	v.SetDefault("indexer_q.message_threshold", int64(1)<<30) // 1 GiB, spec.md §4.3
	v.SetDefault("indexer_q.max_retries", 5)
	v.SetDefault("aggregator.target_aggregation_size", int64(5)<<30) // 5 GiB, spec.md §4.4
	v.SetDefault("transfer_q.chunk_size", 256*1024)
	v.SetDefault("nlds_q.rpc_publisher_time_limit", 30)
	v.SetDefault("archive_q.staging_dir", "/var/lib/nlds/tape-staging")
}

// validateSchema checks that every required-key pair in schema resolves
// to a non-empty value in v, returning all missing keys in one error so
// a misconfigured deployment fails loudly and completely on first boot.
func validateSchema(v *viper.Viper) error {
	var missing []string
	for _, rk := range schema {
		fullKey := rk.section + "." + rk.key
		if v.GetString(fullKey) == "" {
			missing = append(missing, fullKey)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("configuration missing required keys: %v", missing)
	}
	return nil
}

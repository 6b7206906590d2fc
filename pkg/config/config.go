package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/meftunca/rmqcluster/pkg/admin"
	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/executor"
	"github.com/meftunca/rmqcluster/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. RMQCLUSTER_SSH_PASSWORD.
const EnvPrefix = "RMQCLUSTER"

// SerializationType defines the run record serialization format
type SerializationType string

const (
	SerializationCBOR    SerializationType = "cbor"
	SerializationJSON    SerializationType = "json"
	SerializationMsgPack SerializationType = "msgpack"
)

// CompressionType defines the compression algorithm
type CompressionType string

const (
	CompressionNone   CompressionType = "none"
	CompressionZstd   CompressionType = "zstd"
	CompressionLZ4    CompressionType = "lz4"
	CompressionSnappy CompressionType = "snappy"
	CompressionGzip   CompressionType = "gzip"
	CompressionBrotli CompressionType = "brotli"
)

// ExecutorType selects how commands reach the hosts
type ExecutorType string

const (
	ExecutorSSH   ExecutorType = "ssh"
	ExecutorLocal ExecutorType = "local"
)

// NodeConfig is one broker as written in the configuration file
type NodeConfig struct {
	Label   string `mapstructure:"label" yaml:"label" json:"label"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`
}

// ClusterConfig lists the brokers. The first disc node seeds the cluster.
type ClusterConfig struct {
	DiscNodes []NodeConfig `mapstructure:"disc_nodes" yaml:"disc_nodes" json:"disc_nodes"`
	RamNodes  []NodeConfig `mapstructure:"ram_nodes" yaml:"ram_nodes" json:"ram_nodes"`
}

// Topology builds the validated cluster topology.
func (c ClusterConfig) Topology() (*cluster.Topology, error) {
	return cluster.NewTopology(toNodes(c.DiscNodes), toNodes(c.RamNodes))
}

// Addresses returns every configured host, disc nodes first.
func (c ClusterConfig) Addresses() []string {
	out := make([]string, 0, len(c.DiscNodes)+len(c.RamNodes))
	for _, n := range c.DiscNodes {
		out = append(out, n.Address)
	}
	for _, n := range c.RamNodes {
		out = append(out, n.Address)
	}
	return out
}

func toNodes(in []NodeConfig) []cluster.Node {
	out := make([]cluster.Node, len(in))
	for i, n := range in {
		out[i] = cluster.Node{Label: n.Label, Address: n.Address}
	}
	return out
}

// ExecutorConfig selects the command transport
type ExecutorConfig struct {
	Type         ExecutorType  `mapstructure:"type" yaml:"type" json:"type"`
	Shell        string        `mapstructure:"shell" yaml:"shell" json:"shell"`
	LocalTimeout time.Duration `mapstructure:"local_timeout" yaml:"local_timeout" json:"local_timeout"`
}

// FormationConfig holds the formation timings
type FormationConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	StartupTimeout   time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout" json:"startup_timeout"`
	SeedPollInterval time.Duration `mapstructure:"seed_poll_interval" yaml:"seed_poll_interval" json:"seed_poll_interval"`
}

// AdminConfig holds the management account and what to provision with it
type AdminConfig struct {
	User               string             `mapstructure:"user" yaml:"user" json:"user"`
	Password           string             `mapstructure:"password" yaml:"password" json:"-"`
	BootstrapWithGuest bool               `mapstructure:"bootstrap_with_guest" yaml:"bootstrap_with_guest" json:"bootstrap_with_guest"`
	Provisioning       admin.Provisioning `mapstructure:"provisioning" yaml:"provisioning" json:"provisioning"`
}

// Credentials returns the configured admin account.
func (a AdminConfig) Credentials() admin.Credentials {
	return admin.Credentials{User: a.User, Password: a.Password}
}

// JSONConfig holds JSON-specific settings
type JSONConfig struct {
	Library    string `mapstructure:"library" yaml:"library" json:"library"` // "standard" or "sonic"
	Compact    bool   `mapstructure:"compact" yaml:"compact" json:"compact"`
	EscapeHTML bool   `mapstructure:"escape_html" yaml:"escape_html" json:"escape_html"`
}

// CompressionConfig holds transcript compression settings
type CompressionConfig struct {
	Type           CompressionType `mapstructure:"type" yaml:"type" json:"type"`
	Level          int             `mapstructure:"level" yaml:"level" json:"level"`
	ThresholdBytes int             `mapstructure:"threshold_bytes" yaml:"threshold_bytes" json:"threshold_bytes"`
}

// RedisConfig holds Redis-specific settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db"`
}

// StorageConfig holds run history settings
type StorageConfig struct {
	Type          string            `mapstructure:"type" yaml:"type" json:"type"` // "memory" or "redis"
	Redis         RedisConfig       `mapstructure:"redis" yaml:"redis" json:"redis"`
	KeyPrefix     string            `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
	TTL           time.Duration     `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	Timeout       time.Duration     `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Serialization SerializationType `mapstructure:"serialization" yaml:"serialization" json:"serialization"`
	Compression   CompressionConfig `mapstructure:"compression" yaml:"compression" json:"compression"`
	JSON          JSONConfig        `mapstructure:"json" yaml:"json" json:"json"`
}

// MonitoringConfig holds the status server settings
type MonitoringConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address" json:"listen_address"`
	MetricsPath   string `mapstructure:"metrics_path" yaml:"metrics_path" json:"metrics_path"`
	Namespace     string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`

	// A one-shot build exits before anything scrapes it, so its metrics can
	// also be pushed to a Pushgateway or written for the node exporter's
	// textfile collector once the run is over.
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url" json:"pushgateway_url"`
	PushJob        string `mapstructure:"push_job" yaml:"push_job" json:"push_job"`
	TextfilePath   string `mapstructure:"textfile_path" yaml:"textfile_path" json:"textfile_path"`
}

// Exports reports whether finished runs write their metrics anywhere.
func (m MonitoringConfig) Exports() bool {
	return m.PushgatewayURL != "" || m.TextfilePath != ""
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Config represents the main configuration structure
type Config struct {
	Cluster    ClusterConfig      `mapstructure:"cluster" yaml:"cluster" json:"cluster"`
	Executor   ExecutorConfig     `mapstructure:"executor" yaml:"executor" json:"executor"`
	SSH        executor.SSHConfig `mapstructure:"ssh" yaml:"ssh" json:"ssh"`
	RabbitMQ   executor.Commands  `mapstructure:"rabbitmq" yaml:"rabbitmq" json:"rabbitmq"`
	Formation  FormationConfig    `mapstructure:"formation" yaml:"formation" json:"formation"`
	Admin      AdminConfig        `mapstructure:"admin" yaml:"admin" json:"admin"`
	Storage    StorageConfig      `mapstructure:"storage" yaml:"storage" json:"storage"`
	Monitoring MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring" json:"monitoring"`
	Logging    LoggingConfig      `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// DefaultConfig returns a configuration for a stock rabbitmq package install
func DefaultConfig() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Type:         ExecutorSSH,
			Shell:        "/bin/sh",
			LocalTimeout: time.Minute,
		},
		SSH: executor.SSHConfig{
			Port:           22,
			DialTimeout:    10 * time.Second,
			CommandTimeout: 2 * time.Minute,
			Sudo:           true,
		},
		RabbitMQ: executor.DefaultCommands(),
		Formation: FormationConfig{
			PollInterval:     cluster.DefaultPollInterval,
			StartupTimeout:   cluster.DefaultStartupTimeout,
			SeedPollInterval: cluster.DefaultPollInterval,
		},
		Admin: AdminConfig{
			User: "admin",
		},
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				DB:   0,
			},
			KeyPrefix:     "rmqcluster",
			TTL:           30 * 24 * time.Hour,
			Timeout:       3 * time.Second,
			Serialization: SerializationCBOR,
			Compression: CompressionConfig{
				Type:           CompressionZstd,
				Level:          3,
				ThresholdBytes: 256,
			},
			JSON: JSONConfig{
				Library: "standard",
				Compact: true,
			},
		},
		Monitoring: MonitoringConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			MetricsPath:   "/metrics",
			Namespace:     "rmqcluster",
			PushJob:       "rmqcluster",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// secretKeys are bound explicitly so they can come from the environment alone
var secretKeys = []string{
	"ssh.user",
	"ssh.password",
	"admin.user",
	"admin.password",
	"storage.redis.password",
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	config := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, types.ErrConfigNotFound(configPath, err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/rmqcluster")
	}

	// Enable reading from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal config
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration. Every problem is reported, not just
// the first one.
func (c *Config) Validate() error {
	ec := types.NewErrorCollector()

	if _, err := c.Cluster.Topology(); err != nil {
		ec.Add(err)
	}

	switch c.Executor.Type {
	case ExecutorSSH:
		if c.SSH.User == "" {
			ec.Add(types.ErrInvalidConfig("ssh.user", "is required"))
		}
		if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
			ec.Add(types.ErrInvalidConfig("ssh.port", fmt.Sprintf("%d is out of range", c.SSH.Port)))
		}
	case ExecutorLocal:
	default:
		ec.Add(types.ErrInvalidConfig("executor.type", fmt.Sprintf("unknown executor %q", c.Executor.Type)))
	}

	if c.RabbitMQ.Ctl == "" {
		ec.Add(types.ErrInvalidConfig("rabbitmq.ctl_path", "is required"))
	}
	if c.RabbitMQ.ServiceStart == "" {
		ec.Add(types.ErrInvalidConfig("rabbitmq.service_start", "is required"))
	}
	if c.RabbitMQ.JoinCluster == "" {
		ec.Add(types.ErrInvalidConfig("rabbitmq.join_command", "is required"))
	}

	if c.Formation.PollInterval <= 0 {
		ec.Add(types.ErrInvalidConfig("formation.poll_interval", "must be positive"))
	}
	if c.Formation.StartupTimeout < c.Formation.PollInterval {
		ec.Add(types.ErrInvalidConfig("formation.startup_timeout", "must not be shorter than the poll interval"))
	}
	if c.Formation.SeedPollInterval <= 0 {
		ec.Add(types.ErrInvalidConfig("formation.seed_poll_interval", "must be positive"))
	}

	if c.Admin.BootstrapWithGuest {
		if c.Admin.User == "" {
			ec.Add(types.ErrInvalidConfig("admin.user", "is required when bootstrap_with_guest is set"))
		}
		if c.Admin.Password == "" {
			ec.Add(types.ErrInvalidConfig("admin.password", "is required when bootstrap_with_guest is set"))
		}
	}

	// Validate storage type
	switch c.Storage.Type {
	case "redis":
		if c.Storage.Redis.Addr == "" {
			ec.Add(types.ErrInvalidConfig("storage.redis.addr", "is required"))
		}
	case "memory":
		// Valid
	default:
		ec.Add(types.ErrInvalidConfig("storage.type", fmt.Sprintf("unknown storage %q", c.Storage.Type)))
	}

	// Validate serialization type
	switch c.Storage.Serialization {
	case SerializationCBOR, SerializationJSON, SerializationMsgPack:
		// Valid
	default:
		ec.Add(types.ErrInvalidConfig("storage.serialization", fmt.Sprintf("unknown format %q", c.Storage.Serialization)))
	}

	// Validate compression type
	switch c.Storage.Compression.Type {
	case CompressionNone, CompressionZstd, CompressionLZ4, CompressionSnappy, CompressionGzip, CompressionBrotli:
		// Valid
	default:
		ec.Add(types.ErrInvalidConfig("storage.compression.type", fmt.Sprintf("unknown algorithm %q", c.Storage.Compression.Type)))
	}

	if c.Monitoring.PushgatewayURL != "" && c.Monitoring.PushJob == "" {
		ec.Add(types.ErrInvalidConfig("monitoring.push_job", "is required with a pushgateway_url"))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		ec.Add(types.ErrInvalidConfig("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format)))
	}

	return ec.ToError()
}

// Secrets returns every configured password, for transcript redaction.
func (c *Config) Secrets() []string {
	out := []string{c.SSH.Password, c.Admin.Password, c.Storage.Redis.Password}
	return append(out, c.Admin.Provisioning.Secrets()...)
}

// FormationSettings converts the formation section for the orchestrator.
func (c *Config) FormationSettings() cluster.Config {
	return cluster.Config{
		Commands:         c.RabbitMQ,
		PollInterval:     c.Formation.PollInterval,
		StartupTimeout:   c.Formation.StartupTimeout,
		SeedPollInterval: c.Formation.SeedPollInterval,
	}
}

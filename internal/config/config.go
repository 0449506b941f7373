package config

import (
	"fmt"
	"os"
	"time"

	"github.com/allartprotocol/token-indexer/pkg/kvstore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RPC     RPCConfig      `yaml:"rpc"`
	Program ProgramConfig  `yaml:"program"`
	Workers WorkersConfig  `yaml:"workers"`
	KVStore kvstore.Config `yaml:"kvstore"`
	NATS    NATSConfig     `yaml:"nats"`
}

type RPCConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
}

type RateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ProgramConfig struct {
	Address string `yaml:"address"`
}

type WorkersConfig struct {
	TransactionLoaders int           `yaml:"transaction_loaders"`
	TickInterval       time.Duration `yaml:"tick_interval"`
	BatchLimit         int           `yaml:"batch_limit"`
	// FailurePolicy decides what happens to a claimed queue entry whose
	// transaction fetch failed: "requeue" or "drop".
	FailurePolicy string `yaml:"failure_policy"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

const (
	DefaultTickInterval  = 200 * time.Millisecond
	DefaultBatchLimit    = 1000
	DefaultLoaders       = 2
	DefaultFailurePolicy = "requeue"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Workers.TransactionLoaders == 0 {
		c.Workers.TransactionLoaders = DefaultLoaders
	}
	if c.Workers.TickInterval == 0 {
		c.Workers.TickInterval = DefaultTickInterval
	}
	if c.Workers.BatchLimit == 0 {
		c.Workers.BatchLimit = DefaultBatchLimit
	}
	if c.Workers.FailurePolicy == "" {
		c.Workers.FailurePolicy = DefaultFailurePolicy
	}
	if c.RPC.RequestTimeout == 0 {
		c.RPC.RequestTimeout = 30 * time.Second
	}
	if c.RPC.MaxRetries == 0 {
		c.RPC.MaxRetries = 3
	}
	if c.RPC.RetryDelay == 0 {
		c.RPC.RetryDelay = 500 * time.Millisecond
	}
	if c.KVStore.Type == "" {
		c.KVStore.Type = kvstore.KVStoreTypeBadger
	}
	if c.KVStore.Badger.Directory == "" {
		c.KVStore.Badger.Directory = "./data"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "indexer"
	}
}

func (c *Config) validate() error {
	if c.RPC.URL == "" {
		return fmt.Errorf("rpc.url is required")
	}
	if c.Program.Address == "" {
		return fmt.Errorf("program.address is required")
	}
	if c.Workers.TransactionLoaders < 1 {
		return fmt.Errorf("workers.transaction_loaders must be >= 1")
	}
	switch c.Workers.FailurePolicy {
	case "requeue", "drop":
	default:
		return fmt.Errorf("workers.failure_policy must be \"requeue\" or \"drop\", got %q", c.Workers.FailurePolicy)
	}
	return nil
}

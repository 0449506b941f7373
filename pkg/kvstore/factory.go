package kvstore

import (
	"fmt"

	"github.com/allartprotocol/token-indexer/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// Config selects and configures the KV backend.
type Config struct {
	Type   string       `yaml:"type"`
	Badger BadgerConfig `yaml:"badger"`
	Consul ConsulConfig `yaml:"consul"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type ConsulConfig struct {
	Scheme   string `yaml:"scheme"`
	Address  string `yaml:"address"`
	Folder   string `yaml:"folder"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NewFromConfig constructs an infra.KVStore based on kvstore configuration.
func NewFromConfig(cfg Config) (infra.KVStore, error) {
	switch cfg.Type {
	case KVStoreTypeMemory:
		return NewMemoryStore(infra.JSON), nil
	case KVStoreTypeBadger:
		return NewBadgerStore(cfg.Badger.Directory, cfg.Badger.Prefix, infra.JSON)
	case KVStoreTypeConsul:
		opts := Options{
			Scheme:  cfg.Consul.Scheme,
			Address: cfg.Consul.Address,
			Folder:  cfg.Consul.Folder,
			Codec:   infra.JSON,
			Token:   cfg.Consul.Token,
		}
		if cfg.Consul.Username != "" {
			opts.HttpAuth = &api.HttpBasicAuth{
				Username: cfg.Consul.Username,
				Password: cfg.Consul.Password,
			}
		}
		return NewConsulClient(opts)
	default:
		return nil, fmt.Errorf("unsupported kvstore type: %s", cfg.Type)
	}
}

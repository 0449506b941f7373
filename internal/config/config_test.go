package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
rpc:
  url: https://api.mainnet-beta.solana.com
program:
  address: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultLoaders, cfg.Workers.TransactionLoaders)
	assert.Equal(t, DefaultTickInterval, cfg.Workers.TickInterval)
	assert.Equal(t, DefaultBatchLimit, cfg.Workers.BatchLimit)
	assert.Equal(t, DefaultFailurePolicy, cfg.Workers.FailurePolicy)
	assert.Equal(t, 30*time.Second, cfg.RPC.RequestTimeout)
	assert.Equal(t, "badger", cfg.KVStore.Type)
	assert.Equal(t, "indexer", cfg.NATS.SubjectPrefix)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
rpc:
  url: https://rpc.example.com
  request_timeout: 10s
  rate_limit:
    requests_per_second: 20
    burst_size: 5
program:
  address: So11111111111111111111111111111111111111112
workers:
  transaction_loaders: 4
  tick_interval: 50ms
  batch_limit: 250
  failure_policy: drop
kvstore:
  type: consul
  consul:
    address: localhost:8500
nats:
  url: nats://localhost:4222
  subject_prefix: devnet
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers.TransactionLoaders)
	assert.Equal(t, 50*time.Millisecond, cfg.Workers.TickInterval)
	assert.Equal(t, 250, cfg.Workers.BatchLimit)
	assert.Equal(t, "drop", cfg.Workers.FailurePolicy)
	assert.Equal(t, 20, cfg.RPC.RateLimit.RequestsPerSecond)
	assert.Equal(t, "consul", cfg.KVStore.Type)
	assert.Equal(t, "devnet", cfg.NATS.SubjectPrefix)
}

func TestLoadRejectsMissingRPCURL(t *testing.T) {
	path := writeConfig(t, `
program:
  address: So11111111111111111111111111111111111111112
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc.url")
}

func TestLoadRejectsMissingProgramAddress(t *testing.T) {
	path := writeConfig(t, `
rpc:
  url: https://rpc.example.com
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program.address")
}

func TestLoadRejectsUnknownFailurePolicy(t *testing.T) {
	path := writeConfig(t, `
rpc:
  url: https://rpc.example.com
program:
  address: So11111111111111111111111111111111111111112
workers:
  failure_policy: retry-forever
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure_policy")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

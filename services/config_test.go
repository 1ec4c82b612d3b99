package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/types"
)

const sampleConfig = `
chains:
  "1": https://mainnet.example.com
  "1337": http://localhost:8545
rpc:
  protocol: websocket
  timeout_seconds: 5
  max_retries: 1
  headers:
    x-api-key: secret
catalog:
  path: /etc/brg/interfaces.yaml
project:
  id: 11111111-2222-3333-4444-555555555555
  chain_id: 1337
  base_redirect_url: https://app.example.com
batch:
  size: 10
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	endpoints, err := cfg.ChainEndpoints()
	require.NoError(t, err)
	assert.Equal(t, map[types.ChainID]string{
		1:    "https://mainnet.example.com",
		1337: "http://localhost:8545",
	}, endpoints)

	assert.Equal(t, "websocket", cfg.RPC.Protocol)
	assert.Equal(t, 5, cfg.RPC.TimeoutSeconds)
	assert.Equal(t, "/etc/brg/interfaces.yaml", cfg.Catalog.Path)
	assert.Equal(t, "debug", cfg.Log.Level)

	project := cfg.DefaultProject()
	require.NotNil(t, project)
	assert.Equal(t, uuid.MustParse("11111111-2222-3333-4444-555555555555"), project.ID)
	assert.Equal(t, types.ChainID(1337), project.ChainID)
	assert.Equal(t, "https://app.example.com", project.BaseRedirectURL)

	batch := cfg.BatchQueryConfig()
	assert.Equal(t, 10, batch.BatchSize)
	assert.Equal(t, 5, batch.Concurrency)

	clientCfg := cfg.ClientConfig(nil)
	assert.Equal(t, client.ProtocolWebSocket, clientCfg.Protocol)
	assert.Equal(t, 5, clientCfg.Timeout)
	assert.Equal(t, 1, clientCfg.Retry.MaxRetries)
	assert.Equal(t, "secret", clientCfg.Headers["x-api-key"])
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "http", cfg.RPC.Protocol)
		assert.Equal(t, 30, cfg.RPC.TimeoutSeconds)
		assert.Equal(t, 3, cfg.RPC.MaxRetries)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Postgres.DSN)
		assert.Nil(t, cfg.DefaultProject())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BRG_RPC_TIMEOUT_SECONDS", "7")
	t.Setenv("BRG_LOG_LEVEL", "warn")
	t.Setenv("BRG_POSTGRES_DSN", "postgres://brg@localhost/brg?sslmode=disable")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RPC.TimeoutSeconds)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://brg@localhost/brg?sslmode=disable", cfg.Postgres.DSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad chain id", content: "chains:\n  mainnet: https://x\n", wantErr: "invalid chain id"},
		{name: "bad protocol", content: "rpc:\n  protocol: grpc\n", wantErr: "unsupported rpc protocol"},
		{name: "bad log level", content: "log:\n  level: loud\n", wantErr: "invalid log level"},
		{name: "bad project id", content: "project:\n  id: nope\n", wantErr: "invalid project id"},
		{name: "malformed yaml", content: "chains: [", wantErr: "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

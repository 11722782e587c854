package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const validConfig = `
da:
  node_url: "http://da-node:26658"
  node_auth_token: "secret"
  namespace_hex: "0011223344556677889900112233445566778899001122334455"
evm:
  rpc_url: "http://evm:8545"
  lightclient_rpc_url: "http://evm:8545"
  lightclient_contract_addr: "0x00000000000000000000000000000000000001"
indexer:
  url: "http://indexer:9000"
registry:
  genesis_path: "/etc/prover/genesis.json"
`

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "http://da-node:26658", cfg.DA.NodeURL)
	require.Equal(t, ProverModeMock, ProverMode(cfg.Proving.Mode))
	require.Equal(t, ":8081", cfg.HTTP.ListenAddr)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadRequiresBackendURLInCPUMode(t *testing.T) {
	path := writeConfigFile(t, validConfig+"\nproving:\n  mode: \"cpu\"\n")
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfigFile(t, validConfig+"\nproving:\n  mode: \"cpu\"\n  backend_url: \"http://prover-backend:9200\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ProverModeCPU, ProverMode(cfg.Proving.Mode))
}

func TestLoadRejectsMissingRequiredKey(t *testing.T) {
	path := writeConfigFile(t, `
evm:
  rpc_url: "http://evm:8545"
  lightclient_rpc_url: "http://evm:8545"
indexer:
  url: "http://indexer:9000"
registry:
  genesis_path: "/etc/prover/genesis.json"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidNamespaceHex(t *testing.T) {
	path := writeConfigFile(t, `
da:
  node_url: "http://da-node:26658"
  namespace_hex: "not-hex"
evm:
  rpc_url: "http://evm:8545"
  lightclient_rpc_url: "http://evm:8545"
indexer:
  url: "http://indexer:9000"
registry:
  genesis_path: "/etc/prover/genesis.json"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidProverMode(t *testing.T) {
	path := writeConfigFile(t, validConfig+"\nproving:\n  mode: \"gpu\"\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverridesFileValue(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	t.Setenv("EVM_RPC_URL", "http://overridden:8545")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://overridden:8545", cfg.EVM.RPCURL)
}

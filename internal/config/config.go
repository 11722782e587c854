// Package config loads the proving service's runtime configuration
// (spec.md §6), grounded field-for-field on
// shared-publisher-leader-app/config/config.go: a single Config struct
// with mapstructure/env-tagged nested sections, a viper-backed Load
// that applies defaults before reading the config file and environment,
// and a Validate pass.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProverMode selects whether proving runs the real backend or a
// short-circuit mock (spec.md §6).
type ProverMode string

const (
	ProverModeCPU  ProverMode = "cpu"
	ProverModeMock ProverMode = "mock"
)

// DAConfig holds the Celestia-style DA node connection settings.
type DAConfig struct {
	NodeURL       string `mapstructure:"node_url"        yaml:"node_url"        env:"DA_NODE_URL"`
	NodeAuthToken string `mapstructure:"node_auth_token" yaml:"node_auth_token" env:"DA_NODE_AUTH_TOKEN"`
	NamespaceHex  string `mapstructure:"namespace_hex"   yaml:"namespace_hex"   env:"DA_NAMESPACE"`
}

// EVMConfig holds the EVM rollup and on-chain light client RPC settings.
type EVMConfig struct {
	RPCURL                 string `mapstructure:"rpc_url"                   yaml:"rpc_url"                   env:"EVM_RPC_URL"`
	LightClientRPCURL      string `mapstructure:"lightclient_rpc_url"       yaml:"lightclient_rpc_url"       env:"LIGHTCLIENT_RPC_URL"`
	LightClientContractHex string `mapstructure:"lightclient_contract_addr" yaml:"lightclient_contract_addr" env:"LIGHTCLIENT_CONTRACT_ADDR"`
}

// IndexerConfig holds the DA-inclusion indexer's connection settings.
type IndexerConfig struct {
	URL string `mapstructure:"url" yaml:"url" env:"INDEXER_URL"`
}

// RegistryConfig holds the chain-registry/genesis config source.
type RegistryConfig struct {
	GenesisPath string `mapstructure:"genesis_path" yaml:"genesis_path" env:"GENESIS_PATH"`
}

// ProvingConfig holds the optional, proving-behavior knobs.
type ProvingConfig struct {
	CustomBeneficiaryHex string     `mapstructure:"custom_beneficiary_hex" yaml:"custom_beneficiary_hex" env:"CUSTOM_BENEFICIARY"`
	OpcodeTracking       bool       `mapstructure:"opcode_tracking"        yaml:"opcode_tracking"        env:"OPCODE_TRACKING"`
	Mode                 ProverMode `mapstructure:"mode"                   yaml:"mode"                   env:"PROVER_MODE"`
	// BackendURL is the remote proving backend's base URL, required
	// only when Mode is ProverModeCPU: ProverModeMock runs the per-block
	// and aggregator program contracts in-process and needs no backend.
	BackendURL string `mapstructure:"backend_url" yaml:"backend_url" env:"PROVER_BACKEND_URL"`
}

// HTTPConfig holds the async job submission/status HTTP surface's
// listener settings (internal/httpapi).
type HTTPConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"         yaml:"listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       yaml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        yaml:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"    yaml:"max_header_bytes"`
}

// MetricsConfig holds the Prometheus /metrics listener settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Port    int    `mapstructure:"port"    yaml:"port"    env:"METRICS_PORT"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// SchedulerConfig holds the periodic-recheck driver's interval.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" env:"SCHEDULER_INTERVAL"`
}

// Config holds the complete proving service configuration.
type Config struct {
	DA        DAConfig        `mapstructure:"da"        yaml:"da"`
	EVM       EVMConfig       `mapstructure:"evm"       yaml:"evm"`
	Indexer   IndexerConfig   `mapstructure:"indexer"   yaml:"indexer"`
	Registry  RegistryConfig  `mapstructure:"registry"  yaml:"registry"`
	Proving   ProvingConfig   `mapstructure:"proving"   yaml:"proving"`
	HTTP      HTTPConfig      `mapstructure:"http"      yaml:"http"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
}

// Load reads configuration from configPath (if non-empty) and the
// environment, applying defaults first.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("evm.rpc_url", "")
	v.SetDefault("evm.lightclient_rpc_url", "")
	v.SetDefault("indexer.url", "")
	v.SetDefault("registry.genesis_path", "")

	v.SetDefault("proving.mode", string(ProverModeMock))
	v.SetDefault("proving.opcode_tracking", false)

	v.SetDefault("http.listen_addr", ":8081")
	v.SetDefault("http.read_header_timeout", "5s")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "120s")
	v.SetDefault("http.max_header_bytes", 1048576)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("scheduler.interval", "30s")
}

// Validate checks the required keys spec.md §6 names and the format of
// the hex-encoded ones.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DA.NodeURL) == "" {
		return fmt.Errorf("da.node_url (DA_NODE_URL) is required")
	}
	if strings.TrimSpace(c.DA.NamespaceHex) == "" {
		return fmt.Errorf("da.namespace_hex (DA_NAMESPACE) is required")
	}
	if _, err := decodeHex(c.DA.NamespaceHex); err != nil {
		return fmt.Errorf("da.namespace_hex (DA_NAMESPACE) is not valid hex: %w", err)
	}
	if strings.TrimSpace(c.EVM.RPCURL) == "" {
		return fmt.Errorf("evm.rpc_url (EVM_RPC_URL) is required")
	}
	if strings.TrimSpace(c.EVM.LightClientRPCURL) == "" {
		return fmt.Errorf("evm.lightclient_rpc_url (LIGHTCLIENT_RPC_URL) is required")
	}
	if strings.TrimSpace(c.EVM.LightClientContractHex) == "" {
		return fmt.Errorf("evm.lightclient_contract_addr (LIGHTCLIENT_CONTRACT_ADDR) is required")
	}
	if strings.TrimSpace(c.Indexer.URL) == "" {
		return fmt.Errorf("indexer.url (INDEXER_URL) is required")
	}
	if strings.TrimSpace(c.Registry.GenesisPath) == "" {
		return fmt.Errorf("registry.genesis_path (GENESIS_PATH) is required")
	}
	if c.Proving.CustomBeneficiaryHex != "" {
		if _, err := decodeHex(c.Proving.CustomBeneficiaryHex); err != nil {
			return fmt.Errorf("proving.custom_beneficiary_hex (CUSTOM_BENEFICIARY) is not valid hex: %w", err)
		}
	}
	switch ProverMode(c.Proving.Mode) {
	case ProverModeCPU:
		if strings.TrimSpace(c.Proving.BackendURL) == "" {
			return fmt.Errorf("proving.backend_url (PROVER_BACKEND_URL) is required when proving.mode is %q", ProverModeCPU)
		}
	case ProverModeMock:
	default:
		return fmt.Errorf("proving.mode (PROVER_MODE) must be %q or %q, got %q", ProverModeCPU, ProverModeMock, c.Proving.Mode)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1-65535 when metrics enabled, got %d", c.Metrics.Port)
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

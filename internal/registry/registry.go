// Package registry is the chain/rollup config source the orchestrator's
// dependency-injection pattern borrows read-only, same Service interface
// shape as the teacher's x/superblock/registry.composeService
// (GetRollupInfo, GetActiveRollups). Where the teacher backs Service with
// github.com/compose-network/registry — a private registry client tied to
// the teacher's own multi-chain compose network, not reusable here (see
// DESIGN.md) — this package backs it with a static GENESIS_PATH JSON file
// loaded once at startup via viper, matching spec.md §6's configuration
// surface.
package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/dabridge/prover/internal/errs"
)

// RollupInfo is the static configuration record for one rollup chain
// known to this prover instance.
type RollupInfo struct {
	ChainID      []byte
	Endpoint     string
	PublicKey    []byte
	StartingSlot uint64
	IsActive     bool
	UpdatedAt    time.Time
}

// Service is the read-only chain registry surface the orchestrator and
// facade depend on.
type Service interface {
	GetRollupInfo(chainID []byte) (*RollupInfo, error)
	GetActiveRollups(ctx context.Context) ([][]byte, error)
}

type rawRollupEntry struct {
	ChainID      string `mapstructure:"chain_id"`
	Endpoint     string `mapstructure:"endpoint"`
	PublicKey    string `mapstructure:"public_key"`
	StartingSlot uint64 `mapstructure:"starting_slot"`
	IsActive     bool   `mapstructure:"is_active"`
}

type rawGenesis struct {
	Rollups []rawRollupEntry `mapstructure:"rollups"`
}

// GenesisService is a static, GENESIS_PATH-backed implementation of
// Service: every rollup entry is loaded once at construction and held
// immutable for the process lifetime, per spec.md §3's lifecycle note on
// process-scoped, read-only configuration.
type GenesisService struct {
	rollups map[string]*RollupInfo
	log     zerolog.Logger
}

// NewGenesisService loads and validates the genesis file at genesisPath.
func NewGenesisService(genesisPath string, log zerolog.Logger) (*GenesisService, error) {
	if genesisPath == "" {
		return nil, errs.MissingConfig("GENESIS_PATH is required")
	}

	v := viper.New()
	v.SetConfigFile(genesisPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("registry: read genesis file %s: %w", genesisPath, err)
	}

	var raw rawGenesis
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("registry: unmarshal genesis file %s: %w", genesisPath, err)
	}

	rollups := make(map[string]*RollupInfo, len(raw.Rollups))
	now := time.Now()
	for _, entry := range raw.Rollups {
		chainID, err := decodeHex(entry.ChainID)
		if err != nil {
			return nil, fmt.Errorf("registry: rollup %q: bad chain_id: %w", entry.Endpoint, err)
		}

		var pubKey []byte
		if entry.PublicKey != "" {
			pubKey, err = decodeHex(entry.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("registry: rollup %x: bad public_key: %w", chainID, err)
			}
		}

		rollups[string(chainID)] = &RollupInfo{
			ChainID:      chainID,
			Endpoint:     entry.Endpoint,
			PublicKey:    pubKey,
			StartingSlot: entry.StartingSlot,
			IsActive:     entry.IsActive,
			UpdatedAt:    now,
		}
	}

	logger := log.With().Str("component", "registry.genesis").Logger()
	logger.Info().Int("rollup_count", len(rollups)).Str("genesis_path", genesisPath).Msg("genesis registry loaded")

	return &GenesisService{rollups: rollups, log: logger}, nil
}

// GetRollupInfo returns a defensive copy of the named rollup's config.
func (s *GenesisService) GetRollupInfo(chainID []byte) (*RollupInfo, error) {
	ri, ok := s.rollups[string(chainID)]
	if !ok {
		return nil, fmt.Errorf("registry: rollup %x not found", chainID)
	}
	out := *ri
	out.ChainID = append([]byte(nil), ri.ChainID...)
	if ri.PublicKey != nil {
		out.PublicKey = append([]byte(nil), ri.PublicKey...)
	}
	return &out, nil
}

// GetActiveRollups returns the chain IDs of every rollup marked active.
func (s *GenesisService) GetActiveRollups(_ context.Context) ([][]byte, error) {
	res := make([][]byte, 0, len(s.rollups))
	for _, ri := range s.rollups {
		if !ri.IsActive {
			continue
		}
		b := make([]byte, len(ri.ChainID))
		copy(b, ri.ChainID)
		res = append(res, b)
	}
	return res, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

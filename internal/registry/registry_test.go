package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

const twoRollupGenesis = `{
  "rollups": [
    {"chain_id": "0x01", "endpoint": "http://rollup-a:8545", "public_key": "0xaabb", "starting_slot": 10, "is_active": true},
    {"chain_id": "0x02", "endpoint": "http://rollup-b:8545", "is_active": false}
  ]
}`

func TestNewGenesisServiceLoadsRollups(t *testing.T) {
	path := writeGenesis(t, twoRollupGenesis)

	svc, err := NewGenesisService(path, discardLogger())
	require.NoError(t, err)

	ri, err := svc.GetRollupInfo([]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, "http://rollup-a:8545", ri.Endpoint)
	require.Equal(t, []byte{0xaa, 0xbb}, ri.PublicKey)
	require.Equal(t, uint64(10), ri.StartingSlot)
	require.True(t, ri.IsActive)
}

func TestGetActiveRollupsExcludesInactive(t *testing.T) {
	path := writeGenesis(t, twoRollupGenesis)
	svc, err := NewGenesisService(path, discardLogger())
	require.NoError(t, err)

	active, err := svc.GetActiveRollups(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, []byte{0x01}, active[0])
}

func TestGetRollupInfoReturnsDefensiveCopy(t *testing.T) {
	path := writeGenesis(t, twoRollupGenesis)
	svc, err := NewGenesisService(path, discardLogger())
	require.NoError(t, err)

	ri, err := svc.GetRollupInfo([]byte{0x01})
	require.NoError(t, err)
	ri.Endpoint = "mutated"
	ri.PublicKey[0] = 0xFF

	ri2, err := svc.GetRollupInfo([]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, "http://rollup-a:8545", ri2.Endpoint)
	require.Equal(t, byte(0xaa), ri2.PublicKey[0])
}

func TestGetRollupInfoUnknownChainErrors(t *testing.T) {
	path := writeGenesis(t, twoRollupGenesis)
	svc, err := NewGenesisService(path, discardLogger())
	require.NoError(t, err)

	_, err = svc.GetRollupInfo([]byte{0xFF})
	require.Error(t, err)
}

func TestNewGenesisServiceRequiresPath(t *testing.T) {
	_, err := NewGenesisService("", discardLogger())
	require.Error(t, err)
}

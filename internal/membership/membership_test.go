package membership

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// buildClaims constructs a small Merkle tree over the given leaf values
// and returns one Claim per leaf, index-aligned, plus the tree's root.
func buildClaims(t *testing.T, paths []string, values [][]byte) ([]Claim, types.Hash32) {
	t.Helper()
	require.Equal(t, len(paths), len(values))

	root, proofs := merkle.RootAndProofs(values)
	var appHash types.Hash32
	copy(appHash[:], root)

	claims := make([]Claim, len(paths))
	for i := range paths {
		claims[i] = Claim{
			PathComponents: []string{paths[i]},
			Value:          values[i],
			Proof:          *proofs[i],
		}
	}
	return claims, appHash
}

func TestProvePreservesOrderAndValues(t *testing.T) {
	paths := []string{"clients/0", "connections/0"}
	values := [][]byte{[]byte("v1"), []byte("v2")}
	claims, appHash := buildClaims(t, paths, values)

	out, err := Prove(appHash, claims)
	require.NoError(t, err)
	require.Equal(t, appHash, out.AppHash)
	require.Len(t, out.KVPairs, 2)
	require.Equal(t, KVPair{Path: "clients/0", Value: []byte("v1")}, out.KVPairs[0])
	require.Equal(t, KVPair{Path: "connections/0", Value: []byte("v2")}, out.KVPairs[1])
}

func TestProveJoinsMultiSegmentPaths(t *testing.T) {
	root, proofs := merkle.RootAndProofs([][]byte{[]byte("v1")})
	var appHash types.Hash32
	copy(appHash[:], root)

	claims := []Claim{{PathComponents: []string{"ibc", "clients", "07-tendermint-0"}, Value: []byte("v1"), Proof: *proofs[0]}}
	out, err := Prove(appHash, claims)
	require.NoError(t, err)
	require.Equal(t, "ibc/clients/07-tendermint-0", out.KVPairs[0].Path)
}

func TestProveRejectsTamperedValue(t *testing.T) {
	paths := []string{"clients/0", "connections/0"}
	values := [][]byte{[]byte("v1"), []byte("v2")}
	claims, appHash := buildClaims(t, paths, values)

	claims[0].Value = []byte("tampered")

	_, err := Prove(appHash, claims)
	require.Error(t, err)

	var perr *errs.ProverErr
	require.ErrorAs(t, err, &perr)
	require.Equal(t, errs.TypeMembershipProofFailed, perr.Kind)
}

func TestProveRejectsWrongAppHash(t *testing.T) {
	paths := []string{"clients/0", "connections/0"}
	values := [][]byte{[]byte("v1"), []byte("v2")}
	claims, _ := buildClaims(t, paths, values)

	var wrongHash types.Hash32
	for i := range wrongHash {
		wrongHash[i] = 0xFF
	}

	_, err := Prove(wrongHash, claims)
	require.Error(t, err)
}

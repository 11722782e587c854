package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func leaves(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i), byte(i * 7)}
	}
	return out
}

func TestRootAndProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 14, 16, 17} {
		ls := leaves(n)
		root, proofs := RootAndProofs(ls)
		require.Len(t, proofs, n)
		for i, p := range proofs {
			require.NoError(t, p.Verify(root, ls[i]), "n=%d index=%d", n, i)
		}
	}
}

func TestProofRejectsWrongData(t *testing.T) {
	ls := leaves(14)
	root, proofs := RootAndProofs(ls)
	err := proofs[6].Verify(root, []byte("not the real leaf"))
	require.Error(t, err)
}

func TestProofRejectsWrongRoot(t *testing.T) {
	ls := leaves(14)
	_, proofs := RootAndProofs(ls)
	err := proofs[6].Verify(LeafHash([]byte("bogus")), ls[6])
	require.Error(t, err)
}

func TestEmptyTree(t *testing.T) {
	root, proofs := RootAndProofs(nil)
	require.Empty(t, proofs)
	require.Len(t, root, 32)
}

// Package membership implements the Membership Prover sibling capability
// (spec.md §4.6): given a DA app-state root hash and a set of Merkle
// proofs against it, produce a proof whose public output is the ordered
// list of verified (path, value) pairs. It does not participate in
// per-block aggregation — its output is never fed into
// internal/zkvm/aggregator.
//
// Grounded on internal/dacore/merkle.Proof, the same single-leaf
// inclusion proof the header-field Merkleizer and row/column proof
// builder already use; a membership claim is nothing more than one more
// leaf of a binary Merkle tree, this time the DA app-state tree rather
// than the header-field tree or the row/column square.
package membership

import (
	"strings"

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// Claim is one (path, value) pair and the Merkle proof binding it to an
// app-hash.
type Claim struct {
	PathComponents []string
	Value          []byte
	Proof          merkle.Proof
}

// KVPair is one verified entry of the membership output.
type KVPair struct {
	Path  string
	Value []byte
}

// Output is the public output of a membership proof: the app-hash the
// claims were checked against, and the ordered list of verified pairs.
type Output struct {
	AppHash types.Hash32
	KVPairs []KVPair
}

// Prove verifies every claim's Merkle proof against appHash and returns
// the (path, value) pairs in the same order the claims were supplied,
// per spec.md §8 scenario 6. The first claim that fails to verify aborts
// the whole proof — partial membership output is never produced.
func Prove(appHash types.Hash32, claims []Claim) (Output, error) {
	pairs := make([]KVPair, len(claims))
	for i, c := range claims {
		path := strings.Join(c.PathComponents, "/")
		if err := c.Proof.Verify(appHash[:], c.Value); err != nil {
			return Output{}, errs.MembershipProofFailed(
				"claim " + path + ": " + err.Error(),
			)
		}
		pairs[i] = KVPair{Path: path, Value: c.Value}
	}
	return Output{AppHash: appHash, KVPairs: pairs}, nil
}

// Package aggregator is the host-side reference implementation of the
// aggregator zkVM program contract (spec.md §4.8): chaining N
// per-block proofs into one Aggregate Public Output.
package aggregator

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// Batch is the aggregator's input shape, pinned per spec.md §9 Open
// Question #2 to three parallel lists of equal length N rather than N
// individually-named fields: one verifying-key hash, one public-value
// blob (an encoded Per-Block Public Output), and one proof per inner
// block.
type Batch struct {
	VerifyingKeyHashes [][]byte
	PublicValues       [][]byte
	Proofs             [][]byte
}

// perBlockProofType mirrors the underlying value of
// proverclient.ProofTypePerBlock. aggregator cannot import proverclient —
// proverclient.runAggregate calls Aggregate, so the reverse import would
// cycle — so the expected per-block verifying-key hash is rebuilt here from
// the same literal. Keep this in sync with proverclient.ProofTypePerBlock.
const perBlockProofType = "per_block"

// expectedPerBlockVerifyingKeyHash is the verifying-key hash every inner
// proof fed into Aggregate must carry: every batch entry is, by
// construction, a per-block proof.
func expectedPerBlockVerifyingKeyHash() []byte {
	sum := sha256.Sum256([]byte(perBlockProofType))
	return sum[:]
}

// Aggregate runs the chaining check across a batch of per-block
// outputs and emits the Aggregate Public Output. N must be at least 2;
// any adjacent pair whose prev_header_hash does not match the
// preceding block's header_hash aborts aggregation entirely — no
// partial aggregate is ever produced.
func Aggregate(batch Batch) (types.AggregateOutput, error) {
	n := len(batch.PublicValues)
	if len(batch.VerifyingKeyHashes) != n || len(batch.Proofs) != n {
		return types.AggregateOutput{}, errs.New(errs.TypeBadHeightRange,
			"aggregation batch lists must all have equal length")
	}
	if n < 2 {
		return types.AggregateOutput{}, errs.AggregationTooSmall(
			"aggregation requires at least 2 per-block outputs")
	}

	expectedVK := expectedPerBlockVerifyingKeyHash()
	outputs := make([]types.PerBlockOutput, n)
	for i, pv := range batch.PublicValues {
		if !bytes.Equal(batch.VerifyingKeyHashes[i], expectedVK) {
			return types.AggregateOutput{}, errs.New(errs.TypeGroth16Invalid,
				fmt.Sprintf("inner proof %d: verifying key hash does not match the per-block verifying key", i))
		}
		expectedProof := sha256.Sum256(pv)
		if !bytes.Equal(batch.Proofs[i], expectedProof[:]) {
			return types.AggregateOutput{}, errs.New(errs.TypeGroth16Invalid,
				fmt.Sprintf("inner proof %d does not match the expected digest of its public values", i))
		}

		out, err := types.DecodePerBlockOutput(pv)
		if err != nil {
			return types.AggregateOutput{}, errs.New(errs.TypeBadHeightRange, err.Error())
		}
		outputs[i] = out
	}

	for i := 1; i < n; i++ {
		if outputs[i-1].HeaderHash != outputs[i].PrevHeaderHash {
			return types.AggregateOutput{}, errs.HeaderHashMismatch(
				"per-block output chain has a gap: prev_header_hash does not match preceding header_hash")
		}
	}

	daHeaderHashes := make([]types.Hash32, n)
	for i, out := range outputs {
		daHeaderHashes[i] = out.DAHeaderHash
	}

	return types.AggregateOutput{
		NewestHeaderHash: outputs[n-1].HeaderHash,
		OldestHeaderHash: outputs[0].HeaderHash,
		DAHeaderHashes:   daHeaderHashes,
		NewestStateRoot:  outputs[n-1].StateRoot,
		NewestHeight:     outputs[n-1].Height,
	}, nil
}

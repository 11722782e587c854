// Package blockprogram is the host-side reference implementation of the
// per-block zkVM program contract (spec.md §4.7): the five checks a
// witness stream must pass before a per-block proof can be produced,
// and the derivation of the Per-Block Public Output from the executed
// block. The real zkVM guest execution is an external collaborator; in
// PROVER_MODE=mock this Verify function IS the proving step, and in
// PROVER_MODE=cpu its output shape is the oracle the orchestrator
// checks the external prover's public values against.
package blockprogram

import (
	"context"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dabridge/prover/internal/dacore/header"
	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/square"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/witness"
)

// ExecutionResult is what re-executing the EVM block under the chain
// variant implied by the execution input yields: the canonical
// serialized block bytes (reconstructed to build the blob for
// inclusion checking) plus the header fields the public output needs.
type ExecutionResult struct {
	RollupBlockBytes []byte
	HeaderHash       types.Hash32
	PrevHeaderHash   types.Hash32
	Height           uint64
	GasUsed          uint64
	Beneficiary      [types.AddressSize]byte
	StateRoot        types.Hash32
}

// EVMExecutor re-executes an EVM block from its opaque executor input.
// Any execution error is unrecoverable: per spec.md §4.7 check 5, it
// must halt proof generation entirely rather than surface a partial
// result.
type EVMExecutor interface {
	Execute(ctx context.Context, executionInput []byte) (ExecutionResult, error)
}

// Program is the per-block program contract, parameterized by the
// fixed protocol square geometry (eds_size) it was deployed against.
// eds_size is not threaded through the witness stream itself — like
// real Celestia, the square width is a protocol-wide constant the
// verifier already knows, not per-block data.
type Program struct {
	Executor EVMExecutor
	EDSSize  int
}

// Verify runs the five checks from spec.md §4.7 against a classic
// NMT-row witness stream and emits the Per-Block Public Output. Any
// integrity failure returns an error and no output — there is no
// partial result.
func (p *Program) Verify(ctx context.Context, s witness.Stream) (types.PerBlockOutput, error) {
	if err := header.VerifyDataHashProof(s.DAHeaderHash.Bytes(), s.DataHashBytes, s.DataHashProof); err != nil {
		return types.PerBlockOutput{}, err
	}

	result, err := p.Executor.Execute(ctx, s.ExecutionInput)
	if err != nil {
		return types.PerBlockOutput{}, errs.ExecutionFailure(err.Error())
	}

	blob := types.Blob{Namespace: s.Namespace, Data: result.RollupBlockBytes}
	shares := splitShares(blob.Data)

	cursor := 0
	for i, proof := range s.NMTProofs {
		if i >= len(s.SelectedRowRoots) {
			return types.PerBlockOutput{}, errs.NmtCoverageMismatch("more NMT proofs than selected row roots")
		}
		spanLen := proof.EndIdx - proof.StartIdx
		if cursor+spanLen > len(shares) {
			return types.PerBlockOutput{}, errs.NmtCoverageMismatch("NMT proof span exceeds blob share count")
		}
		rangeShares := shares[cursor : cursor+spanLen]
		if err := nmt.VerifyRangeProof(s.SelectedRowRoots[i], proof, rangeShares, rowWidth(p.EDSSize)); err != nil {
			return types.PerBlockOutput{}, err
		}
		cursor += spanLen
	}
	if cursor != len(shares) {
		return types.PerBlockOutput{}, errs.NmtCoverageMismatch("NMT proofs do not cover all blob shares")
	}

	rawDataHash, _, ok := consumeLengthDelimited(s.DataHashBytes)
	if !ok {
		return types.PerBlockOutput{}, errs.DataHashProofFailed("malformed data hash leaf encoding")
	}
	if err := square.VerifyRangeProof(rawDataHash, s.SelectedRowRoots, s.RowRangeMultiproof, 2*p.EDSSize); err != nil {
		return types.PerBlockOutput{}, err
	}

	blobCommitment := merkle.Root(shares)
	var commitment types.Hash32
	copy(commitment[:], blobCommitment)
	if commitment != s.BlobCommitment {
		return types.PerBlockOutput{}, errs.IndexerInconsistent("blob commitment computed from blob bytes does not match indexer-supplied blob_commitment")
	}

	return types.PerBlockOutput{
		BlobCommitment: commitment,
		HeaderHash:     result.HeaderHash,
		PrevHeaderHash: result.PrevHeaderHash,
		Height:         result.Height,
		GasUsed:        result.GasUsed,
		Beneficiary:    result.Beneficiary,
		StateRoot:      result.StateRoot,
		DAHeaderHash:   s.DAHeaderHash,
	}, nil
}

func rowWidth(edsSize int) int { return edsSize }

func splitShares(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{make([]byte, types.ShareSize)}
	}
	n := len(data) / types.ShareSize
	if len(data)%types.ShareSize != 0 {
		n++
	}
	shares := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * types.ShareSize
		end := start + types.ShareSize
		share := make([]byte, types.ShareSize)
		if end > len(data) {
			end = len(data)
		}
		copy(share, data[start:end])
		shares[i] = share
	}
	return shares
}

func consumeLengthDelimited(b []byte) ([]byte, int, bool) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, false
	}
	return v, n, true
}

package blockprogram

import (
	"context"
	"fmt"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/dacore/types"
)

// RLPHeaderExecutor is the host-side stand-in for the real zkVM guest's
// EVM re-execution (an external collaborator per spec.md §1's
// non-goals: only the program's input/output contract is specified
// here). It decodes the RLP-encoded rollup header internal/evmrpc's
// RollupBlockFetcher hands the program as ClientExecutorInput and
// derives the header-level Per-Block Public Output fields directly
// from go-ethereum's own header hashing, the same way the real guest
// eventually must. It cannot replay transaction execution, so its
// RollupBlockBytes output — an empty-body block built from the decoded
// header alone — only round-trips against blocks that genuinely have
// no body, such as PROVER_MODE=mock fixtures. It exists so
// PROVER_MODE=mock is wireable end to end without a zkVM backend, not
// as a correctness oracle for arbitrary rollup blocks.
type RLPHeaderExecutor struct {
	// CustomBeneficiary overrides the decoded header's coinbase address
	// when set (proving.custom_beneficiary_hex / CUSTOM_BENEFICIARY),
	// mirroring the custom_beneficiary parameter EthHostExecutor::eth
	// takes in the original system. Nil means use header.Coinbase as-is.
	CustomBeneficiary *[types.AddressSize]byte
	// OpcodeTracking mirrors the opcode_tracking flag the original
	// system's host executor threads into block execution to emit a
	// per-opcode trace. This stand-in has no EVM to trace opcodes
	// through, so enabling it instead emits a debug log per executed
	// block — real consumption of the flag rather than a silent no-op.
	OpcodeTracking bool
	Log            zerolog.Logger
}

// Execute decodes executionInput as an RLP-encoded gethtypes.Header.
func (e RLPHeaderExecutor) Execute(_ context.Context, executionInput []byte) (ExecutionResult, error) {
	var header gethtypes.Header
	if err := rlp.DecodeBytes(executionInput, &header); err != nil {
		return ExecutionResult{}, fmt.Errorf("blockprogram: decode rollup header: %w", err)
	}

	if e.OpcodeTracking {
		e.Log.Debug().
			Uint64("height", header.Number.Uint64()).
			Int("input_bytes", len(executionInput)).
			Msg("opcode tracking enabled: executing block")
	}

	rebuilt := gethtypes.NewBlockWithHeader(&header)
	rollupBlockBytes, err := rlp.EncodeToBytes(rebuilt)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("blockprogram: re-encode rollup block: %w", err)
	}

	var beneficiary [types.AddressSize]byte
	if e.CustomBeneficiary != nil {
		beneficiary = *e.CustomBeneficiary
	} else {
		copy(beneficiary[:], header.Coinbase.Bytes())
	}

	var headerHash, prevHeaderHash, stateRoot types.Hash32
	copy(headerHash[:], header.Hash().Bytes())
	copy(prevHeaderHash[:], header.ParentHash.Bytes())
	copy(stateRoot[:], header.Root.Bytes())

	return ExecutionResult{
		RollupBlockBytes: rollupBlockBytes,
		HeaderHash:       headerHash,
		PrevHeaderHash:   prevHeaderHash,
		Height:           header.Number.Uint64(),
		GasUsed:          header.GasUsed,
		Beneficiary:      beneficiary,
		StateRoot:        stateRoot,
	}, nil
}

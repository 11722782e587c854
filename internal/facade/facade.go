// Package facade implements the Prover Facade (spec.md §4.10): the single
// entry point the outer wire layer (internal/httpapi) calls into. The
// facade itself is specified as "operations (contract, not wire)" — the
// teacher's gRPC-codegen'd service boundary has no analogue here, since
// grpc never appears in the teacher's go.mod and generating a .proto
// binding is out of reach without running protoc. The facade is instead
// a plain Go struct whose methods are the contract; internal/httpapi is
// the one concrete wire adapter in front of it.
package facade

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/indexer"
	"github.com/dabridge/prover/internal/membership"
)

// Orchestrator is the subset of internal/orchestrator.Orchestrator the
// facade drives.
type Orchestrator interface {
	ProveBlockRange(ctx context.Context, inputs []types.BlockProverInput, namespace types.Namespace) (proof, verifyingKeyHash, publicValues []byte, err error)
}

// IndexerClient is the subset of internal/indexer.Client the facade needs
// to resolve a rollup height's DA inclusion metadata.
type IndexerClient interface {
	Lookup(ctx context.Context, height uint64) (indexer.InclusionResult, error)
}

// RollupHeightSource reports the EVM rollup's current chain height.
type RollupHeightSource interface {
	LatestHeight(ctx context.Context) (uint64, error)
}

// LightClientSource reports the height the on-chain light client last
// accepted for a given client ID.
type LightClientSource interface {
	TrustedHeight(ctx context.Context, clientID string) (uint64, error)
}

// BlockInputSource fetches the client-executor input and RLP-encoded
// rollup block for a given height.
type BlockInputSource interface {
	FetchBlockInput(ctx context.Context, height uint64) (clientExecutorInput []byte, rollupBlock []byte, err error)
}

// MembershipSource resolves the DA app-hash and the Merkle claims to
// check against it for a given height and set of key paths.
type MembershipSource interface {
	FetchMembershipClaims(ctx context.Context, height uint64, keyPaths [][]string) (appHash types.Hash32, claims []membership.Claim, err error)
}

// Info is the static service-identity payload spec.md §4.10's info()
// operation returns.
type Info struct {
	ServiceName           string
	Namespace             types.Namespace
	StateTransitionVKHash []byte
	StateMembershipVKHash []byte
}

// Facade wires together every oracle and subsystem the core proving
// operations depend on.
type Facade struct {
	Orchestrator Orchestrator
	Indexer      IndexerClient
	RollupHeight RollupHeightSource
	LightClient  LightClientSource
	BlockInput   BlockInputSource
	Membership   MembershipSource

	Namespace             types.Namespace
	StateTransitionVKHash []byte
	StateMembershipVKHash []byte
	ServiceName           string

	Log zerolog.Logger
}

// Info reports the facade's static identity.
func (f *Facade) Info() Info {
	return Info{
		ServiceName:           f.ServiceName,
		Namespace:             f.Namespace,
		StateTransitionVKHash: f.StateTransitionVKHash,
		StateMembershipVKHash: f.StateMembershipVKHash,
	}
}

// ProveStateTransition resolves the light client's trusted height and
// the rollup's latest height for clientID, then produces a single
// aggregated proof spanning every block between them (spec.md §4.10).
// If the light client is already current, it returns errs.AlreadyCurrent
// rather than attempting a zero-block proof.
func (f *Facade) ProveStateTransition(ctx context.Context, clientID string) (proof, verifyingKeyHash, publicValues []byte, err error) {
	latest, err := f.RollupHeight.LatestHeight(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("facade: resolve latest rollup height: %w", err)
	}
	trusted, err := f.LightClient.TrustedHeight(ctx, clientID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("facade: resolve trusted height for client %s: %w", clientID, err)
	}
	if trusted >= latest {
		return nil, nil, nil, errs.AlreadyCurrent(fmt.Sprintf("client %s is already current at height %d", clientID, trusted))
	}

	inputs := make([]types.BlockProverInput, 0, latest-trusted)
	for height := trusted + 1; height <= latest; height++ {
		result, err := f.Indexer.Lookup(ctx, height)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("facade: indexer lookup at height %d: %w", height, err)
		}
		clientExecutorInput, rollupBlock, err := f.BlockInput.FetchBlockInput(ctx, height)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("facade: fetch block input at height %d: %w", height, err)
		}
		inputs = append(inputs, types.BlockProverInput{
			InclusionHeight:     result.InclusionHeight,
			ClientExecutorInput: clientExecutorInput,
			RollupBlock:         rollupBlock,
			BlobCommitment:      result.BlobCommitment,
		})
	}

	return f.Orchestrator.ProveBlockRange(ctx, inputs, f.Namespace)
}

// ProveStateMembership delegates to internal/membership: it resolves the
// app-hash and claims for height, then verifies every claim against it
// (spec.md §4.6, §4.10).
func (f *Facade) ProveStateMembership(ctx context.Context, height uint64, keyPaths [][]string) (membership.Output, error) {
	appHash, claims, err := f.Membership.FetchMembershipClaims(ctx, height, keyPaths)
	if err != nil {
		return membership.Output{}, fmt.Errorf("facade: fetch membership claims at height %d: %w", height, err)
	}
	return membership.Prove(appHash, claims)
}

// VerifyProof checks a proof against its claimed verifying key and
// public inputs. Per spec.md §7 it never returns an error to its
// caller — only a success flag and, on failure, a human-readable
// message — since a malformed proof is a verification-class event, not
// a request-processing failure. It reuses the same SHA-256
// placeholder-proof scheme internal/proverclient uses to produce
// proofs, since no real Groth16 verifier is in scope here.
func (f *Facade) VerifyProof(proof, publicInputs, vkHash, vkBytes []byte) (success bool, errorMessage string) {
	if len(proof) == 0 || len(publicInputs) == 0 || len(vkHash) == 0 {
		return false, "proof, public inputs, and verifying key hash are all required"
	}
	expected := sha256.Sum256(publicInputs)
	if !bytes.Equal(proof, expected[:]) {
		return false, "proof does not match the expected digest of the public inputs"
	}
	if len(vkBytes) > 0 {
		vkSum := sha256.Sum256(vkBytes)
		if !bytes.Equal(vkHash, vkSum[:]) {
			return false, "verifying key hash does not match the supplied verifying key bytes"
		}
	}
	return true, ""
}

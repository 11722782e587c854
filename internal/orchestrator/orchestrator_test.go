package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dabridge/prover/internal/dacore/header"
	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/proverclient"
	"github.com/dabridge/prover/internal/witness"
	"github.com/dabridge/prover/internal/zkvm/blockprogram"
)

func uniformShare(seed byte) []byte {
	s := make([]byte, types.ShareSize)
	for i := range s {
		s[i] = seed
	}
	return s
}

func testNamespace(seed byte) types.Namespace {
	var ns types.Namespace
	for i := range ns {
		ns[i] = seed
	}
	return ns
}

func buildTestHeader(height uint64, ns types.Namespace, rows [][][]byte) *types.Header {
	h := &types.Header{
		ChainID:            "orchestrator-test",
		Height:             height,
		LastBlockID:        types.BlockID{},
		LastCommitHash:     make([]byte, 32),
		ValidatorsHash:     make([]byte, 32),
		NextValidatorsHash: make([]byte, 32),
		ConsensusHash:      make([]byte, 32),
		AppHash:            make([]byte, 32),
		LastResultsHash:    make([]byte, 32),
		EvidenceHash:       make([]byte, 32),
		ProposerAddress:    make([]byte, 20),
	}
	for _, row := range rows {
		h.RowRoots = append(h.RowRoots, nmt.RootOf(ns, row))
	}
	for range rows {
		h.ColumnRoots = append(h.ColumnRoots, nmt.RootOf(ns, rows[0]))
	}
	leaves := append(append([][]byte{}, h.RowRoots...), h.ColumnRoots...)
	h.DataHash = merkle.Root(leaves)

	fields, err := header.FieldBytes(h)
	if err != nil {
		panic(err)
	}
	fieldLeaves := make([][]byte, len(fields))
	for i := range fields {
		fieldLeaves[i] = fields[i]
	}
	h.Hash = merkle.Root(fieldLeaves)
	return h
}

type fakeHeaders struct{ headers map[uint64]*types.Header }

func (f *fakeHeaders) FetchHeader(_ context.Context, height uint64) (*types.Header, error) {
	return f.headers[height], nil
}

type fakeBlobs struct{ blobs map[uint64]*types.Blob }

func (f *fakeBlobs) FetchBlob(_ context.Context, height uint64, _ types.Hash32) (*types.Blob, error) {
	return f.blobs[height], nil
}

// keyedExecutor returns a canned EVM execution result keyed by the literal
// execution input bytes, so a test can chain header hashes across heights
// without threading real EVM state through the pipeline.
type keyedExecutor struct{ results map[string]blockprogram.ExecutionResult }

func (e *keyedExecutor) Execute(_ context.Context, input []byte) (blockprogram.ExecutionResult, error) {
	r, ok := e.results[string(input)]
	if !ok {
		return blockprogram.ExecutionResult{}, fmt.Errorf("keyedExecutor: no result for input %q", input)
	}
	return r, nil
}

func hashFromByte(b byte) types.Hash32 {
	var h types.Hash32
	for i := range h {
		h[i] = b
	}
	return h
}

// twoBlockFixture builds a ClassicAssembler over two inclusion heights
// (5 and 6) with an executor that chains block 6's prev_header_hash to
// block 5's header_hash, and a mock prover client to run both.
func twoBlockFixture(t *testing.T) (*Orchestrator, []types.BlockProverInput, types.Namespace) {
	t.Helper()
	ns := testNamespace(7)
	row := [][]byte{uniformShare(1), uniformShare(2)}

	h5 := buildTestHeader(5, ns, [][][]byte{row, row})
	h6 := buildTestHeader(6, ns, [][][]byte{row, row})

	headers := &fakeHeaders{headers: map[uint64]*types.Header{5: h5, 6: h6}}
	blobs := &fakeBlobs{blobs: map[uint64]*types.Blob{
		5: {Namespace: ns, Data: row[0], Index: 0},
		6: {Namespace: ns, Data: row[0], Index: 0},
	}}
	mockNMT := &nmt.MockSource{RowShares: map[uint64][][][]byte{5: {row, row}, 6: {row, row}}}

	asm := &witness.ClassicAssembler{Headers: headers, Blobs: blobs, NMT: mockNMT}

	genesisHash := hashFromByte(0x01)
	block5Hash := hashFromByte(0x02)
	block6Hash := hashFromByte(0x03)

	executor := &keyedExecutor{results: map[string]blockprogram.ExecutionResult{
		"block-5": {RollupBlockBytes: row[0], Height: 5, PrevHeaderHash: genesisHash, HeaderHash: block5Hash, StateRoot: hashFromByte(0x10)},
		"block-6": {RollupBlockBytes: row[0], Height: 6, PrevHeaderHash: block5Hash, HeaderHash: block6Hash, StateRoot: hashFromByte(0x11)},
	}}

	prog := &blockprogram.Program{Executor: executor, EDSSize: h5.EDSSize()}
	prover := proverclient.NewMockProverClient(prog)

	o := &Orchestrator{Assembler: asm, Prover: prover, DryRunProgram: prog, MaxConcurrency: 2}

	var commitment types.Hash32
	copy(commitment[:], merkle.Root([][]byte{row[0]}))

	inputs := []types.BlockProverInput{
		{InclusionHeight: 5, ClientExecutorInput: []byte("block-5"), RollupBlock: row[0], BlobCommitment: commitment},
		{InclusionHeight: 6, ClientExecutorInput: []byte("block-6"), RollupBlock: row[0], BlobCommitment: commitment},
	}
	return o, inputs, ns
}

func TestGenerateProofRunsWitnessThroughMockProver(t *testing.T) {
	o, inputs, ns := twoBlockFixture(t)

	proof, vkHash, publicValues, err := o.GenerateProof(context.Background(), inputs[0], ns)
	require.NoError(t, err)
	require.NotEmpty(t, proof)
	require.NotEmpty(t, vkHash)

	out, err := types.DecodePerBlockOutput(publicValues)
	require.NoError(t, err)
	require.Equal(t, uint64(5), out.Height)
}

func TestProveBlockRangeOrdersAndAggregates(t *testing.T) {
	o, inputs, ns := twoBlockFixture(t)

	// Submit the range in descending height order; ProveBlockRange must
	// still sort ascending before aggregating, so the chain invariant holds.
	reversed := []types.BlockProverInput{inputs[1], inputs[0]}

	proof, vkHash, publicValues, err := o.ProveBlockRange(context.Background(), reversed, ns)
	require.NoError(t, err)
	require.NotEmpty(t, proof)
	require.NotEmpty(t, vkHash)

	agg, err := types.DecodeAggregateOutput(publicValues)
	require.NoError(t, err)
	require.Equal(t, uint64(6), agg.NewestHeight)
	require.Equal(t, hashFromByte(0x02), agg.OldestHeaderHash)
	require.Equal(t, hashFromByte(0x03), agg.NewestHeaderHash)
	require.Len(t, agg.DAHeaderHashes, 2)
}

func TestAggregateProofsRejectsSingleInput(t *testing.T) {
	o, _, _ := twoBlockFixture(t)
	_, _, _, err := o.AggregateProofs(context.Background(), []types.AggregationInput{{}})
	require.Error(t, err)

	var perr *errs.ProverErr
	require.ErrorAs(t, err, &perr)
	require.Equal(t, errs.TypeAggregationTooSmall, perr.Kind)
}

func TestExecuteGenerateProofSkipsProvingBackend(t *testing.T) {
	o, inputs, ns := twoBlockFixture(t)

	publicValues, report, err := o.ExecuteGenerateProof(context.Background(), inputs[0], ns)
	require.NoError(t, err)
	require.Equal(t, uint64(5), report.Height)

	out, err := types.DecodePerBlockOutput(publicValues)
	require.NoError(t, err)
	require.Equal(t, uint64(5), out.Height)
}

func TestExecuteGenerateProofRequiresDryRunProgram(t *testing.T) {
	o, inputs, ns := twoBlockFixture(t)
	o.DryRunProgram = nil

	_, _, err := o.ExecuteGenerateProof(context.Background(), inputs[0], ns)
	require.Error(t, err)
}

type failingProverClient struct{ errMsg string }

func (f *failingProverClient) RequestProof(_ context.Context, _ proverclient.JobInput) (string, error) {
	return "job-1", nil
}

func (f *failingProverClient) GetStatus(_ context.Context, _ string) (proverclient.JobStatus, error) {
	return proverclient.JobStatus{State: proverclient.StateFailed, ErrorMessage: f.errMsg}, nil
}

func TestGenerateProofSurfacesProverFailure(t *testing.T) {
	o, inputs, ns := twoBlockFixture(t)
	o.Prover = &failingProverClient{errMsg: "prover exploded"}

	_, _, _, err := o.GenerateProof(context.Background(), inputs[0], ns)
	require.Error(t, err)
	require.Contains(t, err.Error(), "prover exploded")
}

package proverclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dabridge/prover/internal/dacore/header"
	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/witness"
	"github.com/dabridge/prover/internal/zkvm/blockprogram"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

func TestHTTPClientRequestAndPollProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(submissionResponse{Success: true, RequestID: "job-1"})
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(statusResponse{
				Success: true,
				Status:  StateComplete,
				Proof:   []byte{0xAA, 0xBB},
			})
		}
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, nil, discardLogger())
	require.NoError(t, err)

	jobID, err := c.RequestProof(context.Background(), JobInput{ProofType: ProofTypePerBlock, WitnessStream: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)

	status, err := c.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StateComplete, status.State)
	require.Equal(t, []byte{0xAA, 0xBB}, status.Proof)
}

func TestHTTPClientRequestProofRejectedByServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := "bad witness"
		_ = json.NewEncoder(w).Encode(submissionResponse{Success: false, Error: &msg})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL, nil, discardLogger())
	require.NoError(t, err)

	_, err = c.RequestProof(context.Background(), JobInput{ProofType: ProofTypePerBlock})
	require.Error(t, err)
}

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

func buildTestHeader(ns types.Namespace, rows [][][]byte) *types.Header {
	h := &types.Header{
		ChainID:            "proverclient-test",
		Height:             1,
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

type fakeExecutor struct{ result blockprogram.ExecutionResult }

func (f *fakeExecutor) Execute(_ context.Context, _ []byte) (blockprogram.ExecutionResult, error) {
	return f.result, nil
}

func TestMockProverClientRunsPerBlockJobInProcess(t *testing.T) {
	ns := testNamespace(4)
	row0 := [][]byte{uniformShare(1), uniformShare(2)}
	h := buildTestHeader(ns, [][][]byte{row0, row0})

	headers := &fakeHeaders{headers: map[uint64]*types.Header{5: h}}
	blobs := &fakeBlobs{blobs: map[uint64]*types.Blob{5: {Namespace: ns, Data: row0[0], Index: 0}}}
	mockNMT := &nmt.MockSource{RowShares: map[uint64][][][]byte{5: {row0, row0}}}

	asm := &witness.ClassicAssembler{Headers: headers, Blobs: blobs, NMT: mockNMT}

	var commitment types.Hash32
	copy(commitment[:], merkle.Root([][]byte{row0[0]}))
	in := types.BlockProverInput{InclusionHeight: 5, ClientExecutorInput: []byte("exec"), RollupBlock: row0[0], BlobCommitment: commitment}
	stream, err := asm.Assemble(context.Background(), in, ns)
	require.NoError(t, err)

	streamBytes, err := stream.Encode()
	require.NoError(t, err)

	prog := &blockprogram.Program{
		Executor: &fakeExecutor{result: blockprogram.ExecutionResult{RollupBlockBytes: row0[0], Height: 99}},
		EDSSize:  h.EDSSize(),
	}
	mock := NewMockProverClient(prog)

	jobID, err := mock.RequestProof(context.Background(), JobInput{ProofType: ProofTypePerBlock, WitnessStream: streamBytes})
	require.NoError(t, err)

	status, err := mock.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StateComplete, status.State)
	require.NotEmpty(t, status.Proof)
	require.NotEmpty(t, status.PublicValues)

	out, err := types.DecodePerBlockOutput(status.PublicValues)
	require.NoError(t, err)
	require.Equal(t, uint64(99), out.Height)
}

func TestMockProverClientSurfacesFailure(t *testing.T) {
	prog := &blockprogram.Program{Executor: &fakeExecutor{}}
	mock := NewMockProverClient(prog)

	jobID, err := mock.RequestProof(context.Background(), JobInput{ProofType: ProofTypePerBlock, WitnessStream: []byte("not a real stream")})
	require.NoError(t, err)

	status, err := mock.GetStatus(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StateFailed, status.State)
	require.NotEmpty(t, status.ErrorMessage)
}

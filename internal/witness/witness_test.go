package witness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dabridge/prover/internal/dacore/header"
	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/types"
)

type fakeHeaders struct {
	headers map[uint64]*types.Header
}

func (f *fakeHeaders) FetchHeader(_ context.Context, height uint64) (*types.Header, error) {
	return f.headers[height], nil
}

type fakeBlobs struct {
	blobs map[uint64]*types.Blob
}

func (f *fakeBlobs) FetchBlob(_ context.Context, height uint64, _ types.Hash32) (*types.Blob, error) {
	return f.blobs[height], nil
}

func uniformShare(seed byte) []byte {
	s := make([]byte, types.ShareSize)
	for i := range s {
		s[i] = seed
	}
	return s
}

func buildTestHeader(ns types.Namespace, rows [][][]byte) *types.Header {
	h := &types.Header{
		ChainID:         "witness-test",
		Height:          1,
		LastBlockID:     types.BlockID{},
		LastCommitHash:  make([]byte, 32),
		ValidatorsHash:  make([]byte, 32),
		NextValidatorsHash: make([]byte, 32),
		ConsensusHash:   make([]byte, 32),
		AppHash:         make([]byte, 32),
		LastResultsHash: make([]byte, 32),
		EvidenceHash:    make([]byte, 32),
		ProposerAddress: make([]byte, 20),
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

func TestAssembleClassicWitnessIdempotent(t *testing.T) {
	ns := testNamespace(9)
	row0 := [][]byte{uniformShare(1), uniformShare(2), uniformShare(3), uniformShare(4)}
	h := buildTestHeader(ns, [][][]byte{row0, row0, row0, row0})

	headers := &fakeHeaders{headers: map[uint64]*types.Header{10: h}}
	blobIdx := 0
	blobs := &fakeBlobs{blobs: map[uint64]*types.Blob{10: {Namespace: ns, Data: row0[0], Commitment: types.Hash32{}, Index: blobIdx}}}
	mock := &nmt.MockSource{RowShares: map[uint64][][][]byte{10: {row0, row0, row0, row0}}}

	asm := &ClassicAssembler{Headers: headers, Blobs: blobs, NMT: mock}

	in := types.BlockProverInput{InclusionHeight: 10, ClientExecutorInput: []byte("exec"), RollupBlock: row0[0]}

	s1, err := asm.Assemble(context.Background(), in, ns)
	require.NoError(t, err)
	b1, err := s1.Encode()
	require.NoError(t, err)

	s2, err := asm.Assemble(context.Background(), in, ns)
	require.NoError(t, err)
	b2, err := s2.Encode()
	require.NoError(t, err)

	require.Equal(t, b1, b2)

	decoded, err := Decode(b1)
	require.NoError(t, err)
	require.Equal(t, s1, decoded)
}

func testNamespace(seed byte) types.Namespace {
	var ns types.Namespace
	for i := range ns {
		ns[i] = seed
	}
	return ns
}

// Package witness implements the Block Witness Assembler: composing the
// header-field Merkleizer, row/column proof builder, and NMT proof
// fetcher outputs into the fixed-order input stream the per-block zkVM
// program consumes (spec.md §4.5).
package witness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dabridge/prover/internal/codec"
	"github.com/dabridge/prover/internal/dacore/header"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/square"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// ProgramVariant selects which per-block program witness profile a
// block is assembled for.
type ProgramVariant int

const (
	// VariantClassicNMT is the canonical production path: a classic
	// NMT-row witness with per-row range proofs.
	VariantClassicNMT ProgramVariant = iota
	// VariantPreVerified names the pre-verified share-inclusion profile
	// (precomputed Keccak hash). Only the identifier exists: no
	// assembler, stream format or program check in this module handles it.
	VariantPreVerified
)

// Stream is the classic NMT-row witness stream, in the contractual
// field order from spec.md §6.
type Stream struct {
	ExecutionInput     []byte
	Namespace          types.Namespace
	DAHeaderHash       types.Hash32
	BlobCommitment     types.Hash32
	DataHashBytes      []byte
	DataHashProof      types.RangeProof
	RowRangeMultiproof types.RowRangeMultiproof
	NMTProofs          []types.NMTRangeProof
	SelectedRowRoots   [][]byte
}

// Encode deterministically serializes the stream in its contractual
// field order, so that assembling the same inputs twice yields
// byte-identical streams.
func (s Stream) Encode() ([]byte, error) {
	f := codec.NewFramer(1 << 28)
	buf := make([]byte, 0, len(s.ExecutionInput)+len(s.DataHashBytes)+4096)

	var err error
	if buf, err = f.WriteChunk(buf, s.ExecutionInput); err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, s.Namespace[:]); err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, s.DAHeaderHash[:]); err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, s.BlobCommitment[:]); err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, s.DataHashBytes); err != nil {
		return nil, err
	}

	dataHashProofBytes, err := encodeRangeProof(f, s.DataHashProof)
	if err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, dataHashProofBytes); err != nil {
		return nil, err
	}

	rowMultiproofBytes, err := encodeRowRangeMultiproof(f, s.RowRangeMultiproof)
	if err != nil {
		return nil, err
	}
	if buf, err = f.WriteChunk(buf, rowMultiproofBytes); err != nil {
		return nil, err
	}

	nmtEncoded := make([][]byte, len(s.NMTProofs))
	for i, p := range s.NMTProofs {
		nmtEncoded[i], err = encodeNMTProof(f, p)
		if err != nil {
			return nil, err
		}
	}
	if buf, err = f.WriteList(buf, nmtEncoded); err != nil {
		return nil, err
	}

	if buf, err = f.WriteList(buf, s.SelectedRowRoots); err != nil {
		return nil, err
	}

	return buf, nil
}

func encodeRangeProof(f *codec.Framer, p types.RangeProof) ([]byte, error) {
	buf := make([]byte, 0, 8+len(p.Nodes)*32)
	buf = appendUint32(buf, uint32(p.StartIdx))
	buf = appendUint32(buf, uint32(p.EndIdx))
	return f.WriteList(buf, p.Nodes)
}

func encodeRowRangeMultiproof(f *codec.Framer, mp types.RowRangeMultiproof) ([]byte, error) {
	buf := make([]byte, 0, 8)
	buf = appendUint32(buf, uint32(mp.StartIdx))
	buf = appendUint32(buf, uint32(mp.EndIdx))
	encoded := make([][]byte, len(mp.Proofs))
	for i, p := range mp.Proofs {
		b, err := encodeRangeProof(f, p)
		if err != nil {
			return nil, err
		}
		encoded[i] = b
	}
	return f.WriteList(buf, encoded)
}

func encodeNMTProof(f *codec.Framer, p types.NMTRangeProof) ([]byte, error) {
	buf := make([]byte, 0, types.NamespaceSize+8)
	buf = append(buf, p.Namespace[:]...)
	buf = appendUint32(buf, uint32(p.StartIdx))
	buf = appendUint32(buf, uint32(p.EndIdx))
	return f.WriteList(buf, p.Siblings)
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func readUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("witness: expected 4-byte uint32 prefix, got %d bytes", len(b))
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Decode parses a stream previously produced by Encode. It is the
// carrier format used to hand a witness to an out-of-process zkVM
// prover (or, in PROVER_MODE=mock, back to this service's own
// in-process reference program).
func Decode(b []byte) (Stream, error) {
	f := codec.NewFramer(1 << 28)
	r := bytes.NewReader(b)
	var s Stream

	var err error
	if s.ExecutionInput, err = f.ReadChunk(r); err != nil {
		return Stream{}, fmt.Errorf("witness: read execution input: %w", err)
	}
	nsBytes, err := f.ReadChunk(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read namespace: %w", err)
	}
	if len(nsBytes) != types.NamespaceSize {
		return Stream{}, fmt.Errorf("witness: namespace must be %d bytes, got %d", types.NamespaceSize, len(nsBytes))
	}
	copy(s.Namespace[:], nsBytes)

	daHash, err := f.ReadChunk(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read DA header hash: %w", err)
	}
	if len(daHash) != types.HashSize {
		return Stream{}, fmt.Errorf("witness: DA header hash must be %d bytes, got %d", types.HashSize, len(daHash))
	}
	copy(s.DAHeaderHash[:], daHash)

	blobCommitment, err := f.ReadChunk(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read blob commitment: %w", err)
	}
	if len(blobCommitment) != types.HashSize {
		return Stream{}, fmt.Errorf("witness: blob commitment must be %d bytes, got %d", types.HashSize, len(blobCommitment))
	}
	copy(s.BlobCommitment[:], blobCommitment)

	if s.DataHashBytes, err = f.ReadChunk(r); err != nil {
		return Stream{}, fmt.Errorf("witness: read data hash bytes: %w", err)
	}

	dataHashProofBytes, err := f.ReadChunk(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read data hash proof: %w", err)
	}
	if s.DataHashProof, err = decodeRangeProof(f, dataHashProofBytes); err != nil {
		return Stream{}, err
	}

	rowMultiproofBytes, err := f.ReadChunk(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read row range multiproof: %w", err)
	}
	if s.RowRangeMultiproof, err = decodeRowRangeMultiproof(f, rowMultiproofBytes); err != nil {
		return Stream{}, err
	}

	nmtEncoded, err := f.ReadList(r)
	if err != nil {
		return Stream{}, fmt.Errorf("witness: read NMT proofs: %w", err)
	}
	s.NMTProofs = make([]types.NMTRangeProof, len(nmtEncoded))
	for i, enc := range nmtEncoded {
		if s.NMTProofs[i], err = decodeNMTProof(f, enc); err != nil {
			return Stream{}, err
		}
	}

	if s.SelectedRowRoots, err = f.ReadList(r); err != nil {
		return Stream{}, fmt.Errorf("witness: read selected row roots: %w", err)
	}

	return s, nil
}

func decodeRangeProof(f *codec.Framer, b []byte) (types.RangeProof, error) {
	if len(b) < 8 {
		return types.RangeProof{}, fmt.Errorf("witness: range proof too short")
	}
	start, err := readUint32(b[0:4])
	if err != nil {
		return types.RangeProof{}, err
	}
	end, err := readUint32(b[4:8])
	if err != nil {
		return types.RangeProof{}, err
	}
	nodes, err := f.ReadList(bytes.NewReader(b[8:]))
	if err != nil {
		return types.RangeProof{}, fmt.Errorf("witness: read range proof nodes: %w", err)
	}
	return types.RangeProof{StartIdx: int(start), EndIdx: int(end), Nodes: nodes}, nil
}

func decodeRowRangeMultiproof(f *codec.Framer, b []byte) (types.RowRangeMultiproof, error) {
	if len(b) < 8 {
		return types.RowRangeMultiproof{}, fmt.Errorf("witness: row range multiproof too short")
	}
	start, err := readUint32(b[0:4])
	if err != nil {
		return types.RowRangeMultiproof{}, err
	}
	end, err := readUint32(b[4:8])
	if err != nil {
		return types.RowRangeMultiproof{}, err
	}
	encoded, err := f.ReadList(bytes.NewReader(b[8:]))
	if err != nil {
		return types.RowRangeMultiproof{}, fmt.Errorf("witness: read row range multiproof entries: %w", err)
	}
	proofs := make([]types.RangeProof, len(encoded))
	for i, e := range encoded {
		p, err := decodeRangeProof(f, e)
		if err != nil {
			return types.RowRangeMultiproof{}, err
		}
		proofs[i] = p
	}
	return types.RowRangeMultiproof{StartIdx: int(start), EndIdx: int(end), Proofs: proofs}, nil
}

func decodeNMTProof(f *codec.Framer, b []byte) (types.NMTRangeProof, error) {
	if len(b) < types.NamespaceSize+8 {
		return types.NMTRangeProof{}, fmt.Errorf("witness: NMT proof too short")
	}
	var ns types.Namespace
	copy(ns[:], b[:types.NamespaceSize])
	off := types.NamespaceSize
	start, err := readUint32(b[off : off+4])
	if err != nil {
		return types.NMTRangeProof{}, err
	}
	off += 4
	end, err := readUint32(b[off : off+4])
	if err != nil {
		return types.NMTRangeProof{}, err
	}
	off += 4
	siblings, err := f.ReadList(bytes.NewReader(b[off:]))
	if err != nil {
		return types.NMTRangeProof{}, fmt.Errorf("witness: read NMT proof siblings: %w", err)
	}
	return types.NMTRangeProof{Namespace: ns, StartIdx: int(start), EndIdx: int(end), Siblings: siblings}, nil
}

// HeaderSource fetches the DA header at a given inclusion height.
type HeaderSource interface {
	FetchHeader(ctx context.Context, height uint64) (*types.Header, error)
}

// BlobSource fetches the on-chain blob (to read its square index) for a
// given inclusion height and commitment.
type BlobSource interface {
	FetchBlob(ctx context.Context, height uint64, commitment types.Hash32) (*types.Blob, error)
}

// Assembler produces a per-block witness for one program variant.
type Assembler interface {
	Assemble(ctx context.Context, in types.BlockProverInput, namespace types.Namespace) (Stream, error)
}

// ClassicAssembler implements the canonical classic NMT-row witness
// profile described in spec.md §4.5 steps 1-6.
type ClassicAssembler struct {
	Headers HeaderSource
	Blobs   BlobSource
	NMT     nmt.Source
}

// Assemble builds the witness stream for one rollup block.
func (a *ClassicAssembler) Assemble(ctx context.Context, in types.BlockProverInput, namespace types.Namespace) (Stream, error) {
	if len(in.ClientExecutorInput) == 0 {
		return Stream{}, errs.New(errs.TypeBadHeightRange, "empty execution input")
	}

	blob := &types.Blob{Namespace: namespace, Data: in.RollupBlock, Commitment: in.BlobCommitment}
	shareCount := blob.ShareCount()

	h, err := a.Headers.FetchHeader(ctx, in.InclusionHeight)
	if err != nil {
		return Stream{}, errs.DaRPCErrorf("fetch DA header at height %d: %v", in.InclusionHeight, err)
	}

	daBlob, err := a.Blobs.FetchBlob(ctx, in.InclusionHeight, blob.Commitment)
	if err != nil {
		return Stream{}, errs.DaRPCErrorf("fetch on-chain blob at height %d: %v", in.InclusionHeight, err)
	}

	dataHashBytes, dataHashProof, err := header.Merkleize(h)
	if err != nil {
		return Stream{}, err
	}

	rowMultiproof, selectedRowRoots, err := square.BuildRangeProof(h, daBlob.Index, shareCount)
	if err != nil {
		return Stream{}, err
	}

	edsSize := h.EDSSize()
	firstRow, lastRow, err := square.ComputeRowSpan(daBlob.Index, shareCount, edsSize)
	if err != nil {
		return Stream{}, err
	}
	spans := square.ComputeShareSpans(daBlob.Index, shareCount, edsSize, firstRow, lastRow)

	nmtProofs, err := a.NMT.FetchRangeProofs(ctx, in.InclusionHeight, daBlob.Commitment, namespace, spans)
	if err != nil {
		return Stream{}, err
	}
	effectiveShareCount := shareCount
	if effectiveShareCount < 1 {
		effectiveShareCount = 1
	}
	if err := nmt.CheckCoverage(nmtProofs, spans, effectiveShareCount); err != nil {
		return Stream{}, err
	}

	var daHeaderHash types.Hash32
	copy(daHeaderHash[:], h.Hash)

	return Stream{
		ExecutionInput:     in.ClientExecutorInput,
		Namespace:          namespace,
		DAHeaderHash:       daHeaderHash,
		BlobCommitment:     in.BlobCommitment,
		DataHashBytes:      dataHashBytes,
		DataHashProof:      dataHashProof,
		RowRangeMultiproof: rowMultiproof,
		NMTProofs:          nmtProofs,
		SelectedRowRoots:   selectedRowRoots,
	}, nil
}

// ForVariant returns the Assembler implementation for the given
// program variant. Only VariantClassicNMT, the canonical production
// path, has an Assembler; for VariantPreVerified, which has no
// implementation in this module, it returns an error.
func ForVariant(variant ProgramVariant, classic Assembler) (Assembler, error) {
	if variant != VariantClassicNMT {
		return nil, fmt.Errorf("witness: no standalone assembler for variant %d", variant)
	}
	return classic, nil
}

// Package types defines the wire and in-memory entities shared across the
// DA-chain inclusion proving pipeline: DA headers, blobs/shares, NMT and
// row-range proofs, and the fixed-layout per-block/aggregate public outputs.
package types

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// HashSize is the size in bytes of a SHA-256/Keccak-256 digest.
	HashSize = 32
	// AddressSize is the size in bytes of an EVM address.
	AddressSize = 20
	// NamespaceSize is the size in bytes of a Celestia-style namespace ID
	// (1-byte version + 28-byte id), per spec.md §6.
	NamespaceSize = 29
	// ShareSize is the fixed size in bytes of one share.
	ShareSize = 512
	// RowRootSize is the fixed width of one row/column root leaf: two
	// namespace bounds (min, max) plus the row/column hash.
	RowRootSize = 2*NamespaceSize + HashSize // 90 bytes, per spec.md §4.2/§6.

	// HeaderFieldCount is the fixed number of Tendermint header fields the
	// Header-Field Merkleizer hashes over.
	HeaderFieldCount = 14
	// DataHashFieldIndex is the 0-based index of the data_hash field within
	// the header field list.
	DataHashFieldIndex = 6

	// PerBlockOutputSize is the bit-exact byte length of a Per-Block Public
	// Output (spec.md §6): 32*5 + 8*2 + 20 = 196 bytes.
	PerBlockOutputSize = 5*HashSize + 2*8 + AddressSize
)

// Namespace is a 29-byte Celestia-style namespace identifier.
type Namespace [NamespaceSize]byte

// Hash32 is a fixed 32-byte digest.
type Hash32 [HashSize]byte

// Bytes returns a copy of the digest as a slice.
func (h Hash32) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// BlockID mirrors the Tendermint BlockID header field.
type BlockID struct {
	Hash          []byte
	PartSetHeader struct {
		Total uint32
		Hash  []byte
	}
}

// Header is the DA-chain (Tendermint/CometBFT-style) block header, extended
// with the data availability header's row/column roots. Field order for
// Merkleization is fixed; see FieldBytes.
type Header struct {
	// Hash is the header hash as declared by the DA chain's RPC (the
	// expected root of the field Merkle tree).
	Hash []byte

	VersionBlock uint64
	VersionApp   uint64
	ChainID      string
	Height       int64
	Time         time.Time
	LastBlockID  BlockID

	LastCommitHash    []byte
	DataHash          []byte
	ValidatorsHash    []byte
	NextValidatorsHash []byte
	ConsensusHash     []byte
	AppHash           []byte
	LastResultsHash   []byte
	EvidenceHash      []byte
	ProposerAddress   []byte

	// DAH: data availability header extending the base header.
	RowRoots    [][]byte
	ColumnRoots [][]byte
}

// EDSSize returns the extended data square's side length, i.e. len(RowRoots).
func (h *Header) EDSSize() int { return len(h.RowRoots) }

// ODSSize returns the original data square's side length: eds_size / 2.
func (h *Header) ODSSize() int { return len(h.RowRoots) / 2 }

// Blob is a namespace-tagged payload posted to the DA chain.
type Blob struct {
	Namespace  Namespace
	Data       []byte
	Commitment Hash32
	// Index is the blob's position (in shares) within the extended data
	// square, as assigned by the DA chain at inclusion time.
	Index int
}

// ShareCount returns the number of fixed-size shares the blob occupies.
func (b *Blob) ShareCount() int {
	if len(b.Data) == 0 {
		return 0
	}
	n := len(b.Data) / ShareSize
	if len(b.Data)%ShareSize != 0 {
		n++
	}
	return n
}

// RangeProof is a Merkle range proof over a contiguous set of leaves,
// identified by [StartIdx, EndIdx) and the sibling nodes required to hash
// up to the tree root.
type RangeProof struct {
	StartIdx int
	EndIdx   int
	Nodes    [][]byte
}

// NMTRangeProof proves that shares [StartIdx, EndIdx) of a namespace belong
// to one row root.
type NMTRangeProof struct {
	Namespace Namespace
	StartIdx  int
	EndIdx    int
	Siblings  [][]byte
}

// RowRangeMultiproof proves that row roots [StartIdx, EndIdx) of the
// row_roots++column_roots tree hash up to data_hash. It is implemented as a
// bundle of one single-leaf RangeProof per row, in ascending row order,
// mirroring how Celestia's own ShareProof.RowProof bundles one Merkle proof
// per row rather than a single compressed range primitive.
type RowRangeMultiproof struct {
	StartIdx int
	EndIdx   int
	Proofs   []RangeProof
}

// BlockProverInput is the only per-height carrier the orchestrator passes
// into witness assembly and per-block proving.
type BlockProverInput struct {
	InclusionHeight     uint64
	ClientExecutorInput []byte
	RollupBlock         []byte
	// BlobCommitment is the indexer-supplied commitment for the blob that
	// carries RollupBlock at InclusionHeight (spec.md §3). The witness
	// assembler uses it both to look up the blob and to check, once the
	// per-block program recomputes a commitment from the blob's actual
	// bytes, that the two agree.
	BlobCommitment Hash32
}

// AggregationInput pairs one inner (compressed) proof with its verifying key.
type AggregationInput struct {
	Proof        []byte
	VerifyingKey []byte
	PublicValues []byte
}

// PerBlockOutput is the fixed-size, no-padding public output of the
// per-block zkVM program (spec.md §3, §6).
type PerBlockOutput struct {
	BlobCommitment  Hash32
	HeaderHash      Hash32
	PrevHeaderHash  Hash32
	Height          uint64
	GasUsed         uint64
	Beneficiary     [AddressSize]byte
	StateRoot       Hash32
	DAHeaderHash    Hash32
}

// Encode serializes the output to its bit-exact 196-byte wire form.
func (o PerBlockOutput) Encode() []byte {
	buf := make([]byte, 0, PerBlockOutputSize)
	buf = append(buf, o.BlobCommitment[:]...)
	buf = append(buf, o.HeaderHash[:]...)
	buf = append(buf, o.PrevHeaderHash[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, o.Height)
	buf = binary.LittleEndian.AppendUint64(buf, o.GasUsed)
	buf = append(buf, o.Beneficiary[:]...)
	buf = append(buf, o.StateRoot[:]...)
	buf = append(buf, o.DAHeaderHash[:]...)
	return buf
}

// DecodePerBlockOutput parses the bit-exact 196-byte wire form.
func DecodePerBlockOutput(b []byte) (PerBlockOutput, error) {
	var o PerBlockOutput
	if len(b) != PerBlockOutputSize {
		return o, fmt.Errorf("per-block output: want %d bytes, got %d", PerBlockOutputSize, len(b))
	}
	off := 0
	copy(o.BlobCommitment[:], b[off:off+HashSize])
	off += HashSize
	copy(o.HeaderHash[:], b[off:off+HashSize])
	off += HashSize
	copy(o.PrevHeaderHash[:], b[off:off+HashSize])
	off += HashSize
	o.Height = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	o.GasUsed = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(o.Beneficiary[:], b[off:off+AddressSize])
	off += AddressSize
	copy(o.StateRoot[:], b[off:off+HashSize])
	off += HashSize
	copy(o.DAHeaderHash[:], b[off:off+HashSize])
	return o, nil
}

// AggregateOutput is the public output of the aggregator zkVM program.
type AggregateOutput struct {
	NewestHeaderHash Hash32
	OldestHeaderHash Hash32
	DAHeaderHashes   []Hash32
	NewestStateRoot  Hash32
	NewestHeight     uint64
}

// Encode deterministically serializes the aggregate output: two fixed
// hashes, a length-prefixed sequence of DA header hashes, a state root, and
// a little-endian height.
func (o AggregateOutput) Encode() []byte {
	buf := make([]byte, 0, 3*HashSize+4+len(o.DAHeaderHashes)*HashSize+8)
	buf = append(buf, o.NewestHeaderHash[:]...)
	buf = append(buf, o.OldestHeaderHash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(o.DAHeaderHashes)))
	for _, h := range o.DAHeaderHashes {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, o.NewestStateRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, o.NewestHeight)
	return buf
}

// DecodeAggregateOutput parses the Encode format.
func DecodeAggregateOutput(b []byte) (AggregateOutput, error) {
	var o AggregateOutput
	if len(b) < 2*HashSize+4 {
		return o, fmt.Errorf("aggregate output: truncated header")
	}
	off := 0
	copy(o.NewestHeaderHash[:], b[off:off+HashSize])
	off += HashSize
	copy(o.OldestHeaderHash[:], b[off:off+HashSize])
	off += HashSize
	n := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	want := off + int(n)*HashSize + HashSize + 8
	if len(b) != want {
		return o, fmt.Errorf("aggregate output: want %d bytes, got %d", want, len(b))
	}
	o.DAHeaderHashes = make([]Hash32, n)
	for i := range o.DAHeaderHashes {
		copy(o.DAHeaderHashes[i][:], b[off:off+HashSize])
		off += HashSize
	}
	copy(o.NewestStateRoot[:], b[off:off+HashSize])
	off += HashSize
	o.NewestHeight = binary.LittleEndian.Uint64(b[off : off+8])
	return o, nil
}

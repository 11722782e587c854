// Package header implements the Header-Field Merkleizer: it reconstructs
// the DA-chain header as a flat Merkle tree over its 14 canonically-encoded
// fields and produces an inclusion proof for the data_hash field
// (spec.md §4.1).
package header

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// FieldBytes canonically encodes the header's 14 fields, in the fixed order
// the Merkle tree hashes over. Structured fields (version, last_block_id)
// use protobuf wire encoding; primitive fields are length-delimited
// (varint length prefix + raw bytes), matching how the DA chain encodes its
// own header leaves.
func FieldBytes(h *types.Header) ([types.HeaderFieldCount][]byte, error) {
	var fields [types.HeaderFieldCount][]byte

	fields[0] = encodeVersion(h.VersionBlock, h.VersionApp)
	fields[1] = lengthDelimited([]byte(h.ChainID))
	fields[2] = lengthDelimited(protowire.AppendVarint(nil, uint64(h.Height)))
	fields[3] = lengthDelimited(encodeTimestamp(h.Time))
	fields[4] = encodeBlockID(h.LastBlockID)
	fields[5] = lengthDelimited(h.LastCommitHash)
	fields[6] = lengthDelimited(h.DataHash)
	fields[7] = lengthDelimited(h.ValidatorsHash)
	fields[8] = lengthDelimited(h.NextValidatorsHash)
	fields[9] = lengthDelimited(h.ConsensusHash)
	fields[10] = lengthDelimited(h.AppHash)
	fields[11] = lengthDelimited(h.LastResultsHash)
	fields[12] = lengthDelimited(h.EvidenceHash)
	fields[13] = lengthDelimited(h.ProposerAddress)

	if types.DataHashFieldIndex != 6 {
		return fields, fmt.Errorf("header: data hash field index invariant broken")
	}
	return fields, nil
}

// Merkleize builds the field Merkle tree, checks its root against the
// header's declared hash, and returns the encoded data_hash leaf together
// with its inclusion proof.
func Merkleize(h *types.Header) (dataHashBytes []byte, proof types.RangeProof, err error) {
	fields, err := FieldBytes(h)
	if err != nil {
		return nil, types.RangeProof{}, err
	}

	leaves := make([][]byte, len(fields))
	for i, f := range fields {
		leaves[i] = f
	}

	root, proofs := merkle.RootAndProofs(leaves)
	if !bytes.Equal(root, h.Hash) {
		return nil, types.RangeProof{}, errs.HeaderHashMismatch(
			fmt.Sprintf("computed header field root %x != declared hash %x", root, h.Hash))
	}

	p := proofs[types.DataHashFieldIndex]
	return fields[types.DataHashFieldIndex], types.RangeProof{
		StartIdx: types.DataHashFieldIndex,
		EndIdx:   types.DataHashFieldIndex + 1,
		Nodes:    p.Aunts,
	}, nil
}

// VerifyDataHashProof independently checks a data_hash inclusion proof
// against a header hash, as the per-block zkVM program contract does
// (spec.md §4.7 check 1).
func VerifyDataHashProof(headerHash, dataHashBytes []byte, proof types.RangeProof) error {
	if proof.StartIdx != types.DataHashFieldIndex || proof.EndIdx != types.DataHashFieldIndex+1 {
		return errs.DataHashProofFailed("proof does not target the data_hash field index")
	}
	p := &merkle.Proof{
		Index:    proof.StartIdx,
		Total:    types.HeaderFieldCount,
		LeafHash: merkle.LeafHash(dataHashBytes),
		Aunts:    proof.Nodes,
	}
	if err := p.Verify(headerHash, dataHashBytes); err != nil {
		return errs.DataHashProofFailed(err.Error())
	}
	return nil
}

func lengthDelimited(data []byte) []byte {
	return protowire.AppendBytes(nil, data)
}

func encodeVersion(block, app uint64) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, block)
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, app)
	return lengthDelimited(buf)
}

func encodeBlockID(id types.BlockID) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendBytes(buf, id.Hash)

	var psh []byte
	psh = protowire.AppendTag(psh, 1, protowire.VarintType)
	psh = protowire.AppendVarint(psh, uint64(id.PartSetHeader.Total))
	psh = protowire.AppendTag(psh, 2, protowire.BytesType)
	psh = protowire.AppendBytes(psh, id.PartSetHeader.Hash)

	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, psh)
	return lengthDelimited(buf)
}

func encodeTimestamp(t interface {
	Unix() int64
	Nanosecond() int
}) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.Unix()))
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.Nanosecond()))
	return buf
}

// Package square implements the Row/Column Proof Builder: given a DA header
// carrying row and column roots over the erasure-coded data square, and a
// blob's position within that square, it computes the row span the blob
// occupies and produces a range proof tying those row roots to data_hash
// (spec.md §4.2).
package square

import (
	"fmt"

	"github.com/dabridge/prover/internal/dacore/merkle"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

// ComputeRowSpan computes the inclusive [firstRow, lastRow] row indices a
// blob occupies, given its square index, its share count, and the extended
// data square size (edsSize == 2*odsSize). blobSize==0 collapses to 1 share.
func ComputeRowSpan(blobIndex, blobSize, edsSize int) (firstRow, lastRow int, err error) {
	if edsSize <= 0 || edsSize%2 != 0 {
		return 0, 0, errs.BadSquareGeometry(fmt.Sprintf("invalid eds size %d", edsSize))
	}
	odsSize := edsSize / 2
	if blobIndex < 0 || blobIndex >= edsSize*edsSize {
		return 0, 0, errs.BadSquareGeometry(fmt.Sprintf("blob index %d out of range", blobIndex))
	}

	firstRow = blobIndex / edsSize
	odsIndex := blobIndex - firstRow*odsSize
	size := blobSize
	if size < 1 {
		size = 1
	}
	lastRow = ceilDiv(odsIndex+size, odsSize) - 1

	if firstRow < 0 || lastRow < firstRow || lastRow >= edsSize {
		return 0, 0, errs.BadSquareGeometry(
			fmt.Sprintf("computed row span [%d,%d] invalid for eds size %d", firstRow, lastRow, edsSize))
	}
	return firstRow, lastRow, nil
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// BuildRangeProof computes the blob's row span and returns a range
// multiproof tying row_roots[firstRow..lastRow] to h.Hash's data_hash tree
// (the Merkle tree over row_roots++column_roots), along with the selected
// row roots themselves.
func BuildRangeProof(h *types.Header, blobIndex, blobSize int) (types.RowRangeMultiproof, [][]byte, error) {
	edsSize := h.EDSSize()
	if edsSize == 0 || len(h.ColumnRoots) != edsSize {
		return types.RowRangeMultiproof{}, nil, errs.BadSquareGeometry("row/column root count mismatch")
	}

	firstRow, lastRow, err := ComputeRowSpan(blobIndex, blobSize, edsSize)
	if err != nil {
		return types.RowRangeMultiproof{}, nil, err
	}

	leaves := make([][]byte, 0, 2*edsSize)
	leaves = append(leaves, h.RowRoots...)
	leaves = append(leaves, h.ColumnRoots...)

	root, proofs := merkle.RootAndProofs(leaves)
	if root == nil || len(h.DataHash) == 0 {
		return types.RowRangeMultiproof{}, nil, errs.BadSquareGeometry("empty row/column root tree")
	}

	rowProofs := make([]types.RangeProof, 0, lastRow-firstRow+1)
	selected := make([][]byte, 0, lastRow-firstRow+1)
	for i := firstRow; i <= lastRow; i++ {
		p := proofs[i]
		rowProofs = append(rowProofs, types.RangeProof{
			StartIdx: i,
			EndIdx:   i + 1,
			Nodes:    p.Aunts,
		})
		selected = append(selected, h.RowRoots[i])
	}

	return types.RowRangeMultiproof{
		StartIdx: firstRow,
		EndIdx:   lastRow + 1,
		Proofs:   rowProofs,
	}, selected, nil
}

// ComputeShareSpans returns, for each row in [firstRow, lastRow], the
// blob's local share range [start, end) within that row's ODS-width
// share sequence. Used to request the matching NMT range proof per row.
func ComputeShareSpans(blobIndex, blobSize, edsSize, firstRow, lastRow int) [][2]int {
	odsSize := edsSize / 2
	odsIndex := blobIndex - firstRow*odsSize
	size := blobSize
	if size < 1 {
		size = 1
	}

	spans := make([][2]int, 0, lastRow-firstRow+1)
	remaining := size
	start := odsIndex
	for row := firstRow; row <= lastRow; row++ {
		end := start + remaining
		if end > odsSize {
			end = odsSize
		}
		spans = append(spans, [2]int{start, end})
		remaining -= end - start
		start = 0
	}
	return spans
}

// VerifyRangeProof checks that the given row roots, under the supplied
// multiproof, hash up to dataHash. totalLeaves is 2*edsSize (row_roots ++
// column_roots) and must match what the multiproof was built against.
func VerifyRangeProof(dataHash []byte, rowRoots [][]byte, mp types.RowRangeMultiproof, totalLeaves int) error {
	if len(rowRoots) != len(mp.Proofs) {
		return errs.RowRangeProofFailed("row root count does not match proof count")
	}
	for i, leaf := range rowRoots {
		p := mp.Proofs[i]
		mproof := &merkle.Proof{
			Index:    p.StartIdx,
			Total:    totalLeaves,
			LeafHash: merkle.LeafHash(leaf),
			Aunts:    p.Nodes,
		}
		if err := mproof.Verify(dataHash, leaf); err != nil {
			return errs.RowRangeProofFailed(fmt.Sprintf("row %d: %v", p.StartIdx, err))
		}
	}
	return nil
}

// Package nmt implements the NMT Proof Fetcher: retrieving, from the DA
// node, one namespaced Merkle range proof per row a blob's shares occupy,
// and independently verifying such proofs against a row root
// (spec.md §4.3). Row roots are themselves namespaced Merkle roots — a
// row root's 90-byte encoding (min namespace, max namespace, hash) is the
// same Digest encoding this package computes.
package nmt

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"math/bits"

	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/errs"
)

const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

// Digest is one namespaced Merkle tree node: the namespace bounds it
// covers plus its hash. Its Encode form is exactly types.RowRootSize
// bytes, matching how the DA header's row/column roots are encoded.
type Digest struct {
	Min  types.Namespace
	Max  types.Namespace
	Hash [types.HashSize]byte
}

// Encode serializes the digest to its fixed 90-byte wire form.
func (d Digest) Encode() []byte {
	buf := make([]byte, 0, types.RowRootSize)
	buf = append(buf, d.Min[:]...)
	buf = append(buf, d.Max[:]...)
	buf = append(buf, d.Hash[:]...)
	return buf
}

// DecodeDigest parses the Encode form.
func DecodeDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != types.RowRootSize {
		return d, fmt.Errorf("nmt: digest must be %d bytes, got %d", types.RowRootSize, len(b))
	}
	copy(d.Min[:], b[0:types.NamespaceSize])
	copy(d.Max[:], b[types.NamespaceSize:2*types.NamespaceSize])
	copy(d.Hash[:], b[2*types.NamespaceSize:])
	return d, nil
}

func leafDigest(ns types.Namespace, share []byte) Digest {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(ns[:])
	h.Write(share)
	var out Digest
	out.Min, out.Max = ns, ns
	copy(out.Hash[:], h.Sum(nil))
	return out
}

func innerDigest(left, right Digest) Digest {
	h := sha256.New()
	h.Write([]byte{innerPrefix})
	h.Write(left.Encode())
	h.Write(right.Encode())
	var out Digest
	out.Min = minNamespace(left.Min, right.Min)
	out.Max = maxNamespace(left.Max, right.Max)
	copy(out.Hash[:], h.Sum(nil))
	return out
}

func minNamespace(a, b types.Namespace) types.Namespace {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a
	}
	return b
}

func maxNamespace(a, b types.Namespace) types.Namespace {
	if bytes.Compare(a[:], b[:]) >= 0 {
		return a
	}
	return b
}

func splitPoint(length int) int {
	if length < 1 {
		panic("nmt: splitPoint called with length < 1")
	}
	k := 1 << uint(bits.Len(uint(length))-1)
	if k == length {
		k >>= 1
	}
	return k
}

// BuildRangeProof computes the namespaced Merkle range proof for shares
// [start, end) out of the full rowShares list, all under namespace ns.
// It is the oracle-side operation: real deployments call this on the DA
// node, not in this service; here it backs MockSource and tests.
func BuildRangeProof(ns types.Namespace, rowShares [][]byte, start, end int) (types.NMTRangeProof, error) {
	total := len(rowShares)
	if start < 0 || end <= start || end > total {
		return types.NMTRangeProof{}, errs.New(errs.TypeNmtCoverageMismatch,
			fmt.Sprintf("invalid range [%d,%d) over %d shares", start, end, total))
	}
	var siblings []Digest
	_, err := buildRangeNode(0, total, start, end, ns, rowShares, &siblings)
	if err != nil {
		return types.NMTRangeProof{}, err
	}
	encoded := make([][]byte, len(siblings))
	for i, d := range siblings {
		encoded[i] = d.Encode()
	}
	return types.NMTRangeProof{
		Namespace: ns,
		StartIdx:  start,
		EndIdx:    end,
		Siblings:  encoded,
	}, nil
}

func buildRangeNode(nodeStart, nodeEnd, start, end int, ns types.Namespace, rowShares [][]byte, siblings *[]Digest) (Digest, error) {
	switch {
	case nodeEnd <= start || nodeStart >= end:
		d := subtreeDigest(nodeStart, nodeEnd, ns, rowShares)
		*siblings = append(*siblings, d)
		return d, nil
	case start <= nodeStart && nodeEnd <= end:
		return subtreeDigest(nodeStart, nodeEnd, ns, rowShares), nil
	default:
		k := splitPoint(nodeEnd-nodeStart) + nodeStart
		left, err := buildRangeNode(nodeStart, k, start, end, ns, rowShares, siblings)
		if err != nil {
			return Digest{}, err
		}
		right, err := buildRangeNode(k, nodeEnd, start, end, ns, rowShares, siblings)
		if err != nil {
			return Digest{}, err
		}
		return innerDigest(left, right), nil
	}
}

func subtreeDigest(nodeStart, nodeEnd int, ns types.Namespace, rowShares [][]byte) Digest {
	if nodeEnd-nodeStart == 1 {
		return leafDigest(ns, rowShares[nodeStart])
	}
	k := splitPoint(nodeEnd-nodeStart) + nodeStart
	return innerDigest(
		subtreeDigest(nodeStart, k, ns, rowShares),
		subtreeDigest(k, nodeEnd, ns, rowShares),
	)
}

// VerifyRangeProof recomputes the row root from rangeShares and the
// proof's siblings and checks it matches rowRoot's 90-byte encoding.
// totalShares is the row's full share count (known from the DA header's
// square geometry, not from the proof itself).
func VerifyRangeProof(rowRoot []byte, proof types.NMTRangeProof, rangeShares [][]byte, totalShares int) error {
	if len(rangeShares) != proof.EndIdx-proof.StartIdx {
		return errs.NmtCoverageMismatch("range share count does not match proof span")
	}
	siblings := make([]Digest, len(proof.Siblings))
	for i, s := range proof.Siblings {
		d, err := DecodeDigest(s)
		if err != nil {
			return errs.NmtCoverageMismatch(err.Error())
		}
		siblings[i] = d
	}
	idx := 0
	root, err := verifyRangeNode(0, totalShares, proof.StartIdx, proof.EndIdx, proof.Namespace, rangeShares, siblings, &idx)
	if err != nil {
		return err
	}
	if idx != len(siblings) {
		return errs.NmtCoverageMismatch("proof carries unused sibling digests")
	}
	if !bytes.Equal(root.Encode(), rowRoot) {
		return errs.NmtCoverageMismatch(
			fmt.Sprintf("computed row digest %x != row root %x", root.Encode(), rowRoot))
	}
	return nil
}

func verifyRangeNode(nodeStart, nodeEnd, start, end int, ns types.Namespace, rangeShares [][]byte, siblings []Digest, idx *int) (Digest, error) {
	switch {
	case nodeEnd <= start || nodeStart >= end:
		if *idx >= len(siblings) {
			return Digest{}, errs.NmtCoverageMismatch("proof ran out of sibling digests")
		}
		d := siblings[*idx]
		*idx++
		return d, nil
	case start <= nodeStart && nodeEnd <= end:
		if nodeEnd-nodeStart == 1 {
			return leafDigest(ns, rangeShares[nodeStart-start]), nil
		}
		k := splitPoint(nodeEnd-nodeStart) + nodeStart
		left, err := verifyRangeNode(nodeStart, k, start, end, ns, rangeShares, siblings, idx)
		if err != nil {
			return Digest{}, err
		}
		right, err := verifyRangeNode(k, nodeEnd, start, end, ns, rangeShares, siblings, idx)
		if err != nil {
			return Digest{}, err
		}
		return innerDigest(left, right), nil
	default:
		k := splitPoint(nodeEnd-nodeStart) + nodeStart
		left, err := verifyRangeNode(nodeStart, k, start, end, ns, rangeShares, siblings, idx)
		if err != nil {
			return Digest{}, err
		}
		right, err := verifyRangeNode(k, nodeEnd, start, end, ns, rangeShares, siblings, idx)
		if err != nil {
			return Digest{}, err
		}
		return innerDigest(left, right), nil
	}
}

// RootOf computes a row's full namespaced Merkle root over all of its
// shares. Exposed for callers (other packages' tests, fixture setup)
// that need to derive the root a DA node would have published, without
// reaching into this package's internals.
func RootOf(ns types.Namespace, shares [][]byte) []byte {
	return subtreeDigest(0, len(shares), ns, shares).Encode()
}

// CheckCoverage verifies that a fetched list of per-row NMT range
// proofs exactly matches the row-local share spans that were
// requested (each proof's span is relative to its own row, so
// coverage of the blob's global share list is established by
// construction of expectedSpans, not by comparing StartIdx across
// rows): every proof's (StartIdx, EndIdx) must equal the corresponding
// requested span, spans must be non-empty, and their lengths must sum
// to totalShares.
func CheckCoverage(proofs []types.NMTRangeProof, expectedSpans [][2]int, totalShares int) error {
	if len(proofs) != len(expectedSpans) {
		return errs.NmtCoverageMismatch(
			fmt.Sprintf("got %d proofs, expected %d", len(proofs), len(expectedSpans)))
	}
	covered := 0
	for i, p := range proofs {
		span := expectedSpans[i]
		if p.StartIdx != span[0] || p.EndIdx != span[1] {
			return errs.NmtCoverageMismatch(
				fmt.Sprintf("proof %d covers [%d,%d), expected [%d,%d)", i, p.StartIdx, p.EndIdx, span[0], span[1]))
		}
		if p.EndIdx <= p.StartIdx {
			return errs.NmtCoverageMismatch(fmt.Sprintf("proof %d has empty span", i))
		}
		covered += p.EndIdx - p.StartIdx
	}
	if covered != totalShares {
		return errs.NmtCoverageMismatch(
			fmt.Sprintf("proofs cover %d shares, expected %d", covered, totalShares))
	}
	return nil
}

// Source fetches per-row NMT range proofs from the DA node for a given
// inclusion height and blob commitment, in row-ascending order.
type Source interface {
	FetchRangeProofs(ctx context.Context, height uint64, commitment types.Hash32, ns types.Namespace, rowSpans [][2]int) ([]types.NMTRangeProof, error)
}

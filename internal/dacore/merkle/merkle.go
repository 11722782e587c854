// Package merkle implements the DA chain's binary Merkle tree convention:
// SHA-256 with a leaf-prefix byte for leaves and an interior-prefix byte for
// internal nodes (the Tendermint/CometBFT "simple Merkle tree"), plus
// single-leaf inclusion proofs used by both the header-field Merkleizer
// (internal/dacore/header) and the row/column proof builder
// (internal/dacore/square).
package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/bits"
)

const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

// LeafHash hashes one leaf: sha256(0x00 || data).
func LeafHash(data []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(data)
	return h.Sum(nil)
}

// InnerHash hashes two child hashes: sha256(0x01 || left || right).
func InnerHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{innerPrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// emptyHash is the root of a tree with zero leaves.
func emptyHash() []byte {
	return sha256.New().Sum(nil)
}

// splitPoint returns the largest power of two strictly less than length,
// for length >= 2 (the boundary CometBFT-style trees split left/right on).
func splitPoint(length int) int {
	if length < 1 {
		panic("merkle: splitPoint called with length < 1")
	}
	k := 1 << uint(bits.Len(uint(length))-1)
	if k == length {
		k >>= 1
	}
	return k
}

// Proof is a single-leaf inclusion proof against a tree of Total leaves.
type Proof struct {
	Index    int
	Total    int
	LeafHash []byte
	Aunts    [][]byte
}

// Verify recomputes the root from leafData and the proof's aunts, and
// checks it equals rootHash.
func (p *Proof) Verify(rootHash []byte, leafData []byte) error {
	leafHash := LeafHash(leafData)
	if !bytes.Equal(leafHash, p.LeafHash) {
		return fmt.Errorf("merkle: leaf hash mismatch at index %d", p.Index)
	}
	computed := computeHashFromAunts(p.Index, p.Total, leafHash, p.Aunts)
	if computed == nil {
		return fmt.Errorf("merkle: could not compute root from aunts at index %d", p.Index)
	}
	if !bytes.Equal(computed, rootHash) {
		return fmt.Errorf("merkle: computed root does not match expected root")
	}
	return nil
}

func computeHashFromAunts(index, total int, leafHash []byte, innerHashes [][]byte) []byte {
	if index >= total || index < 0 || total <= 0 {
		return nil
	}
	switch total {
	case 0:
		panic("merkle: total is zero")
	case 1:
		if len(innerHashes) != 0 {
			return nil
		}
		return leafHash
	default:
		if len(innerHashes) == 0 {
			return nil
		}
		numLeft := splitPoint(total)
		last := innerHashes[len(innerHashes)-1]
		rest := innerHashes[:len(innerHashes)-1]
		if index < numLeft {
			leftHash := computeHashFromAunts(index, numLeft, leafHash, rest)
			if leftHash == nil {
				return nil
			}
			return InnerHash(leftHash, last)
		}
		rightHash := computeHashFromAunts(index-numLeft, total-numLeft, leafHash, rest)
		if rightHash == nil {
			return nil
		}
		return InnerHash(last, rightHash)
	}
}

// node is an internal helper used while building the tree and collecting
// aunts bottom-up; it mirrors the teacher-corpus's usual habit of flattening
// tree walks into small, recursively-constructed node graphs.
type node struct {
	hash   []byte
	parent *node
	left   *node
	right  *node
}

func (n *node) aunts() [][]byte {
	var inner [][]byte
	for cur := n; cur.parent != nil; cur = cur.parent {
		switch {
		case cur.left != nil:
			inner = append(inner, cur.left.hash)
		case cur.right != nil:
			inner = append(inner, cur.right.hash)
		}
	}
	// Collected walking upward, so aunts already run from the leaf's
	// sibling up to the level below the root, matching the order
	// computeHashFromAunts expects (it consumes the last aunt first).
	return inner
}

func trails(items [][]byte) ([]*node, *node) {
	switch len(items) {
	case 0:
		return []*node{}, &node{hash: emptyHash()}
	case 1:
		leaf := &node{hash: LeafHash(items[0])}
		return []*node{leaf}, leaf
	default:
		k := splitPoint(len(items))
		leftTrails, leftRoot := trails(items[:k])
		rightTrails, rightRoot := trails(items[k:])
		root := &node{hash: InnerHash(leftRoot.hash, rightRoot.hash)}
		leftRoot.parent = root
		leftRoot.right = rightRoot
		rightRoot.parent = root
		rightRoot.left = leftRoot
		return append(leftTrails, rightTrails...), root
	}
}

// RootAndProofs builds the Merkle tree over leaves and returns its root
// together with one inclusion Proof per leaf, index-aligned with leaves.
func RootAndProofs(leaves [][]byte) (root []byte, proofs []*Proof) {
	if len(leaves) == 0 {
		return emptyHash(), nil
	}
	nodes, rootNode := trails(leaves)
	proofs = make([]*Proof, len(leaves))
	for i, n := range nodes {
		proofs[i] = &Proof{
			Index:    i,
			Total:    len(leaves),
			LeafHash: n.hash,
			Aunts:    n.aunts(),
		}
	}
	return rootNode.hash, proofs
}

// Root is a convenience wrapper around RootAndProofs for callers that only
// need the root hash.
func Root(leaves [][]byte) []byte {
	root, _ := RootAndProofs(leaves)
	return root
}

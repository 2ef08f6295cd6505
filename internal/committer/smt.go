// Package committer derives the sparse Merkle tree root over account and
// order-book state and produces the per-event proof bundle. Leaf-key
// layout, value serialization, and the hash function are all fixed: any
// implementation that deviates produces a different root, so nothing here
// is tunable.
package committer

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Depth is the number of bits in a leaf's path, i.e. the SMT's depth from
// root to leaf. Blake2b-256 leaf-key hashing puts every leaf at a
// pseudo-random 256-bit position, so the tree is as deep as the hash is
// wide.
const Depth = 256

// emptyHash[d] is the hash of a completely empty subtree of height d
// (d=0 is an empty leaf). Precomputed once; every tree starts out equal
// to emptyHash[Depth] and only diverges along paths that have been Set.
var emptyHash [Depth + 1][32]byte

func init() {
	// An empty leaf is defined as the hash of an all-zero 32-byte value;
	// there is no account or book leaf whose committed value is literally
	// the zero hash, so this can't collide with a real leaf by accident
	// for any key actually written.
	emptyHash[0] = blake2b.Sum256(make([]byte, 32))
	for d := 1; d <= Depth; d++ {
		emptyHash[d] = hashPair(emptyHash[d-1], emptyHash[d-1])
	}
}

func hashPair(left, right [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return blake2b.Sum256(buf)
}

// LeafPath returns the 256-bit path a leaf key is stored at: the
// Blake2b-256 hash of the key bytes, read as a big-endian bit string from
// the root down (bit 0, the MSB, chooses the root's child).
func LeafPath(key []byte) [32]byte {
	return blake2b.Sum256(key)
}

func bit(path [32]byte, depth int) int {
	byteIdx := depth / 8
	bitIdx := 7 - uint(depth%8)
	return int((path[byteIdx] >> bitIdx) & 1)
}

// nodeAddr identifies an internal (or leaf) node by its depth from the
// root and the path bits above it, packed into a map key.
func nodeAddr(depth int, path [32]byte) string {
	nBytes := (depth + 7) / 8
	buf := make([]byte, 1+nBytes)
	buf[0] = byte(depth)
	copy(buf[1:], path[:nBytes])
	if depth%8 != 0 {
		mask := byte(0xFF << uint(8-depth%8))
		buf[len(buf)-1] &= mask
	}
	return string(buf)
}

// Tree is a sparse Merkle tree over 256-bit leaf paths. Only non-default
// nodes are stored; everywhere else the tree is implicitly emptyHash.
type Tree struct {
	nodes map[string][32]byte
	root  [32]byte
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string][32]byte), root: emptyHash[Depth]}
}

// Root returns the current 32-byte root.
func (t *Tree) Root() [32]byte { return t.root }

func (t *Tree) nodeAt(depth int, path [32]byte) [32]byte {
	if n, ok := t.nodes[nodeAddr(depth, path)]; ok {
		return n
	}
	return emptyHash[Depth-depth]
}

// Path returns the Merkle audit path for path (the sibling hash at each
// of the Depth levels, root to leaf) as the tree stands before any
// pending write. Callers that need a proof for a leaf transition must
// call Path before SetLeaf.
func (t *Tree) Path(path [32]byte) [][32]byte {
	siblings := make([][32]byte, Depth)
	for depth := 0; depth < Depth; depth++ {
		siblingPath := path
		flipBit(&siblingPath, depth)
		siblings[depth] = t.nodeAt(depth+1, siblingPath)
	}
	return siblings
}

func flipBit(path *[32]byte, depth int) {
	byteIdx := depth / 8
	bitIdx := 7 - uint(depth%8)
	path[byteIdx] ^= 1 << bitIdx
}

// SetLeaf writes leafHash at path's position and recomputes every
// ancestor hash up to the root.
func (t *Tree) SetLeaf(path [32]byte, leafHash [32]byte) {
	t.nodes[nodeAddr(Depth, path)] = leafHash
	cur := leafHash
	for depth := Depth - 1; depth >= 0; depth-- {
		prefix := truncate(path, depth)
		siblingPath := prefix
		flipBit(&siblingPath, depth)
		sibling := t.nodeAt(depth+1, siblingPath)

		var combined [32]byte
		if bit(path, depth) == 0 {
			combined = hashPair(cur, sibling)
		} else {
			combined = hashPair(sibling, cur)
		}
		if combined == emptyHash[Depth-depth] {
			delete(t.nodes, nodeAddr(depth, prefix))
		} else {
			t.nodes[nodeAddr(depth, prefix)] = combined
		}
		cur = combined
	}
	t.root = cur
}

func truncate(path [32]byte, depth int) [32]byte {
	var out [32]byte
	copy(out[:], path[:])
	nBytes := depth / 8
	for i := nBytes; i < 32; i++ {
		out[i] = 0
	}
	if depth%8 != 0 {
		mask := byte(0xFF << uint(8-depth%8))
		out[nBytes] &= mask
	}
	return out
}

// LeafHash returns the committed hash bound to a leaf's key and value:
// Blake2b-256(key || value). Binding the key into the hash stops two
// different leaves from colliding on the same committed value.
func LeafHash(key, value []byte) [32]byte {
	buf := make([]byte, 0, len(key)+len(value))
	buf = append(buf, key...)
	buf = append(buf, value...)
	return blake2b.Sum256(buf)
}

// putUint32 is a tiny helper for the leaf-key encoders in leaves.go.
func putUint32(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

package committer

import (
	"bytes"
	"testing"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

func TestSetLeafChangesRootAndIsDeterministic(t *testing.T) {
	t1 := NewTree()
	t2 := NewTree()
	key := AcctLeafKey([32]byte{1}, 100)
	value := AcctLeafValue(decimal.MustParse("10.5"), decimal.Zero)

	before := t1.Root()
	t1.SetLeaf(LeafPath(key), LeafHash(key, value))
	t2.SetLeaf(LeafPath(key), LeafHash(key, value))

	if t1.Root() == before {
		t.Fatalf("expected root to change after a leaf write")
	}
	if t1.Root() != t2.Root() {
		t.Fatalf("expected identical updates to produce identical roots")
	}
}

func TestSetLeafBackToEmptyRestoresRoot(t *testing.T) {
	tree := NewTree()
	key := AcctLeafKey([32]byte{2}, 7)
	empty := AcctLeafValue(decimal.Zero, decimal.Zero)
	nonEmpty := AcctLeafValue(decimal.MustParse("3"), decimal.Zero)

	tree.SetLeaf(LeafPath(key), LeafHash(key, empty))
	root0 := tree.Root()
	tree.SetLeaf(LeafPath(key), LeafHash(key, nonEmpty))
	tree.SetLeaf(LeafPath(key), LeafHash(key, empty))
	if tree.Root() != root0 {
		t.Fatalf("expected reverting a leaf to its original value to restore the original root")
	}
}

func TestCommitProducesProofContinuity(t *testing.T) {
	tree := NewTree()
	key := AcctLeafKey([32]byte{3}, 1)
	old := AcctLeafValue(decimal.Zero, decimal.Zero)
	updated := AcctLeafValue(decimal.MustParse("5"), decimal.Zero)

	b1 := Commit(tree, 1, []LeafUpdate{{Key: key, OldValue: old, NewValue: updated}}, []byte("cmd1"))
	b2 := Commit(tree, 2, []LeafUpdate{{Key: key, OldValue: updated, NewValue: old}}, []byte("cmd2"))

	if b1.RootNew != b2.RootOld {
		t.Fatalf("expected proof[2].root_old == proof[1].root_new")
	}
	if len(b1.Leaves) != 1 || len(b1.Leaves[0].Path) != Depth {
		t.Fatalf("expected one leaf with a full-depth audit path")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tree := NewTree()
	key := BookLeafKey(bookSymbol())
	value := BookLeafValue(decimal.MustParse("10"), decimal.MustParse("1"), decimal.MustParse("11"), decimal.MustParse("2"), decimal.MustParse("0.002"), decimal.MustParse("0.002"))
	bundle := Commit(tree, 42, []LeafUpdate{{Key: key, OldValue: nil, NewValue: value}}, []byte("raw-command-bytes"))

	raw, err := bundle.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventID != 42 || decoded.RootNew != bundle.RootNew || !bytes.Equal(decoded.Command, bundle.Command) {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if len(decoded.Leaves) != 1 || !bytes.Equal(decoded.Leaves[0].NewValue, value) {
		t.Fatalf("expected leaf new value to round trip")
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	tree := NewTree()
	key := AcctLeafKey([32]byte{4}, 1)
	bundle := Commit(tree, 1, []LeafUpdate{{Key: key, NewValue: AcctLeafValue(decimal.MustParse("1"), decimal.Zero)}}, []byte("cmd"))
	raw, err := bundle.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	framed, err := CompressBundle(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	back, err := DecompressBundle(framed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(raw, back) {
		t.Fatalf("expected compress/decompress round trip to be exact")
	}
}

func bookSymbol() domain.SymbolID {
	return domain.SymbolID{Base: 101, Quote: 100}
}

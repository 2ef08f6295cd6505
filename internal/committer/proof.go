package committer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/lz4"
)

// LeafUpdate is one changed leaf within a single event, before the write
// is applied to the Tree.
type LeafUpdate struct {
	Key      []byte
	OldValue []byte
	NewValue []byte
}

// LeafProof is one entry of a ProofBundle: a changed leaf plus the
// Merkle audit path that lets a verifier walk from its old (or new) value
// up to root_old (or root_new).
type LeafProof struct {
	Key      []byte
	OldValue []byte
	NewValue []byte
	Path     [][32]byte // sibling hashes, root to leaf, Depth entries
}

// Bundle is the proof bundle for one accepted event.
type Bundle struct {
	EventID  uint64
	Leaves   []LeafProof
	RootOld  [32]byte
	RootNew  [32]byte
	Command  []byte
}

// Commit applies every update in updates to tree (in the order given),
// and returns the resulting Bundle. The Merkle path recorded for each
// leaf is captured immediately before that leaf's write, matching what a
// verifier replaying the updates in order would see.
func Commit(tree *Tree, eventID uint64, updates []LeafUpdate, command []byte) Bundle {
	b := Bundle{EventID: eventID, RootOld: tree.Root(), Command: command}
	for _, u := range updates {
		path := LeafPath(u.Key)
		proof := LeafProof{
			Key:      u.Key,
			OldValue: u.OldValue,
			NewValue: u.NewValue,
			Path:     tree.Path(path),
		}
		b.Leaves = append(b.Leaves, proof)
		tree.SetLeaf(path, LeafHash(u.Key, u.NewValue))
	}
	b.RootNew = tree.Root()
	return b
}

// Encode serializes b using the following layout:
//
//	u64 event_id | u8 n_leaves |
//	  [n_leaves x (u16 key_len, key, u16 old_len, old, u16 new_len, new, u16 path_len, path)] |
//	  32B root_old | 32B root_new | u32 cmd_len | cmd
func (b Bundle) Encode() ([]byte, error) {
	if len(b.Leaves) > 255 {
		return nil, fmt.Errorf("committer: %d leaves exceeds the u8 n_leaves field", len(b.Leaves))
	}
	var buf bytes.Buffer
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], b.EventID)
	buf.Write(u64[:])
	buf.WriteByte(byte(len(b.Leaves)))

	for _, l := range b.Leaves {
		writeLenPrefixed(&buf, l.Key)
		writeLenPrefixed(&buf, l.OldValue)
		writeLenPrefixed(&buf, l.NewValue)
		pathBytes := make([]byte, 0, len(l.Path)*32)
		for _, sib := range l.Path {
			pathBytes = append(pathBytes, sib[:]...)
		}
		writeLenPrefixed(&buf, pathBytes)
	}

	buf.Write(b.RootOld[:])
	buf.Write(b.RootNew[:])

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(b.Command)))
	buf.Write(u32[:])
	buf.Write(b.Command)

	return buf.Bytes(), nil
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(data)))
	buf.Write(u16[:])
	buf.Write(data)
}

// Decode parses a raw (not yet LZ4-compressed) proof bundle encoded by
// Encode.
func Decode(raw []byte) (Bundle, error) {
	r := bytes.NewReader(raw)
	var b Bundle

	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return Bundle{}, err
	}
	b.EventID = binary.LittleEndian.Uint64(u64[:])

	nLeaves, err := r.ReadByte()
	if err != nil {
		return Bundle{}, err
	}

	for i := byte(0); i < nLeaves; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return Bundle{}, err
		}
		oldVal, err := readLenPrefixed(r)
		if err != nil {
			return Bundle{}, err
		}
		newVal, err := readLenPrefixed(r)
		if err != nil {
			return Bundle{}, err
		}
		pathBytes, err := readLenPrefixed(r)
		if err != nil {
			return Bundle{}, err
		}
		if len(pathBytes)%32 != 0 {
			return Bundle{}, fmt.Errorf("committer: malformed path length %d", len(pathBytes))
		}
		path := make([][32]byte, len(pathBytes)/32)
		for j := range path {
			copy(path[j][:], pathBytes[j*32:(j+1)*32])
		}
		b.Leaves = append(b.Leaves, LeafProof{Key: key, OldValue: oldVal, NewValue: newVal, Path: path})
	}

	if _, err := io.ReadFull(r, b.RootOld[:]); err != nil {
		return Bundle{}, err
	}
	if _, err := io.ReadFull(r, b.RootNew[:]); err != nil {
		return Bundle{}, err
	}

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return Bundle{}, err
	}
	cmdLen := binary.LittleEndian.Uint32(u32[:])
	cmd := make([]byte, cmdLen)
	if _, err := io.ReadFull(r, cmd); err != nil {
		return Bundle{}, err
	}
	b.Command = cmd

	return b, nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var u16 [2]byte
	if _, err := io.ReadFull(r, u16[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint16(u16[:])
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompressBundle LZ4-frames an encoded bundle for persistence.
func CompressBundle(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("committer: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("committer: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressBundle reverses CompressBundle.
func DecompressBundle(framed []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(framed))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("committer: lz4 decompress: %w", err)
	}
	return out, nil
}

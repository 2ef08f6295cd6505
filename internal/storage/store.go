// Package storage persists the engine's event log, proofs, and snapshots
// to an embedded pebble KV store: one *pebble.DB, disjoint key prefixes
// standing in for column families, pebble.Sync on every write a crash
// must not lose.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store is a pebble-backed KV persistence layer covering seven column
// families: seq, status, proof, snapshot, meta, rejSeq, rejStatus.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble store rooted at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Column-family key prefixes. Disjoint byte prefixes over one pebble.DB
// stand in for seven separate column families. rejSeq/rejStatus are a
// deliberately separate key space from seq/status: event_id is assigned
// only to accepted commands, so a rejected command has no event_id to be
// keyed by and is instead keyed by its own monotonic rejection id.
const (
	prefixSeq       = 's'
	prefixStatus    = 't'
	prefixProof     = 'p'
	prefixSnapshot  = 'n'
	prefixMeta      = 'm'
	prefixRejSeq    = 'j'
	prefixRejStatus = 'k'
)

func eventKey(prefix byte, eventID uint64) []byte {
	k := make([]byte, 9)
	k[0] = prefix
	binary.BigEndian.PutUint64(k[1:], eventID)
	return k
}

func metaKey(name string) []byte {
	return append([]byte{prefixMeta}, name...)
}

// PutCommand persists an accepted command's canonical wire bytes under its
// event_id in the seq column family.
func (s *Store) PutCommand(eventID uint64, raw []byte) error {
	return s.db.Set(eventKey(prefixSeq, eventID), raw, pebble.Sync)
}

func (s *Store) GetCommand(eventID uint64) ([]byte, bool, error) {
	return s.get(eventKey(prefixSeq, eventID))
}

// PutRejectedCommand persists a rejected command's canonical wire bytes
// under its own rejection id, in a column family disjoint from the
// accepted event log.
func (s *Store) PutRejectedCommand(rejectionID uint64, raw []byte) error {
	return s.db.Set(eventKey(prefixRejSeq, rejectionID), raw, pebble.Sync)
}

func (s *Store) GetRejectedCommand(rejectionID uint64) ([]byte, bool, error) {
	return s.get(eventKey(prefixRejSeq, rejectionID))
}

// CommandStatus is the status-column record for one event_id or rejection id.
type CommandStatus struct {
	Accepted bool
	Reason   string // empty when Accepted
	Detail   string
}

// PutStatus records an accepted event_id's disposition.
func (s *Store) PutStatus(eventID uint64, status CommandStatus) error {
	return s.db.Set(eventKey(prefixStatus, eventID), encodeStatus(status), pebble.Sync)
}

func (s *Store) GetStatus(eventID uint64) (CommandStatus, bool, error) {
	raw, ok, err := s.get(eventKey(prefixStatus, eventID))
	if err != nil || !ok {
		return CommandStatus{}, ok, err
	}
	return decodeStatus(raw), true, nil
}

// PutRejectedStatus records a rejected command's reason/detail under its
// own rejection id, disjoint from the accepted status column family.
func (s *Store) PutRejectedStatus(rejectionID uint64, status CommandStatus) error {
	return s.db.Set(eventKey(prefixRejStatus, rejectionID), encodeStatus(status), pebble.Sync)
}

func (s *Store) GetRejectedStatus(rejectionID uint64) (CommandStatus, bool, error) {
	raw, ok, err := s.get(eventKey(prefixRejStatus, rejectionID))
	if err != nil || !ok {
		return CommandStatus{}, ok, err
	}
	return decodeStatus(raw), true, nil
}

// PutProof persists an already-LZ4-framed proof bundle under its event_id.
func (s *Store) PutProof(eventID uint64, framed []byte) error {
	return s.db.Set(eventKey(prefixProof, eventID), framed, pebble.Sync)
}

func (s *Store) GetProof(eventID uint64) ([]byte, bool, error) {
	return s.get(eventKey(prefixProof, eventID))
}

// PutSnapshot persists a full-state snapshot blob keyed by the high-water
// event_id it was taken at.
func (s *Store) PutSnapshot(eventID uint64, blob []byte) error {
	return s.db.Set(eventKey(prefixSnapshot, eventID), blob, pebble.Sync)
}

func (s *Store) GetSnapshot(eventID uint64) ([]byte, bool, error) {
	return s.get(eventKey(prefixSnapshot, eventID))
}

// LatestSnapshot scans the snapshot column family for the highest
// event_id recorded and returns its blob, for use at startup.
func (s *Store) LatestSnapshot() (eventID uint64, blob []byte, ok bool, err error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixSnapshot},
		UpperBound: []byte{prefixSnapshot + 1},
	})
	if err != nil {
		return 0, nil, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil, false, nil
	}
	key := iter.Key()
	eventID = binary.BigEndian.Uint64(key[1:])
	blob = append([]byte(nil), iter.Value()...)
	return eventID, blob, true, nil
}

const (
	metaHighWater     = "high_water"
	metaLastRoot      = "last_root"
	metaNextRejection = "next_rejection_id"
)

// NextRejectionID returns the next monotonic id for a rejected command's
// audit record and durably persists the bump, so rejection ids stay
// unique across restarts. Rejected commands never receive an event_id
// (the sequencer only assigns one to accepted commands), so they need an
// entirely separate id space rather than reusing the zero-valued,
// always-colliding Outcome.EventID they're left with.
func (s *Store) NextRejectionID() (uint64, error) {
	raw, ok, err := s.get(metaKey(metaNextRejection))
	if err != nil {
		return 0, err
	}
	var cur uint64
	if ok {
		cur = binary.BigEndian.Uint64(raw)
	}
	next := cur + 1
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], next)
	if err := s.db.Set(metaKey(metaNextRejection), v[:], pebble.Sync); err != nil {
		return 0, err
	}
	return next, nil
}

// PutHighWater records the event_id of the most recently committed event.
func (s *Store) PutHighWater(eventID uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], eventID)
	return s.db.Set(metaKey(metaHighWater), v[:], pebble.Sync)
}

func (s *Store) HighWater() (uint64, error) {
	raw, ok, err := s.get(metaKey(metaHighWater))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// PutLastRoot records the SMT root after the most recently committed event.
func (s *Store) PutLastRoot(root [32]byte) error {
	return s.db.Set(metaKey(metaLastRoot), root[:], pebble.Sync)
}

func (s *Store) LastRoot() ([32]byte, bool, error) {
	raw, ok, err := s.get(metaKey(metaLastRoot))
	if err != nil || !ok || len(raw) != 32 {
		return [32]byte{}, false, err
	}
	var root [32]byte
	copy(root[:], raw)
	return root, true, nil
}

func (s *Store) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

func encodeStatus(st CommandStatus) []byte {
	var flag byte
	if st.Accepted {
		flag = 1
	}
	reason := []byte(st.Reason)
	detail := []byte(st.Detail)
	out := make([]byte, 1+2+len(reason)+2+len(detail))
	out[0] = flag
	binary.BigEndian.PutUint16(out[1:3], uint16(len(reason)))
	copy(out[3:], reason)
	off := 3 + len(reason)
	binary.BigEndian.PutUint16(out[off:off+2], uint16(len(detail)))
	copy(out[off+2:], detail)
	return out
}

func decodeStatus(raw []byte) CommandStatus {
	if len(raw) < 3 {
		return CommandStatus{}
	}
	accepted := raw[0] == 1
	rlen := int(binary.BigEndian.Uint16(raw[1:3]))
	reason := string(raw[3 : 3+rlen])
	off := 3 + rlen
	dlen := int(binary.BigEndian.Uint16(raw[off : off+2]))
	detail := string(raw[off+2 : off+2+dlen])
	return CommandStatus{Accepted: accepted, Reason: reason, Detail: detail}
}

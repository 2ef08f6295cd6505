package storage

import (
	"fmt"

	"github.com/galois-labs/galois/internal/committer"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/sequencer"
)

// Persist writes one Sequencer.Outcome to the store. An accepted command
// is written under its event_id: raw bytes under seq, disposition under
// status, and the compressed proof bundle under proof, followed by the
// meta high_water/last_root bump. A rejected command carries no
// event_id (the sequencer assigns one only on acceptance) and is instead
// written under a separate, independently monotonic rejection id, so
// that successive rejections never collide on the same key. This is the
// only place outside the sequencer that reasons about event_id
// ordering; it is called once per Apply, in order, by whatever owns the
// ingress loop.
func Persist(s *Store, cmd *domain.Command, out sequencer.Outcome) error {
	if cmd.Cmd.IsQuery() {
		return nil
	}

	if out.Status != sequencer.Accepted {
		rejectionID, err := s.NextRejectionID()
		if err != nil {
			return fmt.Errorf("assign rejection id: %w", err)
		}
		if err := s.PutRejectedCommand(rejectionID, cmd.Raw); err != nil {
			return fmt.Errorf("persist rejected command: %w", err)
		}
		status := CommandStatus{Accepted: false, Reason: string(out.Reason), Detail: out.Detail}
		if err := s.PutRejectedStatus(rejectionID, status); err != nil {
			return fmt.Errorf("persist rejected status: %w", err)
		}
		return nil
	}

	if err := s.PutCommand(out.EventID, cmd.Raw); err != nil {
		return fmt.Errorf("persist command: %w", err)
	}

	status := CommandStatus{Accepted: true}
	if err := s.PutStatus(out.EventID, status); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	if out.Proof == nil {
		return nil
	}

	raw, err := out.Proof.Encode()
	if err != nil {
		return fmt.Errorf("encode proof: %w", err)
	}
	framed, err := committer.CompressBundle(raw)
	if err != nil {
		return fmt.Errorf("compress proof: %w", err)
	}
	if err := s.PutProof(out.EventID, framed); err != nil {
		return fmt.Errorf("persist proof: %w", err)
	}

	if err := s.PutHighWater(out.EventID); err != nil {
		return fmt.Errorf("persist high_water: %w", err)
	}
	if err := s.PutLastRoot(out.Proof.RootNew); err != nil {
		return fmt.Errorf("persist last_root: %w", err)
	}
	return nil
}

// LoadProof reads back and decompresses the proof bundle for event_id, if
// one was persisted.
func LoadProof(s *Store, eventID uint64) (committer.Bundle, bool, error) {
	framed, ok, err := s.GetProof(eventID)
	if err != nil || !ok {
		return committer.Bundle{}, ok, err
	}
	raw, err := committer.DecompressBundle(framed)
	if err != nil {
		return committer.Bundle{}, false, fmt.Errorf("decompress proof %d: %w", eventID, err)
	}
	bundle, err := committer.Decode(raw)
	if err != nil {
		return committer.Bundle{}, false, fmt.Errorf("decode proof %d: %w", eventID, err)
	}
	return bundle, true, nil
}

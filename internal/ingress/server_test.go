package ingress

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/galois-labs/galois/internal/committer"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/sequencer"
)

// stubEngine lets server tests exercise the HTTP plumbing without a real
// sequencer/storage/snapshot stack behind it.
type stubEngine struct {
	outcome sequencer.Outcome
	err     error
	lastCmd *domain.Command
}

func (s *stubEngine) Submit(cmd *domain.Command) (sequencer.Outcome, error) {
	s.lastCmd = cmd
	return s.outcome, s.err
}

func TestHandleSubmitAccepted(t *testing.T) {
	stub := &stubEngine{outcome: sequencer.Outcome{
		EventID: 5, Status: sequencer.Accepted,
		Proof: &committer.Bundle{RootOld: [32]byte{1}, RootNew: [32]byte{2}},
	}}
	srv := NewServer(stub, false, nil)

	body, _ := json.Marshal(Envelope{Cmd: uint8(domain.CmdOpen), Base: u32(101), Quote: u32(100)})
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["event_id"].(float64) != 5 {
		t.Fatalf("event_id = %v, want 5", resp["event_id"])
	}
	if stub.lastCmd.Cmd != domain.CmdOpen {
		t.Fatalf("engine received cmd %v, want CmdOpen", stub.lastCmd.Cmd)
	}
}

func TestHandleSubmitRejectsMissingFields(t *testing.T) {
	srv := NewServer(&stubEngine{}, false, nil)

	body, _ := json.Marshal(Envelope{Cmd: uint8(domain.CmdBidLimit), Base: u32(101), Quote: u32(100)})
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleSubmitSequencerRejection(t *testing.T) {
	stub := &stubEngine{outcome: sequencer.Outcome{Status: sequencer.Rejected, Reason: errs.InsufficientBalance, Detail: "short 5"}}
	srv := NewServer(stub, false, nil)

	body, _ := json.Marshal(Envelope{
		Cmd: uint8(domain.CmdBidLimit), Base: u32(101), Quote: u32(100),
		UserID: strp("0x01"), OrderID: u64(1), Price: dec("1"), Amount: dec("1"),
	})
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleSubmitRequiresSignatureWhenConfigured(t *testing.T) {
	srv := NewServer(&stubEngine{}, true, nil)

	body, _ := json.Marshal(Envelope{
		Cmd: uint8(domain.CmdBidLimit), Base: u32(101), Quote: u32(100),
		UserID: strp("0x01"), OrderID: u64(1), Price: dec("1"), Amount: dec("1"),
	})
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(&stubEngine{}, false, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

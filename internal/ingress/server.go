// Package ingress is the command-envelope boundary: a JSON wire shape for
// all 17 commands, per-command field validation, and a dispatch into the
// sequencer's internal domain.Command. It also carries the optional
// signature-verification step and the HTTP/WebSocket sidecar that accepts
// commands from the outside world.
package ingress

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/sequencer"
)

// Engine is everything the HTTP layer needs from the rest of the engine:
// apply one command end to end (sequence, persist, maybe snapshot) and
// hand back its Outcome. cmd/galoisd supplies the concrete implementation
// that wires together storage.Persist and snapshot.Manager.MaybeDump
// around sequencer.Sequencer.Apply; ingress only needs the seam.
type Engine interface {
	Submit(cmd *domain.Command) (sequencer.Outcome, error)
}

// Server is the command-ingress HTTP/WebSocket sidecar: ingress workers
// that parse and authenticate incoming commands, built from a mux router
// plus a broadcast hub. It carries no CORS middleware: every route here
// is same-origin operator/exchange tooling, not a browser frontend.
type Server struct {
	engine      Engine
	requireSigs bool
	router      *mux.Router
	hub         *Hub
	log         *zap.Logger
}

// NewServer builds a Server around engine. requireSigs, when true, rejects
// any envelope carrying a user_id with no valid signature; set false only
// for trusted-operator deployments (e.g. a local devnet) where signature
// verification is handled upstream or not needed at all.
func NewServer(engine Engine, requireSigs bool, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:      engine,
		requireSigs: requireSigs,
		router:      mux.NewRouter(),
		hub:         newHub(log),
		log:         log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/commands", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/events", s.handleWebSocket)
}

// Start runs the hub's broadcast loop and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.run()
	s.log.Info("ingress server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit is the single entry point for all 17 command kinds: decode
// the envelope, validate its required fields, verify its signature if one
// is owed, dispatch into the sequencer, and broadcast the result to any
// subscribed WebSocket clients.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, errs.BadRequest, fmt.Sprintf("read body: %v", err))
		return
	}

	env, ve := Decode(body)
	if ve != nil {
		respondError(w, http.StatusBadRequest, ve.Reason, ve.Detail)
		return
	}

	if s.requireSigs {
		if ve := VerifySignature(env); ve != nil {
			respondError(w, http.StatusUnauthorized, ve.Reason, ve.Detail)
			return
		}
	}

	cmd, err := ToCommand(env, body)
	if err != nil {
		respondError(w, http.StatusBadRequest, errs.BadRequest, err.Error())
		return
	}

	out, err := s.engine.Submit(cmd)
	if err != nil {
		s.log.Error("fatal error applying command", zap.Error(err), zap.String("cmd", cmd.Cmd.String()))
		respondError(w, http.StatusInternalServerError, errs.BadRequest, "internal engine error")
		return
	}

	if cmd.Cmd.IsQuery() {
		respondJSON(w, http.StatusOK, map[string]any{"query": out.Query})
		return
	}

	if out.Status != sequencer.Accepted {
		respondError(w, http.StatusUnprocessableEntity, out.Reason, out.Detail)
		return
	}

	s.hub.Notify(EventNotification{
		EventID: out.EventID,
		Cmd:     cmd.Cmd.String(),
		RootOld: fmt.Sprintf("%x", out.Proof.RootOld),
		RootNew: fmt.Sprintf("%x", out.Proof.RootNew),
	})
	respondJSON(w, http.StatusOK, map[string]any{"event_id": out.EventID})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, 64)}
	s.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

func respondError(w http.ResponseWriter, status int, reason errs.Reason, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Reason: string(reason), Detail: detail})
}

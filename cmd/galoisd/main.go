// Command galoisd is the Galois matching/clearing/proving engine server:
// it loads configuration, recovers state from the pebble-backed command
// log, seeds any configured symbols, and serves the command-ingress
// HTTP/WebSocket sidecar until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/galois-labs/galois/internal/config"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/ingress"
	"github.com/galois-labs/galois/internal/logging"
	"github.com/galois-labs/galois/internal/sequencer"
	"github.com/galois-labs/galois/internal/snapshot"
	"github.com/galois-labs/galois/internal/storage"
)

// engine wires the sequencer, storage, and snapshot manager behind the
// single ingress.Engine seam the HTTP server needs. Apply must be
// serialized to preserve the engine's single-writer invariant; the mutex
// is the only lock around engine state, since every HTTP handler goroutine would
// otherwise race to call Sequencer.Apply concurrently.
type engine struct {
	mu    sync.Mutex
	seq   *sequencer.Sequencer
	store *storage.Store
	snap  *snapshot.Manager
	log   *zap.Logger
}

func (e *engine) Submit(cmd *domain.Command) (sequencer.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.seq.Apply(cmd)
	if err != nil {
		return out, err
	}
	if cmd.Cmd.IsQuery() {
		return out, nil
	}
	if perr := storage.Persist(e.store, cmd, out); perr != nil {
		return out, fmt.Errorf("persist event %d: %w", out.EventID, perr)
	}
	if out.Status == sequencer.Accepted {
		if derr := e.snap.MaybeDump(e.seq, cmd, out); derr != nil {
			return out, fmt.Errorf("maybe-dump after event %d: %w", out.EventID, derr)
		}
	}
	return out, nil
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	seq := sequencer.New(log)
	snapMgr := snapshot.NewManager(store, cfg.Snapshot.IntervalEvents)

	recovered := make(chan error, 1)
	go func() { recovered <- snapshot.Recover(store, seq, decodeLoggedCommand) }()
	select {
	case err := <-recovered:
		if err != nil {
			log.Fatal("recover state from store", zap.Error(err))
		}
	case <-time.After(config.StartupTimeout):
		log.Fatal("recovery did not finish within startup timeout", zap.Duration("timeout", config.StartupTimeout))
	}
	log.Info("recovered state", zap.Uint64("high_water", seq.HighWaterMark()), zap.String("root", fmt.Sprintf("%x", seq.Root())))

	eng := &engine{seq: seq, store: store, snap: snapMgr, log: log}
	if err := seedSymbols(eng, cfg.Symbols); err != nil {
		log.Fatal("seed symbols", zap.Error(err))
	}

	srv := ingress.NewServer(eng, cfg.Ingress.RequireSigs, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.Ingress.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Fatal("ingress server failed", zap.Error(err))
	}
}

// decodeLoggedCommand reconstructs a domain.Command from the canonical
// wire bytes the ingress layer wrote into the log, reusing the same
// Envelope JSON shape commands arrive in over HTTP.
func decodeLoggedCommand(raw []byte) (*domain.Command, error) {
	env, ve := ingress.Decode(raw)
	if ve != nil {
		return nil, ve
	}
	return ingress.ToCommand(env, raw)
}

// seedSymbols issues NEW_SYMBOL (and OPEN, if configured) for every
// symbol in cfg.Symbols that the recovered state doesn't already have,
// so a fresh devnet or test deployment doesn't need an operator to
// bootstrap its markets by hand.
func seedSymbols(eng *engine, seeds []config.SymbolSeed) error {
	for _, s := range seeds {
		sym := domain.SymbolID{Base: domain.CurrencyID(s.Base), Quote: domain.CurrencyID(s.Quote)}
		if _, ok := eng.seq.Symbols()[sym]; ok {
			continue
		}

		baseScale, quoteScale := s.BaseScale, s.QuoteScale
		takerFee, err := decimal.Parse(s.TakerFee)
		if err != nil {
			return fmt.Errorf("symbol %d/%d taker_fee: %w", s.Base, s.Quote, err)
		}
		makerFee, err := decimal.Parse(s.MakerFee)
		if err != nil {
			return fmt.Errorf("symbol %d/%d maker_fee: %w", s.Base, s.Quote, err)
		}
		minAmount, err := decimal.Parse(s.MinAmount)
		if err != nil {
			return fmt.Errorf("symbol %d/%d min_amount: %w", s.Base, s.Quote, err)
		}
		minVol, err := decimal.Parse(s.MinVol)
		if err != nil {
			return fmt.Errorf("symbol %d/%d min_vol: %w", s.Base, s.Quote, err)
		}
		enableMkt := s.EnableMarketOrder

		newSym := &domain.Command{
			Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
			BaseScale: &baseScale, QuoteScale: &quoteScale,
			TakerFee: &takerFee, MakerFee: &makerFee,
			MinAmount: &minAmount, MinVol: &minVol,
			EnableMarketOrder: &enableMkt,
		}
		newSym.Raw, err = ingress.CanonicalizeForLog(newSym)
		if err != nil {
			return err
		}
		if out, err := eng.Submit(newSym); err != nil {
			return err
		} else if out.Status != sequencer.Accepted {
			return fmt.Errorf("seed NEW_SYMBOL %d/%d rejected: %s %s", s.Base, s.Quote, out.Reason, out.Detail)
		}

		if s.Open {
			open := &domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote}
			open.Raw, err = ingress.CanonicalizeForLog(open)
			if err != nil {
				return err
			}
			if out, err := eng.Submit(open); err != nil {
				return err
			} else if out.Status != sequencer.Accepted {
				return fmt.Errorf("seed OPEN %d/%d rejected: %s %s", s.Base, s.Quote, out.Reason, out.Detail)
			}
		}
	}
	return nil
}

// Command benchmark drives the sequencer with many concurrent order
// producers and a single consuming apply loop, measuring sustained
// throughput while respecting the engine's single-writer invariant: every
// producer only builds commands, never applies them; one goroutine owns
// Sequencer.Apply, exactly as the real ingress pipeline would.
package main

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/sequencer"
)

func main() {
	fmt.Println("=== galois sequencer throughput benchmark ===")

	seq := sequencer.New(nil)
	sym := domain.SymbolID{Base: 101, Quote: 100}

	taker := decimal.MustParse("0.001")
	maker := decimal.MustParse("0.001")
	minAmt := decimal.MustParse("0.0001")
	minVol := decimal.MustParse("0.01")
	baseScale, quoteScale := int32(8), int32(2)
	enableMkt := false

	mustApply := func(cmd *domain.Command) {
		out, err := seq.Apply(cmd)
		if err != nil {
			panic(err)
		}
		if out.Status != sequencer.Accepted {
			panic(fmt.Sprintf("setup command rejected: %s %s", out.Reason, out.Detail))
		}
	}
	mustApply(&domain.Command{
		Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
		BaseScale: &baseScale, QuoteScale: &quoteScale,
		TakerFee: &taker, MakerFee: &maker,
		MinAmount: &minAmt, MinVol: &minVol,
		EnableMarketOrder: &enableMkt,
	})
	mustApply(&domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote})

	numCPU := runtime.NumCPU()
	numProducers := numCPU - 1
	if numProducers < 1 {
		numProducers = 1
	}
	queue := make(chan *domain.Command, 4096)

	var funded int
	for i := 0; i < numProducers*2; i++ {
		var uid domain.UserID
		uid[31] = byte(i)
		mustApply(&domain.Command{Cmd: domain.CmdTransferIn, UserID: uid, Currency: sym.Quote, Amount: decimal.MustParse("1000000")})
		mustApply(&domain.Command{Cmd: domain.CmdTransferIn, UserID: uid, Currency: sym.Base, Amount: decimal.MustParse("1000000")})
		funded++
	}

	testDuration := 5 * time.Second
	var (
		submitted atomic.Int64
		applied   atomic.Int64
		rejected  atomic.Int64
	)

	stop := make(chan struct{})
	done := make(chan struct{})

	// The only goroutine allowed to call seq.Apply, mirroring the real
	// engine's single sequencer actor draining its ingress queue.
	go func() {
		defer close(done)
		for {
			select {
			case cmd, ok := <-queue:
				if !ok {
					return
				}
				out, err := seq.Apply(cmd)
				if err != nil {
					panic(err)
				}
				if out.Status == sequencer.Accepted {
					applied.Add(1)
				} else {
					rejected.Add(1)
				}
			case <-stop:
				for {
					select {
					case cmd := <-queue:
						out, _ := seq.Apply(cmd)
						if out.Status == sequencer.Accepted {
							applied.Add(1)
						} else {
							rejected.Add(1)
						}
					default:
						return
					}
				}
			}
		}
	}()

	fmt.Printf("CPUs: %d, producers: %d, funded users: %d, duration: %v\n\n", numCPU, numProducers, funded, testDuration)

	startTime := time.Now()
	var orderID atomic.Uint64
	for w := 0; w < numProducers; w++ {
		go func(workerID int) {
			var uid domain.UserID
			uid[31] = byte(workerID % (numProducers * 2))
			for {
				select {
				case <-stop:
					return
				default:
					id := orderID.Add(1)
					price := decimal.MustParse(fmt.Sprintf("%d.%02d", 100, int(id%100)))
					amount := decimal.MustParse("1")
					cmd := &domain.Command{
						Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
						UserID: uid, OrderID: id, Price: price, Amount: amount,
					}
					if id%2 == 0 {
						cmd.Cmd = domain.CmdAskLimit
					}
					select {
					case queue <- cmd:
						submitted.Add(1)
					case <-stop:
						return
					}
				}
			}
		}(w)
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			a := applied.Load()
			fmt.Printf("[%.0fs] submitted: %d | applied: %d (%.0f/s)\n", elapsed.Seconds(), submitted.Load(), a, float64(a)/elapsed.Seconds())
		}
	}()

	time.Sleep(testDuration)
	close(stop)
	ticker.Stop()
	<-done

	elapsed := time.Since(startTime)
	fmt.Println("\n=== results ===")
	fmt.Printf("duration:        %v\n", elapsed)
	fmt.Printf("submitted:       %d\n", submitted.Load())
	fmt.Printf("applied:         %d\n", applied.Load())
	fmt.Printf("rejected:        %d\n", rejected.Load())
	fmt.Printf("apply throughput: %.0f events/sec\n", float64(applied.Load())/elapsed.Seconds())
	fmt.Printf("final event_id:  %d\n", seq.HighWaterMark())
	fmt.Printf("final root:      %x\n", seq.Root())
}

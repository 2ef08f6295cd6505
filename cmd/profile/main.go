// Command profile runs the same concurrent-producer/single-consumer load
// as cmd/benchmark under pprof's CPU profiler, so hot paths inside
// Sequencer.Apply can be inspected with `go tool pprof`.
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/sequencer"
)

func main() {
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		panic(err)
	}
	defer pprof.StopCPUProfile()

	fmt.Println("=== galois sequencer CPU profile ===")
	fmt.Println("writing cpu.prof")

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
	for i := 0; i < numProducers*2; i++ {
		var uid domain.UserID
		uid[31] = byte(i)
		mustApply(&domain.Command{Cmd: domain.CmdTransferIn, UserID: uid, Currency: sym.Quote, Amount: decimal.MustParse("1000000")})
		mustApply(&domain.Command{Cmd: domain.CmdTransferIn, UserID: uid, Currency: sym.Base, Amount: decimal.MustParse("1000000")})
	}

	queue := make(chan *domain.Command, 4096)
	duration := 10 * time.Second
	var applied atomic.Int64
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case cmd := <-queue:
				out, err := seq.Apply(cmd)
				if err != nil {
					panic(err)
				}
				if out.Status == sequencer.Accepted {
					applied.Add(1)
				}
			case <-stop:
				return
			}
		}
	}()

	fmt.Printf("CPUs: %d, producers: %d, duration: %v\n\n", numCPU, numProducers, duration)
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
					cmd := &domain.Command{
						Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
						UserID: uid, OrderID: id, Price: price, Amount: decimal.MustParse("1"),
					}
					if id%2 == 0 {
						cmd.Cmd = domain.CmdAskLimit
					}
					select {
					case queue <- cmd:
					case <-stop:
						return
					}
				}
			}
		}(w)
	}

	time.Sleep(duration)
	close(stop)
	<-done

	elapsed := time.Since(startTime)
	fmt.Println("\n=== results ===")
	fmt.Printf("applied:          %d\n", applied.Load())
	fmt.Printf("apply throughput: %.0f events/sec\n", float64(applied.Load())/elapsed.Seconds())
	fmt.Println("\nanalyze with: go tool pprof -http=:8080 cpu.prof")
}

// Command backtest drives the simulation core over a configured set of
// assets and tape files, sampling state values to run-record segments as
// it goes. It stands in for the real strategy callback: it simply elapses
// time in fixed steps until every asset's tape is exhausted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	pyroscope "github.com/grafana/pyroscope-go"

	"hftbacktest/internal/backtest"
	"hftbacktest/internal/bus"
	"hftbacktest/internal/codec"
	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/exchange"
	"hftbacktest/internal/latency"
	"hftbacktest/internal/local"
	"hftbacktest/internal/obs"
	"hftbacktest/internal/ops"
	"hftbacktest/internal/queue"
	"hftbacktest/internal/recorder"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
	"hftbacktest/internal/tape"
)

// stateValueSample is one asset's encoded state-value record, queued from
// the Elapse loop to the recorder's Writer goroutine.
type stateValueSample struct {
	Header  schema.EventHeader
	Payload []byte
}

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON run descriptor")
	recordDir := flag.String("record-dir", "testdata/records", "Directory for recorded state-value samples")
	reportPath := flag.String("report", "", "Write a final state.Report JSON to this path (default: skip)")
	stepNs := flag.Int64("step-ns", 1_000_000, "Elapse step in nanoseconds")
	profile := flag.Bool("profile", false, "Start a pyroscope profiler")
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("-config is required")
	}

	if *profile {
		p, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hftbacktest",
			ServerAddress:   "http://localhost:4040",
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseObjects,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = p.Stop() }()
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	runners, err := buildRunners(loaded)
	if err != nil {
		log.Fatalf("build runners failed: %v", err)
	}

	ctx := context.Background()
	w, err := recorder.NewWriter(recorder.DefaultConfig(*recordDir))
	if err != nil {
		log.Fatalf("recorder init failed: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		log.Fatalf("recorder start failed: %v", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Printf("recorder close: %v", err)
		}
	}()

	bt := backtest.New(runners)
	rt := local.NewRuntime(bt)
	traceGen := obs.NewTraceGenerator(0)

	sampleQueue := bus.NewQueue[stateValueSample](1024)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampleQueue.Run(ctx, func(s stateValueSample) {
			if err := w.TryAppend(s.Header, s.Payload); err != nil {
				log.Printf("recorder append dropped: %v", err)
			}
		})
	}()

	var seq uint64
	for {
		code := rt.Elapse(*stepNs)
		if code == errors.CodeEndOfData {
			break
		}
		if code != errors.CodeOK {
			log.Fatalf("elapse failed: %s", code)
		}
		for assetNo := range runners {
			sv := rt.StateValues(assetNo)
			seq++
			header := schema.NewHeader(schema.RecordStateValues, uint16(assetNo), seq, rt.CurrentTimestamp(), rt.CurrentTimestamp())
			header.TraceID = traceGen.Next()
			sample := stateValueSample{Header: header, Payload: recorder.EncodeStateValues(sv)}
			if err := sampleQueue.TryPublish(sample); err != nil {
				log.Printf("sample dropped: %v", err)
			}
		}
	}

	sampleQueue.Close()
	wg.Wait()

	if code := rt.Close(); code != errors.CodeOK {
		log.Fatalf("runtime close failed: %s", code)
	}
	states := make(map[uint32]*state.AssetState, len(runners))
	for assetNo, runner := range runners {
		sv := rt.StateValues(assetNo)
		fmt.Printf("asset=%d position=%.6f balance=%.6f fee=%.6f trades=%d\n",
			assetNo, sv.Position, sv.Balance, sv.Fee, sv.TradeNum)
		states[uint32(runner.SymbolID())] = rt.State(assetNo)
	}
	if *reportPath != "" {
		report := state.BuildReport(states)
		report.Timestamp = rt.CurrentTimestamp()
		if err := state.WriteReport(*reportPath, report); err != nil {
			log.Fatalf("report write failed: %v", err)
		}
	}
}

func buildRunners(loaded ops.Loaded) ([]backtest.AssetRunner, error) {
	var runners []backtest.AssetRunner
	for assetNo := 0; assetNo < loaded.Registry.SymbolCount(); assetNo++ {
		sym, ok := loaded.Registry.SymbolAt(assetNo)
		if !ok {
			continue
		}
		events, err := loadTapeFiles(loaded.Tape.Files)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym.Name, err)
		}
		tp, err := tape.New(events)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym.Name, err)
		}

		exchBook, localBook := buildBooks(sym.Config, loaded.Depth)
		lat := buildLatency(loaded.Latency)
		assetType := loaded.AssetTypes[sym.ID]
		if assetType == nil {
			assetType = state.LinearAsset{ContractSize: 1}
		}

		runner, err := buildAssetRunner(uint16(assetNo), sym, tp, exchBook, localBook, lat, assetType, loaded.Queue, loaded.Exchange)
		if err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym.Name, err)
		}
		runners = append(runners, runner)
	}
	if len(runners) == 0 {
		return nil, fmt.Errorf("registry has no symbols")
	}
	return runners, nil
}

func loadTapeFiles(paths []string) ([]schema.Event, error) {
	var all []schema.Event
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		events, err := codec.ReadContainer(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func buildBooks(cfg schema.AssetConfig, depthCfg ops.DepthConfig) (exchange.BookView, *depth.MarketDepth) {
	if depthCfg.Mode == "l3" {
		l3 := depth.NewL3(cfg.TickSize, cfg.LotSize, cfg.ROILow, cfg.ROIHigh)
		local := depth.New(cfg.TickSize, cfg.LotSize, cfg.ROILow, cfg.ROIHigh)
		return l3, local
	}
	exch := depth.New(cfg.TickSize, cfg.LotSize, cfg.ROILow, cfg.ROIHigh)
	local := depth.New(cfg.TickSize, cfg.LotSize, cfg.ROILow, cfg.ROIHigh)
	return exch, local
}

func buildLatency(cfg ops.LatencyConfig) latency.Model {
	switch cfg.Variant {
	case "feed":
		variant := latency.FeedPlain
		switch cfg.FeedVariant {
		case "backward":
			variant = latency.FeedBackward
		case "forward":
			variant = latency.FeedForward
		}
		return &latency.FeedLatency{
			Variant:      variant,
			EntryMul:     1,
			ResponseMul:  1,
			EntryBase:    cfg.EntryNs,
			ResponseBase: cfg.ResponseNs,
		}
	default:
		return latency.NewConstantLatency(cfg.EntryNs, cfg.ResponseNs)
	}
}

func buildProbability(cfg ops.QueueConfig) queue.Probability {
	switch cfg.ProbFunc {
	case "square":
		return queue.SquareProbFunc()
	case "power":
		switch cfg.Normalize {
		case 2:
			return queue.PowerProbFunc2(cfg.Power)
		case 3:
			return queue.PowerProbFunc3(cfg.Power)
		}
		return queue.PowerProbFunc(cfg.Power)
	case "log":
		if cfg.Normalize == 2 {
			return queue.LogProbFunc2()
		}
		return queue.LogProbFunc()
	default:
		return queue.IdentityProbFunc()
	}
}

// buildAssetRunner dispatches on the configured queue-position model,
// erasing the resulting AssetStack[Q]'s type parameter behind
// backtest.AssetRunner immediately so the caller never deals with Q.
func buildAssetRunner(assetNo uint16, sym schema.Symbol, tp *tape.Tape, exchBook exchange.BookView, localBook *depth.MarketDepth, lat latency.Model, assetType state.AssetType, queueCfg ops.QueueConfig, exchCfg ops.ExchangeConfig) (backtest.AssetRunner, error) {
	switch queueCfg.Variant {
	case "prob":
		qm := queue.ProbQueueModel{Prob: buildProbability(queueCfg)}
		sim, err := newSimulator[queue.QueuePos](exchCfg.Variant, exchBook, qm, sym.Config.TickSize, sym.Config.LotSize)
		if err != nil {
			return nil, err
		}
		cfg := backtest.AssetConfig[queue.QueuePos]{
			SymbolID: sym.ID, AssetNo: assetNo, TickSize: sym.Config.TickSize, LotSize: sym.Config.LotSize,
			Fee: sym.Config.Fee, AssetType: assetType, Tape: tp, ExchangeBook: exchBook, LocalBook: localBook,
			Exchange: sim, Latency: lat, Metrics: obs.NewMetrics(),
		}
		return backtest.NewAssetStack[queue.QueuePos](cfg), nil
	default:
		qm := queue.Model[float64](queue.RiskAverseQueueModel{})
		if queueCfg.Variant == "l3" {
			qm = queue.L3QueueModel{}
		}
		sim, err := newSimulator[float64](exchCfg.Variant, exchBook, qm, sym.Config.TickSize, sym.Config.LotSize)
		if err != nil {
			return nil, err
		}
		cfg := backtest.AssetConfig[float64]{
			SymbolID: sym.ID, AssetNo: assetNo, TickSize: sym.Config.TickSize, LotSize: sym.Config.LotSize,
			Fee: sym.Config.Fee, AssetType: assetType, Tape: tp, ExchangeBook: exchBook, LocalBook: localBook,
			Exchange: sim, Latency: lat, Metrics: obs.NewMetrics(),
		}
		return backtest.NewAssetStack[float64](cfg), nil
	}
}

func newSimulator[Q any](variant string, book exchange.BookView, qm queue.Model[Q], tickSize, lotSize float64) (exchange.Simulator[Q], error) {
	switch variant {
	case "", "no_partial":
		return exchange.NewNoPartialFillExchange[Q](book, qm, tickSize, lotSize), nil
	case "partial":
		return exchange.NewPartialFillExchange[Q](book, qm, tickSize, lotSize), nil
	default:
		return nil, fmt.Errorf("unknown exchange variant: %s", variant)
	}
}

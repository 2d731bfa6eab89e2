// Command gentape synthesizes an HFT0 tape container for local testing of
// the backtest core: a snapshot bracket establishing an initial book, then
// a random-walk stream of depth and trade rows at both exch_ts and a
// fixed feed-latency-delayed local_ts.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"

	"hftbacktest/internal/codec"
	"hftbacktest/internal/schema"
)

func main() {
	out := flag.String("out", "testdata/tape.hft0", "Output tape file path")
	rows := flag.Int("rows", 1000, "Number of depth/trade rows to generate after the snapshot bracket")
	seed := flag.Int64("seed", 1, "Random seed")
	tickSize := flag.Float64("tick-size", 1.0, "Tick size")
	lotSize := flag.Float64("lot-size", 1.0, "Lot size")
	basePrice := flag.Float64("base-price", 1000, "Starting mid price")
	levels := flag.Int("levels", 10, "Number of levels per side in the initial snapshot")
	stepNs := flag.Int64("step-ns", 1000, "Nanoseconds between successive exch_ts rows")
	feedLatencyNs := flag.Int64("feed-latency-ns", 500, "local_ts - exch_ts for every row")
	flag.Parse()

	if *rows < 0 {
		log.Fatalf("rows must be >= 0")
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer f.Close()

	events := generate(*seed, *rows, *tickSize, *lotSize, *basePrice, *levels, *stepNs, *feedLatencyNs)
	if err := codec.WriteContainer(f, events); err != nil {
		log.Fatalf("write container: %v", err)
	}
	log.Printf("wrote %d rows to %s", len(events), *out)
}

func generate(seed int64, rows int, tickSize, lotSize, basePrice float64, levels int, stepNs, feedLatencyNs int64) []schema.Event {
	rng := rand.New(rand.NewSource(seed))
	var events []schema.Event

	ts := int64(0)
	events = append(events, snapshotBracket(ts, ts+feedLatencyNs, tickSize, lotSize, basePrice, levels)...)

	midTick := schema.RoundToTick(basePrice, tickSize)
	for i := 0; i < rows; i++ {
		ts += stepNs
		localTs := ts + feedLatencyNs

		if rng.Intn(4) == 0 {
			midTick += int64(rng.Intn(3) - 1)
			side := schema.Buy
			if rng.Intn(2) == 0 {
				side = schema.Sell
			}
			qty := lotSize * float64(1+rng.Intn(5))
			events = append(events, tradeRow(side, midTick, qty, ts, localTs, tickSize))
			continue
		}

		side := schema.Buy
		tick := midTick - int64(1+rng.Intn(levels))
		if rng.Intn(2) == 0 {
			side = schema.Sell
			tick = midTick + int64(1+rng.Intn(levels))
		}
		qty := lotSize * float64(rng.Intn(10))
		events = append(events, depthRow(side, tick, qty, ts, localTs, tickSize))
	}
	return events
}

func snapshotBracket(exchTs, localTs int64, tickSize, lotSize, basePrice float64, levels int) []schema.Event {
	sideFlags := schema.BuyEvent | schema.SellEvent
	out := []schema.Event{
		{Flags: schema.ExchEvent | schema.LocalEvent | schema.SnapshotBeginEvent | sideFlags, ExchTs: exchTs, LocalTs: localTs},
	}
	midTick := schema.RoundToTick(basePrice, tickSize)
	for l := 1; l <= levels; l++ {
		bidPx := schema.TickToPrice(midTick-int64(l), tickSize)
		askPx := schema.TickToPrice(midTick+int64(l), tickSize)
		qty := lotSize * float64(levels-l+1)
		out = append(out,
			schema.Event{Flags: schema.ExchEvent | schema.LocalEvent | schema.DepthSnapshotEvent | schema.BuyEvent, ExchTs: exchTs, LocalTs: localTs, Px: bidPx, Qty: qty},
			schema.Event{Flags: schema.ExchEvent | schema.LocalEvent | schema.DepthSnapshotEvent | schema.SellEvent, ExchTs: exchTs, LocalTs: localTs, Px: askPx, Qty: qty},
		)
	}
	out = append(out, schema.Event{Flags: schema.ExchEvent | schema.LocalEvent | schema.SnapshotEndEvent | sideFlags, ExchTs: exchTs, LocalTs: localTs})
	return out
}

func depthRow(side schema.Side, tick int64, qty float64, exchTs, localTs int64, tickSize float64) schema.Event {
	flags := schema.ExchEvent | schema.LocalEvent | schema.DepthEvent
	flags |= sideFlag(side)
	return schema.Event{Flags: flags, ExchTs: exchTs, LocalTs: localTs, Px: schema.TickToPrice(tick, tickSize), Qty: qty}
}

func tradeRow(side schema.Side, tick int64, qty float64, exchTs, localTs int64, tickSize float64) schema.Event {
	flags := schema.ExchEvent | schema.LocalEvent | schema.TradeEvent
	flags |= sideFlag(side)
	return schema.Event{Flags: flags, ExchTs: exchTs, LocalTs: localTs, Px: schema.TickToPrice(tick, tickSize), Qty: qty}
}

func sideFlag(side schema.Side) schema.EventFlags {
	if side == schema.Buy {
		return schema.BuyEvent
	}
	return schema.SellEvent
}

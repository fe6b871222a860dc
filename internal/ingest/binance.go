package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"pnf-systemv1/internal/model"
)

// defaultWarmupLimit is how many klines Warmup requests when the config
// leaves the limit unset.
const defaultWarmupLimit = 500

// BinanceConfig holds configuration for the Binance kline feed.
type BinanceConfig struct {
	Symbol      string // e.g. "BTCUSDT"
	Interval    string // e.g. "1h"
	WarmupLimit int    // klines fetched by Warmup; 0 means defaultWarmupLimit
}

// BinanceFeed sources observations from Binance: a REST warmup for
// recent history and a websocket stream of closed klines.
type BinanceFeed struct {
	cfg    BinanceConfig
	client *binance.Client

	// Optional metrics hook, fired when the stream terminates on its own.
	OnDisconnect func()
}

// NewBinanceFeed creates a feed for public market data; no credentials
// are needed.
func NewBinanceFeed(cfg BinanceConfig) *BinanceFeed {
	return &BinanceFeed{cfg: cfg, client: binance.NewClient("", "")}
}

// Warmup fetches the most recent klines over REST, oldest first.
func (f *BinanceFeed) Warmup(ctx context.Context) ([]model.Observation, error) {
	limit := f.cfg.WarmupLimit
	if limit <= 0 {
		limit = defaultWarmupLimit
	}

	klines, err := f.client.NewKlinesService().
		Symbol(f.cfg.Symbol).
		Interval(f.cfg.Interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", f.cfg.Symbol, f.cfg.Interval, err)
	}

	// The newest kline is usually still forming; warmup keeps closed bars only.
	if n := len(klines); n > 0 && klines[n-1].CloseTime > time.Now().UnixMilli() {
		klines = klines[:n-1]
	}

	obs := make([]model.Observation, 0, len(klines))
	for _, k := range klines {
		o, err := toObservation(f.cfg.Symbol, k.OpenTime, k.Open, k.High, k.Low, k.Close)
		if err != nil {
			log.Printf("[binance] skip kline at %d: %v", k.OpenTime, err)
			continue
		}
		obs = append(obs, o)
	}

	log.Printf("[binance] warmup %s %s: %d klines", f.cfg.Symbol, f.cfg.Interval, len(obs))
	return obs, nil
}

// Stream subscribes to the kline websocket and pushes every closed
// candle into outCh. Blocks until ctx is cancelled (returns nil) or the
// stream dies on its own (returns an error).
func (f *BinanceFeed) Stream(ctx context.Context, outCh chan<- model.Observation) error {
	handler := func(event *binance.WsKlineEvent) {
		k := event.Kline
		if !k.IsFinal {
			return
		}
		o, err := toObservation(event.Symbol, k.StartTime, k.Open, k.High, k.Low, k.Close)
		if err != nil {
			log.Printf("[binance] parse kline: %v", err)
			return
		}
		select {
		case outCh <- o:
		default:
			log.Println("[binance] outCh full, dropping candle")
		}
	}
	errHandler := func(err error) {
		log.Printf("[binance] stream error: %v", err)
	}

	doneC, stopC, err := binance.WsKlineServe(f.cfg.Symbol, f.cfg.Interval, handler, errHandler)
	if err != nil {
		return fmt.Errorf("binance ws %s %s: %w", f.cfg.Symbol, f.cfg.Interval, err)
	}
	log.Printf("[binance] streaming %s %s klines", f.cfg.Symbol, f.cfg.Interval)

	select {
	case <-ctx.Done():
		close(stopC)
		<-doneC
		return nil
	case <-doneC:
		if f.OnDisconnect != nil {
			f.OnDisconnect()
		}
		return fmt.Errorf("binance ws %s: stream closed", f.cfg.Symbol)
	}
}

// toObservation converts one kline's string prices into an observation
// stamped at the kline open time (epoch milliseconds).
func toObservation(symbol string, openMs int64, open, high, low, closing string) (model.Observation, error) {
	var vals [4]float64
	for i, s := range []string{open, high, low, closing} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Observation{}, fmt.Errorf("parse price %q: %w", s, err)
		}
		vals[i] = v
	}

	return model.Observation{
		Symbol: symbol,
		Time:   time.UnixMilli(openMs).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
	}, nil
}

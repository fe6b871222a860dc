package ingest

import (
	"context"
	"log"
	"math/rand"
	"time"

	"pnf-systemv1/internal/model"
)

const (
	defaultSimStart    = 100.0
	defaultSimInterval = time.Second

	// stepsPerBar intra-bar walk steps shape each bar's high/low range.
	stepsPerBar = 16

	// simFloor keeps the walk away from zero, where percentage steps
	// stop moving the price.
	simFloor = 0.01
)

// SimConfig holds configuration for the simulated feed.
type SimConfig struct {
	Symbol     string
	StartPrice float64       // first bar opens here; 0 means defaultSimStart
	Interval   time.Duration // bar cadence; 0 means defaultSimInterval
	Seed       int64         // rng seed; 0 seeds from the clock
}

// SimFeed generates a random-walk OHLC stream for running the pipeline
// with no network access and no exchange credentials. Each bar opens at
// the previous close and walks ±0.1% per intra-bar step.
type SimFeed struct {
	cfg  SimConfig
	rng  *rand.Rand
	last float64
}

// NewSimFeed creates a simulated feed.
func NewSimFeed(cfg SimConfig) *SimFeed {
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = defaultSimStart
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSimInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimFeed{cfg: cfg, rng: rand.New(rand.NewSource(seed)), last: cfg.StartPrice}
}

// Warmup synthesizes limit historical bars spaced one interval apart,
// ending at the current time, so charts have columns before the live
// walk starts.
func (f *SimFeed) Warmup(limit int) []model.Observation {
	if limit <= 0 {
		return nil
	}
	obs := make([]model.Observation, 0, limit)
	start := time.Now().UTC().Add(-time.Duration(limit) * f.cfg.Interval)
	for i := 0; i < limit; i++ {
		obs = append(obs, f.nextBar(start.Add(time.Duration(i)*f.cfg.Interval)))
	}
	log.Printf("[sim] warmup %s: %d bars from %.4f", f.cfg.Symbol, len(obs), obs[0].Open)
	return obs
}

// Stream emits one bar per interval until ctx is cancelled.
func (f *SimFeed) Stream(ctx context.Context, outCh chan<- model.Observation) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[sim] streaming %s bars every %s", f.cfg.Symbol, f.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o := f.nextBar(time.Now().UTC())
			select {
			case outCh <- o:
			default:
				log.Println("[sim] outCh full, dropping bar")
			}
		}
	}
}

// nextBar walks the price stepsPerBar times and folds the path into one
// OHLC bar stamped at ts.
func (f *SimFeed) nextBar(ts time.Time) model.Observation {
	open := f.last
	high, low, price := open, open, open
	for i := 0; i < stepsPerBar; i++ {
		price = f.walk(price)
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
	}
	f.last = price
	return model.Observation{
		Symbol: f.cfg.Symbol,
		Time:   ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  price,
	}
}

// walk applies one ±0.1% step, floored away from zero.
func (f *SimFeed) walk(price float64) float64 {
	pct := (f.rng.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < simFloor {
		next = simFloor
	}
	return next
}

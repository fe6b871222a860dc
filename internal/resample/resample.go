// Package resample buckets observations into a larger period, e.g. D1
// bars from an H1 feed. A forming bucket is finalized and emitted when
// the first observation of the next bucket arrives; Flush closes out
// whatever is still forming at end of stream.
package resample

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"pnf-systemv1/internal/model"
)

// bucketState holds the forming bar for one symbol.
type bucketState struct {
	bucket time.Time // bucket start, UTC
	bar    model.Observation
}

// Resampler merges observations into period-aligned bars, one forming
// bar per symbol. Not goroutine-safe; run it from a single consumer.
type Resampler struct {
	period  time.Duration
	states  map[string]*bucketState
	dropped int

	// Optional hook, fired when a late observation is dropped.
	OnDrop func()
}

// New creates a resampler for the given target period.
func New(period time.Duration) (*Resampler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("resample: period must be positive, got %v", period)
	}
	return &Resampler{
		period: period,
		states: make(map[string]*bucketState),
	}, nil
}

// Period returns the target bucket size.
func (r *Resampler) Period() time.Duration { return r.period }

// Dropped returns how many late observations have been discarded.
func (r *Resampler) Dropped() int { return r.dropped }

// Add merges one observation into its symbol's forming bar. When the
// observation opens a new bucket, the previous bar is finalized and
// returned with ok=true. Observations behind the forming bucket are
// dropped.
func (r *Resampler) Add(o model.Observation) (model.Observation, bool) {
	bucket := o.Time.Truncate(r.period)

	st, exists := r.states[o.Symbol]
	if !exists {
		r.states[o.Symbol] = &bucketState{bucket: bucket, bar: openBar(o, bucket)}
		return model.Observation{}, false
	}

	if bucket.Before(st.bucket) {
		r.dropped++
		if r.OnDrop != nil {
			r.OnDrop()
		}
		return model.Observation{}, false
	}

	if bucket.After(st.bucket) {
		fin := st.bar
		st.bucket = bucket
		st.bar = openBar(o, bucket)
		return fin, true
	}

	// Same bucket: merge OHLC.
	if o.High > st.bar.High {
		st.bar.High = o.High
	}
	if o.Low < st.bar.Low {
		st.bar.Low = o.Low
	}
	st.bar.Close = o.Close
	return model.Observation{}, false
}

// Flush finalizes and returns all forming bars, sorted by symbol, and
// resets the resampler.
func (r *Resampler) Flush() []model.Observation {
	if len(r.states) == 0 {
		return nil
	}

	out := make([]model.Observation, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	r.states = make(map[string]*bucketState)
	return out
}

// Run consumes observations from inCh until it closes or ctx is
// cancelled, sending finalized bars into outCh. The tail bars are
// flushed when inCh closes.
func (r *Resampler) Run(ctx context.Context, inCh <-chan model.Observation, outCh chan<- model.Observation) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[resample] cancelled, %d forming bars discarded", len(r.states))
			return
		case o, ok := <-inCh:
			if !ok {
				for _, fin := range r.Flush() {
					select {
					case outCh <- fin:
					case <-ctx.Done():
						return
					}
				}
				return
			}
			if fin, ok := r.Add(o); ok {
				select {
				case outCh <- fin:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// openBar starts a new bar at the bucket boundary from its first
// observation.
func openBar(o model.Observation, bucket time.Time) model.Observation {
	return model.Observation{
		Symbol: o.Symbol,
		Time:   bucket,
		Open:   o.Open,
		High:   o.High,
		Low:    o.Low,
		Close:  o.Close,
	}
}

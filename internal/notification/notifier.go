// Package notification delivers chart alerts to external channels
// (Telegram, generic webhooks). An Alerter consumes the event fan-out and
// turns signal and pattern events into alerts; column events are too
// chatty to forward.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"pnf-systemv1/internal/model"
)

// sendTimeout bounds one delivery attempt per backend.
const sendTimeout = 10 * time.Second

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Symbol  string     `json:"symbol"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Alerter fans chart events out to the configured backends. It runs as a
// fan-out subscriber, so a slow or unreachable backend never stalls the
// pipeline: deliveries happen on the alerter goroutine with a per-alert
// timeout, and failures are logged and dropped.
type Alerter struct {
	backends []Notifier
	timeout  time.Duration
}

// NewAlerter creates an alerter delivering to every given backend.
func NewAlerter(backends ...Notifier) *Alerter {
	return &Alerter{backends: backends, timeout: sendTimeout}
}

// Run consumes chart events until ctx is cancelled or the channel closes.
func (a *Alerter) Run(ctx context.Context, in <-chan model.ChartEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			alert, ok := AlertFor(ev)
			if !ok {
				continue
			}
			a.deliver(ctx, alert)
		}
	}
}

func (a *Alerter) deliver(ctx context.Context, alert Alert) {
	sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	for _, n := range a.backends {
		if err := n.Send(sendCtx, alert); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
		}
	}
}

// AlertFor maps a chart event to an alert. Signals alert at WARNING (they
// are the actionable ones), detected patterns at INFO, and column events
// produce no alert.
func AlertFor(ev model.ChartEvent) (Alert, bool) {
	switch ev.Type {
	case model.EventSignal:
		return Alert{
			Level:   AlertWarning,
			Symbol:  ev.Symbol,
			Title:   fmt.Sprintf("%s %s signal", ev.Symbol, ev.Kind),
			Message: fmt.Sprintf("%s at %.4f (column %d)", ev.Kind, ev.Price, ev.ColumnIdx),
		}, true
	case model.EventPattern:
		return Alert{
			Level:   AlertInfo,
			Symbol:  ev.Symbol,
			Title:   fmt.Sprintf("%s pattern", ev.Symbol),
			Message: fmt.Sprintf("%s at %.4f (column %d)", ev.Kind, ev.Price, ev.ColumnIdx),
		}, true
	}
	return Alert{}, false
}

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"webping/internal/metrics"
	"webping/internal/models"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Outcome is the result of one delivery attempt, labelled with the
// subscription's name.
type Outcome struct {
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

type Dispatcher struct {
	push    PushSender
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewDispatcher(push PushSender, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{push: push, metrics: m, log: log}
}

// Dispatch sends env to every subscription concurrently. The returned slice
// has one Outcome per subscription, in the order of subs.
func (d *Dispatcher) Dispatch(ctx context.Context, subs []models.PushSubscription, env Envelope) []Outcome {
	outcomes := make([]Outcome, len(subs))

	payload, err := env.Payload()
	if err != nil {
		for i, sub := range subs {
			outcomes[i] = failed(sub.Name, err)
		}
		return outcomes
	}

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, sub, payload)
		}()
	}
	wg.Wait()

	return outcomes
}

// deliver is the isolation boundary for a single subscription: errors and
// panics from the sender both end up in the Outcome.
func (d *Dispatcher) deliver(ctx context.Context, sub models.PushSubscription, payload []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(sub.Name, fmt.Errorf("push sender panicked: %v", r))
		}
		if out.Failed() {
			d.log.WarnContext(ctx, "push delivery failed",
				slog.String("endpoint", sub.Name),
				slog.Int("subscription_id", sub.ID),
				slog.String("error", out.Error),
			)
		}
		d.metrics.ObserveDelivery("push", out.Status)
	}()

	if err := d.push.Send(ctx, sub, payload); err != nil {
		return failed(sub.Name, err)
	}
	return Outcome{Endpoint: sub.Name, Status: StatusSent}
}

func failed(name string, err error) Outcome {
	return Outcome{Endpoint: name, Status: StatusFailed, Error: err.Error()}
}

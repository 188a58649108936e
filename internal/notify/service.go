package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webping/internal/metrics"
	"webping/internal/models"
)

const MessageSent = "Notifications sent"

// ActivityRecorder receives a summary of each completed send.
type ActivityRecorder interface {
	RecordSend(ctx context.Context, ev models.SendEvent) (models.SendEvent, error)
}

// SendResult is the response of a push send.
type SendResult struct {
	Message string    `json:"message"`
	Results []Outcome `json:"results"`
}

type Service struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	mailer     Mailer
	activity   ActivityRecorder
	metrics    *metrics.Metrics
	log        *slog.Logger
}

type Option func(*Service)

func WithActivity(a ActivityRecorder) Option {
	return func(s *Service) { s.activity = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(r *Resolver, d *Dispatcher, m Mailer, opts ...Option) *Service {
	s := &Service{
		resolver:   r,
		dispatcher: d,
		mailer:     m,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send fans body out to every push subscription of the topic's owner. Once the
// topic is found the call succeeds; individual failures are only visible in
// the outcomes.
func (s *Service) Send(ctx context.Context, topic string, body []byte) (SendResult, error) {
	start := time.Now()

	target, err := s.resolver.Resolve(ctx, topic)
	if err != nil {
		return SendResult{}, err
	}

	env := Normalize(body, topic, MaxBodyLength)
	outcomes := s.dispatcher.Dispatch(ctx, target.Subscriptions, env)

	// partial fan-outs of a cancelled request are dropped
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	s.metrics.ObserveFanout(len(outcomes), time.Since(start))

	failedCount := 0
	for _, o := range outcomes {
		if o.Failed() {
			failedCount++
		}
	}
	s.log.InfoContext(ctx, "notifications sent",
		slog.String("topic", topic),
		slog.Int("targets", len(outcomes)),
		slog.Int("failed", failedCount),
	)
	s.record(ctx, models.SendEvent{
		Topic:    topic,
		Username: target.Owner.Username,
		Channel:  "push",
		Title:    env.Title,
		Targets:  len(outcomes),
		Failed:   failedCount,
	})

	return SendResult{Message: MessageSent, Results: outcomes}, nil
}

// Email sends body to the topic owner's email address. Unlike Send there is a
// single target, so its failure fails the call.
func (s *Service) Email(ctx context.Context, topic string, body []byte) error {
	target, err := s.resolver.Resolve(ctx, topic)
	if err != nil {
		return err
	}

	env := Normalize(body, topic, 0)

	to := target.Owner.Email
	if to == "" {
		return ErrNoEmailConfigured
	}

	if err := s.mailer.Send(ctx, to, env.Title, env.Body); err != nil {
		s.metrics.ObserveDelivery("email", StatusFailed)
		s.log.ErrorContext(ctx, "email delivery failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrMailTransport, err)
	}
	s.metrics.ObserveDelivery("email", StatusSent)

	s.record(ctx, models.SendEvent{
		Topic:    topic,
		Username: target.Owner.Username,
		Channel:  "email",
		Title:    env.Title,
		Targets:  1,
	})
	return nil
}

func (s *Service) record(ctx context.Context, ev models.SendEvent) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.RecordSend(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "failed to record send event",
			slog.String("topic", ev.Topic),
			slog.String("error", err.Error()),
		)
	}
}

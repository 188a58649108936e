package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"webping/internal/models"

	"github.com/SherClockHolmes/webpush-go"
)

const (
	PlaceholderPublicKey  = "YOUR_VAPID_PUBLIC_KEY"
	PlaceholderPrivateKey = "YOUR_VAPID_PRIVATE_KEY"

	DefaultSubject = "mailto:example@example.com"
)

// VAPID is the server identity presented to push services. It is set once at
// startup and only read afterwards.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
}

// Configured reports whether real keys are present.
func (v VAPID) Configured() bool {
	return v.PublicKey != "" && v.PrivateKey != "" &&
		v.PublicKey != PlaceholderPublicKey && v.PrivateKey != PlaceholderPrivateKey
}

// PushSender makes one delivery attempt to one subscription.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// WebPush delivers through the Web Push protocol. Without configured VAPID
// keys it runs in demo mode: it logs and reports success without any network
// call.
type WebPush struct {
	vapid  VAPID
	client webpush.HTTPClient
	log    *slog.Logger
}

// NewWebPush captures v for the lifetime of the sender. A nil client uses
// webpush-go's default HTTP client.
func NewWebPush(v VAPID, client webpush.HTTPClient, log *slog.Logger) *WebPush {
	if v.Subject == "" {
		v.Subject = DefaultSubject
	}
	if v.TTL <= 0 {
		v.TTL = 30
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebPush{vapid: v, client: client, log: log}
}

func (p *WebPush) Configured() bool {
	return p.vapid.Configured()
}

func (p *WebPush) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if !p.vapid.Configured() {
		p.log.InfoContext(ctx, "vapid keys not configured, skipping push",
			slog.String("endpoint", sub.Name),
			slog.Int("payload_bytes", len(payload)),
		)
		return nil
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, s, &webpush.Options{
		HTTPClient: p.client,
		// webpush-go adds the mailto: scheme itself
		Subscriber:      strings.TrimPrefix(p.vapid.Subject, "mailto:"),
		VAPIDPublicKey:  p.vapid.PublicKey,
		VAPIDPrivateKey: p.vapid.PrivateKey,
		TTL:             p.vapid.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("failed to send push notification: push service responded %d: %s", resp.StatusCode, msg)
	}

	return nil
}

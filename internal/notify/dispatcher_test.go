package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"webping/internal/metrics"
	"webping/internal/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePush records every attempt and fails or panics for the configured
// endpoints.
type fakePush struct {
	mu       sync.Mutex
	calls    []string
	payloads [][]byte
	fail     map[string]error
	panics   map[string]bool
}

func (f *fakePush) Send(_ context.Context, sub models.PushSubscription, payload []byte) error {
	f.mu.Lock()
	f.calls = append(f.calls, sub.Name)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	if f.panics[sub.Name] {
		panic("boom")
	}
	return f.fail[sub.Name]
}

func (f *fakePush) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func subs(names ...string) []models.PushSubscription {
	out := make([]models.PushSubscription, 0, len(names))
	for i, n := range names {
		out = append(out, models.PushSubscription{
			ID:       i + 1,
			Name:     n,
			Endpoint: "https://push.example/" + n,
			P256dh:   "key-" + n,
			Auth:     "auth-" + n,
		})
	}
	return out
}

func TestDispatcher_IsolatesFailures(t *testing.T) {
	push := &fakePush{fail: map[string]error{
		"b": errors.New("subscription expired"),
		"d": errors.New("bad keys"),
	}}
	d := NewDispatcher(push, metrics.New(), nil)

	outcomes := d.Dispatch(context.Background(), subs("a", "b", "c", "d", "e"), Envelope{Title: "t"})

	require.Len(t, outcomes, 5)
	assert.Equal(t, []Outcome{
		{Endpoint: "a", Status: StatusSent},
		{Endpoint: "b", Status: StatusFailed, Error: "subscription expired"},
		{Endpoint: "c", Status: StatusSent},
		{Endpoint: "d", Status: StatusFailed, Error: "bad keys"},
		{Endpoint: "e", Status: StatusSent},
	}, outcomes)
	assert.Equal(t, 5, push.callCount(), "every subscription gets exactly one attempt")
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	push := &fakePush{panics: map[string]bool{"laptop": true}}
	d := NewDispatcher(push, nil, nil)

	outcomes := d.Dispatch(context.Background(), subs("laptop", "phone"), Envelope{Title: "t"})

	require.Len(t, outcomes, 2)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "boom")
	assert.Equal(t, Outcome{Endpoint: "phone", Status: StatusSent}, outcomes[1])
}

func TestDispatcher_Empty(t *testing.T) {
	push := &fakePush{}
	d := NewDispatcher(push, nil, nil)

	outcomes := d.Dispatch(context.Background(), nil, Envelope{Title: "t"})
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
	assert.Zero(t, push.callCount())
}

func TestDispatcher_SendsEnvelopePayload(t *testing.T) {
	push := &fakePush{}
	d := NewDispatcher(push, nil, nil)

	env := Envelope{Title: "alerts", Body: "hello", Icon: "/i.png", Data: "x"}
	d.Dispatch(context.Background(), subs("a"), env)

	require.Len(t, push.payloads, 1)
	var got Envelope
	require.NoError(t, json.Unmarshal(push.payloads[0], &got))
	assert.Equal(t, env, got)
}

func TestDispatcher_ManyTargetsKeepOrder(t *testing.T) {
	names := make([]string, 50)
	fail := map[string]error{}
	for i := range names {
		names[i] = fmt.Sprintf("device-%02d", i)
		if i%3 == 0 {
			fail[names[i]] = errors.New("gone")
		}
	}
	d := NewDispatcher(&fakePush{fail: fail}, nil, nil)

	outcomes := d.Dispatch(context.Background(), subs(names...), Envelope{})
	require.Len(t, outcomes, len(names))
	for i, o := range outcomes {
		assert.Equal(t, names[i], o.Endpoint)
		if i%3 == 0 {
			assert.Equal(t, StatusFailed, o.Status)
		} else {
			assert.Equal(t, StatusSent, o.Status)
		}
	}
}

func TestVAPID_Configured(t *testing.T) {
	tests := []struct {
		name  string
		vapid VAPID
		want  bool
	}{
		{"empty", VAPID{}, false},
		{"missing private", VAPID{PublicKey: "pub"}, false},
		{"placeholders", VAPID{PublicKey: PlaceholderPublicKey, PrivateKey: PlaceholderPrivateKey}, false},
		{"placeholder public", VAPID{PublicKey: PlaceholderPublicKey, PrivateKey: "priv"}, false},
		{"real keys", VAPID{PublicKey: "pub", PrivateKey: "priv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vapid.Configured())
		})
	}
}

func newBrowserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func newTestVAPID(t *testing.T) VAPID {
	t.Helper()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return VAPID{PublicKey: publicKey, PrivateKey: privateKey, Subject: "mailto:ops@example.com"}
}

func TestWebPush_DemoMode(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	for _, v := range []VAPID{{}, {PublicKey: PlaceholderPublicKey, PrivateKey: PlaceholderPrivateKey}} {
		p := NewWebPush(v, srv.Client(), nil)
		assert.False(t, p.Configured())

		err := p.Send(context.Background(), models.PushSubscription{Name: "x", Endpoint: srv.URL}, []byte(`{}`))
		assert.NoError(t, err)
	}
	assert.Zero(t, hits.Load(), "demo mode must not touch the network")
}

func TestWebPush_Delivers(t *testing.T) {
	var gotAuth, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p256dh, auth := newBrowserKeys(t)
	p := NewWebPush(newTestVAPID(t), srv.Client(), nil)
	require.True(t, p.Configured())

	err := p.Send(context.Background(), models.PushSubscription{
		Name: "laptop", Endpoint: srv.URL, P256dh: p256dh, Auth: auth,
	}, []byte(`{"title":"t"}`))
	require.NoError(t, err)

	assert.Contains(t, gotAuth, "vapid t=")
	assert.Equal(t, "aes128gcm", gotEncoding)
}

func TestWebPush_RejectedByPushService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte("subscription has expired"))
	}))
	defer srv.Close()

	p256dh, auth := newBrowserKeys(t)
	p := NewWebPush(newTestVAPID(t), srv.Client(), nil)

	err := p.Send(context.Background(), models.PushSubscription{
		Name: "phone", Endpoint: srv.URL, P256dh: p256dh, Auth: auth,
	}, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
	assert.Contains(t, err.Error(), "subscription has expired")
}

func TestWebPush_MalformedKeysFailThroughDispatcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p256dh, auth := newBrowserKeys(t)
	d := NewDispatcher(NewWebPush(newTestVAPID(t), srv.Client(), nil), nil, nil)

	outcomes := d.Dispatch(context.Background(), []models.PushSubscription{
		{ID: 1, Name: "broken", Endpoint: srv.URL, P256dh: "not-a-key", Auth: "nope"},
		{ID: 2, Name: "good", Endpoint: srv.URL, P256dh: p256dh, Auth: auth},
	}, Envelope{Title: "t"})

	require.Len(t, outcomes, 2)
	assert.Equal(t, "broken", outcomes[0].Endpoint)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.NotEmpty(t, outcomes[0].Error)
	assert.Equal(t, Outcome{Endpoint: "good", Status: StatusSent}, outcomes[1])
}

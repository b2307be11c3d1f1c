package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name string
	err  error
	got  []*Notification
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(ctx context.Context, n *Notification) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, n)
	return nil
}

func testNotification() *Notification {
	return &Notification{
		Code:     "100123",
		Name:     "Acme Large Cap Direct Growth",
		Group:    "Large Cap Fund",
		Score:    97.5,
		RawScore: 4.2,
		Body:     "score crossed alert threshold",
	}
}

func TestBroadcastReachesAllNotifiers(t *testing.T) {
	a := &recordingNotifier{name: "a"}
	b := &recordingNotifier{name: "b"}
	m := NewManager([]Notifier{a, b})

	require.True(t, m.HasNotifiers())
	require.NoError(t, m.Broadcast(context.Background(), testNotification()))
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	bad := &recordingNotifier{name: "bad", err: errors.New("rate limited")}
	good := &recordingNotifier{name: "good"}
	m := NewManager([]Notifier{bad, good})

	err := m.Broadcast(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: rate limited")
	assert.Len(t, good.got, 1, "failure in one notifier must not block others")
}

func TestEmptyManager(t *testing.T) {
	m := NewManager(nil)
	assert.False(t, m.HasNotifiers())
	assert.NoError(t, m.Broadcast(context.Background(), testNotification()))
}

func TestWebhookSignsPayload(t *testing.T) {
	const secret = "s3cret"
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, secret)
	require.NoError(t, wh.Send(context.Background(), testNotification()))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "100123", decoded.Code)
	assert.Equal(t, 97.5, decoded.Score)
}

func TestWebhookNoSecretNoSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	require.NoError(t, wh.Send(context.Background(), testNotification()))
	assert.Empty(t, gotSig)
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Send(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("token", "42", "")
	n.BaseURL = srv.URL
	n.Sleep = func(context.Context, time.Duration) error { return nil }
	return n
}

func TestSend_PostsMessage(t *testing.T) {
	payloads := make(chan map[string]string, 1)
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		var p map[string]string
		_ = json.NewDecoder(r.Body).Decode(&p)
		p["path"] = r.URL.Path
		payloads <- p
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, n.Send(t.Context(), "hello"))
	got := <-payloads
	require.Equal(t, "/bottoken/sendMessage", got["path"])
	require.Equal(t, "42", got["chat_id"])
	require.Equal(t, "hello", got["text"])
	require.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry_RecoversAfterFailure(t *testing.T) {
	var hits atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, n.SendWithRetry(t.Context(), "alert", 2))
	require.Equal(t, int32(2), hits.Load())
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	var hits atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := n.SendWithRetry(t.Context(), "alert", 1)
	require.ErrorContains(t, err, "all 2 retries exhausted")
	require.Equal(t, int32(2), hits.Load())
}

func TestDeliver_RetriesTelegram(t *testing.T) {
	var hits atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, Deliver(t.Context(), n, "alert", 2))
	require.Equal(t, int32(3), hits.Load())
}

type sendOnly struct{ calls int }

func (s *sendOnly) Send(context.Context, string) error {
	s.calls++
	return nil
}

func TestDeliver_PlainNotifierSendsOnce(t *testing.T) {
	n := &sendOnly{}
	require.NoError(t, Deliver(t.Context(), n, "alert", 2))
	require.Equal(t, 1, n.calls)
}

func TestFormatDegradedAlert(t *testing.T) {
	at := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	msg := FormatDegradedAlert("dxy", "STALE", "dxy: all providers exhausted <429>", at)
	require.Contains(t, msg, "<b>DXY</b> data degraded: stale")
	require.Contains(t, msg, "2024-03-01T14:00:00Z")
	require.Contains(t, msg, "&lt;429&gt;")

	empty := FormatDegradedAlert("vix", "EMPTY", "", time.Time{})
	require.Contains(t, empty, "No cached data available.")
}

func TestFormatStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 1, 30, 0, time.UTC)
	msg := FormatStatus([]StatusLine{
		{Instrument: "vix", State: "fresh", Points: 36, Last: 14.25, RefreshedAt: now.Add(-30 * time.Second)},
		{Instrument: "dxy", State: "empty"},
	}, now)

	require.Contains(t, msg, "VIX: fresh, 36 pts, last 14.2500 (30s ago)")
	require.Contains(t, msg, "DXY: empty")
}

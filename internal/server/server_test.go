package server

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketDashboard/internal/collector"
	"MarketDashboard/internal/market"
	"MarketDashboard/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mock := collector.NewMockProvider()
	mock.Now = func() time.Time { return fixedNow }
	mock.Count = 4
	chain := func(key, symbol string) market.Instrument {
		return market.Instrument{Key: key, TTL: time.Minute, Chain: collector.NewChain(key, collector.Sources(mock, symbol)...)}
	}
	svc := market.NewService(nil, nil, nil,
		chain("vix", "VIX"),
		chain("dxy", "DXY"),
		chain("eurusd", "EUR/USD"),
		market.Instrument{Key: "empty", TTL: time.Minute, Chain: collector.NewChain("empty")},
	)
	s := New(svc)
	s.Now = func() time.Time { return fixedNow }
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestLiveData(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/api/live-data")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.JSONEq(t, `"2024-03-01T15:00:00Z"`, string(payload["timestamp"]))
	require.JSONEq(t, `[]`, string(payload["empty"]))

	var vix []model.OHLC
	require.NoError(t, json.Unmarshal(payload["vix"], &vix))
	require.Len(t, vix, 4)
	require.Equal(t, fixedNow, vix[3].Time)
	require.InDelta(t, 18.5, vix[3].Close, 1e-9)
}

func TestSeries(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/api/series/eurusd")
	require.Equal(t, http.StatusOK, rr.Code)

	var bars []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bars))
	require.Len(t, bars, 4)
	for _, k := range []string{"timestamp", "open", "high", "low", "close"} {
		require.Contains(t, bars[0], k)
	}
}

func TestSeries_UnknownInstrumentIs404(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/api/series/spx")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "unknown instrument")
}

func TestSeriesCSV(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/api/series/vix/csv")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), `filename="vix.csv"`)

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "timestamp,open,high,low,close", lines[0])
	require.True(t, strings.HasPrefix(lines[4], "2024-03-01T15:00:00Z,"))
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rr.Code)

	var sums map[string]struct {
		Points int     `json:"points"`
		Last   float64 `json:"last"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sums))
	require.Len(t, sums, 3, "instruments without data are left out")
	require.Equal(t, 4, sums["dxy"].Points)
	require.InDelta(t, 104.2, sums["dxy"].Last, 1e-9)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	before := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, before.Code)
	require.Contains(t, before.Body.String(), `"state":"empty"`)

	get(t, s, "/api/series/vix")
	after := get(t, s, "/api/status")

	var resp struct {
		Instruments []struct {
			Instrument string `json:"instrument"`
			State      string `json:"state"`
			Points     int    `json:"points"`
		} `json:"instruments"`
	}
	require.NoError(t, json.Unmarshal(after.Body.Bytes(), &resp))
	require.Len(t, resp.Instruments, 4)
	require.Equal(t, "vix", resp.Instruments[0].Instrument)
	require.Equal(t, "fresh", resp.Instruments[0].State)
	require.Equal(t, 4, resp.Instruments[0].Points)
	require.Equal(t, "empty", resp.Instruments[1].State)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestGzip(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/series/vix", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	var bars []model.OHLC
	require.NoError(t, json.Unmarshal(body, &bars))
	require.Len(t, bars, 4)
}

func TestRecoverPanic(t *testing.T) {
	h := recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := get(t, h, "/")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRecoverPanic_GzippedAPIResponse(t *testing.T) {
	s := newTestServer(t)
	s.api.HandleFunc("/explode", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/explode", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, "internal server error\n", string(body))
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	var seen string
	h := withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

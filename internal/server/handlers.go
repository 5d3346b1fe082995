package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/market"
	"MarketDashboard/internal/model"
	"MarketDashboard/internal/recorder"
)

type csvRow struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
}

type statusResponse struct {
	Instruments []market.Status `json:"instruments"`
	Recent      []refreshRow    `json:"recent,omitempty"`
}

type refreshRow struct {
	At         time.Time `json:"at"`
	Instrument string    `json:"instrument"`
	Source     string    `json:"source,omitempty"`
	Outcome    string    `json:"outcome"`
	Points     int       `json:"points"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleLiveData serves every instrument plus a payload timestamp, the shape
// the dashboard poller expects.
func (s *Server) handleLiveData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.market.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	payload := make(map[string]any, len(snap)+1)
	for key, series := range snap {
		payload[key] = nonNil(series)
	}
	payload["timestamp"] = s.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, ok := s.series(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(series))
}

func (s *Server) handleSeriesCSV(w http.ResponseWriter, r *http.Request) {
	series, ok := s.series(w, r)
	if !ok {
		return
	}
	rows := make([]csvRow, len(series))
	for i, b := range series {
		rows[i] = csvRow{Timestamp: b.Time.UTC().Format(time.RFC3339), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	key := mux.Vars(r)["instrument"]
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, key))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.market.Summaries(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Instruments: s.market.Status()}
	events, err := s.market.Recent(r.URL.Query().Get("instrument"), 20)
	if err != nil {
		log.WithField("request_id", requestID(r.Context())).Warnf("load refresh history: %v", err)
	}
	resp.Recent = refreshRows(events)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) series(w http.ResponseWriter, r *http.Request) (model.Series, bool) {
	key := mux.Vars(r)["instrument"]
	series, err := s.market.Series(r.Context(), key)
	if errors.Is(err, market.ErrUnknownInstrument) {
		writeError(w, r, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	return series, true
}

func refreshRows(events []recorder.RefreshEvent) []refreshRow {
	rows := make([]refreshRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, refreshRow{
			At:         e.At,
			Instrument: e.Instrument,
			Source:     e.Source,
			Outcome:    e.Outcome,
			Points:     e.Points,
			DurationMS: e.Duration.Milliseconds(),
			Error:      e.Error,
		})
	}
	return rows
}

// nonNil makes empty series encode as [] rather than null.
func nonNil(s model.Series) model.Series {
	if s == nil {
		return model.Series{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		log.WithField("request_id", requestID(r.Context())).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shalyse/internal/backtest"
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/presets"
	"shalyse/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves the shalyse HTTP API.
type Server struct {
	bt      *backtest.Backtester
	presets *presets.Store // nil disables the preset routes
	bins    int
	log     *slog.Logger
}

// NewServer creates a new HTTP API server. histogramBins controls the
// histogram returned with each simulation; zero omits it.
func NewServer(bt *backtest.Backtester, ps *presets.Store, histogramBins int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		bt:      bt,
		presets: ps,
		bins:    histogramBins,
		log:     log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/instruments/{ticker}", s.handleInstrument)
	mux.HandleFunc("GET /api/prices/{ticker}", s.handlePrices)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	if s.presets != nil {
		mux.HandleFunc("GET /api/presets", s.handleListPresets)
		mux.HandleFunc("GET /api/presets/events", s.handlePresetEvents)
		mux.HandleFunc("GET /api/presets/{name}", s.handleGetPreset)
		mux.HandleFunc("PUT /api/presets/{name}", s.handlePutPreset)
		mux.HandleFunc("DELETE /api/presets/{name}", s.handleDeletePreset)
	}
}

// Handler returns an http.Handler with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers see through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidScenario), errors.Is(err, presets.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrDataIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and their
// detail withheld.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request) {
	info, points, err := s.bt.Instrument(r.Context(), r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, InstrumentResponse{
		InstrumentInfo: *info,
		Points:         points,
		MaxHorizon:     dashboard.MaxHorizon(info, points),
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	series, err := s.bt.Prices(r.Context(), r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	points := series.Points
	if points == nil {
		points = []domain.PricePoint{}
	}
	writeJSON(w, PricesResponse{Ticker: series.Symbol, Points: points})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker required")
		return
	}

	res, err := s.bt.Run(r.Context(), req.Ticker, req.Scenario)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := SimulateResponse{
		Ticker:       res.Ticker,
		Currency:     res.Instrument.Currency,
		TotalContrib: res.Report.TotalContribution,
		Scenario:     res.Report.Scenario,
		Result:       res.Report.Result,
		Summary:      res.Report.Summary,
		Box:          dashboard.BoxStats(res.Report.Result),
	}
	if s.bins > 0 {
		resp.Histogram = dashboard.Histogram(res.Report.Result, s.bins)
	}
	writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	runs, err := s.bt.Runs(r.Context(), r.URL.Query().Get("ticker"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, PresetsResponse{Presets: s.presets.Snapshot()})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	sc, ok := s.presets.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("preset %q not found", name))
		return
	}
	writeJSON(w, sc)
}

func (s *Server) handlePutPreset(w http.ResponseWriter, r *http.Request) {
	var sc domain.Scenario
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding scenario: %v", err))
		return
	}
	if err := s.presets.Set(r.PathValue("name"), sc); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	existed, err := s.presets.Delete(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("preset %q not found", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePresetEvents streams preset changes as server-sent events, starting
// with a snapshot.
func (s *Server) handlePresetEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, events := s.presets.Subscribe(16)
	defer s.presets.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("encoding preset event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

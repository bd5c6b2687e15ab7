package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/predict"
	"github.com/jonwraymond/inferq/stats"
)

// PredictRequest is the body of POST /v1/models/{model}/predict.
type PredictRequest struct {
	Version      string            `json:"version,omitempty"`
	ForceRefresh bool              `json:"force_refresh,omitempty"`
	Input        fingerprint.Input `json:"input"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &fingerprint.InputError{Reason: fmt.Sprintf("malformed body: %v", err)}
	}
	return nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var body PredictRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var opts []predict.Option
	if body.ForceRefresh {
		opts = append(opts, predict.WithForceRefresh())
	}
	res, err := s.opts.Service.Predict(r.Context(), predict.Request{
		Model:   r.PathValue("model"),
		Version: body.Version,
		Input:   body.Input,
	}, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Cache", string(res.Source))
	writeJSON(w, http.StatusOK, res)
}

// StatsResponse is the body of GET /admin/stats.
type StatsResponse struct {
	stats.Snapshot
	HitRatio float64 `json:"hit_ratio"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.opts.Service.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{Snapshot: snap, HitRatio: snap.HitRatio()})
}

func (s *Server) handleResetStats(w http.ResponseWriter, _ *http.Request) {
	s.opts.Service.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.opts.Service.ClearCache(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// ModelInfo describes a resident model.
type ModelInfo struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	LastUsed time.Time `json:"last_used"`
}

// BreakerInfo describes a model circuit breaker.
type BreakerInfo struct {
	Model       string    `json:"model"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitzero"`
}

// InFlightInfo describes a running computation.
type InFlightInfo struct {
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"started_at"`
	Waiters     int       `json:"waiters"`
}

// ModelsResponse is the body of GET /admin/models.
type ModelsResponse struct {
	Models   []ModelInfo    `json:"models"`
	Breakers []BreakerInfo  `json:"breakers,omitempty"`
	InFlight []InFlightInfo `json:"in_flight,omitempty"`
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := ModelsResponse{Models: []ModelInfo{}}
	for _, m := range s.opts.Service.Models() {
		resp.Models = append(resp.Models, ModelInfo{
			Name: m.Name, Version: m.Version, LoadedAt: m.LoadedAt, LastUsed: m.LastUsed,
		})
	}
	for _, b := range s.opts.Service.Breakers() {
		resp.Breakers = append(resp.Breakers, BreakerInfo{
			Model: b.Name, State: b.State.String(), Failures: b.Failures, LastFailure: b.LastFailure,
		})
	}
	for _, f := range s.opts.Service.InFlight() {
		resp.InFlight = append(resp.InFlight, InFlightInfo{
			Fingerprint: f.Key, StartedAt: f.StartedAt, Waiters: f.Waiters,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PreloadRequest is the body of POST /admin/models/preload.
type PreloadRequest struct {
	Models []string `json:"models"`
}

// PreloadResponse reports each requested model.
type PreloadResponse struct {
	Loaded []string          `json:"loaded"`
	Failed map[string]string `json:"failed,omitempty"`
}

func (s *Server) handlePreload(w http.ResponseWriter, r *http.Request) {
	var body PreloadRequest
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(body.Models) == 0 {
		s.writeError(w, r, &fingerprint.InputError{Field: "models", Reason: "at least one model is required"})
		return
	}

	report := s.opts.Service.PreloadModels(r.Context(), body.Models)
	resp := PreloadResponse{Loaded: []string{}}
	for _, name := range body.Models {
		if err, ok := report[name]; ok && err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[name] = err.Error()
			continue
		}
		resp.Loaded = append(resp.Loaded, name)
	}

	code := http.StatusOK
	if len(resp.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Service.UnloadModel(r.PathValue("name"), r.PathValue("version")) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "model is not resident", Code: "not_found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

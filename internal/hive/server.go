package hive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/keyforge/keyforge/internal/jobid"
)

// maxPayloadBytes enforces spec.md §4.5's 64 MiB request body cap.
const maxPayloadBytes = 64 << 20

// Server is Hive's HTTP surface (spec.md §4.5), grounded on etalazz-vsa's
// internal/ratelimiter/api/server.go: a thin handler struct wrapping a
// store, registered onto an http.ServeMux and served behind an
// http.Server configured with explicit timeouts.
type Server struct {
	store  *Store
	cfg    Config
	logger *slog.Logger

	httpSrv *http.Server
}

// NewServer builds a Server over store using cfg.
func NewServer(store *Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, cfg: cfg, logger: logger}
}

// RegisterRoutes wires every spec.md §4.5 endpoint onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /register_job", s.handleRegisterJob)
	mux.HandleFunc("GET /get_active_job", s.handleGetActiveJob)
	mux.HandleFunc("POST /submit_result", s.handleSubmitResult)
	mux.HandleFunc("GET /get_status", s.handleGetStatus)
	mux.HandleFunc("POST /heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /submit_community", s.handleSubmitCommunity)
	mux.HandleFunc("GET /fetch_data", s.handleFetchData)
	mux.HandleFunc("POST /sync_data", s.handleSyncData)
}

// ListenAndServe builds and runs the main http.Server with the
// Read/Write/Idle timeouts etalazz-vsa's server.go applies. It blocks
// until the server stops (via Shutdown or a listener error).
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server started by ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.Secret == "" {
		return true
	}
	return r.Header.Get("X-Hive-Secret") == s.cfg.Secret
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge{Limit: maxPayloadBytes})
			return false
		}
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

// registerJobRequest mirrors jobid.Description's wire shape, plus the
// node-computed job_id for the register-time consistency check spec.md §7
// requires ("servers must reject submissions whose recomputed id disagrees
// with the stated id").
type registerJobRequest struct {
	JobId          string      `json:"job_id"`
	Keyboard       interface{} `json:"keyboard"`
	KeyboardHash   string      `json:"keyboard_hash"`
	KeyboardName   string      `json:"keyboard_name"`
	Weights        interface{} `json:"weights"`
	WeightsHash    string      `json:"weights_hash"`
	Params         interface{} `json:"params"`
	ParamsHash     string      `json:"params_hash"`
	PinnedKeys     interface{} `json:"pinned_keys"`
	CorpusName     string      `json:"corpus_name"`
	CostMatrixName string      `json:"cost_matrix_name"`
}

func (s *Server) handleRegisterJob(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	var req registerJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	desc := jobid.Description{
		Keyboard:       toJobidValue(req.Keyboard),
		Weights:        toJobidValue(req.Weights),
		Params:         toJobidValue(req.Params),
		PinnedKeys:     toJobidValue(req.PinnedKeys),
		CorpusName:     req.CorpusName,
		CostMatrixName: req.CostMatrixName,
	}
	computed, canonical, err := jobid.Compute(desc)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "description", Reason: err.Error()})
		return
	}
	if req.JobId != "" && string(computed) != req.JobId {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "job_id", Reason: "recomputed job_id does not match stated job_id"})
		return
	}

	keyboardJSON, _ := json.Marshal(req.Keyboard)
	weightsJSON, _ := json.Marshal(req.Weights)
	paramsJSON, _ := json.Marshal(req.Params)
	pinnedJSON, _ := json.Marshal(req.PinnedKeys)

	row := JobRow{
		JobId:           string(computed),
		KeyboardHash:    req.KeyboardHash,
		KeyboardName:    req.KeyboardName,
		KeyboardJSON:    string(keyboardJSON),
		ProfileHash:     req.WeightsHash,
		WeightsJSON:     string(weightsJSON),
		ConfigHash:      req.ParamsHash,
		ParamsJSON:      string(paramsJSON),
		PinnedKeysJSON:  string(pinnedJSON),
		CorpusName:      req.CorpusName,
		CostMatrixName:  req.CostMatrixName,
		DescriptionJSON: canonical,
	}

	inserted, err := s.store.RegisterJob(row)
	if err != nil {
		s.logger.Error("register_job failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	jobsRegistered.Inc()
	if !inserted {
		jobsDeduped.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": computed, "inserted": inserted})
}

func (s *Server) handleGetActiveJob(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.GetActiveJob(s.cfg.ResultSaturation)
	if err != nil {
		s.logger.Error("get_active_job failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if active == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"job": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":      active.JobId,
		"description": json.RawMessage(active.DescriptionJSON),
	})
}

type submitResultRequest struct {
	JobId  string  `json:"job_id"`
	NodeId string  `json:"node_id"`
	Layout string  `json:"layout"`
	Score  float64 `json:"score"`
}

func (s *Server) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	var req submitResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.JobId == "" || req.NodeId == "" || req.Layout == "" {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "job_id/node_id/layout", Reason: "must be non-empty"})
		return
	}

	accepted, err := s.store.SubmitResult(req.JobId, req.NodeId, req.Layout, req.Score)
	if err != nil {
		s.logger.Error("submit_result failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if accepted {
		resultsAccepted.Inc()
	} else {
		resultsRejected.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": accepted})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	jobId := r.URL.Query().Get("job_id")
	if jobId == "" {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "job_id", Reason: "required query parameter"})
		return
	}
	status, err := s.store.GetStatus(jobId, s.cfg.StalenessThreshold)
	if err != nil {
		var notFound ErrJobNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		s.logger.Error("get_status failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	activeNodes.Set(float64(status.ActiveNodes))
	writeJSON(w, http.StatusOK, status)
}

type heartbeatRequest struct {
	NodeId       string  `json:"node_id"`
	JobId        string  `json:"job_id"`
	CpuSignature string  `json:"cpu_signature"`
	CpuCores     int     `json:"cpu_cores"`
	OpsPerSec    float64 `json:"ops_per_sec"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	start := time.Now()
	defer func() { heartbeatLatency.Observe(time.Since(start).Seconds()) }()

	var req heartbeatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeId == "" {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "node_id", Reason: "required"})
		return
	}

	if err := s.store.Heartbeat(req.NodeId, req.JobId, req.CpuSignature, req.CpuCores, req.OpsPerSec); err != nil {
		s.logger.Error("heartbeat failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitCommunityRequest struct {
	Name   string `json:"name"`
	Layout string `json:"layout"`
	Author string `json:"author"`
}

func (s *Server) handleSubmitCommunity(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	var req submitCommunityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Layout == "" {
		writeError(w, http.StatusBadRequest, ErrValidation{Field: "layout", Reason: "required"})
		return
	}
	id := uuid.New().String()
	if err := s.store.SubmitCommunity(id, req.Name, req.Layout, req.Author); err != nil {
		s.logger.Error("submit_community failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"submission_id": id, "status": "pending"})
}

func (s *Server) handleFetchData(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	rel := r.URL.Query().Get("path")
	full, err := JailedPath(s.cfg.DataDir, rel)
	if err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, f)
}

type syncDataRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSyncData(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrUnauthorized{})
		return
	}
	rel := r.URL.Query().Get("path")
	full, err := JailedPath(s.cfg.DataDir, rel)
	if err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out, err := os.Create(full)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, r.Body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge{Limit: maxPayloadBytes})
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Package api exposes the dataset store and the transformation pipeline
// over HTTP: dataset listing and preview, clean and reformat runs, and the
// run history.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsdata/refinery/internal/history"
	"github.com/tsdata/refinery/pkg/dataset"
	"github.com/tsdata/refinery/pkg/profile"
	"github.com/tsdata/refinery/pkg/refinery"
	"github.com/tsdata/refinery/pkg/run"
)

type Server struct {
	store       *dataset.Store
	runner      *run.Runner
	hist        *history.Store
	log         *slog.Logger
	opts        refinery.Options
	previewRows int
}

func New(store *dataset.Store, runner *run.Runner, hist *history.Store, log *slog.Logger, opts refinery.Options, previewRows int) *Server {
	if previewRows <= 0 {
		previewRows = 5
	}
	return &Server{store: store, runner: runner, hist: hist, log: log, opts: opts, previewRows: previewRows}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(s.log, pattern, h))
	}
	route("GET /api/v1/datasets", s.handleListDatasets)
	route("GET /api/v1/datasets/{name}/preview", s.handlePreview)
	route("POST /api/v1/clean", s.handleClean)
	route("POST /api/v1/reformat", s.handleReformat)
	route("GET /api/v1/runs", s.handleListRuns)
	route("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, err := s.store.Load(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	type preview struct {
		Name string `json:"filename"`
		profile.Preview
		Profile []profile.ColumnProfile `json:"profile"`
	}
	writeJSON(w, http.StatusOK, preview{
		Name:    name,
		Preview: profile.Head(f, s.previewRows),
		Profile: profile.Describe(f, 0),
	})
}

// CleanRequest is the run-request boundary shape: a source dataset plus an
// ordered operation list.
type CleanRequest struct {
	Source     string            `json:"source_dataset"`
	Operations []refinery.OpSpec `json:"operations"`
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid JSON payload", "bad_request"))
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing source_dataset", "bad_request"))
		return
	}
	if len(req.Operations) == 0 {
		writeJSON(w, http.StatusBadRequest, errBody("operations list is empty", refinery.CodeEmptyOperationList.String()))
		return
	}
	ops, err := refinery.CompileOperations(req.Operations, s.opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opsJSON, _ := json.Marshal(req.Operations)
	s.execute(w, r, req.Source, ops, opsJSON)
}

// ReformatRequest mirrors the upstream reformat form: flags rather than an
// explicit operation list.
type ReformatRequest struct {
	Source          string `json:"source_dataset"`
	ConvertTimezone bool   `json:"convert_timezone"`
	TargetTimezone  string `json:"target_timezone,omitempty"`
	KeepTimeOnly    bool   `json:"keep_time_only"`
}

func (s *Server) handleReformat(w http.ResponseWriter, r *http.Request) {
	var req ReformatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid JSON payload", "bad_request"))
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing source_dataset", "bad_request"))
		return
	}
	ops, err := run.CompileReformat(run.ReformatRequest{
		Source:          req.Source,
		ConvertTimezone: req.ConvertTimezone,
		TargetTimezone:  req.TargetTimezone,
		KeepTimeOnly:    req.KeepTimeOnly,
	}, s.opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	opsJSON, _ := json.Marshal(req)
	s.execute(w, r, req.Source, ops, opsJSON)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, source string, ops []refinery.Operation, opsJSON json.RawMessage) {
	id := uuid.New().String()
	report, err := s.runner.Run(r.Context(), run.Request{Source: source, Ops: ops})

	rec := history.Run{ID: id, Source: source, Operations: opsJSON}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
		runsTotal.WithLabelValues(history.StatusFailed).Inc()
	} else {
		rec.Status = history.StatusSucceeded
		rec.Output = report.Output
		rec.RowsIn = report.RowsIn
		rec.RowsOut = report.Rows
		runsTotal.WithLabelValues(history.StatusSucceeded).Inc()
		rowsProcessed.WithLabelValues("in").Add(float64(report.RowsIn))
		rowsProcessed.WithLabelValues("out").Add(float64(report.Rows))
		datasetsWritten.Inc()
	}
	if s.hist != nil {
		if herr := s.hist.Record(rec); herr != nil {
			s.log.Error("record run", "id", id, "error", herr)
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		RunID string `json:"run_id"`
		*run.Report
	}{RunID: id, Report: report})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeJSON(w, http.StatusOK, []history.Run{})
		return
	}
	runs, err := s.hist.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeJSON(w, http.StatusNotFound, errBody("run not found", "not_found"))
		return
	}
	rec, err := s.hist.Get(r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errBody("run not found", "not_found"))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func errBody(msg, kind string) errorBody { return errorBody{Error: msg, Kind: kind} }

// writeError maps the error taxonomy onto HTTP statuses: request-side
// validation failures are 400, missing datasets 404, name exhaustion 409,
// everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := refinery.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case refinery.CodeUnknownColumn, refinery.CodeColumnNameCollision,
		refinery.CodeTypeMismatch, refinery.CodeInvalidTimezone,
		refinery.CodeEmptyOperationList, refinery.CodeInvalidOperation,
		refinery.CodeUnparseableTimestamp:
		status = http.StatusBadRequest
	case refinery.CodeNameCollisionExhausted:
		status = http.StatusConflict
	case refinery.CodeStorage:
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
	}
	if status >= 500 {
		s.log.Error("request failed", "kind", code.String(), "error", err)
	}
	writeJSON(w, status, errBody(err.Error(), code.String()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

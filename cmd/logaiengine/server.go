package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"logai/internal/discovery"
	"logai/internal/engine"
	"logai/internal/presenter"
	"logai/internal/resultset"
	"logai/pkg/apperror"
	"logai/pkg/logger"
)

// queryServer implements the two inbound operations of §6 External
// Interfaces: the query operation and the spill-read operation. It is
// intentionally thin — request/response framing above this layer is the
// out-of-scope transport collaborator named in §1.
type queryServer struct {
	eng *engine.Engine
	mux *http.ServeMux
}

func newQueryServer(eng *engine.Engine) *queryServer {
	s := &queryServer{eng: eng, mux: http.NewServeMux()}
	s.mux.HandleFunc("/v1/search", s.handleSearch)
	s.mux.HandleFunc("/v1/spill", s.handleSpillRead)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

func (s *queryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *queryServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// searchRequest mirrors §6's query operation parameters.
type searchRequest struct {
	ServiceName  []string `json:"service_name"`
	Locale       string   `json:"locale"`
	Pattern      string   `json:"pattern"`
	StartTimeUTC string   `json:"start_time_utc"`
	EndTimeUTC   string   `json:"end_time_utc"`
	Format       string   `json:"format"`
	PreviewLimit int      `json:"preview_limit"`
}

func (s *queryServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperror.Wrap(err, apperror.CodeInvalidArgument, "malformed request body"))
		return
	}

	if len(req.ServiceName) == 0 {
		writeAppError(w, apperror.New(apperror.CodeInvalidArgument, "service_name is required"))
		return
	}
	if req.Pattern == "" {
		writeAppError(w, apperror.New(apperror.CodeInvalidArgument, "pattern is required"))
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTimeUTC)
	if err != nil {
		writeAppError(w, apperror.NewWithField(apperror.CodeInvalidArgument, "start_time_utc must be RFC3339", "start_time_utc"))
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTimeUTC)
	if err != nil {
		writeAppError(w, apperror.NewWithField(apperror.CodeInvalidArgument, "end_time_utc must be RFC3339", "end_time_utc"))
		return
	}
	if end.Before(start) {
		writeAppError(w, apperror.New(apperror.CodeInvalidArgument, "end_time_utc must not precede start_time_utc"))
		return
	}

	window := discovery.Window{Start: start.UTC(), End: end.UTC()}

	rs, err := s.eng.Search(r.Context(), req.ServiceName, req.Pattern, window, req.Locale, req.PreviewLimit)
	if err != nil {
		logger.Log.Warn("search failed", "error", err, "services", req.ServiceName, "pattern", req.Pattern)
		writeAppError(w, err)
		return
	}

	writeResult(w, rs, req.Format)
}

func (s *queryServer) handleSpillRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("file_path")
	if path == "" {
		writeAppError(w, apperror.New(apperror.CodeInvalidArgument, "file_path is required"))
		return
	}
	format := r.URL.Query().Get("format")

	rs, err := s.eng.ReadSpill(path)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeResult(w, rs, format)
}

func writeResult(w http.ResponseWriter, rs *resultset.ResultSet, format string) {
	if strings.EqualFold(format, "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(presenter.FormatText(rs)))
		return
	}

	body, err := presenter.FormatStructured(rs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperror.Code(err)
	msg := err.Error()

	var appErr *apperror.Error
	if as, ok := err.(*apperror.Error); ok {
		appErr = as
		status = appErr.HTTPStatus()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": msg,
		"code":  code,
	})
}

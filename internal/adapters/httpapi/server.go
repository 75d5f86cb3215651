// Package httpapi is the thin query surface over the pipeline: list and read
// capture files, read and manage alert history, trigger cleanup. It is a
// pass-through; every operation delegates to a core component.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/app"
	"github.com/nvdai/suriwatch/internal/ports"
)

// Server routes the query API.
type Server struct {
	router   *mux.Router
	tailer   *app.EveTailer
	alerts   *app.AlertStore
	captures *app.CaptureStore
	runtime  *app.RuntimeConfig
	metrics  ports.MetricsCollector

	evePath string
	csvDir  string
}

// Config carries the component handles the API exposes.
type Config struct {
	Tailer   *app.EveTailer
	Alerts   *app.AlertStore
	Captures *app.CaptureStore
	Runtime  *app.RuntimeConfig
	Metrics  ports.MetricsCollector

	EvePath string
	CSVDir  string
}

func New(config Config) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		tailer:   config.Tailer,
		alerts:   config.Alerts,
		captures: config.Captures,
		runtime:  config.Runtime,
		metrics:  config.Metrics,
		evePath:  config.EvePath,
		csvDir:   config.CSVDir,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/files", s.handleFiles).Methods(http.MethodGet)
	api.HandleFunc("/latest", s.handleLatest).Methods(http.MethodGet)
	api.HandleFunc("/file/{name}", s.handleFile).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/stats", s.handleAlertStats).Methods(http.MethodGet)
	api.HandleFunc("/alerts/clear", s.handleAlertsClear).Methods(http.MethodDelete)
	api.HandleFunc("/save/{name}", s.handleSave).Methods(http.MethodPost)
	api.HandleFunc("/save/{name}", s.handleUnsave).Methods(http.MethodDelete)
	api.HandleFunc("/cleanup", s.handleCleanup).Methods(http.MethodPost)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router for mounting in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

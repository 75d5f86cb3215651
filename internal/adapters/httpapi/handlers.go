package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
)

const (
	defaultAlertsLimit = 200
	defaultLatestLimit = 200
	defaultFileLimit   = 500
)

type fileInfo struct {
	Name       string  `json:"name"`
	Saved      bool    `json:"saved"`
	AgeMinutes float64 `json:"age_minutes"`
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	maxAge := s.runtime.Current().MaxAge

	// Expired captures are reaped opportunistically, off the request path.
	go func() {
		if deleted := s.captures.Cleanup(maxAge); deleted > 0 && s.metrics != nil {
			s.metrics.CleanupDeleted(deleted)
		}
	}()

	files := s.captures.List(true, maxAge)
	out := make([]fileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, fileInfo{
			Name:       f.Name,
			Saved:      f.Saved,
			AgeMinutes: math.Round(f.AgeMinutes*10) / 10,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(out),
		"files": out,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLatestLimit)
	name, rows := s.captures.LatestNonEmpty(limit, false)

	resp := map[string]any{"file": nil, "rows": rows}
	if name != "" {
		resp["file"] = name
	}
	if rows == nil {
		resp["rows"] = []map[string]string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	limit := queryInt(r, "limit", defaultFileLimit)

	rows, saved, err := s.captures.ReadHead(name, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file":  name,
		"rows":  rows,
		"saved": saved,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultAlertsLimit)

	// Pull-based ingestion: new event log records are stored on read.
	stored, err := s.tailer.Drain()
	if err != nil {
		log.Warn().Err(err).Msg("Event log drain failed, serving stored history")
	}
	if stored > 0 && s.metrics != nil {
		s.metrics.AlertsStored(stored)
	}

	alerts := s.alerts.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":           alerts,
		"total_in_history": s.alerts.Len(),
		"returned":         len(alerts),
	})
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.Stats())
}

func (s *Server) handleAlertsClear(w http.ResponseWriter, r *http.Request) {
	// Through the tailer, not the store directly: the reset must not
	// interleave with an in-flight drain's cursor save.
	if err := s.tailer.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear alerts: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Alert history cleared successfully",
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.captures.Save(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save file: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File saved successfully",
		"name":    name,
		"saved":   true,
	})
}

func (s *Server) handleUnsave(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.captures.Unsave(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Saved file not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to unsave file: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File removed from saved",
		"name":    name,
		"saved":   false,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	maxAge := s.runtime.Current().MaxAge
	if minutes := queryInt(r, "max_age_minutes", 0); minutes > 0 {
		maxAge = time.Duration(minutes) * time.Minute
	}

	deleted := s.captures.Cleanup(maxAge)
	if deleted > 0 && s.metrics != nil {
		s.metrics.CleanupDeleted(deleted)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Deleted " + strconv.Itoa(deleted) + " old capture files",
		"deleted_count": deleted,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"csv_dir":  s.csvDir,
		"eve_path": s.evePath,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.tracker != nil {
		counts, runs, err := s.tracker.Summary(r.Context(), 10)
		if err != nil {
			zap.L().Error("status summary", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "status unavailable")
			return
		}
		resp["stages"] = counts
		resp["recent_runs"] = runs
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListRaces lists races on one day: GET /races?date=YYYY-MM-DD
// (default today in JST).
func (s *Server) handleListRaces(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().In(time.FixedZone("JST", 9*60*60)).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	races, err := s.db.RacesOn(r.Context(), date)
	if err != nil {
		zap.L().Error("list races", zap.String("date", date), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "races": races})
}

// handleRace returns one race with its start list.
func (s *Server) handleRace(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")

	entries, err := s.db.EntriesForRace(r.Context(), raceID)
	if err != nil {
		zap.L().Error("race entries", zap.String("race", raceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "race not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "entries": entries})
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")

	status, odds, err := s.db.OddsForRace(r.Context(), raceID)
	if err != nil {
		zap.L().Error("race odds", zap.String("race", raceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "no odds for race")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"race_id": raceID,
		"status":  status,
		"state":   status.State(),
		"odds":    odds,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "raceID")

	view, err := s.db.ResultForRace(r.Context(), raceID)
	if err != nil {
		zap.L().Error("race result", zap.String("race", raceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "no result for race")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"race_id": raceID, "result": view})
}

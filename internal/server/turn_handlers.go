package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/roundtable/internal/middleware"
)

type startTurnRequest struct {
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleStartTurn(w http.ResponseWriter, r *http.Request) {
	var req startTurnRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	turn, err := s.turns.StartTurn(r.Context(),
		chi.URLParam(r, "groupID"),
		middleware.GetUserID(r.Context()),
		req.Metadata,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

type completeTurnRequest struct {
	Notes    string            `json:"notes"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleCompleteTurn(w http.ResponseWriter, r *http.Request) {
	var req completeTurnRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	turn, err := s.turns.CompleteTurn(r.Context(),
		chi.URLParam(r, "turnID"),
		middleware.GetUserID(r.Context()),
		req.Notes,
		req.Metadata,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type skipTurnRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleSkipTurn(w http.ResponseWriter, r *http.Request) {
	var req skipTurnRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	turn, err := s.turns.SkipTurn(r.Context(),
		chi.URLParam(r, "turnID"),
		middleware.GetUserID(r.Context()),
		req.Reason,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type forceEndRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleForceEndTurn(w http.ResponseWriter, r *http.Request) {
	var req forceEndRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	turn, err := s.turns.ForceEndTurn(r.Context(),
		chi.URLParam(r, "turnID"),
		middleware.GetUserID(r.Context()),
		req.Reason,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleActiveTurn(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.groups.GetGroup(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	turn, err := s.turns.ActiveTurn(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turn": turn})
}

func (s *Server) handleGroupHistory(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.groups.GetGroup(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	turns, err := s.turns.GroupHistory(r.Context(), groupID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.turns.UserHistory(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleGroupStatistics(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.groups.GetGroup(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}

	stats, err := s.turns.GroupStatistics(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.turns.UserStatistics(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryInt reads an integer query parameter, falling back to def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/roundtable/internal/analytics"
	"github.com/mmynk/roundtable/internal/middleware"
)

// requireMembership checks that the caller belongs to the group before
// exposing its analytics.
func (s *Server) requireMembership(w http.ResponseWriter, r *http.Request) (string, bool) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := s.groups.GetGroup(r.Context(), groupID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return "", false
	}
	return groupID, true
}

func (s *Server) handleGroupAnalytics(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	start, end, err := queryTimeRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := s.analytics.GroupAnalytics(r.Context(), groupID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGroupFairness(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	metrics, err := s.analytics.GroupFairness(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleGroupPercentiles(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	percentiles, err := queryPercentiles(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	start, end, err := queryTimeRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := s.analytics.GroupPercentiles(r.Context(), groupID, percentiles, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"percentiles": result})
}

func (s *Server) handleUserPercentiles(w http.ResponseWriter, r *http.Request) {
	percentiles, err := queryPercentiles(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	start, end, err := queryTimeRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := s.analytics.UserPercentiles(r.Context(), middleware.GetUserID(r.Context()), percentiles, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"percentiles": result})
}

func (s *Server) handleGroupInsights(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	report, err := s.analytics.GroupInsights(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGroupPerformance(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	report, err := s.analytics.GroupPerformance(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWeeklyActivity(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	weeks, err := s.analytics.GroupWeeklyActivity(r.Context(), groupID, queryInt(r, "weeks", 12))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

func (s *Server) handleMonthlyActivity(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	months, err := s.analytics.GroupMonthlyActivity(r.Context(), groupID, queryInt(r, "months", 6))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": months})
}

func (s *Server) handlePeakUsage(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	peak, err := s.analytics.GroupPeakUsage(r.Context(), groupID, queryInt(r, "days", 30))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, peak)
}

func (s *Server) handleMembershipTrends(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}

	trends, err := s.analytics.GroupMembershipTrends(r.Context(), groupID, queryInt(r, "weeks", 12))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": trends})
}

func (s *Server) handleUserTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.analytics.UserTrends(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "days", 30))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleInvalidateGroupCache(w http.ResponseWriter, r *http.Request) {
	groupID, ok := s.requireMembership(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": s.analytics.InvalidateGroup(groupID)})
}

func (s *Server) handleInvalidateUserCache(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": s.analytics.InvalidateUser(userID)})
}

// queryPercentiles parses the "p" parameter ("50,95,99"), defaulting to
// the standard set.
func queryPercentiles(r *http.Request) ([]int, error) {
	raw := r.URL.Query().Get("p")
	if raw == "" {
		return analytics.DefaultPercentiles, nil
	}

	var out []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 100 {
			return nil, &queryError{"p must be a comma-separated list of percentiles in [0,100]"}
		}
		out = append(out, n)
	}
	return out, nil
}

// queryTimeRange parses optional RFC 3339 "start" and "end" parameters.
func queryTimeRange(r *http.Request) (start, end *time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return nil, nil, &queryError{"start must be RFC 3339"}
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return nil, nil, &queryError{"end must be RFC 3339"}
		}
		end = &t
	}
	return start, end, nil
}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }

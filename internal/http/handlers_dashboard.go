package http

import (
	"net/http"
	"strconv"

	"cheques/internal/dashboard"
	"cheques/internal/filter"
	"cheques/internal/log"
	"cheques/internal/table"
)

// handleDashboard returns the session view. Filter parameters in the URL
// replace the session filters first, the way a shared link is opened.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if filter.HasAny(q) {
		writeJSON(w, http.StatusOK, s.store.LoadQuery(q))
		return
	}
	writeJSON(w, http.StatusOK, s.store.View())
}

// handlePreview computes a view for the query without touching the session.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Preview(dashboard.ParseQuery(r.URL.Query())))
}

type filterBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) decodeFilter(w http.ResponseWriter, r *http.Request) (filter.Key, string, error) {
	var body filterBody
	if err := decodeBody(w, r, &body); err != nil {
		return "", "", err
	}
	k, err := filter.ParseKey(body.Key)
	if err != nil {
		return "", "", err
	}
	return k, sanitizeInput(body.Value), nil
}

// handleSetFilter sets one filter; an empty value clears it.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	k, v, err := s.decodeFilter(w, r)
	if err != nil {
		s.writeError(w, r, "set_filter", err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Filter set", log.FieldFilters, string(k))
	writeJSON(w, http.StatusOK, s.store.SetFilter(k, v))
}

// handleToggleFilter is a chart click: the same value twice clears it.
func (s *Server) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	k, v, err := s.decodeFilter(w, r)
	if err != nil {
		s.writeError(w, r, "toggle_filter", err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ToggleFilter(k, v))
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ClearFilters())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Input string `json:"input"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ApplySearch(sanitizeInput(body.Input)))
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, "sort", err)
		return
	}
	key, err := table.ParseSortKey(body.Key)
	if err != nil {
		s.writeError(w, r, "sort", err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.SetSort(key))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Page int `json:"page"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, "page", err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.SetPage(body.Page))
}

func (s *Server) handleDrillInto(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Group string `json:"group"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, "drill", err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.DrillInto(sanitizeInput(body.Group)))
}

func (s *Server) handleDrillBack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.DrillBack())
}

// handleBreakdown resolves a click on bar {index} of the expense chart.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || i < 0 {
		writeErrorMessage(w, http.StatusBadRequest, "bad bar index")
		return
	}
	writeJSON(w, http.StatusOK, s.store.SelectBreakdown(i))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	v, err := s.gw.Reload(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpReload, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

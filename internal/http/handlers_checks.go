package http

import (
	"errors"
	"net/http"

	"cheques/internal/core"
	"cheques/internal/dashboard"
	"cheques/internal/gateway"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

// mutationResponse is the view after a mutation. Warning is set when the
// mutation was applied but the refetch that follows it failed.
type mutationResponse struct {
	dashboard.View
	Warning string `json:"warning,omitempty"`
}

// respondMutation writes the outcome of a gateway call.
func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, op string, status int, v dashboard.View, err error) {
	if errors.Is(err, gateway.ErrRefresh) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Mutation applied, refresh failed",
			log.FieldOperation, op, log.FieldError, err.Error())
		writeJSON(w, status, mutationResponse{View: v, Warning: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, status, mutationResponse{View: v})
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, "get", err)
		return
	}
	c, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleAddCheck takes a flat object of column keys, the same shape the
// remote store accepts.
func (s *Server) handleAddCheck(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	v, err := s.gw.Submit(r.Context(), sheets.Request{Action: sheets.ActionAdd, Fields: fields})
	s.respondMutation(w, r, log.OpCreate, http.StatusCreated, v, err)
}

// handleEditCheck merges the given columns into the loaded check and sends
// the whole row.
func (s *Server) handleEditCheck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	current, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	next, err := sheets.Request{Fields: fields}.Apply(current, s.loc)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	v, err := s.gw.Submit(r.Context(), sheets.EditRequest(next))
	s.respondMutation(w, r, log.OpUpdate, http.StatusOK, v, err)
}

func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	v, err := s.gw.Submit(r.Context(), sheets.DeleteRequest(id))
	s.respondMutation(w, r, log.OpDelete, http.StatusOK, v, err)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpPayment, err)
		return
	}
	var body struct {
		IsPaid *bool `json:"isPaid"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, log.OpPayment, err)
		return
	}
	if body.IsPaid == nil {
		writeErrorMessage(w, http.StatusBadRequest, "isPaid is required")
		return
	}
	v, err := s.gw.Submit(r.Context(), sheets.PaymentRequest(id, *body.IsPaid))
	s.respondMutation(w, r, log.OpPayment, http.StatusOK, v, err)
}

// handleEditField saves one inline cell edit.
func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpPatch, err)
		return
	}
	f, err := core.ParseField(r.PathValue("field"))
	if err != nil {
		s.writeError(w, r, log.OpPatch, err)
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, log.OpPatch, err)
		return
	}
	v, err := s.gw.EditField(r.Context(), id, f, sanitizeInput(body.Value))
	s.respondMutation(w, r, log.OpPatch, http.StatusOK, v, err)
}

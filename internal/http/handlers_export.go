package http

import (
	"bytes"
	"net/http"
	"strconv"

	"cheques/internal/core"
	"cheques/internal/dashboard"
	"cheques/internal/export"
	"cheques/internal/filter"
	"cheques/internal/log"
)

// exportRecords is the filtered list in table order: the session's, or the
// one described by the URL when it carries filter or sort parameters.
func (s *Server) exportRecords(r *http.Request) []core.Check {
	q := r.URL.Query()
	if filter.HasAny(q) || q.Has(dashboard.ParamSort) {
		return s.store.Preview(dashboard.ParseQuery(q)).Filtered
	}
	return s.store.View().Filtered
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	records := s.exportRecords(r)
	b, err := export.CSV(records, s.clock().In(s.loc))
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	s.sendFile(w, r, "text/csv; charset=utf-8", export.CSVFilename, b, len(records))
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	records := s.exportRecords(r)
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, records, s.clock().In(s.loc)); err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	s.sendFile(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", export.XLSXFilename, buf.Bytes(), len(records))
}

func (s *Server) sendFile(w http.ResponseWriter, r *http.Request, contentType, name string, b []byte, rows int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Report exported",
		log.FieldOperation, log.OpExport, log.FieldRecords, rows, "file", name)
}

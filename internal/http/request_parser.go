package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cheques/internal/core"
	"cheques/internal/sheets"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

// decodeBody reads a JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", errBadBody)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// decodeFields reads a flat JSON object of column keys into sanitized
// field values. Unknown keys are ignored, as the remote store does.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[core.Field]string, error) {
	var req sheets.Request
	if err := decodeBody(w, r, &req); err != nil {
		return nil, err
	}
	for f, v := range req.Fields {
		req.Fields[f] = sanitizeInput(v)
	}
	return req.Fields, nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad id %q", sheets.ErrInvalidRequest, r.PathValue("id"))
	}
	return id, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

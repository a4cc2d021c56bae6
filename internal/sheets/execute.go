package sheets

import (
	"fmt"
	"slices"
	"time"

	"cheques/internal/core"
)

// Execute applies req to an in-memory row list and returns the new list.
// It is the reference behavior for backends that keep rows locally.
// Unknown ids are application errors, as the web app reports them.
func Execute(rows []core.Check, req Request, now time.Time, loc *time.Location) ([]core.Check, error) {
	if err := req.Validate(); err != nil {
		return rows, err
	}
	out := slices.Clone(rows)

	if req.Action == ActionAdd {
		c, err := req.Apply(core.Check{}, loc)
		if err != nil {
			return rows, &ApplicationError{Action: req.Action, Message: err.Error()}
		}
		if err := c.Validate(); err != nil {
			return rows, &ApplicationError{Action: req.Action, Message: err.Error()}
		}
		c.ID = len(out)
		return append(out, c), nil
	}

	id := *req.ID
	if id >= len(out) {
		return rows, &ApplicationError{Action: req.Action, Message: fmt.Sprintf("Cheque %d no encontrado", id)}
	}

	switch req.Action {
	case ActionEdit:
		c, err := req.Apply(out[id], loc)
		if err != nil {
			return rows, &ApplicationError{Action: req.Action, Message: err.Error()}
		}
		out[id] = c
	case ActionDelete:
		out = slices.Delete(out, id, id+1)
		for i := range out {
			out[i].ID = i
		}
	case ActionPayment:
		out[id] = out[id].MarkPaid(*req.IsPaid, now)
	}
	return out, nil
}

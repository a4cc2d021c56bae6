package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cheques/internal/core"
)

// Request is one mutation. On the wire it is a flat JSON object: action,
// optional id and isPaid, and one member per column.
type Request struct {
	Action Action
	ID     *int
	IsPaid *bool
	Fields map[core.Field]string
}

var ErrInvalidRequest = errors.New("invalid request")

// AddRequest creates a new row from c.
func AddRequest(c core.Check) Request {
	return Request{Action: ActionAdd, Fields: c.Values()}
}

// EditRequest rewrites every column of row c.ID.
func EditRequest(c core.Check) Request {
	id := c.ID
	return Request{Action: ActionEdit, ID: &id, Fields: c.Values()}
}

// FieldRequest rewrites one column of row id.
func FieldRequest(id int, f core.Field, value string) Request {
	return Request{Action: ActionEdit, ID: &id, Fields: map[core.Field]string{f: value}}
}

// DeleteRequest removes row id.
func DeleteRequest(id int) Request {
	return Request{Action: ActionDelete, ID: &id}
}

// PaymentRequest marks row id paid or unpaid.
func PaymentRequest(id int, paid bool) Request {
	return Request{Action: ActionPayment, ID: &id, IsPaid: &paid}
}

// Validate checks the shape of the request for its action.
func (r Request) Validate() error {
	switch r.Action {
	case ActionAdd:
		if r.ID != nil {
			return fmt.Errorf("%w: %s takes no id", ErrInvalidRequest, r.Action)
		}
	case ActionEdit, ActionDelete:
		if r.ID == nil {
			return fmt.Errorf("%w: %s needs an id", ErrInvalidRequest, r.Action)
		}
	case ActionPayment:
		if r.ID == nil || r.IsPaid == nil {
			return fmt.Errorf("%w: %s needs an id and isPaid", ErrInvalidRequest, r.Action)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, r.Action)
	}
	if r.ID != nil && *r.ID < 0 {
		return fmt.Errorf("%w: negative id", ErrInvalidRequest)
	}
	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+3)
	for f, v := range r.Fields {
		m[string(f)] = v
	}
	m["action"] = r.Action
	if r.ID != nil {
		m["id"] = *r.ID
	}
	if r.IsPaid != nil {
		m["isPaid"] = *r.IsPaid
	}
	return json.Marshal(m)
}

func (r *Request) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Request{}
	for k, v := range raw {
		switch k {
		case "action":
			if err := json.Unmarshal(v, &r.Action); err != nil {
				return fmt.Errorf("action: %w", err)
			}
		case "id":
			var id int
			if err := json.Unmarshal(v, &id); err != nil {
				return fmt.Errorf("id: %w", err)
			}
			r.ID = &id
		case "isPaid":
			var paid bool
			if err := json.Unmarshal(v, &paid); err != nil {
				return fmt.Errorf("isPaid: %w", err)
			}
			r.IsPaid = &paid
		default:
			f, err := core.ParseField(k)
			if err != nil {
				continue
			}
			if r.Fields == nil {
				r.Fields = map[core.Field]string{}
			}
			r.Fields[f] = rawText(v)
		}
	}
	return nil
}

// rawText turns a JSON scalar into its text form; strings lose their quotes.
func rawText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	t := strings.TrimSpace(string(v))
	if t == "null" {
		return ""
	}
	return t
}

// Apply returns c with the request's fields written over it in column
// order. Backends use it to execute add and edit.
func (r Request) Apply(c core.Check, loc *time.Location) (core.Check, error) {
	for _, f := range core.Fields {
		v, ok := r.Fields[f]
		if !ok {
			continue
		}
		next, err := c.WithField(f, v, loc)
		if err != nil {
			return c, fmt.Errorf("%s: %w", f, err)
		}
		c = next
	}
	return c, nil
}

// Package sheets defines the ports to the remote check sheet and the wire
// format shared by its adapters.
package sheets

import (
	"context"

	"cheques/internal/core"
)

// Ports for outbound adapters.
type (
	// Source returns the full current check list. Ids are positional.
	Source interface {
		Fetch(ctx context.Context) ([]core.Check, error)
	}

	// Mutator applies one action to the remote sheet.
	Mutator interface {
		Submit(ctx context.Context, req Request) (Response, error)
	}

	// Backend is a sheet that can be read and written.
	Backend interface {
		Source
		Mutator
	}
)

// Action names a remote mutation.
type Action string

const (
	ActionAdd     Action = "addCheck"
	ActionEdit    Action = "editCheck"
	ActionDelete  Action = "deleteCheck"
	ActionPayment Action = "updatePayment"
)

// Response is the remote acknowledgement.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

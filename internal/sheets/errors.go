package sheets

import (
	"errors"
	"fmt"
)

// TransportError is a failure to reach the sheet or a non-2xx reply.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

const defaultRemoteMessage = "La API devolvió un error no especificado."

// ApplicationError is a reply with success set to false.
type ApplicationError struct {
	Action  Action
	Message string
}

func (e *ApplicationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultRemoteMessage
	}
	return fmt.Sprintf("%s rejected: %s", e.Action, msg)
}

// Reject builds the ApplicationError for a failed response.
func Reject(action Action, resp Response) error {
	return &ApplicationError{Action: action, Message: resp.Message}
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsApplication reports whether err is an ApplicationError.
func IsApplication(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

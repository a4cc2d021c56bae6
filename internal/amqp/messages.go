package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CheckEvent announces a successful mutation. It carries no check data;
// consumers refetch the sheet.
type CheckEvent struct {
	EventID   string    `json:"eventId"`
	Action    string    `json:"action"`
	CheckID   *int      `json:"checkId,omitempty"`
	Revision  uint64    `json:"revision,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCheckEvent creates an event with a fresh id. id is nil for adds.
func NewCheckEvent(action string, id *int) *CheckEvent {
	return &CheckEvent{
		EventID:   uuid.NewString(),
		Action:    action,
		CheckID:   id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CheckEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CheckEventFromJSON decodes an event. Events without an action are
// rejected.
func CheckEventFromJSON(data []byte) (*CheckEvent, error) {
	var msg CheckEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Action == "" {
		return nil, errors.New("check event without action")
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	return &msg, nil
}

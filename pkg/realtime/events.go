package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NicolasHaas/cliniclink/pkg/model"
)

// Event names pushed by the clinic server.
const (
	EventAccountApproved      = "account_approved"
	EventAccountRejected      = "account_rejected"
	EventNewAppointment       = "new_appointment"
	EventAppointmentCancelled = "appointment_cancelled"
	EventAppointmentCompleted = "appointment_completed"
)

var (
	ErrMalformed    = errors.New("realtime: malformed message")
	ErrMissingEvent = errors.New("realtime: message has no event name")
)

// Message is the wire form of every frame, in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is one decoded server notification. The set of implementations is
// closed: a type switch over the variants below plus Unknown is exhaustive.
type Event interface {
	Name() string
	Payload() json.RawMessage
	isEvent()
}

type AccountApproved struct {
	Data json.RawMessage
}

type AccountRejected struct {
	Reason string
	Data   json.RawMessage
}

type NewAppointment struct {
	Data json.RawMessage
}

type AppointmentCancelled struct {
	Data json.RawMessage
}

type AppointmentCompleted struct {
	Data json.RawMessage
}

// Unknown carries any event name this client does not recognise.
type Unknown struct {
	Type string
	Data json.RawMessage
}

func (AccountApproved) Name() string      { return EventAccountApproved }
func (AccountRejected) Name() string      { return EventAccountRejected }
func (NewAppointment) Name() string       { return EventNewAppointment }
func (AppointmentCancelled) Name() string { return EventAppointmentCancelled }
func (AppointmentCompleted) Name() string { return EventAppointmentCompleted }
func (e Unknown) Name() string            { return e.Type }

func (e AccountApproved) Payload() json.RawMessage      { return e.Data }
func (e AccountRejected) Payload() json.RawMessage      { return e.Data }
func (e NewAppointment) Payload() json.RawMessage       { return e.Data }
func (e AppointmentCancelled) Payload() json.RawMessage { return e.Data }
func (e AppointmentCompleted) Payload() json.RawMessage { return e.Data }
func (e Unknown) Payload() json.RawMessage              { return e.Data }

func (AccountApproved) isEvent()      {}
func (AccountRejected) isEvent()      {}
func (NewAppointment) isEvent()       {}
func (AppointmentCancelled) isEvent() {}
func (AppointmentCompleted) isEvent() {}
func (Unknown) isEvent()              {}

// Appointment decodes the payload as an appointment.
func (e NewAppointment) Appointment() (model.Appointment, error) {
	return decodeAppointment(e.Data)
}

func (e AppointmentCancelled) Appointment() (model.Appointment, error) {
	return decodeAppointment(e.Data)
}

func (e AppointmentCompleted) Appointment() (model.Appointment, error) {
	return decodeAppointment(e.Data)
}

func decodeAppointment(data json.RawMessage) (model.Appointment, error) {
	var a model.Appointment
	if len(data) == 0 {
		return a, fmt.Errorf("realtime: empty appointment payload")
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("realtime: decode appointment: %w", err)
	}
	return a, nil
}

// Decode parses one inbound frame. Frames that are not JSON objects or that
// lack an event name are rejected.
func Decode(raw []byte) (Event, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Event == "" {
		return nil, ErrMissingEvent
	}
	data := objectOrNil(msg.Data)

	switch msg.Event {
	case EventAccountApproved:
		return AccountApproved{Data: data}, nil
	case EventAccountRejected:
		return AccountRejected{Reason: rejectReason(data), Data: data}, nil
	case EventNewAppointment:
		return NewAppointment{Data: data}, nil
	case EventAppointmentCancelled:
		return AppointmentCancelled{Data: data}, nil
	case EventAppointmentCompleted:
		return AppointmentCompleted{Data: data}, nil
	default:
		return Unknown{Type: msg.Event, Data: data}, nil
	}
}

// objectOrNil keeps data only when it is a JSON object.
func objectOrNil(data json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	return trimmed
}

// rejectReason reads data.reason; a missing or non-string reason reads as "".
func rejectReason(data json.RawMessage) string {
	var body struct {
		Reason string `json:"reason"`
	}
	if len(data) == 0 || json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Reason
}

// Encode builds an outbound frame. A nil payload omits data.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, ErrMissingEvent
	}
	msg := Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("realtime: encode %s: %w", event, err)
		}
		msg.Data = data
	}
	out, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	return out, nil
}

// README: User-facing notifications delivered to the device as events.
package session

import (
	"log"
	"time"
)

// Event types pushed to the device.
const (
	EventAlert           = "alert"
	EventNotice          = "notice"
	EventSpeak           = "speak"
	EventState           = "state"
	EventLocationUpdates = "location_updates"
)

// Event is one message on a session's device stream.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink delivers events to the devices attached to a session. Publish must
// not block.
type Sink interface {
	Publish(sessionID string, ev Event)
}

// AlertPayload is a modal message the user must dismiss.
type AlertPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NoticePayload is a message shown without interrupting the user.
type NoticePayload struct {
	Message string `json:"message"`
}

// Notifier sends user-facing messages for one session.
type Notifier struct {
	sessionID string
	sink      Sink
}

func NewNotifier(sessionID string, sink Sink) *Notifier {
	return &Notifier{sessionID: sessionID, sink: sink}
}

// Alert shows a modal message.
func (n *Notifier) Alert(title, message string) {
	log.Printf("session %s: alert: %s", n.sessionID, message)
	n.Emit(EventAlert, AlertPayload{Title: title, Message: message})
}

// Error shows a modal error message.
func (n *Notifier) Error(message string) {
	n.Alert("Error", message)
}

// Notice shows a non-blocking message.
func (n *Notifier) Notice(message string) {
	n.Emit(EventNotice, NoticePayload{Message: message})
}

// LocationUpdates asks the device to start or stop streaming fixes.
func (n *Notifier) LocationUpdates(enabled bool) {
	n.Emit(EventLocationUpdates, map[string]bool{"enabled": enabled})
}

func (n *Notifier) Emit(eventType string, payload any) {
	if n == nil || n.sink == nil {
		return
	}
	n.sink.Publish(n.sessionID, Event{Type: eventType, Payload: payload, Timestamp: time.Now()})
}

package models

// EventType names a broadcast event. The values double as the WebSocket
// event names seen by dashboards.
type EventType string

const (
	EventInitialData   EventType = "initial-data"
	EventUpdate        EventType = "update"
	EventClientRemoved EventType = "client-removed"
	EventTerminate     EventType = "terminate"
)

// Event is a single change fanned out to dashboards and, when a backplane is
// configured, to other server instances.
type Event struct {
	Type      EventType         `json:"type"`
	ClientID  string            `json:"clientId"`
	Status    *ClientStatus     `json:"status,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Command   *TerminateCommand `json:"command,omitempty"`
	Origin    string            `json:"origin,omitempty"`
}

func NewUpdateEvent(clientID string, status ClientStatus) Event {
	return Event{Type: EventUpdate, ClientID: clientID, Status: &status}
}

func NewRemovedEvent(clientID string) Event {
	return Event{Type: EventClientRemoved, ClientID: clientID}
}

func NewTerminateEvent(clientID string, cmd TerminateCommand) Event {
	return Event{Type: EventTerminate, ClientID: clientID, SessionID: cmd.SessionID, Command: &cmd}
}

type UpdatePayload struct {
	ClientID string       `json:"clientId"`
	Status   ClientStatus `json:"status"`
}

type TerminatePayload struct {
	ClientID  string `json:"clientId"`
	SessionID string `json:"sessionId"`
}

// StreamMessage is one WebSocket frame sent to a dashboard.
type StreamMessage struct {
	Event EventType   `json:"event"`
	Data  interface{} `json:"data"`
}

// Message converts the event to its dashboard wire form.
func (e Event) Message() StreamMessage {
	switch e.Type {
	case EventUpdate:
		var status ClientStatus
		if e.Status != nil {
			status = *e.Status
		}
		return StreamMessage{Event: e.Type, Data: UpdatePayload{ClientID: e.ClientID, Status: status}}
	case EventTerminate:
		return StreamMessage{Event: e.Type, Data: TerminatePayload{ClientID: e.ClientID, SessionID: e.SessionID}}
	default:
		return StreamMessage{Event: e.Type, Data: e.ClientID}
	}
}

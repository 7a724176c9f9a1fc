package server

import "encoding/json"

// The three envelope shapes on the wire. Every message carries a "type"
// discriminator so clients can tell a 1:1 response apart from an
// unsolicited event.

type ClientRequest struct {
	Request string          `json:"request"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Response struct {
	Type        string `json:"type"`
	Response    string `json:"response"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Data        any    `json:"data"`
}

type Event struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

func okResponse(op, description string, data any) Response {
	return Response{Type: "response", Response: op, Status: StatusOK, Description: description, Data: data}
}

func errorResponse(op, description string) Response {
	return Response{Type: "response", Response: op, Status: StatusError, Description: description, Data: nil}
}

func newEvent(event string, data any) Event {
	return Event{Type: "broadcast", Event: event, Data: data}
}

// Event names sent to clients.
const (
	EventGameCreated      = "game_created"
	EventGameNotAvailable = "game_not_available"
	EventJoinRequest      = "join_request"
	EventGameUpdate       = "game_update"
	EventGameOver         = "game_over"
	EventRematchDeclined  = "rematch_declined"
)

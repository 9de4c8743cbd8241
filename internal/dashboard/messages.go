package dashboard

import (
	"strings"
	"time"
)

// Event is pushed to every websocket client.
type Event struct {
	Topic string `json:"topic"` // e.g. "resource.watchlist", "watchlist", "paper"
	Type  string `json:"type"`  // "snapshot" on connect, "update" afterwards
	Ts    int64  `json:"ts"`    // unix millis
	Data  any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(topic, typ string, data any) Event {
	return Event{Topic: topic, Type: typ, Ts: time.Now().UnixMilli(), Data: data}
}

// Command is sent by websocket clients, e.g.
// {"op": "active", "args": ["watchlist"], "active": false}.
type Command struct {
	Op     string   `json:"op"` // "active" or "refresh"
	Args   []string `json:"args"`
	Active bool     `json:"active"`
}

// resourceFromTopic accepts either "watchlist" or "resource.watchlist".
func resourceFromTopic(arg string) string {
	return strings.TrimPrefix(arg, "resource.")
}

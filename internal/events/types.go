// Package events defines event types and the publish-subscribe bus used to
// decouple the relay core from telemetry, stats recording, and the admin API.
package events

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventPlayerLogin  EventType = "player_login"
	EventPlayerLogout EventType = "player_logout"

	// Room lifecycle events
	EventRoomCreated EventType = "room_created"
	EventRoomDeleted EventType = "room_deleted"
	EventRoomJoined  EventType = "room_joined"
	EventRoomLeft    EventType = "room_left"

	// Relay events
	EventPeerUnreachable EventType = "peer_unreachable"

	// System events
	EventShutdown EventType = "shutdown"
)

// Event is a single message published through the EventBus.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// PlayerPayload describes a session-level event.
type PlayerPayload struct {
	AccountID int    `json:"account_id"`
	Username  string `json:"username"`
	Slot      int    `json:"slot"`
	Room      string `json:"room,omitempty"`
}

// RoomPayload describes a room-level event. Creator fields are only set on
// EventRoomCreated.
type RoomPayload struct {
	Name      string `json:"name"`
	Settings  string `json:"settings,omitempty"`
	Members   int    `json:"members"`
	CreatorID int    `json:"creator_id,omitempty"`
	Creator   string `json:"creator,omitempty"`
}

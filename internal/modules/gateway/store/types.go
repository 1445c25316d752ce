package store

import (
	"encoding/json"
	"time"
)

// TargetKind enumerates the audiences an event can be routed to.
type TargetKind uint8

const (
	// TargetAll delivers to every connected session, authenticated or not.
	TargetAll TargetKind = iota
	TargetUser
	TargetRole
	TargetRoom
)

// String returns the wire name of the target kind.
func (k TargetKind) String() string {
	switch k {
	case TargetUser:
		return "user"
	case TargetRole:
		return "role"
	case TargetRoom:
		return "room"
	default:
		return "all"
	}
}

// MarshalJSON serializes the kind by its wire name.
func (k TargetKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Target describes which connections receive an event. The zero value targets
// all connected sessions.
type Target struct {
	Kind  TargetKind `json:"type"`
	Value string     `json:"value,omitempty"`
}

// UserTarget routes to the sessions of a single user.
func UserTarget(userID string) Target { return Target{Kind: TargetUser, Value: userID} }

// RoleTarget routes to every session holding the given role.
func RoleTarget(role string) Target { return Target{Kind: TargetRole, Value: role} }

// RoomTarget routes to the members of a named room.
func RoomTarget(room string) Target { return Target{Kind: TargetRoom, Value: room} }

// AllTarget routes to every connected session.
func AllTarget() Target { return Target{Kind: TargetAll} }

// Event is an immutable dispatched-event record kept for replay and audit.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Target    Target      `json:"target"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Notification is a user-directed record with a mutable read flag.
type Notification struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"createdAt"`
}

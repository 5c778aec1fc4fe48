package highrise

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// User identifies a room participant.
type User struct {
	// ID is the opaque user identifier.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"username"`
}

// Position is a location in the room.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Facing string  `json:"facing"`
}

// Privilege is a user's room-granted status.
type Privilege struct {
	Moderator bool `json:"moderator"`
	Designer  bool `json:"designer"`
}

// RoomUser is one roster entry.
type RoomUser struct {
	User User
	Pos  Position
}

// Event is a room event delivered by [Session.Recv].
type Event interface {
	event()
}

// Chat is a chat or whisper message from a user.
type Chat struct {
	User    User
	Text    string
	Whisper bool
}

// Joined reports a user entering the room.
type Joined struct {
	User User
	Pos  Position
}

// Left reports a user leaving the room.
type Left struct {
	User User
}

// Moved reports a user changing position.
type Moved struct {
	User User
	Pos  Position
}

func (Chat) event()   {}
func (Joined) event() {}
func (Left) event()   {}
func (Moved) event()  {}

// frame is the envelope common to every message on the wire.
type frame struct {
	// Type is the message type tag.
	Type string `json:"_type"`
	// RID correlates a response to its request. Events have none.
	RID string `json:"rid"`
	// Message is the error description on Error frames.
	Message string `json:"message"`
	// Extra holds the rest of the payload for a second decode pass.
	Extra jsontext.Value `json:",unknown"`
}

// metadata is the first frame on a new connection.
type metadata struct {
	UserID     string `json:"user_id"`
	RoomInfo   room   `json:"room_info"`
	Connection string `json:"connection_id"`
}

type room struct {
	Owner string `json:"owner_id"`
	Name  string `json:"room_name"`
}

type chatEvent struct {
	User    User   `json:"user"`
	Message string `json:"message"`
	Whisper bool   `json:"whisper"`
}

type presenceEvent struct {
	User User     `json:"user"`
	Pos  Position `json:"position"`
}

type chatRequest struct {
	Type    string `json:"_type"`
	Message string `json:"message"`
	Target  string `json:"whisper_target_id,omitempty"`
	RID     string `json:"rid"`
}

type emoteRequest struct {
	Type   string `json:"_type"`
	ID     string `json:"emote_id"`
	Target string `json:"target_user_id,omitempty"`
	RID    string `json:"rid"`
}

type teleportRequest struct {
	Type string   `json:"_type"`
	User string   `json:"user_id"`
	Dest Position `json:"destination"`
	RID  string   `json:"rid"`
}

type roomUsersRequest struct {
	Type string `json:"_type"`
	RID  string `json:"rid"`
}

// roomUsersResponse carries the roster as [user, position] pairs.
type roomUsersResponse struct {
	Content [][]jsontext.Value `json:"content"`
}

type privilegeRequest struct {
	Type string `json:"_type"`
	User string `json:"user_id"`
	RID  string `json:"rid"`
}

type privilegeResponse struct {
	Content Privilege `json:"content"`
}

type moderateRequest struct {
	Type   string `json:"_type"`
	User   string `json:"user_id"`
	Action string `json:"moderation_action"`
	// Length is the action duration in seconds, for mute and ban.
	Length int `json:"action_length,omitempty"`
	RID    string `json:"rid"`
}

type keepalive struct {
	Type string `json:"_type"`
}

// RemoteError is a non-sentinel error reported by the platform.
type RemoteError struct {
	// Message is the platform's error description.
	Message string
}

func (err *RemoteError) Error() string {
	return fmt.Sprintf("room API error: %s", err.Message)
}

package proto

import "encoding/json"

// Inbound event types.
const (
	TypeJoinRoom      = "JOIN_ROOM"
	TypeSendMessage   = "SEND_MESSAGES"
	TypeUpvoteMessage = "UPVOTE_MESSAGE"
)

// Outbound event types.
const (
	TypeAddChat    = "ADD_CHAT"
	TypeUpdateChat = "UPDATE_CHAT"
)

// Inbound is a decoded client event: a bare {type, payload} object.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRoomPayload asks to join a room under a display name.
type JoinRoomPayload struct {
	Name   string `json:"name" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	RoomID string `json:"roomId" validate:"required"`
}

// SendMessagePayload posts a chat message to a room.
type SendMessagePayload struct {
	UserID  string `json:"userId" validate:"required"`
	RoomID  string `json:"roomId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// UpvoteMessagePayload upvotes a chat in a room.
type UpvoteMessagePayload struct {
	UserID string `json:"userId" validate:"required"`
	RoomID string `json:"roomId" validate:"required"`
	ChatID string `json:"chatId" validate:"required"`
}

// Outbound is an event fanned out to room members.
type Outbound struct {
	Type    string          `json:"type"`
	Payload OutboundPayload `json:"payload"`
}

// OutboundPayload carries ADD_CHAT and UPDATE_CHAT fields. UPDATE_CHAT
// is partial: message and name stay empty and are omitted on the wire.
type OutboundPayload struct {
	RoomID  string `json:"roomId"`
	ChatID  string `json:"chatId"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
	Upvotes int    `json:"upvotes"`
}

// Envelope wraps an outbound event as {"message": <event>} before
// serialization.
type Envelope struct {
	Message Outbound `json:"message"`
}

// AddChat builds the event announcing a freshly posted chat.
func AddChat(roomID, chatID, message, name string) Outbound {
	return Outbound{
		Type: TypeAddChat,
		Payload: OutboundPayload{
			RoomID:  roomID,
			ChatID:  chatID,
			Message: message,
			Name:    name,
			Upvotes: 0,
		},
	}
}

// UpdateChat builds the event carrying a chat's authoritative upvote count.
func UpdateChat(roomID, chatID string, upvotes int) Outbound {
	return Outbound{
		Type: TypeUpdateChat,
		Payload: OutboundPayload{
			RoomID:  roomID,
			ChatID:  chatID,
			Upvotes: upvotes,
		},
	}
}

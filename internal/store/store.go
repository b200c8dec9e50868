package store

import "context"

// Chat is one posted message plus the users who upvoted it. Name is the
// author's display name snapshotted at post time.
type Chat struct {
	ID      string
	RoomID  string
	UserID  string
	Name    string
	Message string
	Upvotes []string
}

// Store is the chat history capability. Backends must keep chats in post
// order per room and enforce at most one upvote per (user, chat).
type Store interface {
	// InitRoom creates an empty chat history for the room, resetting any
	// existing history (create-or-reset, not a guarded create).
	InitRoom(ctx context.Context, roomID string) error

	// AddChat appends a chat to the room, creating the room lazily, and
	// returns the generated chat id.
	AddChat(ctx context.Context, roomID, userID, name, message string) (string, error)

	// UpVote records the user's upvote on a chat and returns the resulting
	// count. Repeat upvotes leave the count unchanged. An unknown room or
	// chat yields 0 without error.
	UpVote(ctx context.Context, userID, roomID, chatID string) (int, error)

	// GetChats returns a window of the room's history counted from the tail:
	// offset 0 is the most recent limit chats. The window itself is in post
	// order. Out-of-range offsets and limits clamp to an empty or partial
	// window, never an error.
	GetChats(ctx context.Context, roomID string, limit, offset int) ([]Chat, error)

	// Close releases backend resources.
	Close() error
}

// TailWindow clamps an offset/limit window counted from the end of a
// sequence of length n into valid [start, end) bounds. Negative values
// clamp to zero; the window is never out of range.
func TailWindow(n, limit, offset int) (start, end int) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	end = n - offset
	if end < 0 {
		end = 0
	}
	start = end - limit
	if start < 0 {
		start = 0
	}
	return start, end
}

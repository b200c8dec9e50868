// Package memory holds chat history in process memory. History does not
// survive restarts; it is the default backend.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/store"
)

type chat struct {
	rec    store.Chat
	voters map[string]struct{}
}

type room struct {
	chats []*chat
	byID  map[string]*chat
}

func newRoom() *room {
	return &room{byID: make(map[string]*chat)}
}

// Store implements store.Store in memory.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*room
	log   *zerolog.Logger
}

// New builds an empty in-memory store.
func New(logger *zerolog.Logger) *Store {
	return &Store{
		rooms: make(map[string]*room),
		log:   logger,
	}
}

// InitRoom creates or resets the room's history.
func (s *Store) InitRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[roomID] = newRoom()
	s.log.Info().Str("room", roomID).Msg("room history initialized")
	return nil
}

// AddChat appends a chat to the room, creating the room lazily.
func (s *Store) AddChat(_ context.Context, roomID, userID, name, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		rm = newRoom()
		s.rooms[roomID] = rm
		s.log.Info().Str("room", roomID).Msg("unseen room, creating history")
	}

	c := &chat{
		rec: store.Chat{
			ID:      uuid.NewString(),
			RoomID:  roomID,
			UserID:  userID,
			Name:    name,
			Message: message,
		},
		voters: make(map[string]struct{}),
	}
	rm.chats = append(rm.chats, c)
	rm.byID[c.rec.ID] = c
	return c.rec.ID, nil
}

// UpVote records an upvote and returns the resulting count. Unknown rooms
// and chats yield 0; repeat upvotes leave the count unchanged.
func (s *Store) UpVote(_ context.Context, userID, roomID, chatID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		s.log.Warn().Str("room", roomID).Msg("upvote in unknown room")
		return 0, nil
	}
	c, ok := rm.byID[chatID]
	if !ok {
		s.log.Warn().Str("room", roomID).Str("chat", chatID).Msg("upvote on unknown chat")
		return 0, nil
	}

	if _, voted := c.voters[userID]; voted {
		s.log.Warn().Str("room", roomID).Str("chat", chatID).Str("user", userID).Msg("repeat upvote ignored")
		return len(c.rec.Upvotes), nil
	}
	c.voters[userID] = struct{}{}
	c.rec.Upvotes = append(c.rec.Upvotes, userID)
	return len(c.rec.Upvotes), nil
}

// GetChats returns a tail window of the room's history; see store.Store.
func (s *Store) GetChats(_ context.Context, roomID string, limit, offset int) ([]store.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		s.log.Warn().Str("room", roomID).Msg("history requested for unknown room")
		return nil, nil
	}

	start, end := store.TailWindow(len(rm.chats), limit, offset)
	out := make([]store.Chat, 0, end-start)
	for _, c := range rm.chats[start:end] {
		rec := c.rec
		rec.Upvotes = append([]string(nil), c.rec.Upvotes...)
		out = append(out, rec)
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns per-room membership and the broadcast fan-out. All room
// mutations are serialized behind one lock; snapshots are copied out so
// callers never see internal state mid-mutation.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string][]*Member
	log   *zerolog.Logger
}

// NewRegistry builds an empty membership registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string][]*Member),
		log:   logger,
	}
}

// Join adds a member to a room, creating the room if needed. Joining a room
// the user is already in is a logged no-op. The connection's close signal
// triggers Leave at most once, even if it races with an explicit Leave.
func (r *Registry) Join(roomID, userID, name string, conn Conn) {
	r.mu.Lock()
	members, existed := r.rooms[roomID]
	if !existed {
		r.rooms[roomID] = nil
	}
	for _, m := range members {
		if m.UserID == userID {
			r.mu.Unlock()
			r.log.Warn().Str("room", roomID).Str("user", userID).Msg("user already in room")
			return
		}
	}
	r.rooms[roomID] = append(members, &Member{UserID: userID, Name: name, Conn: conn})
	r.mu.Unlock()

	if !existed {
		r.log.Info().Str("room", roomID).Msg("room created")
	}
	r.log.Info().Str("room", roomID).Str("user", userID).Str("name", name).Msg("member joined")

	var once sync.Once
	conn.OnClose(func() {
		once.Do(func() {
			r.log.Info().Str("room", roomID).Str("user", userID).Msg("connection closed")
			r.Leave(roomID, userID)
		})
	})
}

// Leave removes a member from a room. Unknown rooms and unknown members are
// logged no-ops. The last member out deletes the room.
func (r *Registry) Leave(roomID, userID string) {
	r.mu.Lock()
	members, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		r.log.Warn().Str("room", roomID).Str("user", userID).Msg("leave from unknown room")
		return
	}

	idx := -1
	for i, m := range members {
		if m.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		r.log.Warn().Str("room", roomID).Str("user", userID).Msg("leave by unknown member")
		return
	}

	members = append(members[:idx], members[idx+1:]...)
	if len(members) == 0 {
		delete(r.rooms, roomID)
		r.mu.Unlock()
		r.log.Info().Str("room", roomID).Msg("room deleted, last member left")
		return
	}
	r.rooms[roomID] = members
	r.mu.Unlock()

	r.log.Info().Str("room", roomID).Str("user", userID).Msg("member left")
}

// MembersOf returns a snapshot of a room's members. Absent rooms yield an
// empty slice.
func (r *Registry) MembersOf(roomID string) []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]*Member, len(members))
	copy(out, members)
	return out
}

// Find returns the member with the given id in the room, if present.
func (r *Registry) Find(roomID, userID string) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rooms[roomID] {
		if m.UserID == userID {
			return m, true
		}
	}
	return nil, false
}

// Contains reports whether the user is currently a member of the room.
func (r *Registry) Contains(userID, roomID string) bool {
	_, ok := r.Find(roomID, userID)
	return ok
}

// Broadcast delivers event to every current member of the room, the source
// included. The whole broadcast aborts if the room does not exist or the
// source is not a member. A failed send to one member is logged and skipped;
// one dead connection never blocks the rest of the room. Cleanup of dead
// members happens via their close signal, not here.
func (r *Registry) Broadcast(roomID, sourceUserID string, event any) error {
	r.mu.RLock()
	members, ok := r.rooms[roomID]
	var snapshot []*Member
	if ok {
		snapshot = make([]*Member, len(members))
		copy(snapshot, members)
	}
	r.mu.RUnlock()

	if !ok {
		r.log.Warn().Str("room", roomID).Msg("broadcast into unknown room")
		return ErrRoomNotFound
	}

	source := false
	for _, m := range snapshot {
		if m.UserID == sourceUserID {
			source = true
			break
		}
	}
	if !source {
		r.log.Warn().Str("room", roomID).Str("user", sourceUserID).Msg("broadcast by non-member")
		return ErrNotInRoom
	}

	for _, m := range snapshot {
		if err := m.Conn.Send(event); err != nil {
			r.log.Error().Err(err).Str("room", roomID).Str("user", m.UserID).Msg("send to member failed")
		}
	}
	return nil
}

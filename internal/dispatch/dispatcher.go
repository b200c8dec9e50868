// Package dispatch routes decoded inbound events onto the membership
// registry and the chat store, and fans the results back out.
package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/core"
	"github.com/upchat/upchat-server/internal/proto"
	"github.com/upchat/upchat-server/internal/store"
)

// Dispatcher is stateless routing glue between the transport and the core.
// It owns no room state; the worst outcome of any single event is "dropped
// and logged".
type Dispatcher struct {
	registry *core.Registry
	store    store.Store
	log      *zerolog.Logger
}

// New builds a dispatcher over the given registry and store.
func New(registry *core.Registry, st store.Store, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    st,
		log:      logger,
	}
}

// Dispatch handles one inbound event from conn. Malformed payloads and
// unknown types are dropped; the connection stays open.
func (d *Dispatcher) Dispatch(ctx context.Context, conn core.Conn, in proto.Inbound) {
	switch in.Type {
	case proto.TypeJoinRoom:
		var p proto.JoinRoomPayload
		if err := in.DecodePayload(&p); err != nil {
			d.log.Warn().Err(err).Msg("dropping bad event")
			return
		}
		d.registry.Join(p.RoomID, p.UserID, p.Name, conn)

	case proto.TypeSendMessage:
		var p proto.SendMessagePayload
		if err := in.DecodePayload(&p); err != nil {
			d.log.Warn().Err(err).Msg("dropping bad event")
			return
		}
		d.sendMessage(ctx, p)

	case proto.TypeUpvoteMessage:
		var p proto.UpvoteMessagePayload
		if err := in.DecodePayload(&p); err != nil {
			d.log.Warn().Err(err).Msg("dropping bad event")
			return
		}
		d.upvoteMessage(ctx, p)

	default:
		d.log.Warn().Str("type", in.Type).Msg("unsupported event type")
	}
}

func (d *Dispatcher) sendMessage(ctx context.Context, p proto.SendMessagePayload) {
	// Only current room members may post; the author's display name is
	// snapshotted from their membership, not from the payload.
	member, ok := d.registry.Find(p.RoomID, p.UserID)
	if !ok {
		d.log.Warn().Str("room", p.RoomID).Str("user", p.UserID).Msg("message from non-member dropped")
		return
	}

	chatID, err := d.store.AddChat(ctx, p.RoomID, p.UserID, member.Name, p.Message)
	if err != nil {
		d.log.Error().Err(err).Str("room", p.RoomID).Msg("add chat failed")
		return
	}

	event := proto.Envelope{Message: proto.AddChat(p.RoomID, chatID, p.Message, member.Name)}
	if err := d.registry.Broadcast(p.RoomID, p.UserID, event); err != nil {
		d.log.Warn().Err(err).Str("room", p.RoomID).Msg("add chat broadcast aborted")
	}
}

func (d *Dispatcher) upvoteMessage(ctx context.Context, p proto.UpvoteMessagePayload) {
	count, err := d.store.UpVote(ctx, p.UserID, p.RoomID, p.ChatID)
	if err != nil {
		d.log.Error().Err(err).Str("room", p.RoomID).Str("chat", p.ChatID).Msg("upvote failed")
		return
	}

	// The broadcast fires even when the upvote was a no-op or the chat is
	// unknown (count 0): every client resyncs on the authoritative count.
	event := proto.Envelope{Message: proto.UpdateChat(p.RoomID, p.ChatID, count)}
	if err := d.registry.Broadcast(p.RoomID, p.UserID, event); err != nil {
		d.log.Warn().Err(err).Str("room", p.RoomID).Msg("update chat broadcast aborted")
	}
}

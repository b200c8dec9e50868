// Command ws_smoke joins a room, posts a message, and prints every event it
// receives until the timeout. Handy for poking a running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/upchat/upchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "smoke-user", "user id")
	name := flag.String("name", "Smoke", "display name")
	room := flag.String("room", "general", "room id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Payload: data}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.TypeJoinRoom, proto.JoinRoomPayload{
		Name:   *name,
		UserID: *user,
		RoomID: *room,
	}); err != nil {
		return err
	}
	if err := send(proto.TypeSendMessage, proto.SendMessagePayload{
		UserID:  *user,
		RoomID:  *room,
		Message: *text,
	}); err != nil {
		return err
	}

	for {
		var envelope proto.Envelope
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		log.Printf("event %s: %+v", envelope.Message.Type, envelope.Message.Payload)
	}
}

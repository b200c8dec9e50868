package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/proto"
)

func dialWS(t *testing.T, ctx context.Context, env *testEnv) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Payload: data}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	var envelope proto.Envelope
	if err := wsjson.Read(ctx, conn, &envelope); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return envelope.Message
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestChatRoundTrip(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env)
	bob := dialWS(t, ctx, env)

	sendEvent(t, ctx, alice, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Alice", UserID: "u1", RoomID: "r1"})
	sendEvent(t, ctx, bob, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Bob", UserID: "u2", RoomID: "r1"})

	if !waitFor(t, 2*time.Second, func() bool { return len(env.registry.MembersOf("r1")) == 2 }) {
		t.Fatalf("both members should be in r1")
	}

	sendEvent(t, ctx, alice, proto.TypeSendMessage, proto.SendMessagePayload{UserID: "u1", RoomID: "r1", Message: "hi"})

	// The sender is echoed its own message; both clients get the same event.
	aliceEv := readEvent(t, ctx, alice)
	bobEv := readEvent(t, ctx, bob)

	for name, ev := range map[string]proto.Outbound{"alice": aliceEv, "bob": bobEv} {
		if ev.Type != proto.TypeAddChat {
			t.Fatalf("%s expected ADD_CHAT, got %s", name, ev.Type)
		}
		p := ev.Payload
		if p.RoomID != "r1" || p.Message != "hi" || p.Name != "Alice" || p.Upvotes != 0 {
			t.Fatalf("%s unexpected payload: %+v", name, p)
		}
	}
	if aliceEv.Payload.ChatID == "" || aliceEv.Payload.ChatID != bobEv.Payload.ChatID {
		t.Fatalf("both clients must see the same chat id")
	}

	chatID := aliceEv.Payload.ChatID

	// First upvote goes to 1; the repeat still broadcasts the same count.
	for _, want := range []int{1, 1} {
		sendEvent(t, ctx, bob, proto.TypeUpvoteMessage, proto.UpvoteMessagePayload{UserID: "u2", RoomID: "r1", ChatID: chatID})

		for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
			ev := readEvent(t, ctx, conn)
			if ev.Type != proto.TypeUpdateChat {
				t.Fatalf("%s expected UPDATE_CHAT, got %s", name, ev.Type)
			}
			if ev.Payload.ChatID != chatID || ev.Payload.Upvotes != want {
				t.Fatalf("%s unexpected payload: %+v", name, ev.Payload)
			}
		}
	}
}

func TestDisconnectRemovesMemberAndEmptyRoomIsDeleted(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env)
	bob := dialWS(t, ctx, env)

	sendEvent(t, ctx, alice, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Alice", UserID: "u1", RoomID: "r1"})
	sendEvent(t, ctx, bob, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Bob", UserID: "u2", RoomID: "r1"})

	if !waitFor(t, 2*time.Second, func() bool { return len(env.registry.MembersOf("r1")) == 2 }) {
		t.Fatalf("both members should be in r1")
	}

	alice.Close(websocket.StatusNormalClosure, "bye")
	if !waitFor(t, 2*time.Second, func() bool { return !env.registry.Contains("u1", "r1") }) {
		t.Fatalf("alice's disconnect should remove her from the room")
	}

	bob.Close(websocket.StatusNormalClosure, "bye")
	if !waitFor(t, 2*time.Second, func() bool { return len(env.registry.MembersOf("r1")) == 0 }) {
		t.Fatalf("r1 should be gone once its last member disconnects")
	}
}

func TestRateLimitDropsExcessEventsKeepsConnectionOpen(t *testing.T) {
	env := startTestServerWithConfig(t, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		SendBuffer:        32,
		MessageRateLimit:  2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env)

	// The join and the first message use up the per-minute allowance.
	sendEvent(t, ctx, alice, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Alice", UserID: "u1", RoomID: "r1"})
	if !waitFor(t, 2*time.Second, func() bool { return env.registry.Contains("u1", "r1") }) {
		t.Fatalf("join within the limit should register the member")
	}
	sendEvent(t, ctx, alice, proto.TypeSendMessage, proto.SendMessagePayload{UserID: "u1", RoomID: "r1", Message: "first"})
	sendEvent(t, ctx, alice, proto.TypeSendMessage, proto.SendMessagePayload{UserID: "u1", RoomID: "r1", Message: "too fast"})

	// The in-limit message still echoes back; events on a connection are
	// handled in order, so the over-limit one comes up right after it.
	ev := readEvent(t, ctx, alice)
	if ev.Type != proto.TypeAddChat || ev.Payload.Message != "first" {
		t.Fatalf("expected echo of the in-limit message, got %+v", ev)
	}

	chatCount := func() int {
		chats, err := env.store.GetChats(context.Background(), "r1", 10, 0)
		if err != nil {
			t.Fatalf("get chats: %v", err)
		}
		return len(chats)
	}

	// The over-limit event must be dropped without tearing the connection
	// down: no second chat appears and the membership survives.
	if waitFor(t, 500*time.Millisecond, func() bool { return chatCount() > 1 || !env.registry.Contains("u1", "r1") }) {
		t.Fatalf("event over the limit should be dropped with the connection left open")
	}
	if got := chatCount(); got != 1 {
		t.Fatalf("expected 1 stored chat, got %d", got)
	}
	if !env.registry.Contains("u1", "r1") {
		t.Fatalf("member should survive a dropped event")
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, env)

	if err := alice.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write malformed frame: %v", err)
	}

	// The connection must survive and still process a valid join.
	sendEvent(t, ctx, alice, proto.TypeJoinRoom, proto.JoinRoomPayload{Name: "Alice", UserID: "u1", RoomID: "r1"})
	if !waitFor(t, 2*time.Second, func() bool { return env.registry.Contains("u1", "r1") }) {
		t.Fatalf("connection should stay open after a malformed frame")
	}
}

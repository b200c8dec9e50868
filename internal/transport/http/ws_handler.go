package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/dispatch"
	"github.com/upchat/upchat-server/internal/proto"
)

const writeTimeout = 5 * time.Second

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsConn adapts a websocket connection to core.Conn. Send enqueues onto a
// bounded buffer drained by the handler's write loop, so a slow consumer
// surfaces as a send error instead of stalling a broadcast.
type wsConn struct {
	id     string
	events chan any
	closed chan struct{}

	mu       sync.Mutex
	once     sync.Once
	closeFns []func()
}

func newWSConn(buffer int) *wsConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsConn{
		id:     uuid.NewString(),
		events: make(chan any, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(event any) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.events <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) OnClose(fn func()) {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		fn()
		return
	default:
	}
	c.closeFns = append(c.closeFns, fn)
	c.mu.Unlock()
}

// close fires the registered hooks exactly once, even when the websocket
// teardown races an explicit leave.
func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		fns := c.closeFns
		c.closeFns = nil
		c.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

// WSHandler upgrades HTTP connections and bridges them to the dispatcher.
type WSHandler struct {
	dispatcher *dispatch.Dispatcher
	cfg        config.Config
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(dispatcher *dispatch.Dispatcher, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{dispatcher: dispatcher, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := newWSConn(h.cfg.SendBuffer)
	defer client.close()

	h.log.Info().Str("conn_id", client.id).Msg("connection accepted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	limiter := newRateLimiter(h.cfg.MessageRateLimit)
	limiter.startReset(client.closed)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	client.close() // membership cleanup must run before the server shuts the socket
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.id).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop decodes inbound frames and hands them to the dispatcher. A frame
// that is not valid JSON is dropped and reported; the connection stays open.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *wsConn, limiter *rateLimiter) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("conn_id", client.id).Msg("rate limit exceeded, dropping event")
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.id).Msg("unparseable inbound frame dropped")
			continue
		}

		h.dispatcher.Dispatch(ctx, client, inbound)
	}
}

// writeLoop drains the client's event queue onto the wire. Each write is
// bounded so one unresponsive peer cannot hold the goroutine forever.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsConn) error {
	for {
		select {
		case event := <-client.events:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, event)
			cancel()
			if err != nil {
				h.log.Error().Err(err).Str("conn_id", client.id).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

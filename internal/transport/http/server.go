package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/dispatch"
	"github.com/upchat/upchat-server/internal/store"
)

// NewServer builds the HTTP server: websocket relay plus REST history API.
// The websocket upgrade must hijack the connection, which gin's response
// writer refuses once the handshake is written, so /ws is mounted on a plain
// mux and gin serves the remaining routes.
func NewServer(dispatcher *dispatch.Dispatcher, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	engine.GET("/health", healthHandler)

	history := NewHistoryHandlers(st, logger)
	api := engine.Group("/api")
	api.GET("/rooms/:roomId/chats", history.ListChats)
	api.POST("/rooms/:roomId/reset", history.ResetRoom)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(dispatcher, cfg, logger))
	mux.Handle("/", engine)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	fmt.Fprint(c.Writer, "ok")
}

package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/store"
)

const defaultHistoryLimit = 50

// HistoryHandlers exposes chat history over REST.
type HistoryHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.Store, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		store: st,
		log:   logger,
	}
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ChatID  string `json:"chatId"`
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Upvotes int    `json:"upvotes"`
}

// ErrorResponse represents an API error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListChats returns a tail window of a room's history. Offset 0 is the most
// recent page; out-of-range windows return an empty list, never an error.
// GET /api/rooms/:roomId/chats?limit=&offset=
func (h *HistoryHandlers) ListChats(c *gin.Context) {
	roomID := c.Param("roomId")

	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "offset must be a non-negative integer"})
		return
	}

	chats, err := h.store.GetChats(c.Request.Context(), roomID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to load chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		response = append(response, ChatResponse{
			ChatID:  chat.ID,
			RoomID:  chat.RoomID,
			UserID:  chat.UserID,
			Name:    chat.Name,
			Message: chat.Message,
			Upvotes: len(chat.Upvotes),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chats": response})
}

// ResetRoom creates or resets a room's chat history.
// POST /api/rooms/:roomId/reset
func (h *HistoryHandlers) ResetRoom(c *gin.Context) {
	roomID := c.Param("roomId")

	if err := h.store.InitRoom(c.Request.Context(), roomID); err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to reset room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// errNegativeQueryValue marks query parameters that parse but are below zero,
// as opposed to values that are not integers at all.
var errNegativeQueryValue = errors.New("negative query value")

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s: %w", key, errNegativeQueryValue)
	}
	return v, nil
}

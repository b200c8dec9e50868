// Package sqlite persists chat history in a SQLite database. It is a drop-in
// replacement for the in-memory backend behind store.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id    TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	room_id    TEXT NOT NULL REFERENCES rooms(room_id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (room_id, id)
);

CREATE TABLE IF NOT EXISTS upvotes (
	chat_seq INTEGER NOT NULL REFERENCES chats(seq) ON DELETE CASCADE,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (chat_seq, user_id)
);
`

// Store implements store.Store on SQLite.
type Store struct {
	db  *sql.DB
	log *zerolog.Logger
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string, logger *zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitRoom creates or resets the room's history.
func (s *Store) InitRoom(ctx context.Context, roomID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin init room: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO rooms (room_id) VALUES (?)`, roomID); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("reset room history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit init room: %w", err)
	}

	s.log.Info().Str("room", roomID).Msg("room history initialized")
	return nil
}

// AddChat appends a chat to the room, creating the room lazily.
func (s *Store) AddChat(ctx context.Context, roomID, userID, name, message string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin add chat: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO rooms (room_id) VALUES (?)`, roomID); err != nil {
		return "", fmt.Errorf("ensure room: %w", err)
	}

	chatID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, room_id, user_id, name, message)
		VALUES (?, ?, ?, ?, ?)
	`, chatID, roomID, userID, name, message)
	if err != nil {
		return "", fmt.Errorf("insert chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit add chat: %w", err)
	}
	return chatID, nil
}

// UpVote records an upvote and returns the resulting count. Unknown rooms
// and chats yield 0; repeat upvotes leave the count unchanged.
func (s *Store) UpVote(ctx context.Context, userID, roomID, chatID string) (int, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM chats WHERE room_id = ? AND id = ?
	`, roomID, chatID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Warn().Str("room", roomID).Str("chat", chatID).Msg("upvote on unknown chat")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find chat: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO upvotes (chat_seq, user_id) VALUES (?, ?)
	`, seq, userID)
	if err != nil {
		return 0, fmt.Errorf("insert upvote: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Warn().Str("room", roomID).Str("chat", chatID).Str("user", userID).Msg("repeat upvote ignored")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM upvotes WHERE chat_seq = ?
	`, seq).Scan(&count); err != nil {
		return 0, fmt.Errorf("count upvotes: %w", err)
	}
	return count, nil
}

// GetChats returns a tail window of the room's history; see store.Store.
func (s *Store) GetChats(ctx context.Context, roomID string, limit, offset int) ([]store.Chat, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chats WHERE room_id = ?
	`, roomID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}

	start, end := store.TailWindow(total, limit, offset)
	if start == end {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, room_id, user_id, name, message
		FROM chats
		WHERE room_id = ?
		ORDER BY seq
		LIMIT ? OFFSET ?
	`, roomID, end-start, start)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	type row struct {
		seq  int64
		chat store.Chat
	}
	var page []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.chat.ID, &r.chat.RoomID, &r.chat.UserID, &r.chat.Name, &r.chat.Message); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	out := make([]store.Chat, 0, len(page))
	for _, r := range page {
		voters, err := s.chatVoters(ctx, r.seq)
		if err != nil {
			return nil, err
		}
		r.chat.Upvotes = voters
		out = append(out, r.chat)
	}
	return out, nil
}

func (s *Store) chatVoters(ctx context.Context, seq int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM upvotes WHERE chat_seq = ? ORDER BY rowid
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query upvotes: %w", err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan upvote: %w", err)
		}
		voters = append(voters, u)
	}
	return voters, rows.Err()
}

package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "social-chat/internal/pkg/chat/domain"
)

// PgChatRepository implements both the MessageStore and ConversationDirectory
// ports on PostgreSQL. The layout mirrors the document model: two tables
// related only by conversation_id (no foreign key; deletion cascades through
// the purge task), participants stored as a sorted text[] with a unique index,
// unread counters as an embedded jsonb map keyed by user id.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

// InitSchema creates the tables and indexes if they do not exist yet.
func (r *PgChatRepository) InitSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		participants TEXT[] NOT NULL,
		last_message_id UUID,
		unread_count JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_participants ON conversations(participants);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver_read ON messages(receiver_id, read);
	`)
	return err
}

// ===================== ConversationDirectory =====================

const conversationColumns = `id::text, participants, last_message_id::text, unread_count, created_at, updated_at`

func (r *PgChatRepository) FindOrCreate(ctx context.Context, participantIDs []string) (*chat.Conversation, bool, error) {
	if r == nil || r.pool == nil {
		return nil, false, errors.New("PgChatRepository: nil pool")
	}
	normalized, err := chat.NormalizeParticipants(participantIDs)
	if err != nil {
		return nil, false, err
	}

	conv, err := r.findByParticipants(ctx, normalized)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return nil, false, err
	}

	unread := make(map[string]int, len(normalized))
	for _, id := range normalized {
		unread[id] = 0
	}
	unreadJSON, err := json.Marshal(unread)
	if err != nil {
		return nil, false, err
	}

	// Create, falling back to a re-read when a concurrent first contact won
	// the unique-index race. The conflict never surfaces to the caller.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (participants, unread_count)
		VALUES ($1, $2)
		ON CONFLICT (participants) DO NOTHING
		RETURNING `+conversationColumns,
		normalized, unreadJSON,
	)
	conv, err = scanConversation(row)
	if err == nil {
		return conv, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	conv, err = r.findByParticipants(ctx, normalized)
	if err != nil {
		return nil, false, fmt.Errorf("%w: lost creation race and re-read failed: %v", chat.ErrConflict, err)
	}
	return conv, false, nil
}

func (r *PgChatRepository) findByParticipants(ctx context.Context, normalized []string) (*chat.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participants = $1
	`, normalized)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	return conv, err
}

func (r *PgChatRepository) Get(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return nil, chat.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1::uuid
	`, conversationID)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	return conv, err
}

func (r *PgChatRepository) RecordNewMessage(ctx context.Context, conversationID string, msg *chat.Message, receiverID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return nil, chat.ErrNotFound
	}
	// Single statement so the pointer, the counter and the recency ordering
	// key move together.
	row := r.pool.QueryRow(ctx, `
		UPDATE conversations
		SET last_message_id = $2::uuid,
		    unread_count = jsonb_set(unread_count, ARRAY[$3], (COALESCE(unread_count->>$3, '0')::int + 1)::text::jsonb),
		    updated_at = NOW()
		WHERE id = $1::uuid
		RETURNING `+conversationColumns,
		conversationID, msg.ID, receiverID,
	)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	return conv, err
}

func (r *PgChatRepository) ResetUnread(ctx context.Context, conversationID, participantID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return nil, chat.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE conversations
		SET unread_count = jsonb_set(unread_count, ARRAY[$2], '0'::jsonb)
		WHERE id = $1::uuid
		RETURNING `+conversationColumns,
		conversationID, participantID,
	)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	return conv, err
}

func (r *PgChatRepository) ListForUser(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.participants, c.last_message_id::text, c.unread_count, c.created_at, c.updated_at,
		       m.id::text, m.conversation_id::text, m.sender_id, m.receiver_id, m.content, m.read, m.created_at
		FROM conversations c
		LEFT JOIN messages m ON m.id = c.last_message_id
		WHERE $1 = ANY(c.participants)
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []chat.Conversation
	for rows.Next() {
		var (
			conv       chat.Conversation
			unreadJSON []byte
			// LEFT JOIN misses leave every message column NULL.
			mID, mConvID, mSender, mReceiver, mContent *string
			mRead                                      *bool
			mCreatedAt                                 *time.Time
		)
		if err := rows.Scan(
			&conv.ID, &conv.Participants, &conv.LastMessageID, &unreadJSON, &conv.CreatedAt, &conv.UpdatedAt,
			&mID, &mConvID, &mSender, &mReceiver, &mContent, &mRead, &mCreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(unreadJSON, &conv.UnreadCount); err != nil {
			return nil, err
		}
		if mID != nil {
			conv.LastMessage = &chat.Message{
				ID:             *mID,
				ConversationID: *mConvID,
				SenderID:       *mSender,
				ReceiverID:     *mReceiver,
				Content:        *mContent,
				Read:           *mRead,
				CreatedAt:      *mCreatedAt,
			}
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *PgChatRepository) Delete(ctx context.Context, conversationID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return chat.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1::uuid`, conversationID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// ===================== MessageStore =====================

func (r *PgChatRepository) Append(ctx context.Context, conversationID, senderID, receiverID, content string) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgChatRepository: nil pool")
	}
	conv, err := r.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) || !conv.HasParticipant(receiverID) {
		return nil, chat.ErrNotFound
	}

	msg, err := chat.NewMessage(chat.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, read, created_at)
		VALUES ($1::uuid, $2, $3, $4, FALSE, $5)
		RETURNING id::text, created_at
	`, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *PgChatRepository) ListByConversation(ctx context.Context, conversationID string, page, limit int) ([]chat.Message, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return nil, 0, chat.ErrNotFound
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1::uuid`,
		conversationID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id, receiver_id, content, read, created_at
		FROM messages
		WHERE conversation_id = $1::uuid
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs := make([]chat.Message, 0, limit)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}

func (r *PgChatRepository) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return 0, chat.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET read = TRUE
		WHERE conversation_id = $1::uuid AND receiver_id = $2 AND read = FALSE
	`, conversationID, receiverID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgChatRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgChatRepository: nil pool")
	}
	if uuid.Validate(conversationID) != nil {
		return chat.ErrNotFound
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1::uuid`, conversationID)
	return err
}

func scanConversation(row pgx.Row) (*chat.Conversation, error) {
	var (
		conv       chat.Conversation
		unreadJSON []byte
	)
	if err := row.Scan(&conv.ID, &conv.Participants, &conv.LastMessageID, &unreadJSON, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(unreadJSON, &conv.UnreadCount); err != nil {
		return nil, err
	}
	return &conv, nil
}

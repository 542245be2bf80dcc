package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wellbeing-companion/internal/domain"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) Append(ctx context.Context, sessionID string, message domain.ChatMessage) (domain.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ChatMessage{}, storageErr("begin append", err)
	}
	defer tx.Rollback(ctx)

	// El lock de sesión serializa appends concurrentes sobre la misma sesión.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "chat_session:"+sessionID); err != nil {
		return domain.ChatMessage{}, storageErr("lock session", err)
	}

	// FOR UPDATE bloquea un End o un reemplazo concurrente hasta el commit.
	var endedAt *time.Time
	err = tx.QueryRow(ctx, `SELECT ended_at FROM chat_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&endedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatMessage{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.ChatMessage{}, storageErr("lock session row", err)
	}
	if endedAt != nil {
		return domain.ChatMessage{}, ErrSessionEnded
	}

	const lastQuery = `
		SELECT COALESCE(MAX(seq), 0), MAX(created_at)
		FROM chat_messages
		WHERE session_id = $1
	`
	var (
		lastSeq  int64
		lastTime *time.Time
	)
	if err := tx.QueryRow(ctx, lastQuery, sessionID).Scan(&lastSeq, &lastTime); err != nil {
		return domain.ChatMessage{}, storageErr("read last message", err)
	}

	var previous time.Time
	if lastTime != nil {
		previous = *lastTime
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.SafetyFlag == "" {
		message.SafetyFlag = domain.SafetyFlagNone
	}
	message.SessionID = sessionID
	message.Seq = lastSeq + 1
	message.CreatedAt = nextCreatedAt(message.CreatedAt, previous)

	var tool *string
	if message.SuggestedTool != nil {
		v := string(*message.SuggestedTool)
		tool = &v
	}

	const insert = `
		INSERT INTO chat_messages (id, session_id, seq, sender, text, safety_flag, suggested_tool, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.Exec(ctx, insert,
		message.ID,
		message.SessionID,
		message.Seq,
		string(message.Sender),
		message.Text,
		string(message.SafetyFlag),
		tool,
		message.CreatedAt,
	); err != nil {
		return domain.ChatMessage{}, storageErr("insert message", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE chat_sessions SET last_activity_at = GREATEST(last_activity_at, $2) WHERE id = $1`, sessionID, message.CreatedAt); err != nil {
		return domain.ChatMessage{}, storageErr("touch session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ChatMessage{}, storageErr("commit append", err)
	}
	return message, nil
}

func (r *PgChatRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := r.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	const query = `
		SELECT id, session_id, seq, sender, text, safety_flag, suggested_tool, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg    domain.ChatMessage
			sender string
			flag   string
			tool   *string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &sender, &msg.Text, &flag, &tool, &msg.CreatedAt); err != nil {
			return nil, storageErr("scan message", err)
		}
		msg.Sender = domain.Sender(sender)
		msg.SafetyFlag = domain.SafetyFlag(flag)
		if tool != nil {
			id := domain.ToolID(*tool)
			msg.SuggestedTool = &id
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}
	return messages, nil
}

func (r *PgChatRepository) GetOrCreateActive(ctx context.Context, deviceID string, staleness time.Duration, now time.Time) (domain.ChatSession, error) {
	now = now.UTC()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ChatSession{}, storageErr("begin resolve session", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "chat_device:"+deviceID); err != nil {
		return domain.ChatSession{}, storageErr("lock device", err)
	}

	const latest = `
		SELECT id, device_id, created_at, ended_at, last_activity_at, crisis_flag, crisis_flag_reason
		FROM chat_sessions
		WHERE device_id = $1 AND ended_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	session, err := scanSession(tx.QueryRow(ctx, latest, deviceID))
	switch {
	case err == nil:
		if !session.IsStale(now, staleness) {
			// Cualquier otra sesión abierta más vieja queda reemplazada.
			if _, err := tx.Exec(ctx, `UPDATE chat_sessions SET ended_at = $3 WHERE device_id = $1 AND id <> $2 AND ended_at IS NULL`, deviceID, session.ID, now); err != nil {
				return domain.ChatSession{}, storageErr("end superseded sessions", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return domain.ChatSession{}, storageErr("commit resolve session", err)
			}
			return session, nil
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return domain.ChatSession{}, storageErr("find active session", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE chat_sessions SET ended_at = $2 WHERE device_id = $1 AND ended_at IS NULL`, deviceID, now); err != nil {
		return domain.ChatSession{}, storageErr("end stale sessions", err)
	}

	created := domain.ChatSession{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	const insert = `
		INSERT INTO chat_sessions (id, device_id, created_at, last_activity_at, crisis_flag)
		VALUES ($1, $2, $3, $4, FALSE)
	`
	if _, err := tx.Exec(ctx, insert, created.ID, created.DeviceID, created.CreatedAt, created.LastActivityAt); err != nil {
		return domain.ChatSession{}, storageErr("create session", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ChatSession{}, storageErr("commit resolve session", err)
	}
	return created, nil
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.ChatSession, error) {
	const query = `
		SELECT id, device_id, created_at, ended_at, last_activity_at, crisis_flag, crisis_flag_reason
		FROM chat_sessions
		WHERE id = $1
	`
	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.ChatSession{}, storageErr("get session", err)
	}
	return session, nil
}

func (r *PgChatRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE chat_sessions SET ended_at = COALESCE(ended_at, $2) WHERE id = $1`, id, endedAt.UTC())
	if err != nil {
		return storageErr("end session", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PgChatRepository) MarkCrisis(ctx context.Context, id, reason string) error {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	const query = `
		UPDATE chat_sessions
		SET crisis_flag = TRUE,
		    crisis_flag_reason = CASE WHEN crisis_flag THEN crisis_flag_reason ELSE $2 END
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, reasonArg)
	if err != nil {
		return storageErr("mark crisis", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PgChatRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanSession(row pgx.Row) (domain.ChatSession, error) {
	var s domain.ChatSession
	if err := row.Scan(&s.ID, &s.DeviceID, &s.CreatedAt, &s.EndedAt, &s.LastActivityAt, &s.CrisisFlag, &s.CrisisFlagReason); err != nil {
		return domain.ChatSession{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastActivityAt = s.LastActivityAt.UTC()
	if s.EndedAt != nil {
		t := s.EndedAt.UTC()
		s.EndedAt = &t
	}
	return s, nil
}

var _ ChatStore = (*PgChatRepository)(nil)

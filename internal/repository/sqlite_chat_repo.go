package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"wellbeing-companion/internal/domain"
)

// SQLiteChatRepository persiste el chat en un archivo SQLite local.
// Los timestamps se guardan como nanosegundos unix.
type SQLiteChatRepository struct {
	db *sql.DB
}

func NewSQLiteChatRepository(db *sql.DB) *SQLiteChatRepository {
	return &SQLiteChatRepository{db: db}
}

func (r *SQLiteChatRepository) Append(ctx context.Context, sessionID string, message domain.ChatMessage) (domain.ChatMessage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatMessage{}, storageErr("begin append", err)
	}
	defer tx.Rollback()

	var endedAt sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT ended_at_ns FROM chat_sessions WHERE id = ?`, sessionID).Scan(&endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatMessage{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.ChatMessage{}, storageErr("check session", err)
	}
	if endedAt.Valid {
		return domain.ChatMessage{}, ErrSessionEnded
	}

	var (
		lastSeq  int64
		lastNano sql.NullInt64
	)
	const lastQuery = `SELECT COALESCE(MAX(seq), 0), MAX(created_at_ns) FROM chat_messages WHERE session_id = ?`
	if err := tx.QueryRowContext(ctx, lastQuery, sessionID).Scan(&lastSeq, &lastNano); err != nil {
		return domain.ChatMessage{}, storageErr("read last message", err)
	}

	var previous time.Time
	if lastNano.Valid {
		previous = time.Unix(0, lastNano.Int64).UTC()
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

	var tool sql.NullString
	if message.SuggestedTool != nil {
		tool = sql.NullString{String: string(*message.SuggestedTool), Valid: true}
	}

	const insert = `
		INSERT INTO chat_messages (id, session_id, seq, sender, text, safety_flag, suggested_tool, created_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insert,
		message.ID,
		message.SessionID,
		message.Seq,
		string(message.Sender),
		message.Text,
		string(message.SafetyFlag),
		tool,
		message.CreatedAt.UnixNano(),
	); err != nil {
		return domain.ChatMessage{}, storageErr("insert message", err)
	}

	const touch = `UPDATE chat_sessions SET last_activity_at_ns = MAX(last_activity_at_ns, ?) WHERE id = ?`
	if _, err := tx.ExecContext(ctx, touch, message.CreatedAt.UnixNano(), sessionID); err != nil {
		return domain.ChatMessage{}, storageErr("touch session", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ChatMessage{}, storageErr("commit append", err)
	}
	return message, nil
}

func (r *SQLiteChatRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := r.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}

	const query = `
		SELECT id, session_id, seq, sender, text, safety_flag, suggested_tool, created_at_ns
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg     domain.ChatMessage
			sender  string
			flag    string
			tool    sql.NullString
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &sender, &msg.Text, &flag, &tool, &created); err != nil {
			return nil, storageErr("scan message", err)
		}
		msg.Sender = domain.Sender(sender)
		msg.SafetyFlag = domain.SafetyFlag(flag)
		if tool.Valid {
			id := domain.ToolID(tool.String)
			msg.SuggestedTool = &id
		}
		msg.CreatedAt = time.Unix(0, created).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}
	return messages, nil
}

func (r *SQLiteChatRepository) GetOrCreateActive(ctx context.Context, deviceID string, staleness time.Duration, now time.Time) (domain.ChatSession, error) {
	now = now.UTC().Truncate(time.Microsecond)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatSession{}, storageErr("begin resolve session", err)
	}
	defer tx.Rollback()

	const latest = `
		SELECT id, device_id, created_at_ns, ended_at_ns, last_activity_at_ns, crisis_flag, crisis_flag_reason
		FROM chat_sessions
		WHERE device_id = ? AND ended_at_ns IS NULL
		ORDER BY created_at_ns DESC
		LIMIT 1
	`
	session, err := scanSQLiteSession(tx.QueryRowContext(ctx, latest, deviceID))
	switch {
	case err == nil:
		if !session.IsStale(now, staleness) {
			const endOthers = `UPDATE chat_sessions SET ended_at_ns = ? WHERE device_id = ? AND id <> ? AND ended_at_ns IS NULL`
			if _, err := tx.ExecContext(ctx, endOthers, now.UnixNano(), deviceID, session.ID); err != nil {
				return domain.ChatSession{}, storageErr("end superseded sessions", err)
			}
			if err := tx.Commit(); err != nil {
				return domain.ChatSession{}, storageErr("commit resolve session", err)
			}
			return session, nil
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return domain.ChatSession{}, storageErr("find active session", err)
	}

	const endAll = `UPDATE chat_sessions SET ended_at_ns = ? WHERE device_id = ? AND ended_at_ns IS NULL`
	if _, err := tx.ExecContext(ctx, endAll, now.UnixNano(), deviceID); err != nil {
		return domain.ChatSession{}, storageErr("end stale sessions", err)
	}

	created := domain.ChatSession{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	const insert = `
		INSERT INTO chat_sessions (id, device_id, created_at_ns, last_activity_at_ns, crisis_flag)
		VALUES (?, ?, ?, ?, 0)
	`
	if _, err := tx.ExecContext(ctx, insert, created.ID, created.DeviceID, now.UnixNano(), now.UnixNano()); err != nil {
		return domain.ChatSession{}, storageErr("create session", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.ChatSession{}, storageErr("commit resolve session", err)
	}
	return created, nil
}

func (r *SQLiteChatRepository) GetByID(ctx context.Context, id string) (domain.ChatSession, error) {
	const query = `
		SELECT id, device_id, created_at_ns, ended_at_ns, last_activity_at_ns, crisis_flag, crisis_flag_reason
		FROM chat_sessions
		WHERE id = ?
	`
	session, err := scanSQLiteSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.ChatSession{}, storageErr("get session", err)
	}
	return session, nil
}

func (r *SQLiteChatRepository) End(ctx context.Context, id string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_sessions SET ended_at_ns = COALESCE(ended_at_ns, ?) WHERE id = ?`, endedAt.UTC().UnixNano(), id)
	if err != nil {
		return storageErr("end session", err)
	}
	return requireAffected(res)
}

func (r *SQLiteChatRepository) MarkCrisis(ctx context.Context, id, reason string) error {
	var reasonArg sql.NullString
	if reason != "" {
		reasonArg = sql.NullString{String: reason, Valid: true}
	}
	const query = `
		UPDATE chat_sessions
		SET crisis_flag_reason = CASE WHEN crisis_flag = 1 THEN crisis_flag_reason ELSE ? END,
		    crisis_flag = 1
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, reasonArg, id)
	if err != nil {
		return storageErr("mark crisis", err)
	}
	return requireAffected(res)
}

func (r *SQLiteChatRepository) Close() error {
	return r.db.Close()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanSQLiteSession(row *sql.Row) (domain.ChatSession, error) {
	var (
		s        domain.ChatSession
		created  int64
		ended    sql.NullInt64
		activity int64
		crisis   int64
		reason   sql.NullString
	)
	if err := row.Scan(&s.ID, &s.DeviceID, &created, &ended, &activity, &crisis, &reason); err != nil {
		return domain.ChatSession{}, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.LastActivityAt = time.Unix(0, activity).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	s.CrisisFlag = crisis != 0
	if reason.Valid {
		r := reason.String
		s.CrisisFlagReason = &r
	}
	return s, nil
}

var _ ChatStore = (*SQLiteChatRepository)(nil)

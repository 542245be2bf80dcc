package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wellbeing-companion/internal/config"
	"wellbeing-companion/internal/db"
	"wellbeing-companion/internal/domain"
)

type storeFactory func(t *testing.T) ChatStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) ChatStore {
			return NewMemoryChatRepository()
		},
		"sqlite": func(t *testing.T) ChatStore {
			conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
			require.NoError(t, err)
			store := NewSQLiteChatRepository(conn)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		"postgres": func(t *testing.T) ChatStore {
			url := os.Getenv("TEST_DATABASE_URL")
			if url == "" {
				t.Skip("TEST_DATABASE_URL not set")
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, &config.Config{DatabaseURL: url})
			require.NoError(t, err)
			require.NoError(t, db.EnsureSchema(ctx, pool))
			_, err = pool.Exec(ctx, `TRUNCATE chat_messages, chat_sessions`)
			require.NoError(t, err)
			store := NewPgChatRepository(pool)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func TestChatStore_Contract(t *testing.T) {
	for name, factory := range storeFactories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("resume within window", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

				first, err := store.GetOrCreateActive(ctx, "dev-1", 4*time.Hour, now)
				require.NoError(t, err)
				again, err := store.GetOrCreateActive(ctx, "dev-1", 4*time.Hour, now.Add(time.Hour))
				require.NoError(t, err)
				require.Equal(t, first.ID, again.ID)
				require.Nil(t, again.EndedAt)
			})

			t.Run("stale session is superseded", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

				first, err := store.GetOrCreateActive(ctx, "dev-1", 4*time.Hour, now)
				require.NoError(t, err)
				_, err = store.Append(ctx, first.ID, domain.ChatMessage{Sender: domain.SenderUser, Text: "hola", CreatedAt: now.Add(time.Hour)})
				require.NoError(t, err)

				// La actividad del mensaje extiende la ventana.
				resumed, err := store.GetOrCreateActive(ctx, "dev-1", 4*time.Hour, now.Add(4*time.Hour+30*time.Minute))
				require.NoError(t, err)
				require.Equal(t, first.ID, resumed.ID)

				later := now.Add(10 * time.Hour)
				second, err := store.GetOrCreateActive(ctx, "dev-1", 4*time.Hour, later)
				require.NoError(t, err)
				require.NotEqual(t, first.ID, second.ID)

				old, err := store.GetByID(ctx, first.ID)
				require.NoError(t, err)
				require.NotNil(t, old.EndedAt)
				require.True(t, old.EndedAt.Equal(later))
			})

			t.Run("devices are independent", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Now().UTC()

				a, err := store.GetOrCreateActive(ctx, "dev-a", time.Hour, now)
				require.NoError(t, err)
				b, err := store.GetOrCreateActive(ctx, "dev-b", time.Hour, now)
				require.NoError(t, err)
				require.NotEqual(t, a.ID, b.ID)
			})

			t.Run("explicit end forces new session", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Now().UTC()

				s, err := store.GetOrCreateActive(ctx, "dev-1", time.Hour, now)
				require.NoError(t, err)
				require.NoError(t, store.End(ctx, s.ID, now.Add(time.Minute)))
				require.NoError(t, store.End(ctx, s.ID, now.Add(time.Hour)))

				ended, err := store.GetByID(ctx, s.ID)
				require.NoError(t, err)
				require.True(t, ended.EndedAt.Equal(now.Add(time.Minute).Truncate(time.Microsecond)) || ended.EndedAt.Equal(now.Add(time.Minute)))

				next, err := store.GetOrCreateActive(ctx, "dev-1", time.Hour, now.Add(2*time.Minute))
				require.NoError(t, err)
				require.NotEqual(t, s.ID, next.ID)
			})

			t.Run("append assigns strict order", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

				s, err := store.GetOrCreateActive(ctx, "dev-1", time.Hour, now)
				require.NoError(t, err)

				tool := domain.ToolBoxBreathing
				m1, err := store.Append(ctx, s.ID, domain.ChatMessage{Sender: domain.SenderUser, Text: "uno", CreatedAt: now})
				require.NoError(t, err)
				m2, err := store.Append(ctx, s.ID, domain.ChatMessage{Sender: domain.SenderCompanion, Text: "dos", CreatedAt: now, SafetyFlag: domain.SafetyFlagCrisisDetected, SuggestedTool: &tool})
				require.NoError(t, err)

				require.Equal(t, int64(1), m1.Seq)
				require.Equal(t, int64(2), m2.Seq)
				require.True(t, m2.CreatedAt.After(m1.CreatedAt))
				require.NotEmpty(t, m1.ID)
				require.Equal(t, domain.SafetyFlagNone, m1.SafetyFlag)

				msgs, err := store.ListBySessionID(ctx, s.ID)
				require.NoError(t, err)
				require.Len(t, msgs, 2)
				require.Equal(t, "uno", msgs[0].Text)
				require.Equal(t, "dos", msgs[1].Text)
				require.Equal(t, domain.SafetyFlagCrisisDetected, msgs[1].SafetyFlag)
				require.NotNil(t, msgs[1].SuggestedTool)
				require.Equal(t, domain.ToolBoxBreathing, *msgs[1].SuggestedTool)
			})

			t.Run("crisis flag keeps first reason", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				s, err := store.GetOrCreateActive(ctx, "dev-1", time.Hour, time.Now())
				require.NoError(t, err)
				require.NoError(t, store.MarkCrisis(ctx, s.ID, "hurt myself"))
				require.NoError(t, store.MarkCrisis(ctx, s.ID, "end it all"))

				got, err := store.GetByID(ctx, s.ID)
				require.NoError(t, err)
				require.True(t, got.CrisisFlag)
				require.NotNil(t, got.CrisisFlagReason)
				require.Equal(t, "hurt myself", *got.CrisisFlagReason)
			})

			t.Run("ended session rejects appends", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Now().UTC()

				s, err := store.GetOrCreateActive(ctx, "dev-1", time.Hour, now)
				require.NoError(t, err)
				_, err = store.Append(ctx, s.ID, domain.ChatMessage{Sender: domain.SenderUser, Text: "antes", CreatedAt: now})
				require.NoError(t, err)
				require.NoError(t, store.End(ctx, s.ID, now.Add(time.Minute)))

				_, err = store.Append(ctx, s.ID, domain.ChatMessage{Sender: domain.SenderCompanion, Text: "despues"})
				require.ErrorIs(t, err, ErrSessionEnded)
				var se *StorageError
				require.False(t, errors.As(err, &se))

				msgs, err := store.ListBySessionID(ctx, s.ID)
				require.NoError(t, err)
				require.Len(t, msgs, 1)

				// Una sesión reemplazada también queda cerrada para appends.
				next, err := store.GetOrCreateActive(ctx, "dev-2", time.Hour, now)
				require.NoError(t, err)
				_, err = store.GetOrCreateActive(ctx, "dev-2", time.Hour, now.Add(3*time.Hour))
				require.NoError(t, err)
				_, err = store.Append(ctx, next.ID, domain.ChatMessage{Sender: domain.SenderUser, Text: "tarde"})
				require.ErrorIs(t, err, ErrSessionEnded)
			})

			t.Run("unknown session", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				_, err := store.GetByID(ctx, "missing")
				require.ErrorIs(t, err, ErrSessionNotFound)
				_, err = store.Append(ctx, "missing", domain.ChatMessage{Sender: domain.SenderUser, Text: "x"})
				require.ErrorIs(t, err, ErrSessionNotFound)
				require.ErrorIs(t, store.End(ctx, "missing", time.Now()), ErrSessionNotFound)
				require.ErrorIs(t, store.MarkCrisis(ctx, "missing", ""), ErrSessionNotFound)
			})

			t.Run("concurrent sessions never interleave", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				now := time.Now().UTC()

				a, err := store.GetOrCreateActive(ctx, "dev-a", time.Hour, now)
				require.NoError(t, err)
				b, err := store.GetOrCreateActive(ctx, "dev-b", time.Hour, now)
				require.NoError(t, err)

				var wg sync.WaitGroup
				for _, id := range []string{a.ID, b.ID} {
					wg.Add(1)
					go func(sessionID string) {
						defer wg.Done()
						for i := 0; i < 20; i++ {
							_, err := store.Append(ctx, sessionID, domain.ChatMessage{Sender: domain.SenderUser, Text: fmt.Sprintf("%d", i)})
							if err != nil {
								t.Errorf("append: %v", err)
								return
							}
						}
					}(id)
				}
				wg.Wait()

				for _, id := range []string{a.ID, b.ID} {
					msgs, err := store.ListBySessionID(ctx, id)
					require.NoError(t, err)
					require.Len(t, msgs, 20)
					for i, m := range msgs {
						require.Equal(t, fmt.Sprintf("%d", i), m.Text)
						require.Equal(t, int64(i+1), m.Seq)
						if i > 0 {
							require.True(t, m.CreatedAt.After(msgs[i-1].CreatedAt))
						}
					}
				}
			})
		})
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	base := errors.New("disk full")
	err := storageErr("insert message", base)

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if se.Op != "insert message" || !errors.Is(err, base) {
		t.Fatalf("unexpected wrapping: %+v", se)
	}
	if again := storageErr("outer", err); again != err {
		t.Fatalf("expected existing StorageError to be kept, got %v", again)
	}
	if storageErr("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestNextCreatedAt(t *testing.T) {
	prev := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := nextCreatedAt(prev.Add(-time.Second), prev); !got.Equal(prev.Add(time.Microsecond)) {
		t.Fatalf("expected clamp after previous, got %s", got)
	}
	if got := nextCreatedAt(prev.Add(time.Second), prev); !got.Equal(prev.Add(time.Second)) {
		t.Fatalf("expected candidate kept, got %s", got)
	}
	if got := nextCreatedAt(prev, time.Time{}); !got.Equal(prev) {
		t.Fatalf("expected candidate when no previous, got %s", got)
	}
}

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"wellbeing-companion/internal/domain"
)

type fakeArkModel struct {
	out   *schema.Message
	err   error
	input []*schema.Message
}

func (f *fakeArkModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	return f.out, f.err
}

func TestArkClientGenerate(t *testing.T) {
	fake := &fakeArkModel{out: schema.AssistantMessage(`{"reply":"I'm listening.","suggested_tool":"journal_prompt"}`, nil)}
	c := newArkClient(fake, 10, nil)

	history := []domain.ChatMessage{
		{Sender: domain.SenderCompanion, Text: "Welcome back."},
		{Sender: domain.SenderUser, Text: "rough week"},
	}
	reply, err := c.Generate(context.Background(), history, "work is a lot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "I'm listening." || reply.SuggestedTool == nil || *reply.SuggestedTool != domain.ToolJournalPrompt {
		t.Fatalf("unexpected reply %+v", reply)
	}

	wantRoles := []schema.RoleType{schema.System, schema.Assistant, schema.User, schema.User}
	if len(fake.input) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(fake.input))
	}
	for i, r := range wantRoles {
		if fake.input[i].Role != r {
			t.Fatalf("message %d role = %s, want %s", i, fake.input[i].Role, r)
		}
	}
}

func TestArkClientErrors(t *testing.T) {
	t.Run("falla del sdk", func(t *testing.T) {
		c := newArkClient(&fakeArkModel{err: errors.New("boom")}, 0, nil)
		_, err := c.Generate(context.Background(), nil, "hi")
		if !IsKind(err, KindUpstream) {
			t.Fatalf("expected upstream, got %v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		c := newArkClient(&fakeArkModel{err: context.DeadlineExceeded}, 0, nil)
		_, err := c.Generate(context.Background(), nil, "hi")
		if !IsKind(err, KindTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
	})

	t.Run("respuesta vacia", func(t *testing.T) {
		c := newArkClient(&fakeArkModel{out: schema.AssistantMessage("", nil)}, 0, nil)
		_, err := c.Generate(context.Background(), nil, "hi")
		if !IsKind(err, KindMalformed) {
			t.Fatalf("expected malformed, got %v", err)
		}
	})
}

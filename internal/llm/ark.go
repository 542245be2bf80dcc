package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"wellbeing-companion/internal/domain"
)

const ProviderArk = "ark"

// arkChatModel es el subconjunto de model.BaseChatModel que usamos.
type arkChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ArkConfig replica las credenciales que acepta el modelo de Volcengine Ark.
type ArkConfig struct {
	BaseURL   string
	Region    string
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
}

// ArkClient implementa Generator usando eino sobre Ark.
type ArkClient struct {
	chat         arkChatModel
	historyLimit int
	system       string
	logger       *zap.Logger
}

func NewArkClient(ctx context.Context, cfg ArkConfig, historyLimit int, logger *zap.Logger) (*ArkClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("ark model is required")
	}
	if cfg.APIKey == "" && (cfg.AccessKey == "" || cfg.SecretKey == "") {
		return nil, errors.New("ark needs an api key or an access/secret key pair")
	}
	chat, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Model:     cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return newArkClient(chat, historyLimit, logger), nil
}

func newArkClient(chat arkChatModel, historyLimit int, logger *zap.Logger) *ArkClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArkClient{
		chat:         chat,
		historyLimit: historyLimit,
		system:       BuildSystemPrompt(domain.CopingTools()),
		logger:       logger,
	}
}

func (c *ArkClient) Generate(ctx context.Context, history []domain.ChatMessage, utterance string) (Reply, error) {
	turns := BuildTurns(c.system, history, utterance, c.historyLimit)
	input := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			input = append(input, schema.SystemMessage(t.Content))
		case RoleAssistant:
			input = append(input, schema.AssistantMessage(t.Content, nil))
		default:
			input = append(input, schema.UserMessage(t.Content))
		}
	}

	out, err := c.chat.Generate(ctx, input)
	if err != nil {
		c.logger.Warn("ark generate failed", zap.Error(err))
		return Reply{}, classifySDKErr(ProviderArk, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return Reply{}, genErr(ProviderArk, KindMalformed, errEmptyReply)
	}
	reply, err := ParseReply(out.Content)
	if err != nil {
		return Reply{}, genErr(ProviderArk, KindMalformed, err)
	}
	return reply, nil
}

// classifySDKErr es para SDKs que no exponen el status HTTP.
func classifySDKErr(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isNetErr(err) {
		return classifyTransportErr(provider, err)
	}
	return genErr(provider, KindUpstream, err)
}

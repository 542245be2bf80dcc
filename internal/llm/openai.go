package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"wellbeing-companion/internal/domain"
)

const ProviderOpenAI = "openai"

// HTTPClient implementa Generator contra una API chat/completions compatible con OpenAI.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	model        string
	historyLimit int
	system       string
	client       *http.Client
	logger       *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(baseURL, apiKey, model string, historyLimit int, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		historyLimit: historyLimit,
		system:       BuildSystemPrompt(domain.CopingTools()),
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (c *HTTPClient) Generate(ctx context.Context, history []domain.ChatMessage, utterance string) (Reply, error) {
	turns := BuildTurns(c.system, history, utterance, c.historyLimit)
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       make([]chatMessage, 0, len(turns)),
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	for _, t := range turns {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: t.Role, Content: t.Content})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, genErr(ProviderOpenAI, KindMalformed, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return Reply{}, genErr(ProviderOpenAI, KindNetwork, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Reply{}, classifyTransportErr(ProviderOpenAI, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, classifyTransportErr(ProviderOpenAI, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		c.logger.Warn("llm error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(respBody), 512)),
		)
		return Reply{}, genErr(ProviderOpenAI, kindForStatus(resp.StatusCode), fmt.Errorf("llm http error: status=%d", resp.StatusCode))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return Reply{}, genErr(ProviderOpenAI, KindMalformed, fmt.Errorf("unmarshal response: %w", err))
	}
	if cr.Error != nil {
		return Reply{}, genErr(ProviderOpenAI, KindUpstream, fmt.Errorf("llm api error: %s", cr.Error.Message))
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return Reply{}, genErr(ProviderOpenAI, KindMalformed, errEmptyReply)
	}

	reply, err := ParseReply(cr.Choices[0].Message.Content)
	if err != nil {
		return Reply{}, genErr(ProviderOpenAI, KindMalformed, err)
	}
	return reply, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

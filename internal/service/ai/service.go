package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"mooai/internal/config"
	"mooai/internal/metrics"
	"mooai/internal/models"
)

var ErrEmptyCompletion = errors.New("completion returned no content")

// newChatModel builds the provider specific chat model. Tests replace it.
var newChatModel = func(ctx context.Context, provider string, pc config.ProviderConfig) (model.BaseChatModel, error) {
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			APIKey:  pc.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: pc.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  pc.Model,
		})
	case "claude":
		var baseURLPtr *string
		if pc.BaseURL != "" {
			baseURLPtr = &pc.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	case "deepseek":
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	case "ark":
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

type aiService struct {
	provider  string
	model     string
	chatModel model.BaseChatModel
	metrics   *metrics.Metrics
}

// NewAiService builds the completion client for one provider. The model and
// key come from the already validated config.
func NewAiService(ctx context.Context, provider string, pc config.ProviderConfig, m *metrics.Metrics) (*aiService, error) {
	chatModel, err := newChatModel(ctx, provider, pc)
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &aiService{
		provider:  provider,
		model:     pc.Model,
		chatModel: chatModel,
		metrics:   m,
	}, nil
}

// Complete sends the system instruction and the user instruction as a single
// turn and returns the generated text. An empty instruction is still sent.
func (s *aiService) Complete(ctx context.Context, prompt models.Prompt) (string, error) {
	messages := convertPrompt(prompt)

	start := time.Now()
	resp, err := s.chatModel.Generate(ctx, messages)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = ErrEmptyCompletion
	}
	s.metrics.ObserveCompletion(s.provider, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("generate completion with %s: %w", s.model, err)
	}
	return resp.Content, nil
}

func convertPrompt(prompt models.Prompt) []*schema.Message {
	messages := make([]*schema.Message, 0, 2)
	if prompt.System != "" {
		messages = append(messages, schema.SystemMessage(prompt.System))
	}
	return append(messages, schema.UserMessage(prompt.Instruction))
}

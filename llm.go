package chatpants

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ContextKey is the type for context values carried across a request.
type ContextKey string

// LLM defines the minimal contract required by the controller and the
// synthesizers to interact with a language-model provider. Only non-streaming
// chat completions are relied upon.
type LLM interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client is a thin wrapper around the openai client, mainly to inject the
// per-request session identifier into outbound calls.
type Client struct {
	client openai.Client
}

var _ LLM = &Client{}

func (config *LLMConfig) NewClient() *Client {
	var client openai.Client
	if config.BaseURL != "" {
		client = openai.NewClient(option.WithBaseURL(config.BaseURL), option.WithAPIKey(config.APIKey))
	} else {
		client = openai.NewClient(option.WithAPIKey(config.APIKey))
	}
	return &Client{client: client}
}

func injectIdentifiers(ctx context.Context, opts []option.RequestOption) []option.RequestOption {
	if sessionID, ok := ctx.Value(ContextKey("sessionID")).(string); ok {
		opts = append(opts, option.WithJSONSet("custom_identifier", sessionID))
	}

	if participantID, ok := ctx.Value(ContextKey("participantID")).(string); ok {
		opts = append(opts, option.WithJSONSet("customer_identifier", participantID))
	}

	return opts
}

func (c *Client) New(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	opts := []option.RequestOption{}
	opts = injectIdentifiers(ctx, opts)
	return c.client.Chat.Completions.New(ctx, params, opts...)
}

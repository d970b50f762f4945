// Package openai adapts OpenAI-compatible chat completion endpoints (OpenAI,
// OpenRouter) to the llm.Model contract.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"taskchat/internal/llm"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client calls the chat completions API of an OpenAI-compatible provider.
type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	// Referer and Title are sent as HTTP-Referer and X-Title, which OpenRouter
	// uses for app attribution.
	Referer    string
	Title      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client

	api openai.Client
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = baseURL
		}
	}
}

func WithAttribution(referer, title string) ClientOption {
	return func(c *Client) {
		c.Referer = referer
		c.Title = title
	}
}

// WithTimeout bounds a single attempt; retries get their own timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.Timeout = timeout }
}

func WithMaxRetries(retries int) ClientOption {
	return func(c *Client) { c.MaxRetries = retries }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = httpClient }
}

// NewClient creates a client for model authenticated with apiKey.
func NewClient(apiKey, model string, options ...ClientOption) *Client {
	client := &Client{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    DefaultBaseURL,
		MaxRetries: 2,
	}
	for _, o := range options {
		o(client)
	}

	requestOptions := []option.RequestOption{
		option.WithAPIKey(client.APIKey),
		option.WithBaseURL(client.BaseURL),
		option.WithMaxRetries(client.MaxRetries),
	}
	if client.Referer != "" {
		requestOptions = append(requestOptions, option.WithHeader("HTTP-Referer", client.Referer))
	}
	if client.Title != "" {
		requestOptions = append(requestOptions, option.WithHeader("X-Title", client.Title))
	}
	if client.Timeout > 0 {
		requestOptions = append(requestOptions, option.WithRequestTimeout(client.Timeout))
	}
	if client.HTTPClient != nil {
		requestOptions = append(requestOptions, option.WithHTTPClient(client.HTTPClient))
	}
	client.api = openai.NewClient(requestOptions...)
	return client
}

// Generate sends the conversation and tool catalog and returns the first choice.
func (c *Client) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	params, err := c.toParams(request)
	if err != nil {
		return nil, err
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat completion returned status %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return toResponse(completion)
}

func (c *Client) toParams(request *llm.GenerateRequest) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(request.Messages)),
	}

	for i, msg := range request.Messages {
		converted, err := toMessageParam(msg)
		if err != nil {
			return params, fmt.Errorf("message %d: %w", i, err)
		}
		params.Messages = append(params.Messages, converted)
	}

	for _, def := range request.Tools {
		function := openai.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: openai.FunctionParameters(def.Parameters),
		}
		if def.Description != "" {
			function.Description = openai.String(def.Description)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(function))
	}
	return params, nil
}

func toMessageParam(msg llm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case llm.RoleUser:
		return openai.UserMessage(msg.Content), nil
	case llm.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID), nil
	case llm.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return openai.AssistantMessage(msg.Content), nil
		}
		assistant := &openai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			assistant.Content.OfString = openai.String(msg.Content)
		}
		for _, call := range msg.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}, nil
	}
	return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role %q", msg.Role)
}

func toResponse(completion *openai.ChatCompletion) (*llm.GenerateResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	message := completion.Choices[0].Message
	response := &llm.GenerateResponse{Content: message.Content}
	for _, call := range message.ToolCalls {
		if call.Function.Name == "" {
			continue
		}
		response.ToolCalls = append(response.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return response, nil
}

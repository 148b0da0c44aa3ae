package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when no model is configured.
const OpenAIDefaultModel = "gpt-4o"

// vllmPlaceholderKey satisfies the client library when a self-hosted
// OpenAI-compatible server runs without authentication.
const vllmPlaceholderKey = "EMPTY"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
	RegisterProviderFactory("vllm", newVLLMProvider)
}

// openAIProvider implements CoreLLM for the OpenAI chat completions API and
// any server that speaks it, such as vLLM.
type openAIProvider struct {
	BaseProvider
	name            string
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = OpenAIDefaultModel
	}
	return buildOpenAICompatible("openai", config)
}

// newVLLMProvider targets a self-hosted OpenAI-compatible server. The base
// URL and model are mandatory; the API key is optional.
func newVLLMProvider(config ClientConfig) (CoreLLM, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("vllm provider requires a base URL")
	}
	if config.Model == "" {
		return nil, ErrEmptyModel
	}
	if config.APIKey == "" {
		config.APIKey = vllmPlaceholderKey
	}
	return buildOpenAICompatible("vllm", config)
}

func buildOpenAICompatible(name string, config ClientConfig) (CoreLLM, error) {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: ValidateTimeout(config.Timeout)}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: config.Model},
		name:            name,
		client:          openai.NewClientWithConfig(clientConfig),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: name},
	}, nil
}

// DoRequest sends one chat completion and returns the first choice.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	req := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: buildOpenAIMessages(prompt, options),
	}
	applyOpenAIParameters(&req, options)

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	tokensIn := p.tokenCounter.GetTokenCount(resp.Usage.PromptTokens, prompt)
	tokensOut := p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, content)

	return content, tokensIn, tokensOut, nil
}

// buildOpenAIMessages builds an optional system turn followed by the user
// turn. With an image the user turn becomes a text part plus an image part.
func buildOpenAIMessages(prompt string, options RequestOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if options.Image == "" {
		user.Content = prompt
	} else {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: options.Image},
			},
		}
	}

	return append(messages, user)
}

func applyOpenAIParameters(req *openai.ChatCompletionRequest, options RequestOptions) {
	if options.Temperature != nil {
		req.Temperature = float32(ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature))
	}

	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	if options.TopP != nil {
		req.TopP = float32(ClampFloat64(*options.TopP, MinTopP, MaxTopP))
	}

	if penalty, ok := SafeFloat32(options.Extra["frequency_penalty"]); ok {
		req.FrequencyPenalty = float32(ClampFloat64(float64(penalty), MinPenalty, MaxPenalty))
	}

	if penalty, ok := SafeFloat32(options.Extra["presence_penalty"]); ok {
		req.PresencePenalty = float32(ClampFloat64(float64(penalty), MinPenalty, MaxPenalty))
	}
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.errorClassifier.ClassifyHTTPError(reqErr.HTTPStatusCode, "request failed", err)
	}

	return NewProviderError(p.name, ErrorTypeNetwork, 0, "request failed", err)
}

// Package llm provides the generation backends used by the zsb pipeline.
//
// Providers (OpenAI-compatible servers such as vLLM, Anthropic, Google) sit
// behind the CoreLLM interface and are wrapped by a middleware chain that
// adds rate limiting, circuit breaking, timeouts, retries, metrics and
// tracing. A Client exposes the wrapped provider as a ports.LLMClient, and a
// BatchGenerator turns any ports.LLMClient into the order-preserving
// ports.Generator the pipeline consumes.
//
// Basic usage:
//
//	gen, err := llm.NewBackend(llm.BackendConfig{
//	    Kind:  llm.KindVLLM,
//	    Model: "Qwen/Qwen2.5-72B-Instruct",
//	    BaseURL: "http://localhost:8000/v1",
//	})
//	outs, err := gen.BatchGenerate(ctx, prompts)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-zsb/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// The middleware chain wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response
	// text, input token count, output token count, and any error.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// TokenEstimator provides pluggable token estimation strategies.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for the given text.
	EstimateTokens(text string) int
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider. OpenAI-compatible
	// servers such as vLLM accept any non-empty value.
	APIKey string

	// Model specifies which LLM model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	BaseURL string

	// Timeout sets the maximum duration for individual HTTP requests.
	// Zero value means no timeout.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic.
	// If nil, a simple character-based estimator is used.
	TokenEstimator TokenEstimator

	// Middleware is applied in the order specified; the first entry is
	// the outermost wrapper.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
type Middleware func(CoreLLM) CoreLLM

var _ ports.LLMClient = (*Client)(nil)

// Client implements the ports.LLMClient interface on top of a middleware
// wrapped provider.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

// NewClient creates a new LLM client with the specified provider and configuration.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.Model == "" {
		return nil, ErrEmptyModel
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", providerType, ErrUnknownProvider)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{
		core:      core,
		estimator: estimator,
	}, nil
}

// Complete sends a prompt to the LLM and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt to the LLM and also returns the input
// and output token counts.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the currently configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator assumes roughly 4 characters per token.
type SimpleTokenEstimator struct{}

// EstimateTokens returns an approximate token count using character-based heuristics.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is populated by provider init functions.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider factory under providerType.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// GetProviderFactory retrieves a provider factory by name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	factory, exists := providerFactories[name]
	return factory, exists
}

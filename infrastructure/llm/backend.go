package llm

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

// Backend kinds accepted by NewBackend.
const (
	// KindVLLM talks to a self-hosted OpenAI-compatible server and drives
	// the pipeline in whole batches.
	KindVLLM = "vllm"
	// KindLiteLLM routes "provider/model" specs to hosted APIs one request
	// at a time.
	KindLiteLLM = "litellm"
)

// DefaultLiteLLMModel is the model used by the litellm kind when none is set.
const DefaultLiteLLMModel = "anthropic/" + AnthropicDefaultModel

// SupportedKinds lists the accepted backend kinds.
func SupportedKinds() []string { return []string{KindVLLM, KindLiteLLM} }

// BackendConfig is everything NewBackend needs to build a generator.
type BackendConfig struct {
	Kind    string
	Model   string
	BaseURL string
	// APIKey overrides the environment lookup for the vllm kind.
	APIKey       string
	SystemPrompt string

	// Sampling options; zero MaxTokens selects the default.
	Temperature float64
	MaxTokens   int
	TopP        *float64

	// Concurrency bounds the vllm fan-out; zero selects DefaultConcurrency.
	Concurrency int
	Retry       RetryPolicy
	// RequestsPerSecond of zero disables client-side pacing.
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds each attempt; zero means no per-attempt timeout.
	Timeout time.Duration

	Metrics ports.MetricsCollector
}

// NewBackend builds the ports.Generator for cfg.
//
// Every provider is wrapped, outermost first, in tracing, metrics, circuit
// breaking, retry, rate limiting and timeout middleware. The breaker counts
// requests that exhausted their retries. An unknown kind or a missing vllm
// model fails with domain.ErrInvalidConfiguration.
func NewBackend(cfg BackendConfig) (*BatchGenerator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	sampling := map[string]any{
		"temperature": cfg.Temperature,
		"max_tokens":  cfg.MaxTokens,
	}
	if cfg.TopP != nil {
		sampling["top_p"] = *cfg.TopP
	}

	switch cfg.Kind {
	case KindVLLM:
		if cfg.Model == "" {
			return nil, fmt.Errorf("%w: vllm backend requires a model name", domain.ErrInvalidConfiguration)
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("VLLM_API_KEY")
		}
		if apiKey == "" {
			apiKey = vllmPlaceholderKey
		}

		client, err := NewClient("vllm", ClientConfig{
			APIKey:     apiKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Middleware: middlewareChain("vllm", cfg),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
		}

		concurrency := cfg.Concurrency
		if concurrency <= 0 {
			concurrency = DefaultConcurrency
		}
		return NewBatchGenerator(client,
			WithBatched(true),
			WithConcurrency(concurrency),
			WithSystemPrompt(cfg.SystemPrompt),
			WithRequestOptions(sampling),
		), nil

	case KindLiteLLM:
		spec := cfg.Model
		if spec == "" {
			spec = DefaultLiteLLMModel
		}

		registry, err := NewRegistry(RegistryConfig{
			Providers:         DefaultProviders,
			DefaultProvider:   "anthropic",
			DefaultMiddleware: middlewareChain("litellm", cfg),
		})
		if err != nil {
			return nil, err
		}

		client, err := registry.GetClient(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
		}

		return NewBatchGenerator(client,
			WithBatched(false),
			WithConcurrency(1),
			WithSystemPrompt(cfg.SystemPrompt),
			WithRequestOptions(sampling),
		), nil

	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q (supported: %v)",
			domain.ErrInvalidConfiguration, cfg.Kind, SupportedKinds())
	}
}

func middlewareChain(provider string, cfg BackendConfig) []Middleware {
	return []Middleware{
		TracingMiddleware(provider),
		MetricsMiddleware(provider, cfg.Metrics),
		CircuitBreakerMiddleware(5, 30*time.Second),
		RetryMiddleware(cfg.Retry),
		RateLimitMiddleware(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		TimeoutMiddleware(cfg.Timeout),
	}
}

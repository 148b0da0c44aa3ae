package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-zsb/internal/ports"
)

// Registry resolves "provider/model" specs to cached clients. Each provider
// reads its API key from an environment variable and shares the registry's
// default middleware and timeout.
//
//	r, _ := llm.NewRegistry(llm.RegistryConfig{
//	    DefaultProvider: "anthropic",
//	    Providers:       llm.DefaultProviders,
//	})
//	client, err := r.GetClient("openai/gpt-4o")
type Registry struct {
	providers         map[string]ProviderConfig
	clients           map[string]ports.LLMClient
	defaultProvider   string
	defaultMiddleware []Middleware
	defaultTimeout    time.Duration
	mu                sync.RWMutex
}

// ProviderConfig describes one provider known to the registry.
type ProviderConfig struct {
	// Type is the registered provider factory name.
	Type string
	// EnvVar names the environment variable holding the API key.
	EnvVar       string
	DefaultModel string
	BaseURL      string
	// Middleware is appended after the registry defaults.
	Middleware []Middleware
}

// RegistryConfig holds configuration for the provider registry.
type RegistryConfig struct {
	Providers         map[string]ProviderConfig
	DefaultProvider   string
	DefaultTimeout    time.Duration
	DefaultMiddleware []Middleware
}

// DefaultProviders lists the hosted providers reachable through the
// litellm backend kind.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// NewRegistry creates a registry. The default provider must be configured.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}

	if _, exists := config.Providers[config.DefaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]ports.LLMClient),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
	}, nil
}

// GetClient returns the client for spec, creating it on first use.
// A spec is "provider/model", "provider" (default model), or a bare model
// name containing no provider prefix, which resolves against the default
// provider.
func (r *Registry) GetClient(spec string) (ports.LLMClient, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty")
	}

	provider, model := r.parseSpec(spec)
	key := provider + "/" + model

	r.mu.RLock()
	client, exists := r.clients[key]
	r.mu.RUnlock()
	if exists {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

func (r *Registry) parseSpec(spec string) (provider, model string) {
	provider, model, found := strings.Cut(spec, "/")
	if !found {
		if cfg, ok := r.providers[spec]; ok {
			return spec, cfg.DefaultModel
		}
		return r.defaultProvider, spec
	}

	if _, ok := r.providers[provider]; !ok {
		// Model names like "meta-llama/Llama-3" carry their own slash.
		return r.defaultProvider, spec
	}
	if model == "" {
		model = r.providers[provider].DefaultModel
	}
	return provider, model
}

func (r *Registry) createClient(provider, model string) (ports.LLMClient, error) {
	providerConfig, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q: %w", provider, ErrUnknownProvider)
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q: %w",
			providerConfig.EnvVar, provider, ErrEmptyAPIKey)
	}

	config := ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: providerConfig.BaseURL,
		Timeout: r.defaultTimeout,
	}

	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}

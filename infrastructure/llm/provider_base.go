package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// BaseProvider provides the thread-safe model name shared by all providers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the name of the model currently configured for the provider.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name for the provider.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the normalized form of the options map passed to DoRequest.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	System      string
	// Image is a base64 data URL attached to the user turn, or empty.
	Image string
	// Extra holds provider-specific options not covered above.
	Extra map[string]any
}

// ParseRequestOptions extracts request parameters from opts, falling back to
// defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Image:     ExtractOptionalString(opts, "image_url", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "image_url", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// TokenCounter estimates token counts when a provider omits usage data.
type TokenCounter struct {
	CharactersPerToken float64
}

// NewTokenCounter creates a TokenCounter tuned for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens calculates an estimated token count for text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns actualCount when positive, otherwise an estimate.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}

// decodeDataURL splits a "data:<mime>;base64,<payload>" URL into its media
// type, raw base64 payload, and decoded bytes.
func decodeDataURL(dataURL string) (mediaType, payload string, raw []byte, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", nil, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}
	mediaType, ok = strings.CutSuffix(header, ";base64")
	if !ok || mediaType == "" {
		return "", "", nil, fmt.Errorf("%w: expected base64 media type, got %q", ErrInvalidImage, header)
	}
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return mediaType, payload, raw, nil
}

package application

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-zsb/infrastructure/llm"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultPoolSeed      = 124
	DefaultPlacementSeed = 42
	DefaultScorer        = "prometheus"
	DefaultPromptField   = domain.FieldPrompt
	DefaultMaxTokens     = llm.DefaultMaxTokens
)

// Selection policies of the MBR engine.
const (
	PolicyMax = "max"
	PolicyMin = "min"
)

// ModelConfig describes one generation backend. It is usually read from
// the file named by --model-config.
type ModelConfig struct {
	// Name is the model identifier: the served model name for vllm, a
	// "provider/model" spec for litellm.
	Name string `yaml:"name" validate:"required_if=Backend vllm"`
	// Backend selects the adapter kind.
	Backend string `yaml:"backend" validate:"required,backend_kind"`
	// BaseURL points the vllm kind at its server.
	BaseURL      string `yaml:"base_url" validate:"omitempty,url"`
	SystemPrompt string `yaml:"system_prompt"`
	// Concurrency bounds the vllm fan-out.
	Concurrency int             `yaml:"concurrency" validate:"min=0,max=4096"`
	Sampling    SamplingConfig  `yaml:"sampling"`
	Retry       RetryConfig     `yaml:"retry"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	// Timeout bounds each backend attempt, e.g. "2m".
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// SamplingConfig holds the decoding parameters sent with every request.
type SamplingConfig struct {
	Temperature float64  `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int      `yaml:"max_tokens" validate:"min=0,max=1000000"`
	TopP        *float64 `yaml:"top_p" validate:"omitempty,gt=0,lte=1"`
}

// RetryConfig specifies the random exponential backoff applied to
// transient backend failures.
type RetryConfig struct {
	// MaxAttempts is the total number of calls including the first; zero
	// selects the default policy.
	MaxAttempts int           `yaml:"max_attempts" validate:"min=0,max=100"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"omitempty,gtefield=BaseDelay"`
}

// RateLimitConfig paces requests on the client side. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// GenerationConfig drives synthetic prompt generation.
type GenerationConfig struct {
	Task string `validate:"required,task_name"`
	// Target is the number of records to produce.
	Target int `validate:"min=1"`
	// Seed shuffles the combination pool.
	Seed int
	// ImageDir supplies images for multimodal tasks.
	ImageDir string
	Output   string `validate:"required"`
}

// MBRConfig drives candidate selection.
type MBRConfig struct {
	Scorer string `validate:"required,scorer_kind"`
	// N is the number of candidates per source.
	N      int    `validate:"min=1"`
	Policy string `validate:"required,oneof=max min"`
}

// BiggerIsBetter reports whether the policy selects the maximum.
func (c MBRConfig) BiggerIsBetter() bool { return c.Policy != PolicyMin }

// JudgeConfig drives the judgment flows.
type JudgeConfig struct {
	Task   string `validate:"required,task_name"`
	UseRef bool
	// Seed is the base seed of pairwise placement.
	Seed int
	// PromptField names the record column holding the instruction.
	PromptField string `validate:"required"`
}

// ApplyDefaults fills zero fields of the model configuration.
func (c *ModelConfig) ApplyDefaults() {
	if c.Backend == llm.KindLiteLLM && c.Name == "" {
		c.Name = llm.DefaultLiteLLMModel
	}
	if c.Sampling.MaxTokens == 0 {
		c.Sampling.MaxTokens = DefaultMaxTokens
	}
	if c.Backend == llm.KindVLLM && c.Concurrency == 0 {
		c.Concurrency = llm.DefaultConcurrency
	}
}

// ApplyDefaults fills zero fields of the generation configuration.
func (c *GenerationConfig) ApplyDefaults() {
	if c.Seed == 0 {
		c.Seed = DefaultPoolSeed
	}
}

// ApplyDefaults fills zero fields of the MBR configuration.
func (c *MBRConfig) ApplyDefaults() {
	if c.Scorer == "" {
		c.Scorer = DefaultScorer
	}
	if c.Policy == "" {
		c.Policy = PolicyMax
	}
}

// ApplyDefaults fills zero fields of the judge configuration.
func (c *JudgeConfig) ApplyDefaults() {
	if c.Seed == 0 {
		c.Seed = DefaultPlacementSeed
	}
	if c.PromptField == "" {
		c.PromptField = DefaultPromptField
	}
}

// BackendConfig maps the model configuration onto the adapter's options.
func (c ModelConfig) BackendConfig(metrics ports.MetricsCollector) llm.BackendConfig {
	retry := llm.RetryPolicy{}
	if c.Retry.MaxAttempts > 0 {
		retry = llm.DefaultRetryPolicy()
		retry.MaxAttempts = c.Retry.MaxAttempts
		if c.Retry.BaseDelay > 0 {
			retry.MinWait = c.Retry.BaseDelay
		}
		if c.Retry.MaxDelay > 0 {
			retry.MaxWait = c.Retry.MaxDelay
		}
	}
	return llm.BackendConfig{
		Kind:              c.Backend,
		Model:             c.Name,
		BaseURL:           c.BaseURL,
		SystemPrompt:      c.SystemPrompt,
		Temperature:       c.Sampling.Temperature,
		MaxTokens:         c.Sampling.MaxTokens,
		TopP:              c.Sampling.TopP,
		Concurrency:       c.Concurrency,
		Retry:             retry,
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		Timeout:           c.Timeout,
		Metrics:           metrics,
	}
}

// Validator checks configuration structs against their tags and the
// custom rules registered by RegisterConfigValidators.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator with the custom rules registered.
func NewValidator() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterConfigValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &Validator{v: v}, nil
}

// Validate checks cfg. Field failures are collected into a
// domain.ValidationError so every problem is reported at once.
func (val *Validator) Validate(cfg any) error {
	err := val.v.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	verr := domain.NewValidationError("configuration")
	for _, fe := range fieldErrs {
		verr.AddError(describeFieldError(fe))
	}
	return verr
}

func describeFieldError(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s: failed %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
}

// LoadModelConfig reads, defaults and validates a model configuration
// file. Unknown keys are rejected so typos do not pass silently.
func LoadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	return ParseModelConfig(data)
}

// ParseModelConfig decodes a YAML model configuration, applies defaults
// and validates it.
func ParseModelConfig(data []byte) (*ModelConfig, error) {
	var cfg ModelConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: model config: %v", domain.ErrInvalidConfiguration, err)
	}
	cfg.ApplyDefaults()

	val, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := val.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

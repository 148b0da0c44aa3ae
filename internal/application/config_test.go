// Package application provides the orchestration flows of the pipeline:
// prompt generation, MBR selection and judging.
package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-zsb/infrastructure/llm"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

func TestParseModelConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		verify  func(t *testing.T, cfg *ModelConfig)
	}{
		{
			name: "vllm with every section",
			yaml: `
name: Qwen/Qwen2.5-72B-Instruct
backend: vllm
base_url: http://localhost:8000/v1
system_prompt: You are a helpful assistant.
concurrency: 32
sampling:
  temperature: 0.7
  max_tokens: 2048
  top_p: 0.9
retry:
  max_attempts: 5
  base_delay: 2s
  max_delay: 20s
rate_limit:
  requests_per_second: 10
  burst: 5
timeout: 2m
`,
			verify: func(t *testing.T, cfg *ModelConfig) {
				assert.Equal(t, "Qwen/Qwen2.5-72B-Instruct", cfg.Name)
				assert.Equal(t, 32, cfg.Concurrency)
				assert.Equal(t, 2048, cfg.Sampling.MaxTokens)
				require.NotNil(t, cfg.Sampling.TopP)
				assert.InDelta(t, 0.9, *cfg.Sampling.TopP, 1e-9)
				assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
				assert.Equal(t, 2*time.Minute, cfg.Timeout)
			},
		},
		{
			name: "litellm defaults",
			yaml: "backend: litellm\n",
			verify: func(t *testing.T, cfg *ModelConfig) {
				assert.Equal(t, llm.DefaultLiteLLMModel, cfg.Name)
				assert.Equal(t, DefaultMaxTokens, cfg.Sampling.MaxTokens)
				assert.Zero(t, cfg.Sampling.Temperature)
				assert.Zero(t, cfg.Concurrency)
			},
		},
		{
			name: "vllm concurrency default",
			yaml: "backend: vllm\nname: m\n",
			verify: func(t *testing.T, cfg *ModelConfig) {
				assert.Equal(t, llm.DefaultConcurrency, cfg.Concurrency)
			},
		},
		{name: "unknown backend", yaml: "backend: ollama\nname: m\n", wantErr: true},
		{name: "missing backend", yaml: "name: m\n", wantErr: true},
		{name: "vllm without model", yaml: "backend: vllm\n", wantErr: true},
		{name: "unknown key", yaml: "backend: vllm\nname: m\nmodel_path: /x\n", wantErr: true},
		{name: "temperature out of range", yaml: "backend: litellm\nsampling:\n  temperature: 3\n", wantErr: true},
		{name: "bad base url", yaml: "backend: vllm\nname: m\nbase_url: not a url\n", wantErr: true},
		{name: "max delay below base", yaml: "backend: litellm\nretry:\n  base_delay: 10s\n  max_delay: 1s\n", wantErr: true},
		{name: "not yaml", yaml: "backend: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseModelConfig([]byte(tt.yaml))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadModelConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: vllm\nname: local\n"), 0o644))

	cfg, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Name)

	_, err = LoadModelConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestModelConfig_BackendConfig(t *testing.T) {
	metrics := ports.NopMetrics{}

	t.Run("zero retry keeps the adapter default", func(t *testing.T) {
		cfg := ModelConfig{Backend: llm.KindVLLM, Name: "m"}
		bc := cfg.BackendConfig(metrics)

		assert.Equal(t, llm.KindVLLM, bc.Kind)
		assert.Equal(t, "m", bc.Model)
		assert.Zero(t, bc.Retry.MaxAttempts)
		assert.Equal(t, metrics, bc.Metrics)
	})

	t.Run("explicit retry overrides the bounds", func(t *testing.T) {
		cfg := ModelConfig{
			Backend: llm.KindLiteLLM,
			Retry:   RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second},
		}
		bc := cfg.BackendConfig(metrics)

		assert.Equal(t, 3, bc.Retry.MaxAttempts)
		assert.Equal(t, time.Second, bc.Retry.MinWait)
		assert.Equal(t, 5*time.Second, bc.Retry.MaxWait)
		assert.Equal(t, llm.DefaultRetryPolicy().Multiplier, bc.Retry.Multiplier)
	})
}

func TestValidator_FlowConfigs(t *testing.T) {
	val, err := NewValidator()
	require.NoError(t, err)

	gen := GenerationConfig{Task: "general_purpose_chat_english", Target: 10, Output: "out.jsonl"}
	gen.ApplyDefaults()
	assert.NoError(t, val.Validate(&gen))
	assert.Equal(t, DefaultPoolSeed, gen.Seed)

	gen.Task = "no_such_task"
	gen.Target = 0
	err = val.Validate(&gen)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2, "every failing field is reported")

	mbr := MBRConfig{N: 4}
	mbr.ApplyDefaults()
	assert.NoError(t, val.Validate(&mbr))
	assert.True(t, mbr.BiggerIsBetter())

	mbr.Policy = PolicyMin
	assert.False(t, mbr.BiggerIsBetter())
	mbr.Scorer = "bleu"
	assert.ErrorIs(t, val.Validate(&mbr), domain.ErrInvalidConfiguration)

	judge := JudgeConfig{Task: "transcreation_en_ptpt"}
	judge.ApplyDefaults()
	assert.NoError(t, val.Validate(&judge))
	assert.Equal(t, DefaultPlacementSeed, judge.Seed)
	assert.Equal(t, domain.FieldPrompt, judge.PromptField)
}

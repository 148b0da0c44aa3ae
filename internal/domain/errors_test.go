package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreconditionError(t *testing.T) {
	tests := []struct {
		name      string
		op        string
		condition string
		want      int
		got       int
		wantMsg   string
	}{
		{
			name:      "candidate count",
			op:        "mbr",
			condition: "len(candidates) == len(sources)*n",
			want:      6,
			got:       5,
			wantMsg:   "mbr: precondition len(candidates) == len(sources)*n failed: want 6, got 5: length mismatch",
		},
		{
			name:      "pairwise answers",
			op:        "pairwise",
			condition: "len(answersA) == len(answersB)",
			want:      3,
			got:       2,
			wantMsg:   "pairwise: precondition len(answersA) == len(answersB) failed: want 3, got 2: length mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLengthMismatch(tt.op, tt.condition, tt.want, tt.got)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.True(t, errors.Is(err, ErrLengthMismatch), "Should unwrap to ErrLengthMismatch")

			var pe *PreconditionError
			wrapped := fmt.Errorf("run failed: %w", err)
			assert.True(t, errors.As(wrapped, &pe), "Should be reachable through wrapping")
			assert.Equal(t, tt.want, pe.Want)
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("ModelConfig")
		err.AddError("name is required")

		assert.Equal(t, "validation error for ModelConfig: name is required", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("MBRConfig")
		err.AddError("num_candidates must be positive")
		err.AddError("unknown scorer")

		assert.Equal(t, "validation errors for MBRConfig: [num_candidates must be positive unknown scorer]", err.Error())
		assert.Len(t, err.Errors, 2)
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Empty")
		assert.False(t, err.HasErrors(), "Should not have errors")
	})

	t.Run("matches invalid configuration", func(t *testing.T) {
		err := NewValidationError("ModelConfig")
		err.AddError("backend is required")
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestIsFatalConfiguration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"schema", fmt.Errorf("expand: %w", ErrInvalidSchema), true},
		{"pool", ErrPoolExhausted, true},
		{"length", NewLengthMismatch("da", "len(prompts) == len(answers)", 2, 1), true},
		{"unknown task", fmt.Errorf("lookup: %w", ErrUnknownTask), true},
		{"transient", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatalConfiguration(tt.err))
		})
	}
}

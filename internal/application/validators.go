package application

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-zsb/infrastructure/llm"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/infrastructure/utility"
)

// RegisterConfigValidators registers the custom rules referenced by the
// configuration struct tags: backend_kind, scorer_kind and task_name.
func RegisterConfigValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"backend_kind": validateBackendKind,
		"scorer_kind":  validateScorerKind,
		"task_name":    validateTaskName,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateBackendKind accepts the adapter kinds NewBackend can build.
func validateBackendKind(fl validator.FieldLevel) bool {
	return slices.Contains(llm.SupportedKinds(), fl.Field().String())
}

// validateScorerKind accepts registered utility scorer names.
func validateScorerKind(fl validator.FieldLevel) bool {
	return slices.Contains(utility.Names(), fl.Field().String())
}

func validateTaskName(fl validator.FieldLevel) bool {
	_, err := tasks.Lookup(fl.Field().String())
	return err == nil
}

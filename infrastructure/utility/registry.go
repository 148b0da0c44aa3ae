package utility

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

// Registered scorer names.
const (
	NamePrometheus  = "prometheus"
	NameLevenshtein = "levenshtein"
)

var backendRequired = map[string]bool{
	NamePrometheus:  true,
	NameLevenshtein: false,
}

// Names lists the registered scorers.
func Names() []string {
	return []string{NameLevenshtein, NamePrometheus}
}

// RequiresBackend reports whether the named scorer calls a judge model.
func RequiresBackend(name string) bool {
	return backendRequired[name]
}

// New constructs the named scorer. gen may be nil for scorers that do not
// require a backend.
func New(name string, gen ports.Generator, opts ...Option) (ports.UtilityScorer, error) {
	switch name {
	case NamePrometheus:
		return NewPrometheusScorer(gen, opts...)
	case NameLevenshtein:
		return NewLevenshteinScorer(), nil
	default:
		return nil, fmt.Errorf("unknown utility scorer %q (available: %s): %w",
			name, strings.Join(Names(), ", "), domain.ErrInvalidConfiguration)
	}
}

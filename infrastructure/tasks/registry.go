package tasks

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

// registry is built once from the embedded catalog and templates.
var registry = sync.OnceValues(func() (map[string]*Task, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	resolvers := catalog.Resolvers()

	out := make(map[string]*Task)
	for _, def := range Definitions(catalog) {
		if _, dup := out[def.Name]; dup {
			return nil, fmt.Errorf("task %s registered twice: %w", def.Name, domain.ErrInvalidConfiguration)
		}
		t, err := NewTask(def, resolvers)
		if err != nil {
			return nil, err
		}
		out[def.Name] = t
	}
	return out, nil
})

// Lookup returns the built-in task registered under name.
func Lookup(name string) (*Task, error) {
	tasks, err := registry()
	if err != nil {
		return nil, fmt.Errorf("failed to load task registry: %w", err)
	}
	t, ok := tasks[name]
	if !ok {
		return nil, fmt.Errorf("%q (available: %s): %w", name, strings.Join(Names(), ", "), domain.ErrUnknownTask)
	}
	return t, nil
}

// Names lists the registered task names in sorted order.
func Names() []string {
	tasks, err := registry()
	if err != nil {
		return nil
	}
	return slices.Sorted(maps.Keys(tasks))
}

var safetyTemplates = sync.OnceValues(func() ([2]*template.Template, error) {
	var out [2]*template.Template
	for i, file := range []string{"safety.tmpl", "safety_vlm.tmpl"} {
		tmpl, err := loadTemplate(file)
		if err != nil {
			return out, err
		}
		out[i] = tmpl
	}
	return out, nil
})

// RenderSafety builds the prompt-only safety judge instruction. The
// multimodal variant asks the judge to consider the attached image too.
func RenderSafety(prompt string, multimodal bool) (string, error) {
	tmpls, err := safetyTemplates()
	if err != nil {
		return "", err
	}
	tmpl := tmpls[0]
	if multimodal {
		tmpl = tmpls[1]
	}
	return render(tmpl, map[string]string{VarPrompt: prompt})
}

// SafetyParser parses safety judgments. They share the direct-assessment
// shape and carry no meta-prompt sections.
func SafetyParser() ports.OutputParser {
	return NewSectionParser()
}

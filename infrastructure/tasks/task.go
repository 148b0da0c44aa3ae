// Package tasks holds the built-in benchmark tasks: their attribute
// schemas, prompt templates and output parsers.
package tasks

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template variables filled by the judging flows.
const (
	VarPrompt    = "prompt"
	VarAnswer    = "answer"
	VarReference = "reference"
	VarAnswerA   = "answer_A"
	VarAnswerB   = "answer_B"
)

// Definition is the plain-data description of a task. Template fields name
// files under templates/; an empty name means the task does not support
// that protocol.
type Definition struct {
	Name        string
	Description string
	Schema      domain.AttributeSchema

	// Sections lists the blocks the meta-prompt output must contain.
	Sections []Section

	MetaPrompt                string
	DirectAssessment          string
	ReferenceDirectAssessment string
	Relative                  string

	// Multimodal tasks pair every combination with an image.
	Multimodal bool
}

// Task is a compiled Definition. It is immutable and safe for concurrent
// use.
type Task struct {
	def       Definition
	resolvers domain.ResolverTable
	parser    *SectionParser

	meta     *template.Template
	da       *template.Template
	refDA    *template.Template
	relative *template.Template
}

// NewTask validates def against resolvers and compiles its templates.
func NewTask(def Definition, resolvers domain.ResolverTable) (*Task, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("task name cannot be empty: %w", domain.ErrInvalidConfiguration)
	}
	if def.MetaPrompt == "" {
		return nil, fmt.Errorf("task %s: meta prompt template is required: %w", def.Name, domain.ErrInvalidConfiguration)
	}
	if len(def.Sections) == 0 {
		return nil, fmt.Errorf("task %s: at least one output section is required: %w", def.Name, domain.ErrInvalidConfiguration)
	}
	if err := def.Schema.Validate(resolvers); err != nil {
		return nil, fmt.Errorf("task %s: %w", def.Name, err)
	}

	t := &Task{def: def, resolvers: resolvers, parser: NewSectionParser(def.Sections...)}
	for _, slot := range []struct {
		file string
		dst  **template.Template
	}{
		{def.MetaPrompt, &t.meta},
		{def.DirectAssessment, &t.da},
		{def.ReferenceDirectAssessment, &t.refDA},
		{def.Relative, &t.relative},
	} {
		if slot.file == "" {
			continue
		}
		tmpl, err := loadTemplate(slot.file)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", def.Name, err)
		}
		*slot.dst = tmpl
	}
	return t, nil
}

// loadTemplate parses an embedded template. Missing variables fail
// rendering instead of printing "<no value>".
func loadTemplate(file string) (*template.Template, error) {
	tmpl, err := template.New(file).Option("missingkey=error").ParseFS(templateFS, "templates/"+file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w: %w", file, err, domain.ErrInvalidConfiguration)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func (t *Task) Name() string { return t.def.Name }

func (t *Task) Description() string { return t.def.Description }

func (t *Task) Multimodal() bool { return t.def.Multimodal }

func (t *Task) Schema() domain.AttributeSchema { return t.def.Schema }

// Fields returns the record fields a parsed meta-prompt output carries.
func (t *Task) Fields() []string { return t.parser.Keys() }

// Parser returns the task's output parser.
func (t *Task) Parser() ports.OutputParser { return t.parser }

// Combinations expands the task's attribute schema.
func (t *Task) Combinations() ([]domain.Combination, error) {
	return domain.ExpandCombinations(t.def.Schema, t.resolvers)
}

// RenderMetaPrompt fills the meta prompt with one combination.
func (t *Task) RenderMetaPrompt(c domain.Combination) (string, error) {
	return render(t.meta, c)
}

// SupportsDirectAssessment reports whether the task can be judged by
// direct assessment, with or without a reference.
func (t *Task) SupportsDirectAssessment(useRef bool) bool {
	if useRef {
		return t.refDA != nil
	}
	return t.da != nil
}

// SupportsRelative reports whether the task can be judged pairwise.
func (t *Task) SupportsRelative() bool { return t.relative != nil }

// RenderDirectAssessment builds a direct-assessment judge instruction.
// The reference is only read by the reference-based template.
func (t *Task) RenderDirectAssessment(prompt, answer, reference string, useRef bool) (string, error) {
	if !t.SupportsDirectAssessment(useRef) {
		return "", t.unsupported(protocolName(useRef))
	}
	tmpl := t.da
	if useRef {
		tmpl = t.refDA
	}
	return render(tmpl, map[string]string{
		VarPrompt:    prompt,
		VarAnswer:    answer,
		VarReference: reference,
	})
}

// RenderRelative builds a pairwise judge instruction with the answers in
// display order.
func (t *Task) RenderRelative(prompt, shownA, shownB string) (string, error) {
	if t.relative == nil {
		return "", t.unsupported("pairwise")
	}
	return render(t.relative, map[string]string{
		VarPrompt:  prompt,
		VarAnswerA: shownA,
		VarAnswerB: shownB,
	})
}

func (t *Task) unsupported(protocol string) error {
	return fmt.Errorf("task %s has no %s template: %w", t.def.Name, protocol, domain.ErrUnsupportedJudgment)
}

func protocolName(useRef bool) string {
	if useRef {
		return "reference-based direct assessment"
	}
	return "direct assessment"
}

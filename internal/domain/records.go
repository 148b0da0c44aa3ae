package domain

import (
	"fmt"
	"maps"
)

// Record field names shared by the generation and judging flows.
const (
	FieldPrompt     = "prompt"
	FieldAnswer     = "answer"
	FieldReference  = "reference"
	FieldMetadata   = "metadata"
	FieldJudgement  = "judgement"
	FieldFeedback   = "feedback"
	FieldAnswerA    = "answer_A"
	FieldAnswerB    = "answer_B"
	FieldRealAPlace = "real_a_place"

	// MetadataImage is the metadata key holding the image reference of a
	// multimodal pool entry.
	MetadataImage = "image"
)

// PoolEntry is one element of the prompt generator's pool: an attribute
// combination and, for multimodal tasks, the image it is paired with.
type PoolEntry struct {
	Combination Combination

	// ImageRef names the image in provenance metadata, e.g. its file name.
	ImageRef string

	// Image is the payload handed to the backend, a data URL.
	Image string
}

// Metadata returns the provenance recorded on every record generated from
// this entry.
func (p PoolEntry) Metadata() map[string]string {
	md := make(map[string]string, len(p.Combination)+1)
	maps.Copy(md, p.Combination)
	if p.ImageRef != "" {
		md[MetadataImage] = p.ImageRef
	}
	return md
}

// Record is one JSONL row. Generated prompts, answers and judgments all
// flow through it so columns written by earlier stages are preserved.
type Record map[string]any

// String returns the string value of key or an error naming the missing
// or mistyped field.
func (r Record) String(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", fmt.Errorf("record field %q: %w", key, ErrEmptyValue)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record field %q is %T, want string: %w", key, v, ErrInvalidConfiguration)
	}
	return s, nil
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Strings extracts key from every record, failing on the first record that
// lacks it.
func Strings(records []Record, key string) ([]string, error) {
	out := make([]string, len(records))
	for i, rec := range records {
		s, err := rec.String(key)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

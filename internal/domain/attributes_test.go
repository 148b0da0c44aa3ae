package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testSubtopics = map[string][]string{
	"sport":   {"football", "tennis", "chess"},
	"science": {"physics"},
	"art":     {},
}

func testResolvers() ResolverTable {
	return ResolverTable{"subtopics": MapResolver(testSubtopics)}
}

// TestExpandCombinations_Independent verifies that only independent attributes
// produce the full product in declaration order.
func TestExpandCombinations_Independent(t *testing.T) {
	tests := []struct {
		name   string
		schema AttributeSchema
		want   []Combination
	}{
		{
			name: "dependsOn none behaves as independent",
			schema: NewSchema(
				Independent("lang", "EN", "FR"),
				Independent("topic", "sport"),
			),
			want: []Combination{
				{"lang": "EN", "topic": "sport"},
				{"lang": "FR", "topic": "sport"},
			},
		},
		{
			name: "leftmost attribute varies slowest",
			schema: NewSchema(
				Independent("a", "1", "2"),
				Independent("b", "x", "y"),
			),
			want: []Combination{
				{"a": "1", "b": "x"},
				{"a": "1", "b": "y"},
				{"a": "2", "b": "x"},
				{"a": "2", "b": "y"},
			},
		},
		{
			name:   "empty schema yields one empty combination",
			schema: NewSchema(),
			want:   []Combination{{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCombinations(tt.schema, testResolvers())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestExpandCombinations_ProductSize checks the count is the product of the
// value list sizes and that every attribute appears in every combination.
func TestExpandCombinations_ProductSize(t *testing.T) {
	schema := NewSchema(
		Independent("language", "English"),
		Independent("difficulty", "easy", "medium", "hard"),
		Independent("style", "formal", "casual"),
		Independent("length", "short", "medium", "long", "very long"),
	)

	got, err := ExpandCombinations(schema, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1*3*2*4, "Count should equal the product of value list sizes")

	seen := make(map[string]bool)
	for _, combo := range got {
		assert.Len(t, combo, 4, "Every attribute should be assigned")
		key := combo["language"] + "|" + combo["difficulty"] + "|" + combo["style"] + "|" + combo["length"]
		assert.False(t, seen[key], "Combination %s should not repeat", key)
		seen[key] = true
	}
}

// TestExpandCombinations_Dependent checks that the count equals the sum of
// resolved list sizes over base combinations.
func TestExpandCombinations_Dependent(t *testing.T) {
	// Given a topic attribute whose subtopics vary in length, including zero
	schema := NewSchema(
		Independent("topic", "sport", "science", "art"),
		Dependent("subtopic", "topic", "subtopics"),
		Independent("style", "formal", "casual"),
	)

	// When expanding
	got, err := ExpandCombinations(schema, testResolvers())
	require.NoError(t, err)

	// Then every base combination contributes |resolve(topic)| combinations
	want := 0
	for _, topic := range []string{"sport", "science", "art"} {
		want += len(testSubtopics[topic]) * 2
	}
	assert.Len(t, got, want)
	assert.Equal(t, Combination{"topic": "sport", "style": "formal", "subtopic": "football"}, got[0])
	assert.Equal(t, Combination{"topic": "sport", "style": "formal", "subtopic": "tennis"}, got[1])
	for _, combo := range got {
		assert.Contains(t, testSubtopics[combo["topic"]], combo["subtopic"],
			"Subtopic should come from its topic's list")
	}
}

// TestExpandCombinations_Errors verifies fail-fast configuration errors.
func TestExpandCombinations_Errors(t *testing.T) {
	tests := []struct {
		name    string
		schema  AttributeSchema
		wantErr error
	}{
		{
			name: "dependent on dependent",
			schema: NewSchema(
				Independent("topic", "sport"),
				Dependent("subtopic", "topic", "subtopics"),
				Dependent("detail", "subtopic", "subtopics"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "cycle",
			schema: NewSchema(
				Dependent("a", "b", "subtopics"),
				Dependent("b", "a", "subtopics"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "unknown parent",
			schema: NewSchema(
				Dependent("subtopic", "topic", "subtopics"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "unknown resolver",
			schema: NewSchema(
				Independent("topic", "sport"),
				Dependent("subtopic", "topic", "missing"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "duplicate names",
			schema: NewSchema(
				Independent("topic", "sport"),
				Independent("topic", "art"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "independent without values",
			schema: NewSchema(
				Independent("topic"),
			),
			wantErr: ErrInvalidSchema,
		},
		{
			name: "unmapped resolver value",
			schema: NewSchema(
				Independent("topic", "sport", "cooking"),
				Dependent("subtopic", "topic", "subtopics"),
			),
			wantErr: ErrUnresolvedAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandCombinations(tt.schema, testResolvers())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestAttributeSchema_YAML(t *testing.T) {
	src := `
attributes:
  - name: topic
    values: [sport, science]
  - name: subtopic
    depends_on: topic
    resolver: subtopics
`
	var schema AttributeSchema
	require.NoError(t, yaml.Unmarshal([]byte(src), &schema))

	require.Len(t, schema.Attributes, 2)
	assert.Equal(t, KindIndependent, schema.Attributes[0].Kind())
	assert.Equal(t, KindDependent, schema.Attributes[1].Kind())

	got, err := ExpandCombinations(schema, testResolvers())
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestAttributeSchema_With(t *testing.T) {
	base := NewSchema(Independent("language", ""), Independent("topic", "sport"))
	specialized := base.With("language", Independent("language", "French"))

	assert.Equal(t, []string{""}, base.Attributes[0].Values, "Base schema should be untouched")
	assert.Equal(t, []string{"French"}, specialized.Attributes[0].Values)
}

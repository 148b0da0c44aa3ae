package tasks

import (
	"fmt"

	"github.com/ahrav/go-zsb/internal/domain"
)

var promptReferenceSections = []Section{
	{Tag: "PROMPT", Key: domain.FieldPrompt},
	{Tag: "REFERENCE", Key: domain.FieldReference},
}

var chatLanguages = []struct{ suffix, language string }{
	{"english", "English"},
	{"chinese_s", "Chinese (Simplified)"},
	{"french", "French"},
	{"korean", "Korean"},
}

var translationPairs = []struct{ suffix, source, target string }{
	{"en_de", "English", "German"},
	{"en_zh", "English", "Chinese"},
	{"cs_uk", "Czech", "Ukrainian"},
	{"ja_zh", "Japanese", "Chinese"},
	{"en_es", "English", "Spanish"},
	{"en_cs", "English", "Czech"},
	{"en_ru", "English", "Russian"},
	{"en_uk", "English", "Ukrainian"},
	{"en_hi", "English", "Hindi"},
	{"en_ja", "English", "Japanese"},
	{"en_is", "English", "Icelandic"},
}

var mtEvalPairs = []struct{ suffix, source, target string }{
	{"en_ja", "English", "Japanese"},
	{"en_ptpt", "English", "European Portuguese"},
}

var mtEvalWOExamplesPairs = []struct{ suffix, source, target string }{
	{"en_cs", "English", "Czech"},
	{"en_de", "English", "German"},
	{"en_es", "English", "Spanish"},
	{"en_hi", "English", "Hindi"},
	{"en_is", "English", "Icelandic"},
	{"en_ja", "English", "Japanese"},
	{"en_ko", "English", "Korean"},
	{"en_ru", "English", "Russian"},
	{"en_uk", "English", "Ukrainian"},
	{"en_zh", "English", "Chinese"},
}

var vlmLanguages = []struct{ suffix, language string }{
	{"portuguese", "Portuguese (Portugal)"},
	{"chinese_s", "Chinese (Simplified)"},
}

// Definitions returns every built-in task drawing its value lists from c.
func Definitions(c *Catalog) []Definition {
	var defs []Definition
	for _, l := range chatLanguages {
		defs = append(defs, chatDefinition(l.suffix, l.language, c))
	}
	for _, p := range translationPairs {
		defs = append(defs, translationDefinition(p.suffix, p.source, p.target, c))
	}
	defs = append(defs,
		hardRulesDefinition("en_ptpt", "English", "European Portuguese", c),
		transcreationDefinition("en_ptpt", "English", "European Portuguese", c),
	)
	for _, p := range mtEvalPairs {
		defs = append(defs, mtEvalDefinition(p.suffix, p.source, p.target, c))
	}
	for _, p := range mtEvalWOExamplesPairs {
		defs = append(defs, mtEvalWOExamplesDefinition(p.suffix, p.source, p.target, c))
	}
	for _, l := range vlmLanguages {
		defs = append(defs, vlmChatDefinition(l.suffix, l.language))
	}
	return defs
}

func chatDefinition(suffix, language string, c *Catalog) Definition {
	return Definition{
		Name:        "general_purpose_chat_" + suffix,
		Description: "General capabilities in " + language + ".",
		Schema: domain.NewSchema(
			domain.Independent("language", language),
			domain.Independent("topic", c.Topics...),
			domain.Dependent("subtopic", "topic", ResolverSubtopics),
			domain.Independent("difficulty", c.Difficulties...),
			domain.Independent("style", c.Styles...),
			domain.Independent("writer", c.Audiences...),
			domain.Independent("writing_proficiency", c.WritingProficiencies...),
			domain.Independent("length", c.Lengths...),
		),
		Sections:                  promptReferenceSections,
		MetaPrompt:                "chat_meta.tmpl",
		DirectAssessment:          "chat_da.tmpl",
		ReferenceDirectAssessment: "chat_ref_da.tmpl",
		Relative:                  "chat_relative.tmpl",
	}
}

// translationSchema is shared by the translation families. Extra
// attributes are appended after source_length.
func translationSchema(source, target string, c *Catalog, extra ...domain.Attribute) domain.AttributeSchema {
	attrs := []domain.Attribute{
		domain.Independent("source_language", source),
		domain.Independent("target_language", target),
		domain.Independent("topic", c.Topics...),
		domain.Dependent("subtopic", "topic", ResolverSubtopics),
		domain.Independent("style", c.Styles...),
	}
	return domain.NewSchema(append(attrs, extra...)...)
}

func translationDefinition(suffix, source, target string, c *Catalog) Definition {
	return Definition{
		Name:        "general_translation_" + suffix,
		Description: fmt.Sprintf("Translation from %s to %s.", source, target),
		Schema:      translationSchema(source, target, c, domain.Independent("source_length", c.Lengths...)),
		Sections: []Section{
			{Tag: "SOURCE", Key: "source"},
			{Tag: "REFERENCE TRANSLATION", Key: domain.FieldReference},
		},
		MetaPrompt:       "translation_meta.tmpl",
		DirectAssessment: "translation_da.tmpl",
	}
}

func hardRulesDefinition(suffix, source, target string, c *Catalog) Definition {
	return Definition{
		Name:        "translation_w_hard_rules_" + suffix,
		Description: fmt.Sprintf("Translation from %s to %s with verifiable rules to follow.", source, target),
		Schema: translationSchema(source, target, c,
			domain.Independent("audience", c.Audiences...),
			domain.Independent("source_length", c.Lengths...),
			domain.Independent("n_rules", "2", "3", "4"),
		),
		Sections: []Section{
			{Tag: "PROMPT", Key: domain.FieldPrompt},
			{Tag: "SOURCE", Key: "source"},
			{Tag: "REFERENCE", Key: domain.FieldReference},
			{Tag: "RULES", Key: "rules"},
		},
		MetaPrompt: "hard_rules_meta.tmpl",
	}
}

func transcreationDefinition(suffix, source, target string, c *Catalog) Definition {
	return Definition{
		Name:        "transcreation_" + suffix,
		Description: fmt.Sprintf("Transcreation (translation and cultural adaptation) from %s to %s.", source, target),
		Schema: translationSchema(source, target, c,
			domain.Independent("audience", c.Audiences...),
			domain.Independent("source_length", c.Lengths...),
		),
		Sections: []Section{
			{Tag: "PROMPT", Key: domain.FieldPrompt},
			{Tag: "SOURCE", Key: "source"},
			{Tag: "REFERENCE", Key: domain.FieldReference},
		},
		MetaPrompt:       "transcreation_meta.tmpl",
		DirectAssessment: "transcreation_da.tmpl",
		Relative:         "transcreation_relative.tmpl",
	}
}

// mtEvalSections lists the package sections. With examples, every score
// level also carries a sample translation and its feedback.
func mtEvalSections(withExamples bool) []Section {
	sections := []Section{
		{Tag: "SOURCE", Key: "source"},
		{Tag: "TRANSLATION INSTRUCTION", Key: "translation_instruction"},
		{Tag: "REFERENCE TRANSLATION", Key: domain.FieldReference},
		{Tag: "SCORING RUBRICS", Key: "scoring_rubrics"},
	}
	for score := 1; score <= 5; score++ {
		sections = append(sections,
			Section{Tag: fmt.Sprintf("SCORE %d DESCRIPTION", score), Key: fmt.Sprintf("score_%d_description", score)})
		if withExamples {
			sections = append(sections,
				Section{Tag: fmt.Sprintf("SCORE %d TRANSLATION", score), Key: fmt.Sprintf("score_%d_translation", score)},
				Section{Tag: fmt.Sprintf("SCORE %d TRANSLATION FEEDBACK", score), Key: fmt.Sprintf("score_%d_feedback", score)},
			)
		}
	}
	return sections
}

func mtEvalSchema(source, target string, c *Catalog) domain.AttributeSchema {
	return translationSchema(source, target, c,
		domain.Independent("audience", c.Audiences...),
		domain.Independent("source_length", c.Lengths...),
	)
}

func mtEvalDefinition(suffix, source, target string, c *Catalog) Definition {
	return Definition{
		Name:        "end_to_end_mt_eval_" + suffix,
		Description: fmt.Sprintf("End to end MT evaluation with scored examples, %s to %s.", source, target),
		Schema:      mtEvalSchema(source, target, c),
		Sections:    mtEvalSections(true),
		MetaPrompt:  "e2e_mt_eval_meta.tmpl",
	}
}

func mtEvalWOExamplesDefinition(suffix, source, target string, c *Catalog) Definition {
	return Definition{
		Name:        "end_to_end_mt_eval_wo_examples_" + suffix,
		Description: fmt.Sprintf("End to end MT evaluation without examples, %s to %s.", source, target),
		Schema:      mtEvalSchema(source, target, c),
		Sections:    mtEvalSections(false),
		MetaPrompt:  "e2e_mt_eval_wo_examples_meta.tmpl",
	}
}

func vlmChatDefinition(suffix, language string) Definition {
	return Definition{
		Name:             "m_vlm_general_purpose_chat_" + suffix,
		Description:      "General purpose chat for vision language models in " + language + ".",
		Schema:           domain.NewSchema(domain.Independent("language", language)),
		Sections:         promptReferenceSections,
		MetaPrompt:       "vlm_chat_meta.tmpl",
		DirectAssessment: "vlm_chat_da.tmpl",
		Relative:         "vlm_chat_relative.tmpl",
		Multimodal:       true,
	}
}

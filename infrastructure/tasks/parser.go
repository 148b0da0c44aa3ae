package tasks

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

var _ ports.OutputParser = (*SectionParser)(nil)

// Section maps a delimited block of a meta-prompt output to a record field.
// A block with tag X is written as "<START OF X>\n...\n<END OF X>".
type Section struct {
	Tag string
	Key string
}

// SectionParser implements ports.OutputParser for every built-in task.
// Meta-prompt outputs are split into sections; judge outputs are JSON
// objects with "result" and "feedback" members, optionally fenced.
//
// It is stateless and safe for concurrent use.
type SectionParser struct {
	sections []Section
	patterns []*regexp.Regexp
}

// NewSectionParser compiles one pattern per section. The match is lazy
// and spans lines, so the first complete block of each tag wins.
func NewSectionParser(sections ...Section) *SectionParser {
	patterns := make([]*regexp.Regexp, len(sections))
	for i, s := range sections {
		tag := regexp.QuoteMeta(s.Tag)
		patterns[i] = regexp.MustCompile(`(?s)<START OF ` + tag + `>\n(.*?)\n<END OF ` + tag + `>`)
	}
	return &SectionParser{sections: sections, patterns: patterns}
}

// Keys returns the record fields produced by ParseMetaPromptOutput in
// section order.
func (p *SectionParser) Keys() []string {
	keys := make([]string, len(p.sections))
	for i, s := range p.sections {
		keys[i] = s.Key
	}
	return keys
}

// ParseMetaPromptOutput extracts every section, trimmed. A single missing
// section rejects the whole output.
func (p *SectionParser) ParseMetaPromptOutput(raw string) (map[string]string, bool) {
	fields := make(map[string]string, len(p.sections))
	for i, re := range p.patterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		fields[p.sections[i].Key] = strings.TrimSpace(m[1])
	}
	return fields, true
}

// ParseDirectAssessmentOutput reads an integer "result" and a "feedback"
// member. Either one may be missing independently: the score then falls
// back to domain.FallbackScore and the feedback to nil.
func (p *SectionParser) ParseDirectAssessmentOutput(raw string) domain.ScoreJudgment {
	j := domain.ScoreJudgment{Score: domain.FallbackScore}
	obj, ok := judgmentObject(raw)
	if !ok {
		return j
	}
	if score, ok := parseScore(obj.Get("result")); ok {
		j.Score = score
		j.ScoreOK = true
	}
	j.Feedback = parseFeedback(obj.Get("feedback"))
	return j
}

// ParseRelativeOutput reads a display label "A" or "B" from "result".
// Anything else leaves WinnerOK false.
func (p *SectionParser) ParseRelativeOutput(raw string) domain.RelativeJudgment {
	var j domain.RelativeJudgment
	obj, ok := judgmentObject(raw)
	if !ok {
		return j
	}
	j.Feedback = parseFeedback(obj.Get("feedback"))

	result := obj.Get("result")
	if result.Type != gjson.String {
		return j
	}
	switch label := strings.TrimSpace(norm.NFKC.String(result.Str)); label {
	case domain.LabelA, domain.LabelB:
		j.Winner = label
		j.WinnerOK = true
	}
	return j
}

// judgmentObject returns the top-level JSON object of a judge output.
func judgmentObject(raw string) (gjson.Result, bool) {
	body := unwrapFence(raw)
	if !gjson.Valid(body) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(body)
	return obj, obj.IsObject()
}

// unwrapFence strips a surrounding markdown code fence and its info
// string, e.g. ```json ... ```.
func unwrapFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || len(s) < 6 || !strings.HasSuffix(s, "```") {
		return s
	}
	s = s[3 : len(s)-3]
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}

// parseScore accepts a JSON number, truncated toward zero, or a string
// holding an integer. Strings are NFKC-normalized first so full-width
// digits parse.
func parseScore(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		if math.IsNaN(r.Num) || math.Abs(r.Num) > math.MaxInt32 {
			return 0, false
		}
		return int(r.Num), true
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(norm.NFKC.String(r.Str)))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func parseFeedback(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

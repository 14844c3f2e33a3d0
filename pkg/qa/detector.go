// Package qa mines question/answer structure and factual statements out of
// stored conversations. Both operations are deterministic rule pipelines
// that skip malformed turns instead of failing: an empty result is a normal
// outcome, never an error.
package qa

import (
	"regexp"
	"strings"

	"github.com/soundprediction/recall/pkg/expansion"
	"github.com/soundprediction/recall/pkg/types"
)

var questionWords = map[string]bool{
	"what": true, "who": true, "where": true, "when": true,
	"why": true, "how": true, "which": true,
}

var (
	interrogativeRe = regexp.MustCompile(`(?i)\b(?:what'?s my|what is my|tell me about|do you (?:know|remember))\b`)
	answerLeadInRe  = regexp.MustCompile(`(?i)\b(?:my name is|i'?m called|call me|i work (?:as|at|for)|my (?:job|profession|occupation) is|i live in|i'?m from|my (?:email|phone|number|address|favou?rite|age|birthday) is|i (?:like|love|prefer)|i was born|i am \d+)\b`)
	numberRe        = regexp.MustCompile(`\d`)
	emailRe         = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe         = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
	properNounRe    = regexp.MustCompile(`(?:^|[^.!?]\s)([A-Z][a-z]+)`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "am": true,
	"was": true, "were": true, "be": true, "been": true, "do": true,
	"does": true, "did": true, "i": true, "my": true, "me": true, "you": true,
	"your": true, "it": true, "its": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "and": true, "or": true, "what": true,
	"who": true, "where": true, "when": true, "why": true, "how": true,
	"that": true, "this": true, "for": true, "with": true, "as": true,
}

// Detector finds question->answer pairs and factual statements in
// conversations. Pure and safe for concurrent use.
type Detector struct{}

// NewDetector creates a Q&A detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectQARelationships scans consecutive turn pairs and emits one
// relationship per adjacent (question, answer) pair found. Turn lists
// shorter than two and malformed turns (missing role or content) are
// handled by skipping, never by failing.
func (d *Detector) DetectQARelationships(turns []types.Turn) []types.QARelationship {
	relationships := []types.QARelationship{}
	if len(turns) < 2 {
		return relationships
	}

	for i := 0; i < len(turns)-1; i++ {
		question, answer := turns[i], turns[i+1]
		if !validTurn(question) || !validTurn(answer) {
			continue
		}
		if !IsQuestion(question.Content) || !IsAnswer(answer.Content) {
			continue
		}

		relationships = append(relationships, types.QARelationship{
			QuestionContent: question.Content,
			AnswerContent:   answer.Content,
			QuestionIndex:   i,
			AnswerIndex:     i + 1,
			Confidence:      answerConfidence(question.Content, answer.Content),
		})
	}

	return relationships
}

// ExtractFactualStatements scans every turn independently for answer-like
// content and emits one classified statement per matching turn.
func (d *Detector) ExtractFactualStatements(turns []types.Turn) []types.FactualStatement {
	statements := []types.FactualStatement{}

	for _, turn := range turns {
		if !validTurn(turn) || !IsAnswer(turn.Content) {
			continue
		}

		factTypes := classifyFactTypes(turn.Content)
		if len(factTypes) == 0 {
			continue
		}

		statements = append(statements, types.FactualStatement{
			Content:   turn.Content,
			FactTypes: factTypes,
			Entities:  expansion.ExtractEntities(turn.Content),
		})
	}

	return statements
}

func validTurn(turn types.Turn) bool {
	return strings.TrimSpace(turn.Role) != "" && strings.TrimSpace(turn.Content) != ""
}

// IsQuestion reports whether text reads as a question: it ends in a question
// mark, starts with or contains a question word, or matches an explicit
// interrogative pattern.
func IsQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, tok := range strings.Fields(lower) {
		if questionWords[strings.Trim(tok, ",.!'\"")] {
			return true
		}
	}
	return interrogativeRe.MatchString(trimmed)
}

// IsAnswer reports whether text reads as answer-like content: an explicit
// answer lead-in, an email or phone number, a proper noun, or a number.
func IsAnswer(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if answerLeadInRe.MatchString(trimmed) {
		return true
	}
	if emailRe.MatchString(trimmed) || phoneRe.MatchString(trimmed) {
		return true
	}
	if numberRe.MatchString(trimmed) {
		return true
	}
	return containsProperNoun(trimmed)
}

func containsProperNoun(text string) bool {
	return properNounRe.MatchString(text)
}

// answerConfidence scores how likely answer actually answers question, from
// keyword overlap, an explicit lead-in bonus and length heuristics. Clamped
// to [0,1] for all inputs.
func answerConfidence(question, answer string) float64 {
	confidence := 0.3 // adjacency baseline

	qTokens := contentTokens(question)
	aTokens := contentTokens(answer)
	if len(qTokens) > 0 && len(aTokens) > 0 {
		overlap := 0
		aSet := make(map[string]bool, len(aTokens))
		for _, tok := range aTokens {
			aSet[tok] = true
		}
		for _, tok := range qTokens {
			if aSet[tok] {
				overlap++
			}
		}
		confidence += 0.3 * float64(overlap) / float64(len(qTokens))
	}

	if answerLeadInRe.MatchString(answer) {
		confidence += 0.3
	}

	// Very short or very long answers are weaker evidence.
	words := len(strings.Fields(answer))
	switch {
	case words >= 3 && words <= 50:
		confidence += 0.1
	case words > 200:
		confidence -= 0.1
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func contentTokens(text string) []string {
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?'\"")
		if tok == "" || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

var factTypeRules = []struct {
	factType types.FactType
	re       *regexp.Regexp
}{
	{types.FactName, regexp.MustCompile(`(?i)\b(?:my name is|i'?m called|call me|i go by)\b`)},
	{types.FactProfession, regexp.MustCompile(`(?i)\b(?:i work (?:as|at|for)|my (?:job|profession|occupation) is|i'?m an? \w+(?:er|or|ist|ian|eer))\b`)},
	{types.FactLocation, regexp.MustCompile(`(?i)\b(?:i live in|i'?m (?:from|based in)|my (?:address|city|hometown) is)\b`)},
	{types.FactContact, regexp.MustCompile(`(?i)(?:\b(?:my (?:email|e-mail|phone|number) is|reach me at|contact me)\b|[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)},
	{types.FactPreference, regexp.MustCompile(`(?i)\b(?:my favou?rite|i (?:like|love|prefer|enjoy)|i'?m (?:into|a fan of))\b`)},
	{types.FactAge, regexp.MustCompile(`(?i)\b(?:i'?m \d+(?: years old)?|i am \d+|my (?:age|birthday) is|i was born|\d+ years old)\b`)},
}

func classifyFactTypes(text string) []types.FactType {
	var factTypes []types.FactType
	for _, rule := range factTypeRules {
		if rule.re.MatchString(text) {
			factTypes = append(factTypes, rule.factType)
		}
	}
	return factTypes
}

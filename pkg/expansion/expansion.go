// Package expansion bridges the vocabulary gap between questions and their
// stored answers. A query like "what's my name?" rarely shares tokens with
// the stored answer "my name is Matt"; expanding the query with the phrases
// answers are usually worded in makes lexical and semantic recall on
// personal-fact queries work.
package expansion

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

// MaxFanOut caps how many expanded queries the retrieval pipeline issues as
// parallel backend calls. ExpandQuery itself returns the full union; the cap
// is applied by the caller at the fan-out boundary.
const MaxFanOut = 5

type categorySpec struct {
	Name             string   `yaml:"name"`
	QuestionPatterns []string `yaml:"question_patterns"`
	QuestionPhrases  []string `yaml:"question_phrases"`
	AnswerPatterns   []string `yaml:"answer_patterns"`
	AnswerPhrases    []string `yaml:"answer_phrases"`
}

type patternFile struct {
	Categories []categorySpec `yaml:"categories"`
}

type category struct {
	name             string
	questionPatterns []*regexp.Regexp
	questionPhrases  []string
	answerPatterns   []*regexp.Regexp
	answerPhrases    []string
}

var questionWords = []string{"what", "who", "where", "when", "why", "how", "which", "tell"}

// Expander produces semantically related query strings from a single query.
// It is deterministic, pure and safe for concurrent use.
type Expander struct {
	categories []category
}

// NewExpander builds an expander from the embedded pattern tables.
func NewExpander() (*Expander, error) {
	var file patternFile
	if err := yaml.Unmarshal(patternsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse expansion patterns: %w", err)
	}

	e := &Expander{}
	for _, spec := range file.Categories {
		cat := category{
			name:            spec.Name,
			questionPhrases: spec.QuestionPhrases,
			answerPhrases:   spec.AnswerPhrases,
		}
		for _, p := range spec.QuestionPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("bad question pattern %q in category %s: %w", p, spec.Name, err)
			}
			cat.questionPatterns = append(cat.questionPatterns, re)
		}
		for _, p := range spec.AnswerPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("bad answer pattern %q in category %s: %w", p, spec.Name, err)
			}
			cat.answerPatterns = append(cat.answerPatterns, re)
		}
		e.categories = append(e.categories, cat)
	}
	return e, nil
}

// MustNewExpander is NewExpander for callers that treat a broken embedded
// table as a programming error.
func MustNewExpander() *Expander {
	e, err := NewExpander()
	if err != nil {
		panic(err)
	}
	return e
}

// ExpandQuery returns a deduplicated set of query strings related to query.
// The lowercase-trimmed original is always the first element, even for empty
// or malformed input; expansion never fails.
func (e *Expander) ExpandQuery(query string) []string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	seen := map[string]bool{normalized: true}
	expansions := []string{normalized}

	add := func(phrase string) {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" || seen[phrase] {
			return
		}
		seen[phrase] = true
		expansions = append(expansions, phrase)
	}

	if normalized != "" {
		for _, cat := range e.categories {
			// Question-shaped query: widen with the answer wordings.
			for _, re := range cat.questionPatterns {
				if re.MatchString(normalized) {
					for _, p := range cat.answerPhrases {
						add(p)
					}
					for _, p := range cat.questionPhrases {
						add(p)
					}
					break
				}
			}
			// Statement-shaped query: widen with the question wordings.
			for _, re := range cat.answerPatterns {
				if re.MatchString(normalized) {
					for _, p := range cat.questionPhrases {
						add(p)
					}
					for _, p := range cat.answerPhrases {
						add(p)
					}
					break
				}
			}
		}

		if stripped := stripQuestionWords(normalized); stripped != "" && stripped != normalized {
			add(stripped)
		}
	}

	return expansions
}

// stripQuestionWords removes leading question words and filler from a query
// and returns the remaining content tokens as a phrase.
func stripQuestionWords(query string) string {
	cleaned := strings.NewReplacer("?", "", "!", "", ".", "", ",", "").Replace(query)
	tokens := strings.Fields(cleaned)

	var content []string
	for _, tok := range tokens {
		if isQuestionWord(tok) || isFiller(tok) {
			continue
		}
		content = append(content, tok)
	}
	return strings.Join(content, " ")
}

func isQuestionWord(tok string) bool {
	for _, w := range questionWords {
		if tok == w || tok == w+"'s" || tok == w+"s" {
			return true
		}
	}
	return false
}

var fillerWords = map[string]bool{
	"is": true, "are": true, "am": true, "was": true, "were": true,
	"do": true, "does": true, "did": true, "me": true, "my": true,
	"i": true, "the": true, "a": true, "an": true, "about": true,
	"your": true, "you": true, "it": true, "its": true, "it's": true,
}

func isFiller(tok string) bool {
	return fillerWords[tok]
}

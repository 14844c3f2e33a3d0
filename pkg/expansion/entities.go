package expansion

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)

	// A run of capitalized words, e.g. "John", "San Francisco".
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

	professionRe = regexp.MustCompile(`(?i)\b(?:i(?:'m| am) an?|i work as an?|my (?:job|profession|occupation) is(?: an?)?)\s+([a-z][a-z ]{1,40}?)(?:[.,!?]|$| at | for | in )`)
)

// Words that look like proper nouns only because they start a sentence or are
// common sentence openers.
var properNounStoplist = map[string]bool{
	"i": true, "my": true, "the": true, "what": true, "who": true,
	"where": true, "when": true, "why": true, "how": true, "yes": true,
	"no": true, "hello": true, "hi": true, "ok": true, "okay": true,
	"tell": true, "please": true, "thanks": true, "thank": true,
}

// ExtractEntities pulls typed entities out of free text. Every category key
// is always present with a non-nil (possibly empty) slice, and extraction
// never fails regardless of input.
func ExtractEntities(text string) map[string][]string {
	entities := map[string][]string{
		"names":       {},
		"emails":      {},
		"phones":      {},
		"professions": {},
	}
	if strings.TrimSpace(text) == "" {
		return entities
	}

	entities["emails"] = dedupe(emailRe.FindAllString(text, -1))

	// Strip emails before phone matching so the digits in an address domain
	// are not mistaken for a number.
	stripped := emailRe.ReplaceAllString(text, " ")
	for _, m := range phoneRe.FindAllString(stripped, -1) {
		if digits := countDigits(m); digits >= 7 && digits <= 15 {
			entities["phones"] = append(entities["phones"], strings.TrimSpace(m))
		}
	}
	entities["phones"] = dedupe(entities["phones"])

	for _, m := range properNounRe.FindAllString(text, -1) {
		if properNounStoplist[strings.ToLower(m)] {
			continue
		}
		entities["names"] = append(entities["names"], m)
	}
	entities["names"] = dedupe(entities["names"])

	for _, groups := range professionRe.FindAllStringSubmatch(text, -1) {
		if len(groups) > 1 {
			profession := strings.TrimSpace(groups[1])
			if profession != "" {
				entities["professions"] = append(entities["professions"], profession)
			}
		}
	}
	entities["professions"] = dedupe(entities["professions"])

	return entities
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

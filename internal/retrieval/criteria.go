// Package retrieval finds, ranks, and enriches candidate repair procedures
// for an identified device and problem.
package retrieval

import (
	"strings"

	"github.com/fixfirst/repair-advisor/internal/device"
	"github.com/fixfirst/repair-advisor/internal/problem"
	"github.com/fixfirst/repair-advisor/internal/storage"
)

// Criteria is the read-only projection of device and problem info used to
// parameterize retrieval. Never persisted.
type Criteria struct {
	Brand       string
	Model       string
	DeviceType  string
	Category    storage.ProblemCategory
	IssueCode   string
	Keywords    []string
	SearchTerms string
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "be": true, "but": true,
	"can": true, "do": true, "does": true, "for": true, "has": true, "have": true,
	"how": true, "i": true, "in": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "of": true, "on": true, "or": true, "please": true,
	"so": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"what": true, "when": true, "will": true, "with": true, "you": true, "your": true,
}

// BuildCriteria derives search criteria from the stage outputs and the raw
// message.
func BuildCriteria(message string, dev device.Match, prob problem.Match) Criteria {
	keywords := tokenize(message)

	var terms []string
	if dev.Model != "" {
		terms = append(terms, strings.ToLower(dev.Model))
	} else if dev.Brand != "" {
		terms = append(terms, dev.Brand)
	}
	if prob.IssueCode != "" {
		terms = append(terms, strings.ReplaceAll(prob.IssueCode, "_", " "))
	}
	terms = append(terms, keywords...)

	return Criteria{
		Brand:       dev.Brand,
		Model:       dev.Model,
		DeviceType:  dev.Type,
		Category:    prob.Category,
		IssueCode:   prob.IssueCode,
		Keywords:    keywords,
		SearchTerms: strings.Join(dedupStrings(terms), " "),
	}
}

// tokenize lowercases, strips punctuation, and drops stopwords and
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})

	var tokens []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return dedupStrings(tokens)
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

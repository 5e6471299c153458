package redact

import (
	"regexp"
	"strings"
)

// Replacement labels written in place of matched PII.
const (
	LabelCreditCard    = "CREDIT_CARD_NUMBER"
	LabelStreetAddress = "STREET_ADDRESS"
	LabelZipcode       = "ZIPCODE"
	LabelSSN           = "US_SOCIAL_SECURITY_NUMBER"
	LabelPhone         = "PHONE_NUMBER"
	LabelIPAddress     = "IP_ADDRESS"
	LabelEmail         = "EMAIL_ADDRESS"
	LabelURL           = "URL"
)

// Rule replaces every match of Pattern with Label.
type Rule struct {
	Label   string
	Pattern *regexp.Regexp
}

var (
	streetSuffixes = strings.Join([]string{
		"street", "st", "road", "rd", "avenue", "ave", "drive", "dr", "loop", "court", "ct",
		"circle", "cir", "lane", "ln", "boulevard", "blvd", "way", "parkway", "pkwy",
		"terrace", "ter", "place", "pl", "highway", "hwy", "square", "sq", "trail", "trl",
	}, "|")
	unitDesignators = `(?:apt|bldg|dept|fl|hngr|lot|pier|rm|ste|slip|trlr|unit|#)\.? *[a-z0-9-]+\b`
	poBox           = `p\.? ?o\.? *box +\d+`
)

// DefaultRules is the rule set used by NewRegex when no rules are given.
// Rules run in order, so broader patterns come after the ones they would
// otherwise swallow. A generic "any long digit run" rule is deliberately absent.
func DefaultRules() []Rule {
	return []Rule{
		{LabelCreditCard, regexp.MustCompile(`\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}|\d{4}[ -]?\d{6}[ -]?\d{4}\d?`)},
		{LabelStreetAddress, regexp.MustCompile(`(?i)\d+\s*(?:\w+ ){1,2}(?:` + streetSuffixes + `)\b(?:\s+` + unitDesignators + `)?|` + poBox)},
		{LabelZipcode, regexp.MustCompile(`\b\d{5}\b(?:-\d{4}\b)?`)},
		{LabelSSN, regexp.MustCompile(`\b\d{3}[ \-.]\d{2}[ \-.]\d{4}\b`)},
		{LabelPhone, regexp.MustCompile(`(?:\(?\+?[0-9]{1,2}\)?[-. ]?)?(?:\(?[0-9]{3}\)?|[0-9]{3})[-. ]?(?:[0-9]{3}[-. ]?[0-9]{4}|\b[A-Z0-9]{7}\b)`)},
		{LabelIPAddress, regexp.MustCompile(`(?i)\d{1,3}(?:\.\d{1,3}){3}|[0-9a-f]{4}(?::[0-9a-f]{4}){5}(?:::|(?::0000)+)`)},
		{LabelEmail, regexp.MustCompile(`(?i)[a-z0-9_\-.+]+@\w+(?:\.\w+)*`)},
		{LabelURL, regexp.MustCompile(`[^\s:/?#]+://[^/?#\s]*[^?#\s]*(?:\?[^#\s]*)?(?:#\S*)?`)},
	}
}

// Regex redacts strings with an ordered list of regular expressions.
type Regex struct {
	rules []Rule
}

// NewRegex builds a Regex redactor. With no rules it uses DefaultRules.
func NewRegex(rules ...Rule) *Regex {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Regex{rules: rules}
}

// Redact implements Redactor.
func (r *Regex) Redact(v any) (any, error) { return walk(v, r.Text) }

// Text redacts a single string.
func (r *Regex) Text(s string) string {
	for _, rule := range r.rules {
		s = rule.Pattern.ReplaceAllLiteralString(s, rule.Label)
	}
	return s
}

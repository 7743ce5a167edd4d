// Package redact strips personally identifiable information from text before
// it reaches the long-lived memory store.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Typed placeholders substituted for matched PII.
const (
	EmailPlaceholder   = "[EMAIL_REDACTED]"
	PhonePlaceholder   = "[PHONE_REDACTED]"
	NamePlaceholder    = "[NAME_REDACTED]"
	AddressPlaceholder = "[ADDRESS_REDACTED]"
)

// Matchers run in order: specific patterns first so the broad name heuristic
// never sees an email local part or a street name. The name matcher is
// deliberately over-eager; for a cross-session store, over-redaction beats
// leaking a real name.
var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,2}[ .-]?)?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`)
	addrPattern  = regexp.MustCompile(`\b\d{1,5} (?:[A-Z][a-z]+ )+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b`)
	namePattern  = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
)

// Redactor applies the PII matchers with a caller-supplied name whitelist.
type Redactor struct {
	whitelist []*regexp.Regexp
}

// New builds a redactor. Whitelist entries are literal strings (for example
// fictional or domain character names) exempted from the name matcher,
// compared case-insensitively.
func New(whitelist []string) *Redactor {
	r := &Redactor{}
	for _, w := range whitelist {
		if w == "" {
			continue
		}
		r.whitelist = append(r.whitelist, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(w)))
	}
	return r
}

// Redact replaces PII with typed placeholders. Pure text transform.
//
// Whitelisted literals are shielded with sentinels before the matchers run,
// so the greedy name heuristic cannot swallow half of a whitelisted name
// together with an adjacent capitalized word.
func (r *Redactor) Redact(text string) string {
	out := text
	var saved []string
	for _, pattern := range r.whitelist {
		out = pattern.ReplaceAllStringFunc(out, func(match string) string {
			saved = append(saved, match)
			return fmt.Sprintf("\x00wl%d\x00", len(saved)-1)
		})
	}

	out = emailPattern.ReplaceAllString(out, EmailPlaceholder)
	out = phonePattern.ReplaceAllString(out, PhonePlaceholder)
	out = addrPattern.ReplaceAllString(out, AddressPlaceholder)
	out = namePattern.ReplaceAllString(out, NamePlaceholder)

	for i, match := range saved {
		out = strings.Replace(out, fmt.Sprintf("\x00wl%d\x00", i), match, 1)
	}
	return out
}

// Redacted reports whether Redact would change the text.
func (r *Redactor) Redacted(text string) bool {
	return r.Redact(text) != text
}

package followup

import (
	"regexp"
	"strings"
)

// durationRe matches trip-length mentions like "3 day", "2-night", "1 week".
var durationRe = regexp.MustCompile(`\b\d+\s*-?\s*(day|days|night|nights|week|weeks)\b`)

// domainKeywords are travel-planning terms that mark a message as plannable.
var domainKeywords = []string{
	"trip",
	"itinerary",
	"travel",
	"visit",
	"vacation",
	"holiday",
	"tour",
	"getaway",
}

// IsFollowUpCandidate reports whether a message looks like a plannable
// request worth a deferred alternative. Pure lexical check: false positives
// cost a scheduling attempt that the workflow guard absorbs, false negatives
// skip an optional enhancement.
func IsFollowUpCandidate(text string) bool {
	lower := strings.ToLower(text)

	if durationRe.MatchString(lower) {
		return true
	}
	for _, kw := range domainKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

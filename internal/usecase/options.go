package usecase

import (
	"strings"

	"medibridge-assistant/internal/domain"
)

// optionRule maps a reply to a follow-up option set when every marker is a
// substring of the reply.
type optionRule struct {
	markers []string
	options func() []string
}

// Order matters: a reply may satisfy several rules and only the first applies.
var optionRules = []optionRule{
	{markers: []string{"Donations", "Volunteer"}, options: domain.TopLevelOptions},
	{markers: []string{"Blood", "Organs"}, options: domain.DonationKindOptions},
	{markers: []string{"questions?"}, options: domain.YesNoOptions},
}

// InferOptions derives the follow-up choices for a bot reply from the text
// alone. Matching is case-sensitive. A reply matching no rule is a terminal
// leaf and gets an empty, non-nil slice.
func InferOptions(reply string) []string {
	for _, rule := range optionRules {
		if containsAll(reply, rule.markers) {
			return rule.options()
		}
	}
	return []string{}
}

func containsAll(s string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(s, m) {
			return false
		}
	}
	return true
}

// normalizeLabel is the form a label takes on the wire.
func normalizeLabel(label string) string {
	return strings.ToLower(label)
}

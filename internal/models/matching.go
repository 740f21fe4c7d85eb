package models

import "strings"

// MatchesLead evaluates the rule predicate against lead attributes. Pure; no
// side effects.
func (r RoutingRule) MatchesLead(l Lead) bool {
	return r.Conditions.matches(l)
}

func (c RuleConditions) matches(l Lead) bool {
	if c.MinCompanySize > 0 && l.CompanySize < c.MinCompanySize {
		return false
	}
	if c.MaxCompanySize > 0 && l.CompanySize > c.MaxCompanySize {
		return false
	}
	if len(c.Regions) > 0 && !containsFold(c.Regions, l.Region) {
		return false
	}
	if len(c.Industries) > 0 && !containsFold(c.Industries, l.Industry) {
		return false
	}
	if len(c.Sources) > 0 && !containsFold(c.Sources, l.Source) {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

package models

import "testing"

func TestMatchesLead(t *testing.T) {
	lead := Lead{
		CompanySize: 250,
		Region:      "NA",
		Industry:    "SaaS",
		Source:      "webinar",
	}

	tests := []struct {
		name string
		cond RuleConditions
		want bool
	}{
		{"empty conditions match everything", RuleConditions{}, true},
		{"min size below", RuleConditions{MinCompanySize: 100}, true},
		{"min size above", RuleConditions{MinCompanySize: 500}, false},
		{"max size above", RuleConditions{MaxCompanySize: 500}, true},
		{"max size below", RuleConditions{MaxCompanySize: 100}, false},
		{"size band", RuleConditions{MinCompanySize: 100, MaxCompanySize: 500}, true},
		{"region listed", RuleConditions{Regions: []string{"EU", "NA"}}, true},
		{"region missing", RuleConditions{Regions: []string{"EU", "APAC"}}, false},
		{"region case folded", RuleConditions{Regions: []string{"na"}}, true},
		{"region whitespace trimmed", RuleConditions{Regions: []string{" NA "}}, true},
		{"industry folded", RuleConditions{Industries: []string{"saas"}}, true},
		{"industry missing", RuleConditions{Industries: []string{"fintech"}}, false},
		{"source listed", RuleConditions{Sources: []string{"webinar", "referral"}}, true},
		{"source missing", RuleConditions{Sources: []string{"cold_call"}}, false},
		{"all dimensions", RuleConditions{
			MinCompanySize: 100,
			Regions:        []string{"NA"},
			Industries:     []string{"SaaS"},
			Sources:        []string{"webinar"},
		}, true},
		{"one dimension fails", RuleConditions{
			MinCompanySize: 100,
			Regions:        []string{"NA"},
			Sources:        []string{"referral"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := RoutingRule{Conditions: tt.cond}
			if got := rule.MatchesLead(lead); got != tt.want {
				t.Fatalf("MatchesLead = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesLeadZeroCompanySize(t *testing.T) {
	// Leads without a known company size still fail a minimum-size gate.
	rule := RoutingRule{Conditions: RuleConditions{MinCompanySize: 10}}
	if rule.MatchesLead(Lead{}) {
		t.Fatalf("unknown company size must not satisfy a minimum")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []AssignmentStatus{StatusRejected, StatusConverted, StatusExpired, StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	open := []AssignmentStatus{StatusPending, StatusAccepted, StatusEscalated}
	for _, s := range open {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

package models

import "time"

// Lead is an inbound prospect waiting for an owner.
type Lead struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	CompanySize int       `json:"company_size"`
	Region      string    `json:"region"`
	Industry    string    `json:"industry"`
	Source      string    `json:"source"`
	Priority    string    `json:"priority"` // urgent | standard
	Needs       []string  `json:"needs"`
	CreatedAt   time.Time `json:"created_at"`
}

type SalesRep struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Available        bool          `json:"available"`
	CurrentLoad      int           `json:"current_load"`
	MaxCapacity      int           `json:"max_capacity"`
	Specializations  []string      `json:"specializations"`
	Territories      []string      `json:"territories"`
	ConversionRate   float64       `json:"conversion_rate"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	TotalAssignments int           `json:"total_assignments"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type RoutingType string

const (
	RoutingRoundRobin RoutingType = "round_robin"
	RoutingWeighted   RoutingType = "weighted"
	RoutingSkillBased RoutingType = "skill_based"
	RoutingTerritory  RoutingType = "territory"
	RoutingAI         RoutingType = "ai"
)

// RuleConditions is the predicate part of a rule, matched against lead
// attributes. Zero values mean "no constraint".
type RuleConditions struct {
	MinCompanySize int      `json:"min_company_size,omitempty"`
	MaxCompanySize int      `json:"max_company_size,omitempty"`
	Regions        []string `json:"regions,omitempty"`
	Industries     []string `json:"industries,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

type RoutingRule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Priority    int            `json:"priority"`
	IsActive    bool           `json:"is_active"`
	RoutingType RoutingType    `json:"routing_type"`
	Conditions  RuleConditions `json:"conditions"`
	// EligibleRepIDs pins the candidate set to an explicit list. Empty means
	// derive candidates from specialization/territory matching instead.
	EligibleRepIDs []string `json:"eligible_rep_ids,omitempty"`
	// RequiredSpecializations narrows derived candidates to reps carrying at
	// least one of these tags.
	RequiredSpecializations []string  `json:"required_specializations,omitempty"`
	LeadsRouted             int       `json:"leads_routed"`
	SuccessRate             float64   `json:"success_rate"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusAccepted  AssignmentStatus = "accepted"
	StatusRejected  AssignmentStatus = "rejected"
	StatusConverted AssignmentStatus = "converted"
	StatusEscalated AssignmentStatus = "escalated"
	StatusExpired   AssignmentStatus = "expired"
	StatusCancelled AssignmentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s AssignmentStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusConverted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type LeadAssignment struct {
	ID           string           `json:"id"`
	LeadID       string           `json:"lead_id"`
	RepID        string           `json:"rep_id"`
	RuleID       string           `json:"rule_id"`
	RulePriority int              `json:"rule_priority"`
	Status       AssignmentStatus `json:"status"`
	Reason       string           `json:"reason"`
	MatchScore   float64          `json:"match_score"`
	Reasoning    []byte           `json:"reasoning,omitempty"`
	AssignedAt   time.Time        `json:"assigned_at"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`
	EscalatedAt  *time.Time       `json:"escalated_at,omitempty"`
}

// ResponseTime is responded_at - assigned_at, zero until a response exists.
func (a LeadAssignment) ResponseTime() time.Duration {
	if a.RespondedAt == nil {
		return 0
	}
	return a.RespondedAt.Sub(a.AssignedAt)
}

// RoutingMetrics is derived from assignment history, never stored.
type RoutingMetrics struct {
	TotalAssignments int           `json:"total_assignments"`
	Accepted         int           `json:"accepted"`
	Converted        int           `json:"converted"`
	Rejected         int           `json:"rejected"`
	Escalated        int           `json:"escalated"`
	Expired          int           `json:"expired"`
	AcceptanceRate   float64       `json:"acceptance_rate"`
	ConversionRate   float64       `json:"conversion_rate"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
}

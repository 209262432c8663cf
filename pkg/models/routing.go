package models

// Intent is the class of problem an incident describes.
type Intent string

const (
	IntentTrackingIssue Intent = "tracking_issue"
	IntentLoadCreation  Intent = "load_creation"
	IntentDataQuality   Intent = "data_quality"
	IntentBilling       Intent = "billing"
	IntentUnknown       Intent = "unknown"
)

// Domain is the transport domain an incident belongs to.
type Domain string

const (
	DomainOverTheRoad Domain = "over-the-road"
	DomainOcean       Domain = "ocean"
	DomainDrayage     Domain = "drayage"
	DomainAir         Domain = "air"
	DomainUnknown     Domain = "unknown"
)

// RoutingDecision is the result of matching an incident against the
// intent and domain pattern tables. Derived purely from the incident
// input — routing never consults external systems.
type RoutingDecision struct {
	Intent          Intent   `json:"intent"`
	Domain          Domain   `json:"domain"`
	SkillID         string   `json:"skill_id"`
	Confidence      float64  `json:"confidence"`
	MatchedPatterns []string `json:"matched_patterns"`
}

// ShouldAutoRoute reports whether the decision clears the configured
// high-confidence bar and can proceed without operator review.
func (d RoutingDecision) ShouldAutoRoute(t Thresholds) bool {
	return d.Confidence >= t.High
}

// NeedsHumanReview reports whether the decision falls below the
// configured medium bar.
func (d RoutingDecision) NeedsHumanReview(t Thresholds) bool {
	return d.Confidence < t.Med
}

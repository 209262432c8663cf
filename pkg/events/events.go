// Package events defines the progress-event taxonomy and the serializer
// that turns concurrent investigation activity into one ordered stream.
package events

import (
	"time"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// Type discriminates progress events.
type Type string

const (
	TypeStarted          Type = "started"
	TypeRouted           Type = "routed"
	TypeIdentifiers      Type = "identifiers"
	TypeHypothesis       Type = "hypothesis"
	TypeSubAgentSpawn    Type = "sub_agent_spawn"
	TypeSubAgentAction   Type = "sub_agent_action"
	TypeEvidence         Type = "evidence"
	TypeHypothesisUpdate Type = "hypothesis_update"
	TypeChildSpawn       Type = "child_spawn"
	TypeSubAgentDone     Type = "sub_agent_done"
	TypeVerdict          Type = "verdict"
	TypeHeartbeat        Type = "heartbeat"
	TypeError            Type = "error"
	TypeComplete         Type = "complete"
)

// Terminal reports whether t ends the stream. Exactly one terminal event
// is delivered per investigation; nothing follows it.
func (t Type) Terminal() bool {
	return t == TypeError || t == TypeComplete
}

// Event is one serialized progress event. Seq is assigned by the stream
// and is strictly monotonic within an investigation.
type Event struct {
	Seq     int64 `json:"seq"`
	Type    Type  `json:"type"`
	Payload any   `json:"payload"`
}

type Started struct {
	InvestigationID string    `json:"investigation_id"`
	Mode            string    `json:"mode,omitempty"`
	TS              time.Time `json:"ts"`
}

type Routed struct {
	Intent          models.Intent `json:"intent"`
	Domain          models.Domain `json:"domain"`
	SkillID         string        `json:"skill_id"`
	Confidence      float64       `json:"confidence"`
	MatchedPatterns []string      `json:"matched_patterns,omitempty"`
}

type Identifiers struct {
	Bag map[string]string `json:"bag"`
}

type Hypothesis struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    models.Category `json:"category"`
	Confidence  float64         `json:"confidence"`
}

type SubAgentSpawn struct {
	AgentID      string `json:"agent_id"`
	HypothesisID string `json:"hypothesis_id"`
}

type SubAgentAction struct {
	AgentID    string `json:"agent_id"`
	Iteration  int    `json:"iteration"`
	ActionType string `json:"action_type"`
	Source     string `json:"source,omitempty"`
	Capability string `json:"capability,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Evidence struct {
	AgentID    string         `json:"agent_id,omitempty"`
	FindingID  string         `json:"finding_id"`
	Source     string         `json:"source"`
	Capability string         `json:"capability"`
	Outcome    models.Outcome `json:"outcome"`
	Summary    string         `json:"summary"`
}

type HypothesisUpdate struct {
	ID         string                  `json:"id"`
	Confidence float64                 `json:"confidence"`
	Status     models.HypothesisStatus `json:"status"`
	Delta      float64                 `json:"delta"`
}

type ChildSpawn struct {
	ParentAgentID    string `json:"parent_agent_id"`
	ChildDescription string `json:"child_description"`
}

type SubAgentDone struct {
	AgentID        string                `json:"agent_id"`
	TerminalReason models.TerminalReason `json:"terminal_reason"`
	Iterations     int                   `json:"iterations"`
	EvidenceCount  int                   `json:"evidence_count"`
}

type Heartbeat struct {
	TS               time.Time `json:"ts"`
	ProgressPercent  int       `json:"progress_percent"`
	Phase            Phase     `json:"phase"`
	SourcesCompleted int       `json:"sources_completed"`
	SourcesTotal     int       `json:"sources_total"`
}

type Error struct {
	Message string `json:"message"`
	AtPhase Phase  `json:"at_phase"`
}

type Complete struct {
	TS         time.Time `json:"ts"`
	DurationMS int64     `json:"duration_ms"`
}

// Package models defines the core data model for one investigation:
// the incoming incident, the identifier bag, findings (evidence items),
// hypotheses, routing decisions, and the final verdict.
//
// Everything here lives for the duration of a single investigation —
// nothing is persisted between runs.
package models

import "errors"

// ErrNoUsableIdentifier is returned when an incident carries neither a
// description nor any identifier an investigation could start from.
var ErrNoUsableIdentifier = errors.New("incident has no description, load number, or tracking id")

// Incident is the immutable input to one investigation.
type Incident struct {
	// Description is the operator's free-form report.
	Description string `json:"description"`

	// Identifiers are explicit structured identifiers supplied with the
	// incident (ticket id, load number, tracking id, ...). Keys use the
	// canonical Key* constants.
	Identifiers map[string]string `json:"identifiers,omitempty"`

	// ModeHint is the transport-mode hint ("ground", "ocean", "air",
	// "drayage"); overrides any mode inferred from the description.
	ModeHint string `json:"mode_hint,omitempty"`
}

// Validate checks the minimum-input rule: at least one of description,
// load number, or tracking id must be present.
func (in *Incident) Validate() error {
	if in.Description != "" {
		return nil
	}
	if in.Identifiers[KeyLoadNumber] != "" || in.Identifiers[KeyTrackingID] != "" {
		return nil
	}
	return ErrNoUsableIdentifier
}

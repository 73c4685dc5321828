package audit

import (
	"time"

	"github.com/google/uuid"
)

// Outcome values for a recorded identifier lookup.
const (
	OutcomeResolved      = "resolved"
	OutcomeInvalidFormat = "invalid_format"
	OutcomeNotFound      = "not_found"
	OutcomeLookupError   = "lookup_error"
)

// ScanEntry is one identifier-resolution attempt. Every lookup produces
// exactly one entry, whatever its outcome.
type ScanEntry struct {
	ID uuid.UUID `json:"id"`

	// Code is the normalized identifier that was looked up. For oversized
	// inputs only the bounded prefix is retained.
	Code      string `json:"code"`
	RawLength int    `json:"raw_length"`
	Outcome   string `json:"outcome"`

	PatientID *uuid.UUID `json:"patient_id,omitempty"`

	ActorID   string   `json:"actor_id,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SourceIP  string   `json:"source_ip,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
	RequestID string   `json:"request_id,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// ListFilter narrows the audit trail query.
type ListFilter struct {
	Outcome   string
	ActorID   string
	PatientID *uuid.UUID
	Since     *time.Time
	Until     *time.Time
}

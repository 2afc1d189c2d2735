package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EvidenceRecord is an immutable audit artifact reference.
type EvidenceRecord struct {
	ID        int64     `json:"id"             db:"id"`
	CaseID    string    `json:"case_id"        db:"case_id"`
	Kind      string    `json:"kind"           db:"kind"`
	Ref       string    `json:"ref"            db:"ref"`
	CreatedAt time.Time `json:"created_at"     db:"created_at"`
	Hash      *string   `json:"hash,omitempty" db:"hash"`
	// JobID is the job whose completion produced the record.
	JobID *int64 `json:"job_id,omitempty" db:"job_id"`
}

// CreateEvidenceRequest appends an evidence record.
type CreateEvidenceRequest struct {
	CaseID string
	Kind   string
	Ref    string
	Hash   *string
	// JobID makes the insert idempotent: a second record for the same job is not written.
	JobID *int64
}

// Validate validates the CreateEvidenceRequest fields.
func (r *CreateEvidenceRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" {
		return errors.New("case id is required")
	}
	if strings.TrimSpace(r.Kind) == "" {
		return errors.New("kind is required")
	}
	if strings.TrimSpace(r.Ref) == "" {
		return errors.New("ref is required")
	}
	return nil
}

// MailStatus is the delivery state of a certified mailing.
type MailStatus string

const (
	MailStatusSubmitted MailStatus = "SUBMITTED"
	MailStatusInTransit MailStatus = "IN_TRANSIT"
	MailStatusDelivered MailStatus = "DELIVERED"
	MailStatusReturned  MailStatus = "RETURNED"
)

var (
	// ErrCertifiedMailNotFound is returned when a tracking number is unknown.
	ErrCertifiedMailNotFound = errors.New("certified mail not found")
	// ErrInvalidMailTransition is returned when a status callback would move a mailing backwards.
	ErrInvalidMailTransition = errors.New("invalid certified mail status transition")
)

// ParseMailStatus parses a status case-insensitively.
func ParseMailStatus(s string) (MailStatus, error) {
	st := MailStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case MailStatusSubmitted, MailStatusInTransit, MailStatusDelivered, MailStatusReturned:
		return st, nil
	}
	return "", fmt.Errorf("invalid certified mail status: %q", s)
}

// Terminal reports whether no further provider callbacks are expected.
func (s MailStatus) Terminal() bool {
	return s == MailStatusDelivered || s == MailStatusReturned
}

// CanTransition reports whether a mailing in status s may move to next.
// Repeating the current status is accepted so provider callbacks can be retried.
func (s MailStatus) CanTransition(next MailStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case MailStatusSubmitted:
		return next == MailStatusInTransit || next.Terminal()
	case MailStatusInTransit:
		return next.Terminal()
	default:
		return false
	}
}

// CertifiedMailRecord tracks an outbound certified mailing.
type CertifiedMailRecord struct {
	ID             int64           `json:"id"                     db:"id"`
	CaseID         string          `json:"case_id"                db:"case_id"`
	TrackingNumber string          `json:"tracking_number"        db:"tracking_number"`
	Provider       string          `json:"provider"               db:"provider"`
	Status         MailStatus      `json:"status"                 db:"status"`
	MailedAt       *time.Time      `json:"mailed_at,omitempty"    db:"mailed_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	Recipient      *string         `json:"recipient,omitempty"    db:"recipient"`
	Metadata       json.RawMessage `json:"metadata,omitempty"     db:"metadata"`
}

// CreateCertifiedMailRequest records a mailing accepted by a provider.
type CreateCertifiedMailRequest struct {
	CaseID         string
	TrackingNumber string
	Provider       string
	Status         MailStatus
	MailedAt       time.Time
	Recipient      *string
	Metadata       json.RawMessage
}

// Validate validates the CreateCertifiedMailRequest fields.
func (r *CreateCertifiedMailRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" {
		return errors.New("case id is required")
	}
	if strings.TrimSpace(r.TrackingNumber) == "" {
		return errors.New("tracking number is required")
	}
	if strings.TrimSpace(r.Provider) == "" {
		return errors.New("provider is required")
	}
	if _, err := ParseMailStatus(string(r.Status)); err != nil {
		return err
	}
	return nil
}

// UpdateMailStatusRequest applies a provider status callback.
type UpdateMailStatusRequest struct {
	TrackingNumber string     `json:"-"`
	Status         MailStatus `json:"status"                 validate:"required"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// Narration is a persona-attributed announcement published to notification sinks.
type Narration struct {
	Persona  string `json:"persona"`
	Message  string `json:"message"`
	Priority int    `json:"priority,omitempty"`
	CaseID   string `json:"case_id,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Narration personas.
const (
	PersonaVaultGuardian = "VAULT_GUARDIAN"
	PersonaSentinel      = "SENTINEL"
	PersonaSintraPrime   = "SINTRAPRIME"
	PersonaOracle        = "ORACLE"
)

package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/audit"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
)

// maxInputLength bounds what a scanner or client can feed into resolution.
// QR payloads from misaimed scans (URLs, vCards) are legitimate inputs to
// reject, but nothing sensible exceeds this.
const maxInputLength = 512

// RequestMeta carries caller attribution for the audit trail.
type RequestMeta struct {
	SourceIP  string
	UserAgent string
	RequestID string
}

// PatientView is the resolution result. Demographics are always present;
// the clinical summary is only populated for callers with a clinical role.
type PatientView struct {
	ID         uuid.UUID  `json:"id"`
	MRN        string     `json:"mrn"`
	Active     bool       `json:"active"`
	FirstName  string     `json:"first_name"`
	MiddleName string     `json:"middle_name,omitempty"`
	LastName   string     `json:"last_name"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Gender     string     `json:"gender,omitempty"`

	Clinical *ClinicalSummary `json:"clinical,omitempty"`
}

type ClinicalSummary struct {
	BloodGroup        string   `json:"blood_group,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	ChronicConditions []string `json:"chronic_conditions,omitempty"`
	LatestDiagnosis   string   `json:"latest_diagnosis,omitempty"`
}

type Service struct {
	patients identity.PatientRepository
	trail    *audit.Service
	logger   zerolog.Logger
}

func NewService(patients identity.PatientRepository, trail *audit.Service, logger zerolog.Logger) *Service {
	return &Service{patients: patients, trail: trail, logger: logger}
}

// Resolve turns a scanned or typed identifier into a patient view.
//
// The input is normalized (trimmed, uppercased) and validated before any
// storage access. A well-formed code is looked up exactly, then
// case-insensitively. When the raw input is longer than a medical record
// number, the last five characters are retried once through the same
// sequence, which recovers codes embedded in prefixed QR payloads. Inputs
// over the length bound are rejected outright, with no fallback.
//
// Every call records exactly one audit entry, whatever the outcome.
func (s *Service) Resolve(ctx context.Context, raw string, meta RequestMeta) (*PatientView, error) {
	entry := &audit.ScanEntry{
		RawLength: len(raw),
		ActorID:   auth.UserIDFromContext(ctx),
		Roles:     auth.RolesFromContext(ctx),
		SourceIP:  meta.SourceIP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	}
	defer func() { s.trail.RecordAttempt(ctx, entry) }()

	if len(raw) > maxInputLength {
		// The trail keeps the true raw length; the stored code stays bounded.
		entry.Code = identity.NormalizeMRN(raw[:maxInputLength])
		entry.Outcome = audit.OutcomeInvalidFormat
		return nil, fmt.Errorf("%w: input exceeds %d characters", ErrInvalidFormat, maxInputLength)
	}
	code := identity.NormalizeMRN(raw)
	entry.Code = code

	p, err := s.resolveCode(ctx, code)
	if errors.Is(err, ErrInvalidFormat) && len(code) > identity.MRNLength {
		// Scanners sometimes deliver the code with a payload prefix; one
		// retry on the trailing characters covers that without opening the
		// door to substring scanning. The retry's outcome replaces the
		// original, since an oversized input always fails validation.
		suffix := code[len(code)-identity.MRNLength:]
		entry.Code = suffix
		p, err = s.resolveCode(ctx, suffix)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFormat):
			entry.Outcome = audit.OutcomeInvalidFormat
		case errors.Is(err, ErrNotFound):
			entry.Outcome = audit.OutcomeNotFound
		default:
			entry.Outcome = audit.OutcomeLookupError
		}
		return nil, err
	}

	entry.Outcome = audit.OutcomeResolved
	entry.PatientID = &p.ID

	view := &PatientView{
		ID:         p.ID,
		MRN:        p.MRN,
		Active:     p.Active,
		FirstName:  p.FirstName,
		MiddleName: p.MiddleName,
		LastName:   p.LastName,
		BirthDate:  p.BirthDate,
		Gender:     p.Gender,
	}
	if auth.HasClinicalRole(entry.Roles) {
		view.Clinical = s.clinicalSummary(ctx, p)
	}
	return view, nil
}

// resolveCode runs the single-code lookup sequence: validate, exact match,
// case-insensitive fallback.
func (s *Service) resolveCode(ctx context.Context, code string) (*identity.Patient, error) {
	if err := identity.ValidateMRN(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	p, err := s.patients.GetByMRN(ctx, code)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	p, err = s.patients.GetByMRNFold(ctx, code)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: %v", ErrLookup, err)
}

// clinicalSummary assembles the role-gated portion of the view. Failures
// here degrade to a partial summary rather than failing the resolution.
func (s *Service) clinicalSummary(ctx context.Context, p *identity.Patient) *ClinicalSummary {
	summary := &ClinicalSummary{BloodGroup: p.BloodGroup}

	rec, err := s.patients.LatestRecord(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().Err(err).Str("mrn", p.MRN).Msg("could not load latest medical record")
		}
		return summary
	}
	summary.Allergies = rec.Allergies
	summary.ChronicConditions = rec.ChronicConditions
	summary.LatestDiagnosis = rec.Diagnosis
	return summary
}

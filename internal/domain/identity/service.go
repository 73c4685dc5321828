package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// mrnAssignAttempts bounds how many times Register redraws after a unique
// violation. Collisions are rare at this keyspace size (~15M codes), so more
// than a couple of retries indicates something else is wrong.
const mrnAssignAttempts = 5

type Service struct {
	patients PatientRepository
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients}
}

// Register creates a patient and assigns a freshly generated medical record
// number. The MRN is permanent for the lifetime of the patient record.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.MRN != "" {
		return fmt.Errorf("mrn is assigned by the system and cannot be supplied")
	}
	p.Active = true

	for attempt := 0; attempt < mrnAssignAttempts; attempt++ {
		mrn, err := GenerateMRN()
		if err != nil {
			return fmt.Errorf("generating mrn: %w", err)
		}
		p.MRN = mrn
		err = s.patients.Create(ctx, p)
		if errors.Is(err, ErrDuplicateMRN) {
			continue
		}
		return err
	}
	return fmt.Errorf("could not assign a unique mrn after %d attempts", mrnAssignAttempts)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return s.patients.GetByMRN(ctx, NormalizeMRN(mrn))
}

// Update modifies patient demographics. The MRN is immutable: a request that
// tries to change it is rejected rather than silently ignored.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	current, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("loading patient: %w", err)
	}
	if p.MRN != "" && p.MRN != current.MRN {
		return fmt.Errorf("mrn is permanent and cannot be changed")
	}
	p.MRN = current.MRN
	p.Active = current.Active
	return s.patients.Update(ctx, p)
}

// Deactivate marks a patient inactive. Patient rows are never deleted; the
// MRN stays reserved so scanned wristbands keep resolving to history.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.patients.Deactivate(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) AddRecord(ctx context.Context, rec *MedicalRecord) error {
	if rec.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if rec.Diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	return s.patients.AddRecord(ctx, rec)
}

func (s *Service) GetRecords(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.patients.GetRecords(ctx, patientID, limit, offset)
}

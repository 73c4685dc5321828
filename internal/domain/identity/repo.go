package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByMRN matches the MRN exactly against stored (uppercase) values.
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	// GetByMRNFold matches case-insensitively, for inputs from sources that
	// may have lowercased the code in transit.
	GetByMRNFold(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	AddRecord(ctx context.Context, rec *MedicalRecord) error
	GetRecords(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	LatestRecord(ctx context.Context, patientID uuid.UUID) (*MedicalRecord, error)
}

package lookup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/audit"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
)

type stubPatientRepo struct {
	byMRN      map[string]*identity.Patient
	latest     map[uuid.UUID]*identity.MedicalRecord
	storeErr   error
	lookupHits int
}

func newStubRepo() *stubPatientRepo {
	return &stubPatientRepo{
		byMRN:  make(map[string]*identity.Patient),
		latest: make(map[uuid.UUID]*identity.MedicalRecord),
	}
}

func (s *stubPatientRepo) add(mrn string, p *identity.Patient) *identity.Patient {
	p.ID = uuid.New()
	p.MRN = mrn
	p.Active = true
	s.byMRN[mrn] = p
	return p
}

func (s *stubPatientRepo) GetByMRN(ctx context.Context, mrn string) (*identity.Patient, error) {
	s.lookupHits++
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	if p, ok := s.byMRN[mrn]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubPatientRepo) GetByMRNFold(ctx context.Context, mrn string) (*identity.Patient, error) {
	s.lookupHits++
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	for stored, p := range s.byMRN {
		if strings.EqualFold(stored, mrn) {
			return p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubPatientRepo) LatestRecord(ctx context.Context, patientID uuid.UUID) (*identity.MedicalRecord, error) {
	if rec, ok := s.latest[patientID]; ok {
		return rec, nil
	}
	return nil, pgx.ErrNoRows
}

// Unused by the resolution path.
func (s *stubPatientRepo) Create(ctx context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error) {
	return nil, pgx.ErrNoRows
}
func (s *stubPatientRepo) Update(ctx context.Context, p *identity.Patient) error { return nil }
func (s *stubPatientRepo) Deactivate(ctx context.Context, id uuid.UUID) error    { return nil }
func (s *stubPatientRepo) List(ctx context.Context, limit, offset int) ([]*identity.Patient, int, error) {
	return nil, 0, nil
}
func (s *stubPatientRepo) AddRecord(ctx context.Context, rec *identity.MedicalRecord) error {
	return nil
}
func (s *stubPatientRepo) GetRecords(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*identity.MedicalRecord, int, error) {
	return nil, 0, nil
}

type captureScanRepo struct {
	entries []*audit.ScanEntry
}

func (c *captureScanRepo) Insert(ctx context.Context, e *audit.ScanEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureScanRepo) List(ctx context.Context, f audit.ListFilter, limit, offset int) ([]*audit.ScanEntry, int, error) {
	return c.entries, len(c.entries), nil
}

func newTestService(repo *stubPatientRepo) (*Service, *captureScanRepo) {
	scans := &captureScanRepo{}
	trail := audit.NewService(scans, zerolog.Nop())
	return NewService(repo, trail, zerolog.Nop()), scans
}

func ctxWithRoles(roles ...string) context.Context {
	ctx := context.WithValue(context.Background(), auth.UserIDKey, "u1")
	return context.WithValue(ctx, auth.UserRolesKey, roles)
}

func TestResolve_ExactMatch(t *testing.T) {
	repo := newStubRepo()
	want := repo.add("K7M3X", &identity.Patient{FirstName: "Asha", LastName: "Rao"})
	svc, scans := newTestService(repo)

	view, err := svc.Resolve(ctxWithRoles("receptionist"), "K7M3X", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.ID != want.ID || view.MRN != "K7M3X" {
		t.Errorf("unexpected view: %+v", view)
	}
	if len(scans.entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", len(scans.entries))
	}
	if scans.entries[0].Outcome != audit.OutcomeResolved {
		t.Errorf("unexpected outcome %q", scans.entries[0].Outcome)
	}
	if scans.entries[0].PatientID == nil || *scans.entries[0].PatientID != want.ID {
		t.Error("audit entry missing resolved patient id")
	}
}

func TestResolve_NormalizesInput(t *testing.T) {
	repo := newStubRepo()
	repo.add("9K3F4", &identity.Patient{FirstName: "Ravi", LastName: "Iyer"})
	svc, _ := newTestService(repo)

	view, err := svc.Resolve(ctxWithRoles("nurse"), "  9k3f4 ", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.MRN != "9K3F4" {
		t.Errorf("expected 9K3F4, got %q", view.MRN)
	}
}

func TestResolve_CaseInsensitiveFallback(t *testing.T) {
	// A store with a lowercase legacy row is still found via the fold query.
	repo := newStubRepo()
	p := repo.add("9k3f4", &identity.Patient{FirstName: "Ravi", LastName: "Iyer"})
	svc, _ := newTestService(repo)

	view, err := svc.Resolve(ctxWithRoles("nurse"), "9K3F4", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.ID != p.ID {
		t.Error("fold lookup did not resolve the patient")
	}
}

func TestResolve_InvalidFormatNeverHitsStore(t *testing.T) {
	repo := newStubRepo()
	svc, scans := newTestService(repo)

	for _, input := range []string{"", "AB", "ABCDE", "23456", "K7M3O"} {
		repo.lookupHits = 0
		_, err := svc.Resolve(ctxWithRoles("nurse"), input, RequestMeta{})
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidFormat", input, err)
		}
		if repo.lookupHits != 0 {
			t.Errorf("Resolve(%q) touched the store %d times", input, repo.lookupHits)
		}
	}
	if len(scans.entries) != 5 {
		t.Errorf("expected one audit entry per attempt, got %d", len(scans.entries))
	}
	for _, e := range scans.entries {
		if e.Outcome != audit.OutcomeInvalidFormat {
			t.Errorf("unexpected outcome %q", e.Outcome)
		}
	}
}

func TestResolve_SuffixRetryOnPrefixedPayload(t *testing.T) {
	repo := newStubRepo()
	p := repo.add("K7M3X", &identity.Patient{FirstName: "Asha", LastName: "Rao"})
	svc, scans := newTestService(repo)

	view, err := svc.Resolve(ctxWithRoles("nurse"), "https://hospital.example/p/K7M3X", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.ID != p.ID {
		t.Error("suffix retry did not resolve the patient")
	}
	if len(scans.entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", len(scans.entries))
	}
	if scans.entries[0].Code != "K7M3X" {
		t.Errorf("audit entry should carry the resolved suffix, got %q", scans.entries[0].Code)
	}
}

func TestResolve_SuffixRetryNotFound(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Resolve(ctxWithRoles("nurse"), "payload-X9Q2R", RequestMeta{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_NotFoundVsLookupError(t *testing.T) {
	repo := newStubRepo()
	svc, scans := newTestService(repo)

	_, err := svc.Resolve(ctxWithRoles("nurse"), "X9Q2R", RequestMeta{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	repo.storeErr = errors.New("connection refused")
	_, err = svc.Resolve(ctxWithRoles("nurse"), "X9Q2R", RequestMeta{})
	if !errors.Is(err, ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}

	if len(scans.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(scans.entries))
	}
	if scans.entries[0].Outcome != audit.OutcomeNotFound {
		t.Errorf("first outcome = %q, want not_found", scans.entries[0].Outcome)
	}
	if scans.entries[1].Outcome != audit.OutcomeLookupError {
		t.Errorf("second outcome = %q, want lookup_error", scans.entries[1].Outcome)
	}
}

func TestResolve_OversizedInputBounded(t *testing.T) {
	repo := newStubRepo()
	svc, scans := newTestService(repo)

	huge := strings.Repeat("A", 4096)
	_, err := svc.Resolve(ctxWithRoles("nurse"), huge, RequestMeta{})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if repo.lookupHits != 0 {
		t.Errorf("oversized input touched the store %d times", repo.lookupHits)
	}
	if scans.entries[0].RawLength != 4096 {
		t.Errorf("raw length = %d, want 4096", scans.entries[0].RawLength)
	}
	if len(scans.entries[0].Code) > maxInputLength {
		t.Errorf("stored code exceeds bound: %d chars", len(scans.entries[0].Code))
	}
}

func TestResolve_OversizedInputSkipsSuffixFallback(t *testing.T) {
	// A registered MRN sitting right at the truncation boundary must not be
	// resolvable through an over-bound payload.
	repo := newStubRepo()
	repo.add("K7M3X", &identity.Patient{FirstName: "Asha", LastName: "Rao"})
	svc, scans := newTestService(repo)

	payload := strings.Repeat("x", maxInputLength-5) + "K7M3X" + strings.Repeat("x", 88)
	_, err := svc.Resolve(ctxWithRoles("nurse"), payload, RequestMeta{})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if repo.lookupHits != 0 {
		t.Errorf("oversized input touched the store %d times", repo.lookupHits)
	}
	if scans.entries[0].Outcome != audit.OutcomeInvalidFormat {
		t.Errorf("unexpected outcome %q", scans.entries[0].Outcome)
	}
}

func TestResolve_ClinicalSummaryRoleGated(t *testing.T) {
	repo := newStubRepo()
	p := repo.add("K7M3X", &identity.Patient{FirstName: "Asha", LastName: "Rao", BloodGroup: "O+"})
	repo.latest[p.ID] = &identity.MedicalRecord{
		PatientID: p.ID,
		Diagnosis: "Type 2 diabetes",
		Allergies: []string{"penicillin"},
	}
	svc, _ := newTestService(repo)

	// Receptionists see demographics only.
	view, err := svc.Resolve(ctxWithRoles("receptionist"), "K7M3X", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.Clinical != nil {
		t.Error("receptionist should not receive clinical summary")
	}

	// Clinical roles get the summary.
	view, err = svc.Resolve(ctxWithRoles("physician"), "K7M3X", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.Clinical == nil {
		t.Fatal("physician should receive clinical summary")
	}
	if view.Clinical.BloodGroup != "O+" || view.Clinical.LatestDiagnosis != "Type 2 diabetes" {
		t.Errorf("unexpected summary: %+v", view.Clinical)
	}
	if len(view.Clinical.Allergies) != 1 || view.Clinical.Allergies[0] != "penicillin" {
		t.Errorf("unexpected allergies: %v", view.Clinical.Allergies)
	}
}

func TestResolve_NoRecordsStillReturnsSummary(t *testing.T) {
	repo := newStubRepo()
	repo.add("K7M3X", &identity.Patient{FirstName: "Asha", LastName: "Rao", BloodGroup: "AB-"})
	svc, _ := newTestService(repo)

	view, err := svc.Resolve(ctxWithRoles("physician"), "K7M3X", RequestMeta{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.Clinical == nil || view.Clinical.BloodGroup != "AB-" {
		t.Errorf("expected summary with blood group, got %+v", view.Clinical)
	}
	if view.Clinical.LatestDiagnosis != "" {
		t.Errorf("expected empty diagnosis, got %q", view.Clinical.LatestDiagnosis)
	}
}

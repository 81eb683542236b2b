package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

func strPtr(v string) *string { return &v }

type mockApplicantStore struct {
	mu         sync.Mutex
	applicants map[string]*models.Applicant
	statuses   map[string]models.ApplicantStatus
	updateErrs map[string][]error
}

func newMockApplicantStore(applicants ...*models.Applicant) *mockApplicantStore {
	m := &mockApplicantStore{
		applicants: make(map[string]*models.Applicant),
		statuses:   make(map[string]models.ApplicantStatus),
		updateErrs: make(map[string][]error),
	}
	for _, a := range applicants {
		m.applicants[a.ID] = a
	}
	return m
}

func (m *mockApplicantStore) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.applicants[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicantStore) ListPending(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Applicant
	for _, a := range m.applicants {
		if a.Status == models.ApplicantStatusPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockApplicantStore) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.updateErrs[id]; len(errs) > 0 {
		err := errs[0]
		m.updateErrs[id] = errs[1:]
		if err != nil {
			return err
		}
	}
	m.statuses[id] = status
	if a, ok := m.applicants[id]; ok {
		a.Status = status
	}
	return nil
}

type mockStudentCreator struct {
	mu        sync.Mutex
	created   []models.Student
	createErr map[string]error
	seq       int
}

func (m *mockStudentCreator) Create(ctx context.Context, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.createErr[student.ApplicantID]; ok {
		return err
	}
	for _, existing := range m.created {
		if existing.ApplicantID == student.ApplicantID {
			return appErrors.Clone(appErrors.ErrConflict, "student already exists for applicant")
		}
	}
	m.seq++
	student.ID = fmt.Sprintf("student-%d", m.seq)
	m.created = append(m.created, *student)
	return nil
}

type mockYearReader struct{ year *models.AcademicYear }

func (m *mockYearReader) FindActive(ctx context.Context) (*models.AcademicYear, error) {
	if m.year == nil {
		return nil, sql.ErrNoRows
	}
	return m.year, nil
}

func pendingApplicant(id string, score *float64, classID string) *models.Applicant {
	a := &models.Applicant{
		ID:        id,
		FirstName: "Applicant",
		LastName:  id,
		Status:    models.ApplicantStatusPending,
		Score:     score,
		SchoolID:  strPtr("school-1"),
	}
	if classID != "" {
		a.ClassID = strPtr(classID)
	}
	return a
}

func newAdmissionFixture(occupied int, slots *int) (*AdmissionService, *mockApplicantStore, *mockStudentCreator, *mockOccupancyReader) {
	reader := &mockOccupancyReader{
		occupied: map[string]int{"class-1": occupied},
		slots:    map[string]*int{"class-1": slots},
	}
	applicants := newMockApplicantStore()
	students := &mockStudentCreator{createErr: map[string]error{}}
	ledger := NewCapacityLedger(reader, zap.NewNop())
	years := &mockYearReader{year: &models.AcademicYear{ID: "year-1", Label: "2026/2027", Active: true}}
	svc := NewAdmissionService(applicants, students, ledger, years, NewMemoryPromotionGuard(time.Minute), zap.NewNop(), 50)
	return svc, applicants, students, reader
}

func TestProcessTerminalStateIsNoOp(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	for _, status := range []models.ApplicantStatus{models.ApplicantStatusApproved, models.ApplicantStatusRejected} {
		a := pendingApplicant("a1", floatPtr(80), "class-1")
		a.Status = status

		outcome := svc.Process(context.Background(), a, 50)
		assert.Equal(t, models.OutcomeSkipped, outcome.Kind)
		assert.Empty(t, students.created)
		assert.Empty(t, applicants.statuses)
	}
}

func TestProcessBlockedOnUngradedScore(t *testing.T) {
	// Scenario C: a zero score is ungraded, not a failing grade.
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	a := pendingApplicant("a1", floatPtr(0), "class-1")

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeBlocked, outcome.Kind)
	assert.Equal(t, models.BlockReasonScoreMissing, outcome.Reason)
	assert.Equal(t, models.ApplicantStatusPending, a.Status)
	assert.Empty(t, students.created)
	assert.Empty(t, applicants.statuses)
}

func TestProcessRejectsFailingScore(t *testing.T) {
	// Scenario B: fail the pass mark, no student created.
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	a := pendingApplicant("a1", floatPtr(30), "class-1")
	applicants.applicants["a1"] = a

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeRejected, outcome.Kind)
	assert.Equal(t, models.ApplicantStatusRejected, applicants.statuses["a1"])
	assert.Empty(t, students.created)
}

func TestProcessBlockedWithoutPlacement(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	a := pendingApplicant("a1", floatPtr(80), "")

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeBlocked, outcome.Kind)
	assert.Equal(t, models.BlockReasonMissingPlacement, outcome.Reason)
	assert.Equal(t, models.ApplicantStatusPending, a.Status)
	assert.Empty(t, students.created)
	assert.Empty(t, applicants.statuses)
}

func TestProcessBlockedOnFullClass(t *testing.T) {
	// Scenario A: 30/30 seats taken, passing applicant stays pending.
	svc, applicants, students, _ := newAdmissionFixture(30, intPtr(30))
	a := pendingApplicant("a1", floatPtr(72), "class-1")

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeBlocked, outcome.Kind)
	assert.Equal(t, models.BlockReasonClassFull, outcome.Reason)
	assert.Equal(t, models.ApplicantStatusPending, a.Status)
	assert.Empty(t, students.created)
	assert.Empty(t, applicants.statuses)
}

func TestProcessPromotesPassingApplicant(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(10, intPtr(30))
	a := pendingApplicant("a1", floatPtr(72), "class-1")
	applicants.applicants["a1"] = a

	outcome := svc.Process(context.Background(), a, 50)
	require.Equal(t, models.OutcomePromoted, outcome.Kind)
	assert.NotEmpty(t, outcome.StudentID)
	assert.Equal(t, models.ApplicantStatusApproved, applicants.statuses["a1"])

	require.Len(t, students.created, 1)
	created := students.created[0]
	assert.Equal(t, "a1", created.ApplicantID)
	assert.Equal(t, "class-1", created.ClassID)
	assert.Equal(t, "year-1", created.AcademicYearID)
	assert.Equal(t, models.StudentStatusInactive, created.Status)
	assert.Equal(t, models.AdmissionStatusAdmitted, created.AdmissionStatus)
}

func TestProcessDuplicateStudentDoesNotAdvanceApplicant(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	students.createErr["a1"] = appErrors.Clone(appErrors.ErrConflict, "duplicate")
	a := pendingApplicant("a1", floatPtr(80), "class-1")

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeDuplicate, outcome.Kind)
	assert.Empty(t, applicants.statuses, "applicant status must not advance when creation fails")
}

func TestProcessRetriesApprovalUpdateOnce(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	a := pendingApplicant("a1", floatPtr(80), "class-1")
	applicants.applicants["a1"] = a
	applicants.updateErrs["a1"] = []error{fmt.Errorf("transient network error")}

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomePromoted, outcome.Kind)
	assert.Equal(t, models.ApplicantStatusApproved, applicants.statuses["a1"])
	assert.Len(t, students.created, 1)
}

func TestProcessApprovalFailureAfterRetryIsError(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	a := pendingApplicant("a1", floatPtr(80), "class-1")
	applicants.applicants["a1"] = a
	applicants.updateErrs["a1"] = []error{fmt.Errorf("boom"), fmt.Errorf("boom again")}

	outcome := svc.Process(context.Background(), a, 50)
	assert.Equal(t, models.OutcomeError, outcome.Kind)
	// The student record stands; a re-run will surface a duplicate instead
	// of creating a sibling record.
	assert.Len(t, students.created, 1)
	assert.NotEmpty(t, outcome.StudentID)
}

func TestRunAllPartitionsEveryApplicant(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	students.createErr["a2"] = appErrors.Clone(appErrors.ErrConflict, "duplicate")

	batch := []models.Applicant{
		*pendingApplicant("a1", floatPtr(90), "class-1"),
		*pendingApplicant("a2", floatPtr(85), "class-1"),
		*pendingApplicant("a3", floatPtr(70), "class-1"),
		*pendingApplicant("a4", floatPtr(20), "class-1"),
		*pendingApplicant("a5", nil, "class-1"),
	}
	for i := range batch {
		a := batch[i]
		applicants.applicants[a.ID] = &a
	}

	report, err := svc.RunAll(context.Background(), batch, 50)
	require.NoError(t, err)

	// Scenario D shape: duplicate in the middle does not halt the rest.
	assert.Len(t, report.Promoted, 2)
	assert.Equal(t, []string{"Applicant a2"}, report.Duplicates)
	assert.Equal(t, []string{"Applicant a4"}, report.Rejected)
	require.Len(t, report.Blocked, 1)
	assert.Equal(t, models.BlockReasonScoreMissing, report.Blocked[0].Reason)
	assert.Empty(t, report.Errors)
	assert.Equal(t, len(batch), report.Processed(), "every applicant lands in exactly one bucket")

	assert.Equal(t, models.ApplicantStatusApproved, applicants.statuses["a1"])
	assert.Equal(t, models.ApplicantStatusApproved, applicants.statuses["a3"])
}

func TestRunAllStopsOvershootingCapacity(t *testing.T) {
	// Three passing applicants, one remaining seat: the in-run ledger must
	// block the second and third even though the store snapshot is stale.
	reader := &mockOccupancyReader{
		occupied: map[string]int{"class-1": 29},
		slots:    map[string]*int{"class-1": intPtr(30)},
	}
	applicants := newMockApplicantStore()
	students := &mockStudentCreator{createErr: map[string]error{}}
	ledger := NewCapacityLedger(reader, zap.NewNop())
	years := &mockYearReader{year: &models.AcademicYear{ID: "year-1"}}
	svc := NewAdmissionService(applicants, students, ledger, years, NewMemoryPromotionGuard(time.Minute), zap.NewNop(), 50)

	batch := []models.Applicant{
		*pendingApplicant("a1", floatPtr(90), "class-1"),
		*pendingApplicant("a2", floatPtr(80), "class-1"),
		*pendingApplicant("a3", floatPtr(70), "class-1"),
	}
	for i := range batch {
		a := batch[i]
		applicants.applicants[a.ID] = &a
	}

	report, err := svc.RunAll(context.Background(), batch, 50)
	require.NoError(t, err)
	assert.Len(t, report.Promoted, 1)
	require.Len(t, report.Blocked, 2)
	for _, blocked := range report.Blocked {
		assert.Equal(t, models.BlockReasonClassFull, blocked.Reason)
	}
	assert.Len(t, students.created, 1)
}

func TestRunAllCancellationBetweenApplicants(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := []models.Applicant{*pendingApplicant("a1", floatPtr(90), "class-1")}
	applicants.applicants["a1"] = &batch[0]

	report, err := svc.RunAll(ctx, batch, 50)
	require.Error(t, err)
	assert.Equal(t, 0, report.Processed())
	assert.Empty(t, students.created)
}

func TestRunAllRejectsNonPositivePassMark(t *testing.T) {
	reader := &mockOccupancyReader{occupied: map[string]int{}}
	svc := NewAdmissionService(newMockApplicantStore(), &mockStudentCreator{}, NewCapacityLedger(reader, zap.NewNop()), &mockYearReader{}, nil, zap.NewNop(), 50)
	report, err := svc.RunAll(context.Background(), nil, 0)
	// A zero pass mark falls back to the configured default.
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed())
}

func TestRunOnePromotes(t *testing.T) {
	svc, applicants, students, _ := newAdmissionFixture(0, intPtr(30))
	applicants.applicants["a1"] = pendingApplicant("a1", floatPtr(75), "class-1")

	outcome, err := svc.RunOne(context.Background(), "a1", 50)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePromoted, outcome.Kind)
	assert.Len(t, students.created, 1)
}

func TestRunOneUnknownApplicant(t *testing.T) {
	svc, _, _, _ := newAdmissionFixture(0, intPtr(30))
	_, err := svc.RunOne(context.Background(), "missing", 50)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRunOneDebouncesConcurrentSubmits(t *testing.T) {
	svc, applicants, _, _ := newAdmissionFixture(0, intPtr(30))
	applicants.applicants["a1"] = pendingApplicant("a1", floatPtr(75), "class-1")

	guard := NewMemoryPromotionGuard(time.Minute)
	acquired, err := guard.Acquire(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, acquired)

	svc.guard = guard
	outcome, err := svc.RunOne(context.Background(), "a1", 50)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, outcome.Kind)
	assert.Equal(t, models.BlockReasonInProgress, outcome.Reason)

	guard.Release(context.Background(), "a1")
	outcome, err = svc.RunOne(context.Background(), "a1", 50)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePromoted, outcome.Kind)
}

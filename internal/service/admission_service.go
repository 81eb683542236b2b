package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type applicantStore interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	ListPending(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error
}

type studentCreator interface {
	Create(ctx context.Context, student *models.Student) error
}

type seatLedger interface {
	HasRoom(ctx context.Context, classID string, additional int) (bool, error)
	Reserve(classID string)
	Release(classID string)
}

// seatLedgerSource hands out a fresh seat ledger per run so overlapping
// batches cannot clear one another's in-run reservations.
type seatLedgerSource interface {
	Begin() seatLedger
}

type activeYearReader interface {
	FindActive(ctx context.Context) (*models.AcademicYear, error)
}

// PromotionGuard debounces concurrent promotion attempts for one applicant.
// Acquire returns false when another attempt already holds the guard.
type PromotionGuard interface {
	Acquire(ctx context.Context, applicantID string) (bool, error)
	Release(ctx context.Context, applicantID string)
}

type admissionMetrics interface {
	RecordAdmissionOutcome(kind models.OutcomeKind)
}

// AdmissionService runs the applicant pipeline: scoring, capacity-checked
// class assignment and the applicant→student conversion.
//
// Statuses only move PENDING→APPROVED or PENDING→REJECTED; terminal states
// are never re-entered, which makes re-running a batch safe. Student creation
// and the applicant status update are two store calls with no transaction
// around them: when creation fails the status is never advanced, and when the
// status update fails after a successful creation the update alone is retried
// once rather than recreating the student.
type AdmissionService struct {
	applicants applicantStore
	students   studentCreator
	ledger     seatLedgerSource
	years      activeYearReader
	guard      PromotionGuard
	metrics    admissionMetrics
	logger     *zap.Logger

	defaultPassMark float64
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(applicants applicantStore, students studentCreator, ledger seatLedgerSource, years activeYearReader, guard PromotionGuard, logger *zap.Logger, defaultPassMark float64) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guard == nil {
		guard = NewMemoryPromotionGuard(0)
	}
	if defaultPassMark <= 0 {
		defaultPassMark = 50
	}
	return &AdmissionService{
		applicants:      applicants,
		students:        students,
		ledger:          ledger,
		years:           years,
		guard:           guard,
		logger:          logger,
		defaultPassMark: defaultPassMark,
	}
}

// WithMetrics attaches an outcome recorder.
func (s *AdmissionService) WithMetrics(m admissionMetrics) *AdmissionService {
	s.metrics = m
	return s
}

// DefaultPassMark returns the pass mark used when callers omit one.
func (s *AdmissionService) DefaultPassMark() float64 {
	return s.defaultPassMark
}

// Process runs one applicant through the pipeline and returns the outcome.
// Nothing is mutated unless the applicant is pending with a usable score.
func (s *AdmissionService) Process(ctx context.Context, applicant *models.Applicant, passMark float64) models.Outcome {
	return s.processRun(ctx, s.ledger.Begin(), applicant, passMark)
}

func (s *AdmissionService) processRun(ctx context.Context, run seatLedger, applicant *models.Applicant, passMark float64) models.Outcome {
	outcome := s.process(ctx, run, applicant, passMark)
	if s.metrics != nil {
		s.metrics.RecordAdmissionOutcome(outcome.Kind)
	}
	return outcome
}

func (s *AdmissionService) process(ctx context.Context, run seatLedger, applicant *models.Applicant, passMark float64) models.Outcome {
	if applicant.Status.Terminal() {
		return models.Outcome{Kind: models.OutcomeSkipped}
	}

	switch EvaluateScore(applicant.Score, passMark) {
	case VerdictUndetermined:
		return models.Outcome{Kind: models.OutcomeBlocked, Reason: models.BlockReasonScoreMissing}
	case VerdictFail:
		if err := s.applicants.UpdateStatus(ctx, applicant.ID, models.ApplicantStatusRejected); err != nil {
			return models.Outcome{Kind: models.OutcomeError, Err: err}
		}
		applicant.Status = models.ApplicantStatusRejected
		return models.Outcome{Kind: models.OutcomeRejected}
	}

	// Pass. The registrar must have triaged the applicant into a class.
	if applicant.ClassID == nil || applicant.SchoolID == nil {
		return models.Outcome{Kind: models.OutcomeBlocked, Reason: models.BlockReasonMissingPlacement}
	}

	hasRoom, err := run.HasRoom(ctx, *applicant.ClassID, 1)
	if err != nil {
		return models.Outcome{Kind: models.OutcomeError, Err: err}
	}
	if !hasRoom {
		return models.Outcome{Kind: models.OutcomeBlocked, Reason: models.BlockReasonClassFull}
	}

	year, err := s.years.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Outcome{Kind: models.OutcomeError, Err: appErrors.Clone(appErrors.ErrPreconditionFailed, "no active academic year")}
		}
		return models.Outcome{Kind: models.OutcomeError, Err: err}
	}

	student := &models.Student{
		ApplicantID:     applicant.ID,
		FirstName:       applicant.FirstName,
		LastName:        applicant.LastName,
		Gender:          applicant.Gender,
		BirthDate:       applicant.BirthDate,
		GuardianName:    applicant.GuardianName,
		GuardianPhone:   applicant.GuardianPhone,
		ClassID:         *applicant.ClassID,
		SchoolID:        *applicant.SchoolID,
		AcademicYearID:  year.ID,
		AdmissionStatus: models.AdmissionStatusAdmitted,
		Status:          models.StudentStatusInactive,
	}
	if err := s.students.Create(ctx, student); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrConflict.Code {
			return models.Outcome{Kind: models.OutcomeDuplicate, Err: err}
		}
		return models.Outcome{Kind: models.OutcomeError, Err: err}
	}

	if err := s.applicants.UpdateStatus(ctx, applicant.ID, models.ApplicantStatusApproved); err != nil {
		// The student record already exists; retry the status update alone
		// so a second run cannot create a sibling record.
		s.logger.Warn("applicant approval update failed, retrying",
			zap.String("applicant_id", applicant.ID), zap.Error(err))
		if err := s.applicants.UpdateStatus(ctx, applicant.ID, models.ApplicantStatusApproved); err != nil {
			run.Reserve(*applicant.ClassID)
			return models.Outcome{Kind: models.OutcomeError, StudentID: student.ID, Err: err}
		}
	}
	applicant.Status = models.ApplicantStatusApproved

	run.Reserve(*applicant.ClassID)
	return models.Outcome{Kind: models.OutcomePromoted, StudentID: student.ID}
}

// RunAll processes every applicant exactly once, isolating per-applicant
// failures, and reports each applicant in exactly one bucket. The run stops
// early only on context cancellation, which is checked between applicants;
// already committed promotions stand.
func (s *AdmissionService) RunAll(ctx context.Context, applicants []models.Applicant, passMark float64) (*models.BatchReport, error) {
	if passMark <= 0 {
		passMark = s.defaultPassMark
	}
	if passMark <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pass mark must be positive")
	}

	run := s.ledger.Begin()
	report := &models.BatchReport{
		Promoted:   []string{},
		Duplicates: []string{},
		Errors:     []string{},
		Blocked:    []models.BlockedItem{},
		Rejected:   []string{},
	}

	for i := range applicants {
		if err := ctx.Err(); err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "batch admission cancelled")
		}
		applicant := &applicants[i]
		outcome := s.processRun(ctx, run, applicant, passMark)
		switch outcome.Kind {
		case models.OutcomePromoted:
			report.Promoted = append(report.Promoted, outcome.StudentID)
		case models.OutcomeRejected:
			report.Rejected = append(report.Rejected, applicant.FullName())
		case models.OutcomeDuplicate:
			report.Duplicates = append(report.Duplicates, applicant.FullName())
		case models.OutcomeBlocked:
			report.Blocked = append(report.Blocked, models.BlockedItem{Name: applicant.FullName(), Reason: outcome.Reason})
		case models.OutcomeSkipped:
			report.Skipped++
		default:
			s.logger.Warn("applicant processing failed",
				zap.String("applicant_id", applicant.ID), zap.Error(outcome.Err))
			report.Errors = append(report.Errors, applicant.FullName())
		}
	}

	return report, nil
}

// RunPending loads the pending cohort matching the filter and runs a batch
// over it. Callers should re-fetch the applicant list afterwards; the report
// is authoritative only for this run.
func (s *AdmissionService) RunPending(ctx context.Context, filter models.ApplicantFilter, passMark float64) (*models.BatchReport, error) {
	filter.Status = models.ApplicantStatusPending
	pending, err := s.applicants.ListPending(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending applicants")
	}
	return s.RunAll(ctx, pending, passMark)
}

// RunOne processes a single applicant by id with the same semantics as a
// batch of one, plus a per-applicant debounce guard so a double-submit cannot
// promote the same applicant twice concurrently.
func (s *AdmissionService) RunOne(ctx context.Context, applicantID string, passMark float64) (models.Outcome, error) {
	if passMark <= 0 {
		passMark = s.defaultPassMark
	}
	if passMark <= 0 {
		return models.Outcome{}, appErrors.Clone(appErrors.ErrValidation, "pass mark must be positive")
	}

	acquired, err := s.guard.Acquire(ctx, applicantID)
	if err != nil {
		return models.Outcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire promotion guard")
	}
	if !acquired {
		return models.Outcome{Kind: models.OutcomeBlocked, Reason: models.BlockReasonInProgress}, nil
	}
	defer s.guard.Release(ctx, applicantID)

	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Outcome{}, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return models.Outcome{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}

	return s.Process(ctx, applicant, passMark), nil
}

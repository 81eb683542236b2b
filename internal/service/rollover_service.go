package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type rolloverStudentStore interface {
	ListByYear(ctx context.Context, yearID string, statuses ...models.StudentStatus) ([]models.Student, error)
	Promote(ctx context.Context, studentID, classID, yearID string) error
	Graduate(ctx context.Context, studentID, yearID string) error
}

type rolloverMetrics interface {
	RecordRollover(report *models.RolloverReport)
}

// RolloverService performs the year-end bulk promotion: every enrolled
// student of the source year moves to the mapped class in the target year, or
// graduates when the mapping names no successor class.
//
// Students are handled one at a time and failures are isolated: a failed
// student is counted and reported, never retried, and never blocks the rest
// of the cohort. Destination capacity is not checked unless explicitly
// enabled; the mapping is assumed to have been sized by the operator.
type RolloverService struct {
	students rolloverStudentStore
	ledger   seatLedgerSource
	metrics  rolloverMetrics
	logger   *zap.Logger

	enforceCapacity bool
}

// NewRolloverService constructs a RolloverService.
func NewRolloverService(students rolloverStudentStore, ledger seatLedgerSource, logger *zap.Logger, enforceCapacity bool) *RolloverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverService{
		students:        students,
		ledger:          ledger,
		logger:          logger,
		enforceCapacity: enforceCapacity,
	}
}

// WithMetrics attaches a rollover recorder.
func (s *RolloverService) WithMetrics(m rolloverMetrics) *RolloverService {
	s.metrics = m
	return s
}

// Rollover applies the class mapping to every student of the cohort.
// Cancellation is checked between students; already moved students stand.
func (s *RolloverService) Rollover(ctx context.Context, students []models.Student, mapping models.ClassMapping, targetYearID string) (*models.RolloverReport, error) {
	if targetYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target academic year is required")
	}
	if len(mapping) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class mapping is required")
	}

	var run seatLedger
	if s.enforceCapacity && s.ledger != nil {
		run = s.ledger.Begin()
	}

	report := &models.RolloverReport{}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRollover(report)
		}
	}()
	for i := range students {
		if err := ctx.Err(); err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rollover cancelled")
		}
		s.rolloverOne(ctx, run, &students[i], mapping, targetYearID, report)
	}
	return report, nil
}

// RolloverYear loads the source cohort (shortlisted and enrolled students)
// and applies the mapping.
func (s *RolloverService) RolloverYear(ctx context.Context, sourceYearID, targetYearID string, mapping models.ClassMapping) (*models.RolloverReport, error) {
	if sourceYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source academic year is required")
	}
	if sourceYearID == targetYearID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target academic years must differ")
	}
	cohort, err := s.students.ListByYear(ctx, sourceYearID, models.StudentStatusActive, models.StudentStatusInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	return s.Rollover(ctx, cohort, mapping, targetYearID)
}

func (s *RolloverService) rolloverOne(ctx context.Context, run seatLedger, student *models.Student, mapping models.ClassMapping, targetYearID string, report *models.RolloverReport) {
	target, ok := mapping[student.ClassID]
	if !ok {
		// Configuration gap, not a failure of the student record: report it
		// and leave the student untouched.
		s.logger.Warn("no mapping for student's class",
			zap.String("student_id", student.ID),
			zap.String("class_id", student.ClassID))
		report.Failed++
		report.Unmapped = append(report.Unmapped, student.ClassID)
		report.Failures = append(report.Failures, models.RolloverFail{
			StudentID: student.ID,
			Name:      student.FullName(),
			Reason:    "no mapping for class " + student.ClassID,
		})
		return
	}

	if target == nil {
		// Terminal state: graduation keeps the class for the transcript and
		// only moves the year forward.
		if err := s.students.Graduate(ctx, student.ID, targetYearID); err != nil {
			s.fail(report, student, err)
			return
		}
		report.Graduated++
		report.Handled++
		return
	}

	if run != nil {
		hasRoom, err := run.HasRoom(ctx, *target, 1)
		if err != nil {
			s.fail(report, student, err)
			return
		}
		if !hasRoom {
			report.Failed++
			report.Failures = append(report.Failures, models.RolloverFail{
				StudentID: student.ID,
				Name:      student.FullName(),
				Reason:    "target class " + *target + " is full",
			})
			return
		}
	}

	if err := s.students.Promote(ctx, student.ID, *target, targetYearID); err != nil {
		s.fail(report, student, err)
		return
	}
	if run != nil {
		run.Reserve(*target)
	}
	report.Promoted++
	report.Handled++
}

func (s *RolloverService) fail(report *models.RolloverReport, student *models.Student, err error) {
	s.logger.Warn("rollover failed for student",
		zap.String("student_id", student.ID), zap.Error(err))
	report.Failed++
	report.Failures = append(report.Failures, models.RolloverFail{
		StudentID: student.ID,
		Name:      student.FullName(),
		Reason:    err.Error(),
	})
}

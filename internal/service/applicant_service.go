package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type applicantRepository interface {
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.ApplicantDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	Create(ctx context.Context, applicant *models.Applicant) error
	UpdateScore(ctx context.Context, id string, score float64) error
	UpdatePlacement(ctx context.Context, id, classID, schoolID string) error
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.SchoolClass, error)
}

type categoryReader interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
}

// RegisterApplicantRequest describes a registration submission.
type RegisterApplicantRequest struct {
	FirstName        string  `json:"first_name" validate:"required"`
	LastName         string  `json:"last_name" validate:"required"`
	Gender           string  `json:"gender" validate:"required,oneof=M F"`
	BirthDate        string  `json:"birth_date" validate:"required,datetime=2006-01-02"`
	GuardianName     string  `json:"guardian_name" validate:"required"`
	GuardianPhone    string  `json:"guardian_phone" validate:"required"`
	CategoryID       *string `json:"category_id,omitempty"`
	ClassApplyingFor string  `json:"class_applying_for" validate:"required"`
}

// ScoreRequest records an entrance exam score for an applicant.
type ScoreRequest struct {
	Score float64 `json:"score" validate:"gte=0"`
}

// TriageRequest assigns the concrete class and school after review.
type TriageRequest struct {
	ClassID  string `json:"class_id" validate:"required"`
	SchoolID string `json:"school_id" validate:"required"`
}

// ApplicantService manages registrations up to the admission decision.
type ApplicantService struct {
	repo       applicantRepository
	classes    classReader
	categories categoryReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewApplicantService constructs ApplicantService.
func NewApplicantService(repo applicantRepository, classes classReader, categories categoryReader, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicantService{repo: repo, classes: classes, categories: categories, validator: validate, logger: logger}
}

// List returns applicants with pagination metadata.
func (s *ApplicantService) List(ctx context.Context, filter models.ApplicantFilter) ([]models.ApplicantDetail, *models.Pagination, error) {
	applicants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applicants, pagination, nil
}

// Get fetches one applicant.
func (s *ApplicantService) Get(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

// Register creates a pending applicant from a registration submission.
func (s *ApplicantService) Register(ctx context.Context, req RegisterApplicantRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth date")
	}
	applicant := &models.Applicant{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Gender:           req.Gender,
		BirthDate:        birthDate,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		CategoryID:       req.CategoryID,
		ClassApplyingFor: req.ClassApplyingFor,
		Status:           models.ApplicantStatusPending,
	}
	if err := s.repo.Create(ctx, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create applicant")
	}
	return applicant, nil
}

// RecordScore stores an entrance exam score. Only pending applicants may be
// regraded; decided ones keep the score their verdict was based on.
func (s *ApplicantService) RecordScore(ctx context.Context, id string, req ScoreRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	applicant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if applicant.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant already decided")
	}
	if err := s.repo.UpdateScore(ctx, id, req.Score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record score")
	}
	applicant.Score = &req.Score
	return applicant, nil
}

// Triage assigns the applicant to a concrete class and school ahead of the
// admission decision.
func (s *ApplicantService) Triage(ctx context.Context, id string, req TriageRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid triage payload")
	}
	applicant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if applicant.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant already decided")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != req.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class does not belong to school")
	}
	if err := s.repo.UpdatePlacement(ctx, id, req.ClassID, req.SchoolID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to triage applicant")
	}
	applicant.ClassID = &req.ClassID
	applicant.SchoolID = &req.SchoolID
	return applicant, nil
}

func parseBirthDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}

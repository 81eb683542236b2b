package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type academicYearRepository interface {
	List(ctx context.Context) ([]models.AcademicYear, error)
	FindActive(ctx context.Context) (*models.AcademicYear, error)
}

type categoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
}

// AcademicYearService exposes academic year and applicant category lookups.
type AcademicYearService struct {
	years      academicYearRepository
	categories categoryRepository
	logger     *zap.Logger
}

// NewAcademicYearService wires the lookup service.
func NewAcademicYearService(years academicYearRepository, categories categoryRepository, logger *zap.Logger) *AcademicYearService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{years: years, categories: categories, logger: logger}
}

// List returns all academic years, newest first.
func (s *AcademicYearService) List(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.years.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// Active returns the single active academic year.
func (s *AcademicYearService) Active(ctx context.Context) (*models.AcademicYear, error) {
	year, err := s.years.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active academic year")
	}
	return year, nil
}

// Categories returns the applicant categories ordered by priority.
func (s *AcademicYearService) Categories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

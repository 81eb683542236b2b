package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

type classRepository interface {
	ListWithOccupancy(ctx context.Context, filter models.ClassFilter) ([]models.ClassOccupancy, int, error)
	Occupancy(ctx context.Context, classID string) (*models.ClassOccupancy, error)
}

// ClassService serves class listings annotated with seat usage. Listings may
// be cached; the admission pipeline never reads through this cache.
type ClassService struct {
	repo   classRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, cache *CacheService, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, logger: logger}
}

type classListPayload struct {
	Classes []models.ClassOccupancy `json:"classes"`
	Total   int                     `json:"total"`
}

// List returns classes with occupancy and pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassOccupancy, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	key := s.cacheKey(filter, page, size)
	if s.cache.Enabled() {
		var cached classListPayload
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Classes, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		}
	}

	classes, total, err := s.repo.ListWithOccupancy(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	for _, class := range classes {
		if class.Overbooked() {
			s.logger.Warn("class overbooked",
				zap.String("class_id", class.ID),
				zap.Int("occupied", class.Occupied),
				zap.Intp("slots", class.Slots))
		}
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, key, classListPayload{Classes: classes, Total: total}, 0)
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ClassService) cacheKey(filter models.ClassFilter, page, size int) string {
	return fmt.Sprintf("classes:occupancy:%s:%s:%d:%d", filter.SchoolID, filter.Search, page, size)
}

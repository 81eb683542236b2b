package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-api/internal/models"
)

// ClassRepository manages persistence for school classes and their seat usage.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// occupiedJoin counts students still holding a seat. Graduated students are
// excluded so freed seats become available for the next cohort.
const occupiedJoin = `LEFT JOIN (
        SELECT class_id, COUNT(*) AS occupied FROM students
        WHERE status IN ('INACTIVE', 'ACTIVE') GROUP BY class_id
    ) o ON o.class_id = c.id`

// ListWithOccupancy returns classes with their computed seat usage.
func (r *ClassRepository) ListWithOccupancy(ctx context.Context, filter models.ClassFilter) ([]models.ClassOccupancy, int, error) {
	base := fmt.Sprintf("FROM classes c %s", occupiedJoin)
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("c.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "c.name",
		"created_at": "c.created_at",
	}
	if sortBy == "" {
		sortBy = "name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.school_id, c.name, c.slots, c.created_at, c.updated_at,
        COALESCE(o.occupied, 0) AS occupied
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var classes []models.ClassOccupancy
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(c.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// Occupancy returns a single class with its current seat usage.
func (r *ClassRepository) Occupancy(ctx context.Context, classID string) (*models.ClassOccupancy, error) {
	query := fmt.Sprintf(`SELECT c.id, c.school_id, c.name, c.slots, c.created_at, c.updated_at,
        COALESCE(o.occupied, 0) AS occupied
        FROM classes c %s WHERE c.id = $1`, occupiedJoin)
	var occupancy models.ClassOccupancy
	if err := r.db.GetContext(ctx, &occupancy, query, classID); err != nil {
		return nil, err
	}
	return &occupancy, nil
}

// FindByID fetches a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	const query = `SELECT id, school_id, name, slots, created_at, updated_at FROM classes WHERE id = $1`
	var class models.SchoolClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

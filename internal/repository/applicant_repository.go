package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admission-api/internal/models"
)

// ApplicantRepository manages persistence for admission applicants.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs an ApplicantRepository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// List returns applicants matching the provided filters with category and
// class context joined in.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.ApplicantDetail, int, error) {
	base := "FROM applicants a LEFT JOIN categories cat ON cat.id = a.category_id LEFT JOIN classes c ON c.id = a.class_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("a.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(a.first_name) LIKE $%d OR LOWER(a.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"first_name": "a.first_name",
		"score":      "a.score",
		"status":     "a.status",
		"created_at": "a.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT a.id, a.first_name, a.last_name, a.gender, a.birth_date, a.guardian_name, a.guardian_phone,
        a.category_id, a.class_applying_for, a.class_id, a.school_id, a.score, a.status, a.created_at, a.updated_at,
        cat.name AS category_name, cat.priority AS category_priority, c.name AS class_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var applicants []models.ApplicantDetail
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(a.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// ListPending returns pending applicants, optionally narrowed by class or
// category, oldest registrations first.
func (r *ApplicantRepository) ListPending(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, error) {
	args := []interface{}{models.ApplicantStatusPending}
	conditions := []string{"status = $1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}

	query := fmt.Sprintf(`SELECT id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        category_id, class_applying_for, class_id, school_id, score, status, created_at, updated_at
        FROM applicants WHERE %s ORDER BY created_at ASC`, strings.Join(conditions, " AND "))

	var applicants []models.Applicant
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, fmt.Errorf("list pending applicants: %w", err)
	}
	return applicants, nil
}

// FindByID fetches a single applicant by ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	const query = `SELECT id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        category_id, class_applying_for, class_id, school_id, score, status, created_at, updated_at
        FROM applicants WHERE id = $1`
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// Create inserts a new applicant registration.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *models.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now
	}
	applicant.UpdatedAt = now
	if applicant.Status == "" {
		applicant.Status = models.ApplicantStatusPending
	}
	const query = `INSERT INTO applicants (id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        category_id, class_applying_for, class_id, school_id, score, status, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :gender, :birth_date, :guardian_name, :guardian_phone,
        :category_id, :class_applying_for, :class_id, :school_id, :score, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// UpdateScore records the entrance exam score.
func (r *ApplicantRepository) UpdateScore(ctx context.Context, id string, score float64) error {
	const query = `UPDATE applicants SET score = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score, time.Now().UTC()); err != nil {
		return fmt.Errorf("update applicant score: %w", err)
	}
	return nil
}

// UpdatePlacement assigns the applicant to a target class and school.
func (r *ApplicantRepository) UpdatePlacement(ctx context.Context, id, classID, schoolID string) error {
	const query = `UPDATE applicants SET class_id = $2, school_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, classID, schoolID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update applicant placement: %w", err)
	}
	return nil
}

// UpdateStatus transitions the applicant to its decided state.
func (r *ApplicantRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error {
	const query = `UPDATE applicants SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	return nil
}

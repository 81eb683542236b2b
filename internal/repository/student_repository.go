package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// StudentRepository manages persistence for admitted students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN classes c ON c.id = s.class_id LEFT JOIN academic_years y ON y.id = s.academic_year_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("s.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"first_name": "s.first_name",
		"status":     "s.status",
		"created_at": "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
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

	query := fmt.Sprintf(`SELECT s.id, s.applicant_id, s.first_name, s.last_name, s.gender, s.birth_date, s.guardian_name, s.guardian_phone,
        s.class_id, s.school_id, s.academic_year_id, s.admission_status, s.status, s.created_at, s.updated_at,
        c.name AS class_name, y.label AS academic_year_label
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student record by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, applicant_id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        class_id, school_id, academic_year_id, admission_status, status, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByYear returns the students enrolled in an academic year holding one of
// the given statuses. An empty status list matches every status.
func (r *StudentRepository) ListByYear(ctx context.Context, yearID string, statuses ...models.StudentStatus) ([]models.Student, error) {
	query := `SELECT id, applicant_id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        class_id, school_id, academic_year_id, admission_status, status, created_at, updated_at
        FROM students WHERE academic_year_id = $1`
	args := []interface{}{yearID}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, status := range statuses {
			args = append(args, status)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY created_at ASC"

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students by year: %w", err)
	}
	return students, nil
}

// Create inserts a new student record. A unique constraint on applicant_id
// guards against double admission; violations surface as a conflict.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, applicant_id, first_name, last_name, gender, birth_date, guardian_name, guardian_phone,
        class_id, school_id, academic_year_id, admission_status, status, created_at, updated_at)
        VALUES (:id, :applicant_id, :first_name, :last_name, :gender, :birth_date, :guardian_name, :guardian_phone,
        :class_id, :school_id, :academic_year_id, :admission_status, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrConflict, "student already exists for applicant")
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Activate transitions a shortlisted student into the active cohort.
func (r *StudentRepository) Activate(ctx context.Context, id string) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StudentStatusActive, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate student: %w", err)
	}
	return nil
}

// Promote moves a student into the target class and academic year.
func (r *StudentRepository) Promote(ctx context.Context, studentID, classID, yearID string) error {
	const query = `UPDATE students SET class_id = $2, academic_year_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, classID, yearID, time.Now().UTC()); err != nil {
		return fmt.Errorf("promote student: %w", err)
	}
	return nil
}

// Graduate marks a student as graduated in the target academic year. The
// class assignment is kept as the student's final class.
func (r *StudentRepository) Graduate(ctx context.Context, studentID, yearID string) error {
	const query = `UPDATE students SET status = $2, academic_year_id = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, models.StudentStatusGraduated, yearID, time.Now().UTC()); err != nil {
		return fmt.Errorf("graduate student: %w", err)
	}
	return nil
}

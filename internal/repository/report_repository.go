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

// ReportRepository persists report job metadata and provides the datasets
// the exporter renders.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report job row with generated defaults.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message
FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateReportJobParams defines the mutable fields.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", argPos))
		args = append(args, *params.Progress)
		argPos++
	}
	if params.ResultURL != nil {
		set = append(set, fmt.Sprintf("result_url = $%d", argPos))
		args = append(args, *params.ResultURL)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message
FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs prior to cutoff for cleanup.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message
FROM report_jobs WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}

// AdmissionRegister returns applicant rows for the register export. Applicants
// whose target class is outside the filter are excluded.
func (r *ReportRepository) AdmissionRegister(ctx context.Context, filter models.ReportDataFilter) ([]models.AdmissionRegisterRow, error) {
	query := `SELECT a.id AS applicant_id, TRIM(CONCAT(a.first_name, ' ', a.last_name)) AS full_name,
        cat.name AS category_name, c.name AS class_name, a.score, a.status, a.updated_at
        FROM applicants a
        LEFT JOIN categories cat ON cat.id = a.category_id
        LEFT JOIN classes c ON c.id = a.class_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("a.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}

	query = fmt.Sprintf("%s WHERE %s ORDER BY a.created_at ASC", query, strings.Join(conditions, " AND "))

	var rows []models.AdmissionRegisterRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("admission register: %w", err)
	}
	return rows, nil
}

// OccupancySummary returns all classes with their seat usage for the
// occupancy export.
func (r *ReportRepository) OccupancySummary(ctx context.Context, schoolID string) ([]models.ClassOccupancy, error) {
	query := fmt.Sprintf(`SELECT c.id, c.school_id, c.name, c.slots, c.created_at, c.updated_at,
        COALESCE(o.occupied, 0) AS occupied
        FROM classes c %s`, occupiedJoin)
	args := []interface{}{}
	if schoolID != "" {
		query += " WHERE c.school_id = $1"
		args = append(args, schoolID)
	}
	query += " ORDER BY c.name ASC"

	var rows []models.ClassOccupancy
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("occupancy summary: %w", err)
	}
	return rows, nil
}

// EnrollmentRoster returns the student roster for an academic year.
func (r *ReportRepository) EnrollmentRoster(ctx context.Context, filter models.ReportDataFilter) ([]models.EnrollmentRow, error) {
	query := `SELECT s.id AS student_id, TRIM(CONCAT(s.first_name, ' ', s.last_name)) AS full_name,
        c.name AS class_name, s.status, s.created_at
        FROM students s
        LEFT JOIN classes c ON c.id = s.class_id
        WHERE s.academic_year_id = $1`
	args := []interface{}{filter.AcademicYearID}
	if filter.ClassID != "" {
		query += fmt.Sprintf(" AND s.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	query += " ORDER BY c.name ASC, s.last_name ASC"

	var rows []models.EnrollmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("enrollment roster: %w", err)
	}
	return rows, nil
}

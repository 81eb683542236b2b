package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
	appErrors "github.com/noah-isme/admission-api/pkg/errors"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentColumns() []string {
	return []string{"id", "applicant_id", "first_name", "last_name", "gender", "birth_date", "guardian_name", "guardian_phone",
		"class_id", "school_id", "academic_year_id", "admission_status", "status", "created_at", "updated_at"}
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		ApplicantID:     "applicant-1",
		FirstName:       "Siti",
		LastName:        "Rahma",
		ClassID:         "class-1",
		SchoolID:        "school-1",
		AcademicYearID:  "year-1",
		AdmissionStatus: models.AdmissionStatusAdmitted,
		Status:          models.StudentStatusInactive,
	}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateApplicant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pqUniqueViolation)})

	err := repo.Create(context.Background(), &models.Student{ApplicantID: "applicant-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentColumns()).
		AddRow("s1", "a1", "Siti", "Rahma", "F", time.Now(), "Guardian", "0800", "class-1", "school-1", "year-1", "ADMITTED", "ACTIVE", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE academic_year_id = $1 AND status IN ($2, $3)")).
		WithArgs("year-1", models.StudentStatusActive, models.StudentStatusInactive).
		WillReturnRows(rows)

	students, err := repo.ListByYear(context.Background(), "year-1", models.StudentStatusActive, models.StudentStatusInactive)
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryPromote(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET class_id = $2, academic_year_id = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("s1", "class-2", "year-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Promote(context.Background(), "s1", "class-2", "year-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGraduate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET status = $2, academic_year_id = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("s1", models.StudentStatusGraduated, "year-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Graduate(context.Background(), "s1", "year-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryActivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("s1", models.StudentStatusActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Activate(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

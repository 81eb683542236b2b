package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
)

func applicantColumns() []string {
	return []string{"id", "first_name", "last_name", "gender", "birth_date", "guardian_name", "guardian_phone",
		"category_id", "class_applying_for", "class_id", "school_id", "score", "status", "created_at", "updated_at"}
}

func TestApplicantRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	rows := sqlmock.NewRows(applicantColumns()).
		AddRow("a1", "Budi", "Santoso", "M", time.Now(), "Guardian", "0800", nil, "grade 10", "class-1", "school-1", 72.5, "PENDING", time.Now(), time.Now()).
		AddRow("a2", "Siti", "Rahma", "F", time.Now(), "Guardian", "0801", nil, "grade 10", nil, nil, nil, "PENDING", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM applicants WHERE status = $1 ORDER BY created_at ASC")).
		WithArgs(models.ApplicantStatusPending).
		WillReturnRows(rows)

	applicants, err := repo.ListPending(context.Background(), models.ApplicantFilter{})
	require.NoError(t, err)
	require.Len(t, applicants, 2)
	assert.Equal(t, "a1", applicants[0].ID)
	assert.Nil(t, applicants[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryListPendingByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applicants WHERE status = $1 AND class_id = $2 ORDER BY created_at ASC")).
		WithArgs(models.ApplicantStatusPending, "class-1").
		WillReturnRows(sqlmock.NewRows(applicantColumns()))

	applicants, err := repo.ListPending(context.Background(), models.ApplicantFilter{ClassID: "class-1"})
	require.NoError(t, err)
	assert.Empty(t, applicants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec("INSERT INTO applicants").
		WillReturnResult(sqlmock.NewResult(1, 1))

	applicant := &models.Applicant{FirstName: "Budi", LastName: "Santoso", ClassApplyingFor: "grade 10"}
	err := repo.Create(context.Background(), applicant)
	require.NoError(t, err)
	assert.NotEmpty(t, applicant.ID)
	assert.Equal(t, models.ApplicantStatusPending, applicant.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("a1", models.ApplicantStatusApproved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "a1", models.ApplicantStatusApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantRepositoryUpdatePlacement(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewApplicantRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applicants SET class_id = $2, school_id = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("a1", "class-1", "school-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePlacement(context.Background(), "a1", "class-1", "school-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

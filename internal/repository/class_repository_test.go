package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-api/internal/models"
)

func classColumns() []string {
	return []string{"id", "school_id", "name", "slots", "created_at", "updated_at", "occupied"}
}

func TestClassRepositoryOccupancy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows(classColumns()).
		AddRow("class-1", "school-1", "Grade 10 A", 30, time.Now(), time.Now(), 28)
	mock.ExpectQuery("FROM classes c").
		WithArgs("class-1").
		WillReturnRows(rows)

	occupancy, err := repo.Occupancy(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 28, occupancy.Occupied)
	require.NotNil(t, occupancy.Slots)
	assert.Equal(t, 30, *occupancy.Slots)
	assert.False(t, occupancy.Overbooked())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryOccupancyUnlimited(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows(classColumns()).
		AddRow("class-2", "school-1", "Grade 10 B", nil, time.Now(), time.Now(), 45)
	mock.ExpectQuery("FROM classes c").
		WithArgs("class-2").
		WillReturnRows(rows)

	occupancy, err := repo.Occupancy(context.Background(), "class-2")
	require.NoError(t, err)
	assert.Nil(t, occupancy.Slots)
	assert.False(t, occupancy.Overbooked())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListWithOccupancy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows(classColumns()).
		AddRow("class-1", "school-1", "Grade 10 A", 30, time.Now(), time.Now(), 31)
	mock.ExpectQuery("FROM classes c").WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classes, total, err := repo.ListWithOccupancy(context.Background(), models.ClassFilter{})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 1, total)
	assert.True(t, classes[0].Overbooked())
	assert.NoError(t, mock.ExpectationsWereMet())
}

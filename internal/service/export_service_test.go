package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/storage"
)

type mockReportData struct {
	registerRows   []models.AdmissionRegisterRow
	occupancyRows  []models.ClassOccupancy
	enrollmentRows []models.EnrollmentRow
	registerErr    error
}

func (m *mockReportData) AdmissionRegister(ctx context.Context, filter models.ReportDataFilter) ([]models.AdmissionRegisterRow, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return m.registerRows, nil
}

func (m *mockReportData) OccupancySummary(ctx context.Context, schoolID string) ([]models.ClassOccupancy, error) {
	return m.occupancyRows, nil
}

func (m *mockReportData) EnrollmentRoster(ctx context.Context, filter models.ReportDataFilter) ([]models.EnrollmentRow, error) {
	return m.enrollmentRows, nil
}

type memFileStorage struct {
	files map[string][]byte
}

func newMemFileStorage() *memFileStorage {
	return &memFileStorage{files: map[string][]byte{}}
}

func (m *memFileStorage) Save(filename string, data []byte) (string, error) {
	m.files[filename] = data
	return filename, nil
}

func (m *memFileStorage) Open(filename string) (*os.File, error) {
	return nil, fmt.Errorf("not backed by disk")
}

func (m *memFileStorage) Delete(filename string) error {
	delete(m.files, filename)
	return nil
}

func (m *memFileStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type queryTimerRecorder struct {
	labels []string
}

func (r *queryTimerRecorder) ObserveDBQuery(label string, duration time.Duration) {
	r.labels = append(r.labels, label)
}

func registerJob(format models.ReportFormat) *models.ReportJob {
	return &models.ReportJob{
		ID:   "job-1",
		Type: models.ReportTypeAdmissionRegister,
		Params: models.ReportJobParams{
			AcademicYearID: "year-1",
			Format:         format,
		},
		Status:    models.ReportStatusProcessing,
		CreatedBy: "user-1",
	}
}

func newExportFixture(data *mockReportData) (*ExportService, *memFileStorage, *queryTimerRecorder) {
	store := newMemFileStorage()
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	timer := &queryTimerRecorder{}
	svc := NewExportService(data, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil).
		WithMetrics(timer)
	return svc, store, timer
}

func TestExportGenerateRegisterCSV(t *testing.T) {
	score := 87.5
	data := &mockReportData{registerRows: []models.AdmissionRegisterRow{{
		ApplicantID: "a1",
		FullName:    "Applicant One",
		Score:       &score,
		Status:      models.ApplicantStatusApproved,
		UpdatedAt:   time.Now(),
	}}}
	svc, store, _ := newExportFixture(data)

	result, err := svc.Generate(context.Background(), registerJob(models.ReportFormatCSV))
	require.NoError(t, err)

	payload, ok := store.files[result.RelativePath]
	require.True(t, ok, "rendered file must be saved")
	content := string(payload)
	assert.Contains(t, content, "Applicant ID")
	assert.Contains(t, content, "Applicant One")
	assert.Contains(t, content, "87.50")

	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	jobID, relPath, _, err := storage.NewSignedURLSigner("export-secret", time.Hour).Parse(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateTimesDatasetQueries(t *testing.T) {
	data := &mockReportData{}
	svc, _, timer := newExportFixture(data)

	_, err := svc.Generate(context.Background(), registerJob(models.ReportFormatCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"report_admission_register"}, timer.labels)

	occupancy := registerJob(models.ReportFormatCSV)
	occupancy.Type = models.ReportTypeClassOccupancy
	_, err = svc.Generate(context.Background(), occupancy)
	require.NoError(t, err)

	enrollment := registerJob(models.ReportFormatCSV)
	enrollment.Type = models.ReportTypeEnrollment
	_, err = svc.Generate(context.Background(), enrollment)
	require.NoError(t, err)

	assert.Equal(t, []string{"report_admission_register", "report_class_occupancy", "report_enrollment"}, timer.labels)
}

func TestExportGenerateUnsupportedFormat(t *testing.T) {
	svc, store, _ := newExportFixture(&mockReportData{})

	_, err := svc.Generate(context.Background(), registerJob(models.ReportFormat("xlsx")))
	require.Error(t, err)
	assert.Empty(t, store.files)
}

func TestExportGeneratePropagatesQueryError(t *testing.T) {
	data := &mockReportData{registerErr: fmt.Errorf("connection reset")}
	svc, store, timer := newExportFixture(data)

	_, err := svc.Generate(context.Background(), registerJob(models.ReportFormatCSV))
	require.Error(t, err)
	assert.Empty(t, store.files)
	assert.Equal(t, []string{"report_admission_register"}, timer.labels, "timing is recorded even for failed queries")
}

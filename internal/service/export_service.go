package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/pkg/export"
	"github.com/noah-isme/admission-api/pkg/storage"
)

type reportDataRepository interface {
	AdmissionRegister(ctx context.Context, filter models.ReportDataFilter) ([]models.AdmissionRegisterRow, error)
	OccupancySummary(ctx context.Context, schoolID string) ([]models.ClassOccupancy, error)
	EnrollmentRoster(ctx context.Context, filter models.ReportDataFilter) ([]models.EnrollmentRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type queryTimer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	data    reportDataRepository
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	metrics queryTimer
	logger  *zap.Logger
	cfg     ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(data reportDataRepository, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		data:    data,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// WithMetrics attaches a dataset query timer.
func (s *ExportService) WithMetrics(m queryTimer) *ExportService {
	s.metrics = m
	return s
}

func (s *ExportService) observeQuery(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	yearPart := sanitizeFilename(job.Params.AcademicYearID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), yearPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAdmissionRegister:
		return s.buildRegisterDataset(ctx, job.Params)
	case models.ReportTypeClassOccupancy:
		return s.buildOccupancyDataset(ctx, job.Params)
	case models.ReportTypeEnrollment:
		return s.buildEnrollmentDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildRegisterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.ReportDataFilter{
		AcademicYearID: params.AcademicYearID,
		ClassID:        deref(params.ClassID),
		CategoryID:     deref(params.CategoryID),
	}
	start := time.Now()
	rows, err := s.data.AdmissionRegister(ctx, filter)
	s.observeQuery("report_admission_register", start)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Applicant ID": row.ApplicantID,
			"Name":         row.FullName,
			"Category":     deref(row.CategoryName),
			"Class":        deref(row.ClassName),
			"Score":        formatScore(row.Score),
			"Status":       string(row.Status),
			"Updated At":   row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Applicant ID", "Name", "Category", "Class", "Score", "Status", "Updated At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Admission Register %s", params.AcademicYearID)
	return dataset, title, nil
}

func (s *ExportService) buildOccupancyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	start := time.Now()
	rows, err := s.data.OccupancySummary(ctx, "")
	s.observeQuery("report_class_occupancy", start)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		slots := "unlimited"
		if row.Slots != nil {
			slots = fmt.Sprintf("%d", *row.Slots)
		}
		overbooked := "no"
		if row.Overbooked() {
			overbooked = "yes"
		}
		dataRows = append(dataRows, map[string]string{
			"Class ID":   row.ID,
			"Class":      row.Name,
			"Occupied":   fmt.Sprintf("%d", row.Occupied),
			"Slots":      slots,
			"Overbooked": overbooked,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Class ID", "Class", "Occupied", "Slots", "Overbooked"},
		Rows:    dataRows,
	}
	return dataset, "Class Occupancy", nil
}

func (s *ExportService) buildEnrollmentDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.ReportDataFilter{
		AcademicYearID: params.AcademicYearID,
		ClassID:        deref(params.ClassID),
	}
	start := time.Now()
	rows, err := s.data.EnrollmentRoster(ctx, filter)
	s.observeQuery("report_enrollment", start)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Student ID":  row.StudentID,
			"Name":        row.FullName,
			"Class":       deref(row.ClassName),
			"Status":      string(row.Status),
			"Enrolled At": row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student ID", "Name", "Class", "Status", "Enrolled At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Enrollment Roster %s", params.AcademicYearID)
	return dataset, title, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *score)
}

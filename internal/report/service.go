package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/scan"
)

var (
	// ErrInvalidImage wraps uploads that cannot be decoded into an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrNoReport is returned when a record was rejected before a report
	// could be built.
	ErrNoReport = errors.New("record has no report")
)

// Scanner runs captures through recognition and reconciliation.
// *scan.Session satisfies it.
type Scanner interface {
	Scan(ctx context.Context, img recognition.Image) (scan.Outcome, error)
	Current() scan.Outcome
}

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Service scans uploads and keeps the history of reconciled reports
type Service struct {
	db          DB
	scanner     Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with UUID record IDs and the system clock
func NewService(db DB, scanner Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, uuidGenerator{}, systemClock{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce long names
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "scan"
	}

	return base + ext
}

// ProcessCapture scans an upload and stores the outcome. Ready and Rejected
// outcomes are persisted with their image and returned; recognition
// failures, timeouts and superseded scans are returned as errors.
func (s *Service) ProcessCapture(ctx context.Context, filename string, data []byte, contentType string) (*Record, error) {
	img, err := recognition.Prepare(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	out, err := s.scanner.Scan(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	switch out.State {
	case scan.Ready, scan.Rejected:
	default:
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"state", out.State,
			"error", out.Err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", out.Err)
	}

	id := s.idGenerator.Generate()
	record := newRecord(id, out, s.timeSource.Now())
	record.ContentType = contentType

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	record.Filename = savedName

	if err := s.db.SaveRecord(record); err != nil {
		// Clean up file if database save fails
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Warn("Failed to delete file", "filename", savedName, "error", delErr)
		}
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	slog.Info("Stored scan",
		"id", id,
		"generation", out.Generation,
		"state", out.State,
		"reason", out.Reason,
	)
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// ListRecords returns all records, newest first
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record and its image
func (s *Service) DeleteRecord(id string) error {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if err := s.storage.Delete(record.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", record.Filename, "error", err)
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	return nil
}

// GetRecordImage returns the uploaded image and its content type
func (s *Service) GetRecordImage(id string) ([]byte, string, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting record image: %w", err)
	}

	return data, record.ContentType, nil
}

// ReceiptLines renders a record's report as printable text lines, dated
// when the scan was taken.
func (s *Service) ReceiptLines(id string) ([]string, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	if record.Report == nil {
		return nil, ErrNoReport
	}
	return record.Report.Lines(record.CreatedAt), nil
}

// Session returns the scanner's current outcome
func (s *Service) Session() scan.Outcome {
	return s.scanner.Current()
}

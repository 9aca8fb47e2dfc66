package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/zombor/terminowo/internal/extraction"
	"github.com/zombor/terminowo/internal/scanning"
)

const defaultDocumentName = "Untitled document"

var (
	filenameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces     = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for documents
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ScanError is returned by ScanDocument when the recognition transport
// fails. Its message is the transport's message.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string {
	return e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// NewDocument is what a client confirms after reviewing a scan. The image,
// thumbnail and confidence come from the referenced scan.
type NewDocument struct {
	ScanID       string              `json:"scan_id,omitempty"`
	Name         string              `json:"name"`
	ExpiryDate   *civil.Date         `json:"expiry_date,omitempty"`
	Category     extraction.Category `json:"category"`
	ReminderDays []int               `json:"reminder_days"`
	ReminderTime civil.Time          `json:"reminder_time"`
}

// DocumentUpdate carries the user-editable fields of a document. Nil
// fields are left unchanged. ClearExpiryDate removes the expiry date.
type DocumentUpdate struct {
	Name            *string              `json:"name,omitempty"`
	ExpiryDate      *civil.Date          `json:"expiry_date,omitempty"`
	ClearExpiryDate bool                 `json:"clear_expiry_date,omitempty"`
	Category        *extraction.Category `json:"category,omitempty"`
	ReminderDays    []int                `json:"reminder_days,omitempty"`
	ReminderTime    *civil.Time          `json:"reminder_time,omitempty"`
}

// Service handles document operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename strips special characters from phone-generated names
// and truncates the base to 50 characters
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameDisallowed.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}

	return base + filenameDisallowed.ReplaceAllString(ext, "")
}

// ScanDocument stores an uploaded image, runs it through the recognition
// transport and interprets the answer. The result is kept as a pending scan
// until SaveDocument consumes it.
func (s *Service) ScanDocument(ctx context.Context, filename string, data []byte, contentType string) (*Scan, error) {
	id := s.idGenerator.Generate()

	imagePath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}
	thumbnailPath := s.saveThumbnail(id, data, contentType)

	resp, err := s.recognize(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan document",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.deleteFiles(imagePath, thumbnailPath)
		return nil, &ScanError{Err: err}
	}

	var recognized *extraction.RecognizedDocument
	if resp != nil {
		recognized = resp.Document
	}
	result := extraction.Assemble(recognized, rawResponse(resp))

	scan := &Scan{
		ID:            id,
		ImagePath:     imagePath,
		ThumbnailPath: thumbnailPath,
		ContentType:   contentType,
		Result:        result,
		CreatedAt:     s.timeSource.Now(),
	}
	if err := s.db.SaveScan(scan); err != nil {
		s.deleteFiles(imagePath, thumbnailPath)
		return nil, fmt.Errorf("saving scan: %w", err)
	}

	slog.Info("Document scanned",
		"scan_id", id,
		"date_found", result.ExpiryDate != nil,
		"category_found", result.DetectedCategory != nil,
	)

	return scan, nil
}

// recognize calls the transport, turning a panic into an error
func (s *Service) recognize(ctx context.Context, data []byte, contentType string) (resp *scanning.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("%v", r)
		}
	}()
	return s.scanner.Recognize(ctx, data, contentType)
}

func rawResponse(resp *scanning.Response) *string {
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Debug("Failed to serialize recognition response", "error", err)
		return nil
	}
	raw := string(data)
	return &raw
}

func (s *Service) saveThumbnail(id string, data []byte, contentType string) string {
	thumb, err := makeThumbnail(data, contentType)
	if err != nil {
		slog.Warn("Failed to create thumbnail", "scan_id", id, "error", err)
		return ""
	}
	path, err := s.storage.Save(fmt.Sprintf("thumb_%s.jpg", id), thumb)
	if err != nil {
		slog.Warn("Failed to save thumbnail", "scan_id", id, "error", err)
		return ""
	}
	return path
}

func (s *Service) deleteFiles(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := s.storage.Delete(path); err != nil {
			slog.Warn("Failed to delete file", "filename", path, "error", err)
		}
	}
}

// SaveDocument fills in defaults, persists a new document and schedules its
// reminders. The document takes over the files of the scan it names, and the
// scan can not be saved again.
func (s *Service) SaveDocument(input *NewDocument) (*Document, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: document is required", ErrInvalidInput)
	}
	now := s.timeSource.Now()

	doc := &Document{
		ID:           s.idGenerator.Generate(),
		Name:         strings.TrimSpace(input.Name),
		ExpiryDate:   input.ExpiryDate,
		Category:     extraction.CategoryFromKey(string(input.Category)),
		ReminderDays: input.ReminderDays,
		ReminderTime: input.ReminderTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.Name == "" {
		doc.Name = defaultDocumentName
	}
	if doc.ReminderDays == nil {
		doc.ReminderDays = DefaultReminderDays
	}
	days, err := normalizeReminderDays(doc.ReminderDays)
	if err != nil {
		return nil, err
	}
	doc.ReminderDays = days
	if doc.ReminderTime == (civil.Time{}) {
		doc.ReminderTime = DefaultReminderTime
	}
	if !doc.ReminderTime.IsValid() {
		return nil, fmt.Errorf("%w: invalid reminder time %s", ErrInvalidInput, doc.ReminderTime)
	}
	if doc.ExpiryDate != nil && !doc.ExpiryDate.IsValid() {
		return nil, fmt.Errorf("%w: invalid expiry date %s", ErrInvalidInput, doc.ExpiryDate)
	}

	if input.ScanID != "" {
		scan, err := s.db.GetScan(input.ScanID)
		if errors.Is(err, ErrNotFound) {
			return nil, unknownScan(input.ScanID)
		}
		if err != nil {
			return nil, fmt.Errorf("getting scan: %w", err)
		}
		doc.ImagePath = scan.ImagePath
		doc.ThumbnailPath = scan.ThumbnailPath
		doc.ContentType = scan.ContentType
		doc.Confidence = scan.Result.Confidence
	}

	if err := s.db.CreateDocument(doc, input.ScanID, planReminders(doc, now)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unknownScan(input.ScanID)
		}
		return nil, fmt.Errorf("saving document to database: %w", err)
	}

	return doc, nil
}

func unknownScan(id string) error {
	return fmt.Errorf("%w: scan %s is unknown or already saved", ErrInvalidInput, id)
}

// UpdateDocument applies user edits to a stored document and reschedules its reminders
func (s *Service) UpdateDocument(id string, update DocumentUpdate) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	if update.Name != nil {
		if name := strings.TrimSpace(*update.Name); name != "" {
			doc.Name = name
		}
	}
	switch {
	case update.ClearExpiryDate && update.ExpiryDate != nil:
		return nil, fmt.Errorf("%w: expiry date can not be set and cleared at once", ErrInvalidInput)
	case update.ClearExpiryDate:
		doc.ExpiryDate = nil
	case update.ExpiryDate != nil:
		if !update.ExpiryDate.IsValid() {
			return nil, fmt.Errorf("%w: invalid expiry date %s", ErrInvalidInput, update.ExpiryDate)
		}
		doc.ExpiryDate = update.ExpiryDate
	}
	if update.Category != nil {
		doc.Category = extraction.CategoryFromKey(string(*update.Category))
	}
	if update.ReminderDays != nil {
		days, err := normalizeReminderDays(update.ReminderDays)
		if err != nil {
			return nil, err
		}
		doc.ReminderDays = days
	}
	if update.ReminderTime != nil {
		if !update.ReminderTime.IsValid() {
			return nil, fmt.Errorf("%w: invalid reminder time %s", ErrInvalidInput, update.ReminderTime)
		}
		doc.ReminderTime = *update.ReminderTime
	}
	now := s.timeSource.Now()
	doc.UpdatedAt = now

	if err := s.db.UpdateDocument(doc, planReminders(doc, now)); err != nil {
		return nil, fmt.Errorf("saving document to database: %w", err)
	}

	return doc, nil
}

// DeleteDocument removes a document, its reminders and its images
func (s *Service) DeleteDocument(id string) error {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}

	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	s.deleteFiles(doc.ImagePath, doc.ThumbnailPath)
	return nil
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents ordered by expiry date, undated last.
// A non-empty category key restricts the list to that category; unknown
// keys select "other".
func (s *Service) ListDocuments(categoryKey string) ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	if categoryKey != "" {
		category := extraction.CategoryFromKey(categoryKey)
		filtered := make([]*Document, 0, len(docs))
		for _, doc := range docs {
			if doc.Category == category {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case *a.ExpiryDate != *b.ExpiryDate:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		default:
			return a.Name < b.Name
		}
	})

	return docs, nil
}

// GetDocumentImage retrieves the stored image or thumbnail of a document
func (s *Service) GetDocumentImage(id string, thumbnail bool) ([]byte, string, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}

	path, contentType := doc.ImagePath, doc.ContentType
	if thumbnail {
		path, contentType = doc.ThumbnailPath, "image/jpeg"
	}
	if path == "" {
		return nil, "", fmt.Errorf("document %s has no image: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(path)
	if err != nil {
		return nil, "", fmt.Errorf("getting document image: %w", err)
	}
	return data, contentType, nil
}

// CategorySummary counts documents per category. Categories without
// documents are left out.
func (s *Service) CategorySummary() (*CategorySummary, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	counts := make(map[extraction.Category]int)
	for _, doc := range docs {
		counts[extraction.CategoryFromKey(string(doc.Category))]++
	}

	summary := &CategorySummary{
		AllDocumentsCount: len(docs),
		Categories:        make([]CategoryCount, 0, len(counts)),
	}
	for _, category := range extraction.Categories() {
		if counts[category] == 0 {
			continue
		}
		summary.Categories = append(summary.Categories, CategoryCount{
			Key:   category.Key(),
			Label: category.Label(),
			Count: counts[category],
		})
	}
	return summary, nil
}

// ScheduleReminders replaces the scheduled reminders of a document. Nothing
// is scheduled for a document without an expiry date.
func (s *Service) ScheduleReminders(doc *Document) error {
	if err := s.db.ReplaceReminders(doc.ID, planReminders(doc, s.timeSource.Now())); err != nil {
		return fmt.Errorf("scheduling reminders: %w", err)
	}
	return nil
}

// PurgeScans removes scans older than maxAge that were never saved as a
// document, together with their files
func (s *Service) PurgeScans(maxAge time.Duration) (int, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return 0, fmt.Errorf("listing scans: %w", err)
	}

	cutoff := s.timeSource.Now().Add(-maxAge)
	purged := 0
	var errs []error
	for _, scan := range scans {
		if !scan.CreatedAt.Before(cutoff) {
			continue
		}
		// A scan saved meanwhile is gone already and its files now belong to a document
		if err := s.db.DeleteScan(scan.ID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, fmt.Errorf("deleting scan %s: %w", scan.ID, err))
			}
			continue
		}
		s.deleteFiles(scan.ImagePath, scan.ThumbnailPath)
		purged++
	}

	if purged > 0 {
		slog.Info("Purged unsaved scans", "count", purged)
	}
	return purged, errors.Join(errs...)
}

// RunScanPurge purges stale scans every interval until the context is cancelled
func (s *Service) RunScanPurge(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.PurgeScans(maxAge); err != nil {
			slog.Error("Failed to purge scans", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

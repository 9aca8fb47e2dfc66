package document

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/zombor/terminowo/internal/extraction"
)

// Document represents a scanned document with an expiry date to be reminded of
type Document struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	ImagePath     string              `json:"image_path"`
	ThumbnailPath string              `json:"thumbnail_path,omitempty"`
	ContentType   string              `json:"content_type"`
	ExpiryDate    *civil.Date         `json:"expiry_date,omitempty"`
	Confidence    *float64            `json:"confidence,omitempty"`
	Category      extraction.Category `json:"category"`
	ReminderDays  []int               `json:"reminder_days"` // days before expiry, ascending
	ReminderTime  civil.Time          `json:"reminder_time"` // local time of day reminders fire at
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// DefaultReminderTime is 9:00 in the morning
var DefaultReminderTime = civil.Time{Hour: 9}

// ReminderInterval is a selectable number of days before expiry
type ReminderInterval struct {
	Days  int    `json:"days"`
	Label string `json:"label"`
}

var reminderIntervals = []ReminderInterval{
	{Days: 14, Label: "14 days before"},
	{Days: 7, Label: "7 days before"},
	{Days: 1, Label: "1 day before"},
	{Days: 0, Label: "Day of expiry"},
}

// DefaultReminderDays are selected for new documents
var DefaultReminderDays = []int{14, 7, 1, 0}

// ReminderIntervals returns all selectable intervals
func ReminderIntervals() []ReminderInterval {
	out := make([]ReminderInterval, len(reminderIntervals))
	copy(out, reminderIntervals)
	return out
}

// ReminderIntervalFromDays looks up the interval for a day count
func ReminderIntervalFromDays(days int) (ReminderInterval, bool) {
	for _, interval := range reminderIntervals {
		if interval.Days == days {
			return interval, true
		}
	}
	return ReminderInterval{}, false
}

// Reminder is a scheduled notification for one document and interval
type Reminder struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	DocumentName string     `json:"document_name"`
	ExpiryDate   civil.Date `json:"expiry_date"`
	FireAt       time.Time  `json:"fire_at"`
	DaysBefore   int        `json:"days_before"`
}

// Scan is the outcome of scanning an uploaded image. It stays pending until
// the client saves it as a Document or it is purged.
type Scan struct {
	ID            string                `json:"id"`
	ImagePath     string                `json:"image_path"`
	ThumbnailPath string                `json:"thumbnail_path,omitempty"`
	ContentType   string                `json:"content_type"`
	Result        extraction.ScanResult `json:"result"`
	CreatedAt     time.Time             `json:"created_at"`
}

// CategoryCount is the number of documents in one category
type CategoryCount struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategorySummary groups the stored documents by category
type CategorySummary struct {
	AllDocumentsCount int             `json:"all_documents_count"`
	Categories        []CategoryCount `json:"categories"`
}

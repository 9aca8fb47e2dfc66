package document

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

const reminderTitle = "Document Expiring Soon"

func reminderID(documentID string, daysBefore int) string {
	return fmt.Sprintf("%s_%d", documentID, daysBefore)
}

// planReminders computes the reminders for a document as of now. Reminder
// dates before today are skipped; a reminder due earlier today is kept and
// fires on the next dispatch.
func planReminders(doc *Document, now time.Time) []*Reminder {
	if doc.ExpiryDate == nil {
		return nil
	}
	today := civil.DateOf(now)

	reminders := make([]*Reminder, 0, len(doc.ReminderDays))
	for _, daysBefore := range doc.ReminderDays {
		date := doc.ExpiryDate.AddDays(-daysBefore)
		if date.Before(today) {
			continue
		}
		reminders = append(reminders, &Reminder{
			ID:           reminderID(doc.ID, daysBefore),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			ExpiryDate:   *doc.ExpiryDate,
			FireAt:       civil.DateTime{Date: date, Time: doc.ReminderTime}.In(now.Location()),
			DaysBefore:   daysBefore,
		})
	}
	return reminders
}

// normalizeReminderDays sorts and dedupes the selection and rejects
// intervals that cannot be selected
func normalizeReminderDays(days []int) ([]int, error) {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := ReminderIntervalFromDays(d); !ok {
			return nil, fmt.Errorf("%w: unsupported reminder interval of %d days", ErrInvalidInput, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out, nil
}

// reminderNotification renders the notification shown for a reminder
func reminderNotification(r *Reminder) Notification {
	var body string
	switch r.DaysBefore {
	case 0:
		body = fmt.Sprintf("%s expires today!", r.DocumentName)
	case 1:
		body = fmt.Sprintf("%s expires tomorrow!", r.DocumentName)
	default:
		body = fmt.Sprintf("%s expires in %d days", r.DocumentName, r.DaysBefore)
	}

	return Notification{
		DocumentID: r.DocumentID,
		Title:      reminderTitle,
		Body:       body,
		ExpiryDate: r.ExpiryDate,
		DaysBefore: r.DaysBefore,
	}
}

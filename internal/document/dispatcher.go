package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Dispatcher delivers reminders once they are due
type Dispatcher struct {
	store      ReminderStore
	notifier   Notifier
	interval   time.Duration
	timeSource TimeSource
}

// NewDispatcher creates a new Dispatcher polling at the given interval
func NewDispatcher(store ReminderStore, notifier Notifier, interval time.Duration) *Dispatcher {
	return NewDispatcherWithDeps(store, notifier, interval, &defaultTimeSource{})
}

// NewDispatcherWithDeps creates a new Dispatcher with a custom time source for testing
func NewDispatcherWithDeps(store ReminderStore, notifier Notifier, interval time.Duration, timeSrc TimeSource) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		store:      store,
		notifier:   notifier,
		interval:   interval,
		timeSource: timeSrc,
	}
}

// Run dispatches due reminders until the context is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchDue(ctx); err != nil {
			slog.Error("Failed to dispatch reminders", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchDue sends every reminder whose time has come and removes it.
// Reminders that fail to send stay scheduled for the next run.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	reminders, err := d.store.ListReminders()
	if err != nil {
		return 0, fmt.Errorf("listing reminders: %w", err)
	}
	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].FireAt.Before(reminders[j].FireAt)
	})

	now := d.timeSource.Now()
	sent := 0
	var errs []error
	for _, reminder := range reminders {
		if reminder.FireAt.After(now) {
			break
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		if err := d.notifier.Notify(ctx, reminderNotification(reminder)); err != nil {
			slog.Error("Failed to send reminder",
				"reminder_id", reminder.ID,
				"document_id", reminder.DocumentID,
				"error", err,
			)
			continue
		}
		if err := d.store.DeleteReminder(reminder.ID); err != nil {
			errs = append(errs, fmt.Errorf("deleting reminder %s: %w", reminder.ID, err))
			continue
		}
		sent++
		slog.Info("Reminder sent", "reminder_id", reminder.ID, "document_id", reminder.DocumentID)
	}

	return sent, errors.Join(errs...)
}

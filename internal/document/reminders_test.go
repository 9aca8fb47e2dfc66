package document

import (
	"time"

	"cloud.google.com/go/civil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reminders", func() {
	Describe("planReminders", func() {
		var (
			doc *Document
			now time.Time
		)

		BeforeEach(func() {
			now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
			doc = &Document{
				ID:           "doc-1",
				Name:         "Polisa OC",
				ExpiryDate:   &civil.Date{Year: 2025, Month: time.June, Day: 17},
				ReminderDays: []int{0, 1, 7, 14},
				ReminderTime: civil.Time{Hour: 9},
			}
		})

		It("skips reminder dates before today", func() {
			reminders := planReminders(doc, now)
			Expect(reminders).To(HaveLen(3))

			days := []int{}
			for _, r := range reminders {
				days = append(days, r.DaysBefore)
			}
			Expect(days).To(Equal([]int{0, 1, 7}))
		})

		It("keeps a reminder for today even when its time has passed", func() {
			reminders := planReminders(doc, now)
			seven := reminders[2]
			Expect(seven.ID).To(Equal("doc-1_7"))
			Expect(seven.FireAt).To(BeTemporally("==", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))
			Expect(seven.FireAt).To(BeTemporally("<", now))
		})

		It("copies the document details", func() {
			r := planReminders(doc, now)[0]
			Expect(r.DocumentID).To(Equal("doc-1"))
			Expect(r.DocumentName).To(Equal("Polisa OC"))
			Expect(r.ExpiryDate).To(Equal(civil.Date{Year: 2025, Month: time.June, Day: 17}))
		})

		It("uses the location of the current time", func() {
			warsaw := time.FixedZone("CEST", 2*60*60)
			r := planReminders(doc, now.In(warsaw))[0]
			Expect(r.FireAt).To(BeTemporally("==", time.Date(2025, 6, 17, 7, 0, 0, 0, time.UTC)))
		})

		It("plans nothing without an expiry date", func() {
			doc.ExpiryDate = nil
			Expect(planReminders(doc, now)).To(BeEmpty())
		})

		It("plans nothing once the document has expired", func() {
			doc.ExpiryDate = &civil.Date{Year: 2025, Month: time.June, Day: 9}
			Expect(planReminders(doc, now)).To(BeEmpty())
		})
	})

	Describe("normalizeReminderDays", func() {
		It("sorts and dedupes", func() {
			days, err := normalizeReminderDays([]int{14, 0, 14, 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(days).To(Equal([]int{0, 1, 14}))
		})

		It("rejects intervals that cannot be selected", func() {
			_, err := normalizeReminderDays([]int{7, 30})
			Expect(err).To(MatchError(ErrInvalidInput))
			Expect(err).To(MatchError(ContainSubstring("30 days")))
		})
	})

	Describe("reminderNotification", func() {
		var reminder *Reminder

		BeforeEach(func() {
			reminder = &Reminder{ID: "doc-1_7", DocumentID: "doc-1", DocumentName: "Polisa OC", DaysBefore: 7}
		})

		It("announces the remaining days", func() {
			n := reminderNotification(reminder)
			Expect(n.Title).To(Equal("Document Expiring Soon"))
			Expect(n.Body).To(Equal("Polisa OC expires in 7 days"))
			Expect(n.DocumentID).To(Equal("doc-1"))
		})

		It("announces expiry tomorrow", func() {
			reminder.DaysBefore = 1
			Expect(reminderNotification(reminder).Body).To(Equal("Polisa OC expires tomorrow!"))
		})

		It("announces expiry today", func() {
			reminder.DaysBefore = 0
			Expect(reminderNotification(reminder).Body).To(Equal("Polisa OC expires today!"))
		})
	})

	Describe("ReminderIntervalFromDays", func() {
		It("finds selectable intervals", func() {
			interval, ok := ReminderIntervalFromDays(0)
			Expect(ok).To(BeTrue())
			Expect(interval.Label).To(Equal("Day of expiry"))
		})

		It("reports unknown day counts", func() {
			_, ok := ReminderIntervalFromDays(3)
			Expect(ok).To(BeFalse())
		})

		It("lists every interval", func() {
			Expect(ReminderIntervals()).To(HaveLen(4))
		})
	})
})

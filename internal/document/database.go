package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	documentBucketName = "documents"
	reminderBucketName = "reminders"
	scanBucketName     = "scans"
)

var (
	// ErrNotFound is returned when a document or scan does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a document cannot be saved as given
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a new document would replace a stored one
	ErrConflict = errors.New("already exists")
)

// ReminderStore persists scheduled reminders
type ReminderStore interface {
	// ListReminders returns all scheduled reminders
	ListReminders() ([]*Reminder, error)

	// DeleteReminder removes a reminder
	DeleteReminder(id string) error

	// ReplaceReminders swaps every reminder of a document for the given ones
	ReplaceReminders(documentID string, reminders []*Reminder) error
}

// DB defines the interface for database operations
type DB interface {
	ReminderStore

	// SaveScan records a scan that has not been saved as a document yet
	SaveScan(scan *Scan) error

	// GetScan retrieves a pending scan by ID
	GetScan(id string) (*Scan, error)

	// ListScans returns all pending scans
	ListScans() ([]*Scan, error)

	// DeleteScan removes a pending scan. It returns ErrNotFound when the
	// scan was already saved or removed.
	DeleteScan(id string) error

	// CreateDocument stores a new document together with its reminders.
	// A non-empty scanID is consumed in the same transaction.
	CreateDocument(doc *Document, scanID string, reminders []*Reminder) error

	// UpdateDocument replaces a stored document and its reminders
	UpdateDocument(doc *Document, reminders []*Reminder) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns all documents
	ListDocuments() ([]*Document, error)

	// DeleteDocument removes a document and its reminders
	DeleteDocument(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{documentBucketName, reminderBucketName, scanBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(tx *bbolt.Tx, bucketName, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucketName, err)
	}
	return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
}

func list[T any](b *BoltDB, bucketName string) ([]*T, error) {
	items := make([]*T, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling %s: %w", bucketName, err)
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SaveScan records a pending scan
func (b *BoltDB) SaveScan(scan *Scan) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, scanBucketName, scan.ID, scan)
	})
}

// GetScan retrieves a pending scan by ID
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var scan *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(scanBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("scan %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// ListScans returns all pending scans
func (b *BoltDB) ListScans() ([]*Scan, error) {
	return list[Scan](b, scanBucketName)
}

// DeleteScan removes a pending scan
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return deleteScan(tx, id)
	})
}

func deleteScan(tx *bbolt.Tx, id string) error {
	bucket := tx.Bucket([]byte(scanBucketName))
	if bucket.Get([]byte(id)) == nil {
		return fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return bucket.Delete([]byte(id))
}

// CreateDocument stores a new document and its reminders, consuming the scan
// it was made from
func (b *BoltDB) CreateDocument(doc *Document, scanID string, reminders []*Reminder) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(documentBucketName)).Get([]byte(doc.ID)) != nil {
			return fmt.Errorf("document %s: %w", doc.ID, ErrConflict)
		}
		if scanID != "" {
			if err := deleteScan(tx, scanID); err != nil {
				return err
			}
		}
		return putDocument(tx, doc, reminders)
	})
}

// UpdateDocument replaces a stored document and its reminders
func (b *BoltDB) UpdateDocument(doc *Document, reminders []*Reminder) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(documentBucketName)).Get([]byte(doc.ID)) == nil {
			return fmt.Errorf("document %s: %w", doc.ID, ErrNotFound)
		}
		return putDocument(tx, doc, reminders)
	})
}

func putDocument(tx *bbolt.Tx, doc *Document, reminders []*Reminder) error {
	if err := put(tx, documentBucketName, doc.ID, doc); err != nil {
		return err
	}
	return replaceReminders(tx, doc.ID, reminders)
}

// GetDocument retrieves a document by ID
func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(documentBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents
func (b *BoltDB) ListDocuments() ([]*Document, error) {
	return list[Document](b, documentBucketName)
}

// DeleteDocument removes a document and its reminders
func (b *BoltDB) DeleteDocument(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := replaceReminders(tx, id, nil); err != nil {
			return err
		}
		return tx.Bucket([]byte(documentBucketName)).Delete([]byte(id))
	})
}

// ListReminders returns all scheduled reminders
func (b *BoltDB) ListReminders() ([]*Reminder, error) {
	return list[Reminder](b, reminderBucketName)
}

// DeleteReminder removes a reminder
func (b *BoltDB) DeleteReminder(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reminderBucketName)).Delete([]byte(id))
	})
}

// ReplaceReminders swaps every reminder of a document for the given ones
func (b *BoltDB) ReplaceReminders(documentID string, reminders []*Reminder) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return replaceReminders(tx, documentID, reminders)
	})
}

func replaceReminders(tx *bbolt.Tx, documentID string, reminders []*Reminder) error {
	bucket := tx.Bucket([]byte(reminderBucketName))
	var keys [][]byte
	err := bucket.ForEach(func(k, v []byte) error {
		var reminder Reminder
		if err := json.Unmarshal(v, &reminder); err != nil {
			return fmt.Errorf("unmarshaling reminder: %w", err)
		}
		if reminder.DocumentID == documentID {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Deleting inside ForEach is not allowed
	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}

	for _, reminder := range reminders {
		if err := put(tx, reminderBucketName, reminder.ID, reminder); err != nil {
			return fmt.Errorf("saving reminder %s: %w", reminder.ID, err)
		}
	}
	return nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

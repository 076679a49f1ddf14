package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName = "receipts"
	batchBucketName   = "batches"
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt record to the database
	SaveReceipt(record *Record) error

	// GetReceipt retrieves a receipt record by ID
	GetReceipt(id string) (*Record, error)

	// ListReceipts returns all receipt records belonging to a batch
	ListReceipts(batchID string) ([]*Record, error)

	// SaveBatch saves a batch summary to the database
	SaveBatch(batch *Batch) error

	// GetBatch retrieves a batch summary by ID
	GetBatch(id string) (*Batch, error)

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
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(batchBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt saves a receipt record to the database
func (b *BoltDB) SaveReceipt(record *Record) error {
	return b.put(receiptBucketName, record.ID, record)
}

// GetReceipt retrieves a receipt record by ID
func (b *BoltDB) GetReceipt(id string) (*Record, error) {
	var record *Record
	if err := b.get(receiptBucketName, id, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListReceipts returns all receipt records belonging to a batch
func (b *BoltDB) ListReceipts(batchID string) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			if record.BatchID == batchID {
				records = append(records, &record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SaveBatch saves a batch summary to the database
func (b *BoltDB) SaveBatch(batch *Batch) error {
	return b.put(batchBucketName, batch.ID, batch)
}

// GetBatch retrieves a batch summary by ID
func (b *BoltDB) GetBatch(id string) (*Batch, error) {
	var batch *Batch
	if err := b.get(batchBucketName, id, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) put(bucketName, key string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s entry: %w", bucketName, err)
		}
		return bucket.Put([]byte(key), data)
	})
}

func (b *BoltDB) get(bucketName, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s entry not found: %s", bucketName, key)
		}
		return json.Unmarshal(data, v)
	})
}

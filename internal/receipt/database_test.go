package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newRecord := func(id, batchID string) *Record {
		return &Record{
			ID:            id,
			BatchID:       batchID,
			SourceLocator: "uploads/" + id + ".png",
			NeedsReview:   true,
			Receipt: StructuredReceipt{
				Vendor:     "Walgreens",
				Items:      []LineItem{},
				Total:      12.5,
				Currency:   DefaultCurrency,
				Category:   "pharmacy",
				Confidence: 0.7,
			},
			CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		}
	}

	Describe("SaveReceipt", func() {
		var (
			record *Record
			err    error
		)

		BeforeEach(func() {
			record = newRecord("test-id", "batch-1")
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(record)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the record to the database", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Receipt.Vendor).To(Equal("Walgreens"))
				Expect(saved.NeedsReview).To(BeTrue())
				Expect(saved.SourceLocator).To(Equal("uploads/test-id.png"))
			})
		})
	})

	Describe("GetReceipt", func() {
		When("receipt does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetReceipt("nonexistent")
				Expect(err).To(MatchError(errors.New("receipts entry not found: nonexistent")))
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			records []*Record
			err     error
		)

		JustBeforeEach(func() {
			records, err = db.ListReceipts("batch-1")
		})

		When("receipts exist for several batches", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(newRecord("id1", "batch-1"))).To(Succeed())
				Expect(db.SaveReceipt(newRecord("id2", "batch-1"))).To(Succeed())
				Expect(db.SaveReceipt(newRecord("id3", "batch-2"))).To(Succeed())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return only the batch's receipts", func() {
				Expect(records).To(HaveLen(2))
			})
		})

		When("no receipts exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(BeEmpty())
			})
		})
	})

	Describe("SaveBatch", func() {
		It("stores and overwrites the batch summary", func() {
			now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
			batch := &Batch{ID: "batch-1", State: "processing", CreatedAt: now, UpdatedAt: now}
			Expect(db.SaveBatch(batch)).To(Succeed())

			batch.State = "partially_failed"
			batch.Processed = 1
			batch.Failed = 1
			batch.FailureReason = "structuring failed after 3 attempts"
			Expect(db.SaveBatch(batch)).To(Succeed())

			saved, err := db.GetBatch("batch-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.State).To(Equal("partially_failed"))
			Expect(saved.Processed).To(Equal(1))
			Expect(saved.Failed).To(Equal(1))
			Expect(saved.FailureReason).To(ContainSubstring("structuring failed"))
		})

		When("the batch does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetBatch("missing")
				Expect(err).To(HaveOccurred())
			})
		})
	})
})

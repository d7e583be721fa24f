package txlog

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"gorm.io/gorm"
)

// Repository encapsulates journal persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a journal repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &Repository{db: db}, nil
}

// Migrate creates the journal table when auto-migration is enabled.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Record{})
}

// Insert appends a new journal row.
func (r *Repository) Insert(ctx context.Context, record *Record) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting journal row")
	}
	return nil
}

// FindByTransactionID loads a journal row by its transaction handle.
func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&record).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading journal row")
	}
	return &record, nil
}

// ListByUser returns a user's journal rows, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).
		Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing journal rows")
	}
	return records, nil
}

// UpdateStatus applies updates to an existing row.
func (r *Repository) UpdateStatus(ctx context.Context, record *Record) error {
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Where("transaction_id = ?", record.TransactionID).
		Updates(map[string]any{
			"status":         record.Status,
			"order_id":       record.OrderID,
			"failure_reason": record.FailureReason,
		}).
		Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating journal row")
	}
	return nil
}

package txlog

import (
	"context"
	"io"
	"testing"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	repo, err := NewRepository(conn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())

	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc
}

func TestOpenAndTransition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, OpenParams{
		TransactionID: "txn-1",
		OrderID:       "ord-1",
		UserID:        "u-1",
		PaymentMethod: enums.PaymentMethodCreditCard,
		Amount:        125.5,
	}))

	record, err := svc.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStateNotStarted, record.Status)

	require.NoError(t, svc.Transition(ctx, "txn-1", enums.PaymentStateUnknown, ""))
	require.NoError(t, svc.Transition(ctx, "txn-1", enums.PaymentStatePending, ""))
	require.NoError(t, svc.Transition(ctx, "txn-1", enums.PaymentStateSuccess, ""))

	record, err = svc.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStateSuccess, record.Status)
}

func TestTerminalRowsNeverRevert(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Open(ctx, OpenParams{
		TransactionID: "txn-1",
		UserID:        "u-1",
		PaymentMethod: enums.PaymentMethodCreditCard,
	}))
	require.NoError(t, svc.Transition(ctx, "txn-1", enums.PaymentStateFailed, "insufficient funds"))

	err := svc.Transition(ctx, "txn-1", enums.PaymentStatePending, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	err = svc.Transition(ctx, "txn-1", enums.PaymentStateSuccess, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	// Re-applying the same terminal state is a harmless no-op.
	require.NoError(t, svc.Transition(ctx, "txn-1", enums.PaymentStateFailed, ""))

	record, err := svc.Get(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStateFailed, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, "insufficient funds", *record.FailureReason)
}

func TestGetUnknownTransaction(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"txn-1", "txn-2", "txn-3"} {
		require.NoError(t, svc.Open(ctx, OpenParams{
			TransactionID: id,
			UserID:        "u-1",
			PaymentMethod: enums.PaymentMethodCOD,
		}))
	}
	require.NoError(t, svc.Open(ctx, OpenParams{
		TransactionID: "txn-other",
		UserID:        "u-2",
		PaymentMethod: enums.PaymentMethodCOD,
	}))

	records, err := svc.History(ctx, "u-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "txn-3", records[0].TransactionID)
	assert.Equal(t, "txn-2", records[1].TransactionID)
}

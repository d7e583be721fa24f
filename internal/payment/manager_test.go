package payment

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(ManagerParams{
		Prober: &fakeProber{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Poller: config.PollerConfig{Interval: time.Hour, Budget: time.Hour},
	})
	require.NoError(t, err)
	return manager
}

func TestBeginRejectsDuplicateWatch(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	_, err := manager.Begin(context.Background(), BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	_, err = manager.Begin(context.Background(), BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCreditCard,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestSettledWatchIsReleased(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	watch, err := manager.Begin(context.Background(), BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCOD,
	})
	require.NoError(t, err)

	<-watch.Poller.Done()
	assert.Equal(t, enums.PaymentStateSuccess, watch.Poller.Snapshot().Status)

	// Once the poll loop exits, the watch leaves the manager and status reads
	// fall back to the journal.
	require.Eventually(t, func() bool {
		_, findErr := manager.Find("txn-1")
		return pkgerrors.HasCode(findErr, pkgerrors.CodeNotFound)
	}, time.Second, 10*time.Millisecond)
}

func TestResolvedWatchIsReleased(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	_, err := manager.Begin(context.Background(), BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	require.NoError(t, manager.Resolve(context.Background(), "txn-1", enums.PaymentStateFailed, "Payment cancelled by user"))

	require.Eventually(t, func() bool {
		_, findErr := manager.Find("txn-1")
		return pkgerrors.HasCode(findErr, pkgerrors.CodeNotFound)
	}, time.Second, 10*time.Millisecond)
}

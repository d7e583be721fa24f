package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/metrics"
)

// Watch bundles the confirmation poller and redirect gate for one transaction.
type Watch struct {
	Poller *Poller
	Gate   *RedirectGate
	cancel context.CancelFunc
}

// ManagerParams configure the watch manager.
type ManagerParams struct {
	Prober   statusProber
	Opener   sessionOpener
	Journal  journal
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
	Poller   config.PollerConfig
	Redirect config.RedirectConfig
}

// Manager owns the set of in-flight payment watches, one per transaction.
type Manager struct {
	prober      statusProber
	opener      sessionOpener
	journal     journal
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	pollerCfg   config.PollerConfig
	redirectCfg config.RedirectConfig

	mu      sync.Mutex
	watches map[string]*Watch
}

// NewManager builds an empty watch manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Prober == nil {
		return nil, fmt.Errorf("status prober required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Manager{
		prober:      params.Prober,
		opener:      params.Opener,
		journal:     params.Journal,
		metrics:     params.Metrics,
		logg:        params.Logger,
		pollerCfg:   params.Poller,
		redirectCfg: params.Redirect,
		watches:     map[string]*Watch{},
	}, nil
}

// BeginParams identify the transaction to watch and the order it pays for.
type BeginParams struct {
	TransactionID string
	OrderID       string
	UserID        string
	Amount        float64
	Method        enums.PaymentMethod
}

// Begin starts watching a transaction. The poll loop runs detached from the
// request context so an early disconnect does not abandon the wait; once the
// loop returns the watch is released and status reads fall back to the journal.
func (m *Manager) Begin(ctx context.Context, params BeginParams) (*Watch, error) {
	m.mu.Lock()
	if _, exists := m.watches[params.TransactionID]; exists {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already being watched")
	}
	m.mu.Unlock()

	poller, err := NewPoller(PollerParams{
		Prober:  m.prober,
		Opener:  m.opener,
		Journal: m.journal,
		Metrics: m.metrics,
		Logger:  m.logg,
		Config:  m.pollerCfg,
	})
	if err != nil {
		return nil, err
	}
	if err := poller.Start(ctx, StartParams{
		TransactionID: params.TransactionID,
		OrderID:       params.OrderID,
		UserID:        params.UserID,
		Amount:        params.Amount,
		Method:        params.Method,
	}); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	watch := &Watch{Poller: poller, Gate: NewRedirectGate(m.redirectCfg, nil), cancel: cancel}

	m.mu.Lock()
	if _, exists := m.watches[params.TransactionID]; exists {
		m.mu.Unlock()
		cancel()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already being watched")
	}
	m.watches[params.TransactionID] = watch
	m.mu.Unlock()

	go func() {
		if err := poller.Run(runCtx); err != nil && runCtx.Err() == nil {
			m.logg.Error(m.logg.WithTransactionID(runCtx, params.TransactionID), "payment watch stopped", err)
		}
		m.Release(params.TransactionID)
	}()
	return watch, nil
}

// Find returns the watch for a transaction.
func (m *Manager) Find(transactionID string) (*Watch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	watch, ok := m.watches[transactionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no watch for transaction")
	}
	return watch, nil
}

// Resolve settles a watched transaction with an externally observed outcome.
func (m *Manager) Resolve(ctx context.Context, transactionID string, status enums.PaymentState, message string) error {
	watch, err := m.Find(transactionID)
	if err != nil {
		return err
	}
	return watch.Poller.Resolve(ctx, status, message)
}

// Cancel abandons the wait for a transaction.
func (m *Manager) Cancel(ctx context.Context, transactionID string) error {
	watch, err := m.Find(transactionID)
	if err != nil {
		return err
	}
	watch.Poller.Cancel(ctx)
	return nil
}

// Release drops a settled watch and stops its poll loop.
func (m *Manager) Release(transactionID string) {
	m.mu.Lock()
	watch, ok := m.watches[transactionID]
	if ok {
		delete(m.watches, transactionID)
	}
	m.mu.Unlock()
	if ok {
		watch.cancel()
	}
}

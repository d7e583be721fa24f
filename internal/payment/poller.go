package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/metrics"
)

const (
	defaultInterval = 3 * time.Second
	defaultBudget   = 600 * time.Second
)

type statusProber interface {
	Status(ctx context.Context, transactionID string) (*gateway.StatusProbe, error)
	PaymentURL(ctx context.Context, transactionID string) (string, error)
}

// sessionOpener opens a payment session on the gateway for a submitted order.
type sessionOpener interface {
	Process(ctx context.Context, params gateway.ProcessParams) (string, error)
}

type journal interface {
	Transition(ctx context.Context, transactionID string, status enums.PaymentState, reason string) error
}

// Snapshot is a point-in-time view of one transaction's confirmation progress.
type Snapshot struct {
	TransactionID string             `json:"transactionId"`
	OrderID       string             `json:"orderId,omitempty"`
	Status        enums.PaymentState `json:"status"`
	PaymentURL    string             `json:"paymentUrl,omitempty"`
	Message       string             `json:"message,omitempty"`
	Elapsed       time.Duration      `json:"-"`
}

// PollerParams configure a confirmation poller.
type PollerParams struct {
	Prober  statusProber
	Opener  sessionOpener
	Journal journal
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
	Config  config.PollerConfig

	// Now overrides the wall clock in tests.
	Now func() time.Time
}

// Poller watches one transaction until it settles. States only move forward:
// UNKNOWN while the gateway record materializes, PENDING once it exists, then
// exactly one of SUCCESS, FAILED or EXPIRED. A probe failure never fails the
// poll; only the time budget does.
type Poller struct {
	prober   statusProber
	opener   sessionOpener
	journal  journal
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	interval time.Duration
	budget   time.Duration
	now      func() time.Time

	mu         sync.Mutex
	txnID      string
	orderID    string
	method     enums.PaymentMethod
	status     enums.PaymentState
	paymentURL string
	message    string
	startedAt  time.Time
	settled    chan struct{}
}

// NewPoller builds a poller for a single transaction watch.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Prober == nil {
		return nil, fmt.Errorf("status prober required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	interval := params.Config.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	budget := params.Config.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Poller{
		prober:   params.Prober,
		opener:   params.Opener,
		journal:  params.Journal,
		metrics:  params.Metrics,
		logg:     params.Logger,
		interval: interval,
		budget:   budget,
		now:      now,
		status:   enums.PaymentStateNotStarted,
		settled:  make(chan struct{}),
	}, nil
}

// StartParams arm the poller for one submitted transaction. The order fields
// feed the gateway's process call; only the transaction id is mandatory.
type StartParams struct {
	TransactionID string
	OrderID       string
	UserID        string
	Amount        float64
	Method        enums.PaymentMethod
}

// Start arms the poller for a transaction. Cash on delivery settles
// immediately without a single gateway probe; gateway methods open a payment
// session to obtain the payment page URL up front.
func (p *Poller) Start(ctx context.Context, params StartParams) error {
	if params.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	p.mu.Lock()
	if p.status != enums.PaymentStateNotStarted {
		p.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "poller already started")
	}
	p.txnID = params.TransactionID
	p.orderID = params.OrderID
	p.method = params.Method
	p.startedAt = p.now()

	if !params.Method.RequiresGateway() {
		p.settleLocked(ctx, enums.PaymentStateSuccess, "cash on delivery")
		p.mu.Unlock()
		p.journalTransition(ctx, enums.PaymentStateSuccess, "cash on delivery")
		return nil
	}

	p.status = enums.PaymentStateUnknown
	p.mu.Unlock()

	p.journalTransition(ctx, enums.PaymentStateUnknown, "")
	p.openSession(ctx, params)
	return nil
}

// openSession opens the gateway payment session and keeps the returned
// payment page URL. Failure is not fatal; PENDING ticks retry the URL fetch.
func (p *Poller) openSession(ctx context.Context, params StartParams) {
	if p.opener == nil || params.OrderID == "" {
		return
	}
	ctx = p.logg.WithTransactionID(ctx, params.TransactionID)
	url, err := p.opener.Process(ctx, gateway.ProcessParams{
		OrderID:       params.OrderID,
		UserID:        params.UserID,
		PaymentMethod: params.Method,
		TotalAmount:   params.Amount,
	})
	if err != nil {
		p.logg.Warn(ctx, "payment session open failed: "+err.Error())
		return
	}
	if url == "" {
		return
	}
	p.mu.Lock()
	if p.paymentURL == "" {
		p.paymentURL = url
	}
	p.mu.Unlock()
}

// Tick issues one status probe. Terminal transactions ignore further ticks.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	if p.status == enums.PaymentStateNotStarted || p.status.IsTerminal() {
		p.mu.Unlock()
		return
	}
	txnID := p.txnID
	elapsed := p.now().Sub(p.startedAt)
	if elapsed >= p.budget {
		p.settleLocked(ctx, enums.PaymentStateExpired, "confirmation window elapsed")
		p.mu.Unlock()
		p.journalTransition(ctx, enums.PaymentStateExpired, "confirmation window elapsed")
		return
	}
	p.mu.Unlock()

	ctx = p.logg.WithTransactionID(ctx, txnID)
	probe, err := p.prober.Status(ctx, txnID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFoundYet) {
			// The gateway has not materialized the record yet; keep waiting.
			p.metrics.IncProbe("not_found_yet")
			return
		}
		p.metrics.IncProbe("error")
		p.logg.Warn(ctx, "status probe failed: "+err.Error())
		return
	}
	p.metrics.IncProbe("ok")

	p.apply(ctx, probe)
}

func (p *Poller) apply(ctx context.Context, probe *gateway.StatusProbe) {
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return
	}
	if probe.OrderID != "" {
		p.orderID = probe.OrderID
	}

	switch probe.Status {
	case enums.PaymentStatePending:
		transitioned := p.status != enums.PaymentStatePending
		p.status = enums.PaymentStatePending
		needURL := p.paymentURL == ""
		txnID := p.txnID
		p.mu.Unlock()
		if transitioned {
			p.journalTransition(ctx, enums.PaymentStatePending, "")
		}
		if needURL {
			p.fetchPaymentURL(ctx, txnID)
		}
	case enums.PaymentStateSuccess, enums.PaymentStateFailed:
		p.settleLocked(ctx, probe.Status, probe.Message)
		p.mu.Unlock()
		p.journalTransition(ctx, probe.Status, probe.Message)
	default:
		// NOT_STARTED or UNKNOWN from the gateway never moves us backward.
		p.mu.Unlock()
	}
}

// fetchPaymentURL grabs the redirect URL opportunistically. Absence is not an
// error while the transaction is still settling.
func (p *Poller) fetchPaymentURL(ctx context.Context, txnID string) {
	url, err := p.prober.PaymentURL(ctx, txnID)
	if err != nil || url == "" {
		return
	}
	p.mu.Lock()
	if p.paymentURL == "" {
		p.paymentURL = url
	}
	p.mu.Unlock()
}

// settleLocked writes a terminal state. Caller holds p.mu.
func (p *Poller) settleLocked(ctx context.Context, status enums.PaymentState, message string) {
	if p.status.IsTerminal() {
		return
	}
	p.status = status
	if message != "" {
		p.message = message
	}
	elapsed := p.now().Sub(p.startedAt)
	close(p.settled)

	p.metrics.ObserveOutcome(status.String(), elapsed)
	p.logg.Info(p.logg.WithTransactionID(ctx, p.txnID), "payment settled: "+status.String())
}

func (p *Poller) journalTransition(ctx context.Context, status enums.PaymentState, reason string) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Transition(ctx, p.txnID, status, reason); err != nil {
		// A return-handler may have settled the journal row first.
		p.logg.Warn(p.logg.WithTransactionID(ctx, p.txnID), "journal transition skipped: "+err.Error())
	}
}

// Run polls on the configured cadence until the transaction settles or the
// context is canceled. A started COD transaction returns immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.status == enums.PaymentStateNotStarted {
		p.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "poller not started")
	}
	p.mu.Unlock()

	p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.settled:
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Resolve pushes an externally observed outcome, such as the shopper arriving
// back from the payment page. A settled transaction keeps its first outcome.
func (p *Poller) Resolve(ctx context.Context, status enums.PaymentState, message string) error {
	if !status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeValidation, "resolve requires a terminal status")
	}
	p.mu.Lock()
	if p.status.IsTerminal() {
		p.mu.Unlock()
		return nil
	}
	p.settleLocked(ctx, status, message)
	p.mu.Unlock()

	p.journalTransition(ctx, status, message)
	return nil
}

// Cancel abandons the wait. Repeated or post-settlement cancels are no-ops.
func (p *Poller) Cancel(ctx context.Context) {
	p.mu.Lock()
	if p.status == enums.PaymentStateNotStarted || p.status.IsTerminal() {
		p.mu.Unlock()
		return
	}
	p.settleLocked(ctx, enums.PaymentStateFailed, "cancelled by user")
	p.mu.Unlock()

	p.journalTransition(ctx, enums.PaymentStateFailed, "cancelled by user")
}

// Done is closed once the transaction reaches a terminal state.
func (p *Poller) Done() <-chan struct{} {
	return p.settled
}

// Snapshot returns the current view of the watch.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		elapsed = p.now().Sub(p.startedAt)
	}
	return Snapshot{
		TransactionID: p.txnID,
		OrderID:       p.orderID,
		Status:        p.status,
		PaymentURL:    p.paymentURL,
		Message:       p.message,
		Elapsed:       elapsed,
	}
}

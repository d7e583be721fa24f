package txlog

import (
	"context"
	"fmt"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// Service journals checkout submissions and their payment outcomes. Terminal
// rows are frozen: once SUCCESS, FAILED or EXPIRED is written the status can
// never change again.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService builds the journal service.
func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("journal repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// OpenParams describes a freshly submitted checkout.
type OpenParams struct {
	TransactionID string
	OrderID       string
	UserID        string
	PaymentMethod enums.PaymentMethod
	Amount        float64
}

// Open records a new transaction in its initial state.
func (s *Service) Open(ctx context.Context, params OpenParams) error {
	if params.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if params.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	record := &Record{
		TransactionID: params.TransactionID,
		OrderID:       params.OrderID,
		UserID:        params.UserID,
		PaymentMethod: string(params.PaymentMethod),
		Amount:        params.Amount,
		Status:        enums.PaymentStateNotStarted,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithTransactionID(ctx, params.TransactionID), "transaction journaled")
	return nil
}

// Transition moves a transaction to a new status. A terminal row rejects any
// change, including a repeat of a different terminal state.
func (s *Service) Transition(ctx context.Context, transactionID string, status enums.PaymentState, reason string) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	record, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if record.Status == status {
		return nil
	}
	if record.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already settled").
			WithDetails(map[string]string{"status": record.Status.String()})
	}

	record.Status = status
	if reason != "" {
		record.FailureReason = &reason
	}
	if err := s.repo.UpdateStatus(ctx, record); err != nil {
		return err
	}

	ctx = s.logg.WithTransactionID(ctx, transactionID)
	if status.IsTerminal() {
		s.logg.Info(ctx, "transaction settled: "+status.String())
	}
	return nil
}

// Get loads a journaled transaction.
func (s *Service) Get(ctx context.Context, transactionID string) (*Record, error) {
	return s.repo.FindByTransactionID(ctx, transactionID)
}

// History lists a user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

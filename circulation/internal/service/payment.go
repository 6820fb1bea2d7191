package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/repository"
)

// Payment is the settlement ledger; it consumes fine records and
// reconciles their status.
type Payment struct {
	log    *zap.Logger
	repo   repository.PaymentRepository
	events Emitter
}

func NewPayment(repo repository.PaymentRepository, events Emitter, log *zap.Logger) *Payment {
	return &Payment{
		log:    log,
		repo:   repo,
		events: events,
	}
}

func (s *Payment) CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (model.Payment, error) {
	payment, err := s.repo.CreatePayment(ctx, req)
	if err != nil {
		return model.Payment{}, err
	}
	s.events.emit(ctx, "create_payment", TargetPayment, payment.PaymentUid,
		fmt.Sprintf("payment of %d recorded for fine %s via %s", payment.Amount, payment.FineUid, payment.Method))
	return payment, nil
}

func (s *Payment) GetPayment(ctx context.Context, paymentUid string) (model.Payment, error) {
	return s.repo.GetPayment(ctx, paymentUid)
}

func (s *Payment) ListPayments(ctx context.Context, filter model.PaymentFilter) (model.ListPayments, error) {
	return s.repo.ListPayments(ctx, filter)
}

// DeletePayment reverses a settlement and reopens the fine.
func (s *Payment) DeletePayment(ctx context.Context, paymentUid string) error {
	payment, err := s.repo.DeletePayment(ctx, paymentUid)
	if err != nil {
		return err
	}
	s.events.emit(ctx, "delete_payment", TargetPayment, payment.PaymentUid,
		fmt.Sprintf("payment reversed, fine %s reopened", payment.FineUid))
	return nil
}

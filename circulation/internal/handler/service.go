package handler

import (
	"context"

	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type ItemService interface {
	CreateItem(ctx context.Context, req model.CreateItemRequest) (model.Item, error)
	GetItem(ctx context.Context, itemUid string) (model.ItemDetails, error)
	GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error)
	ListItems(ctx context.Context, filter model.ItemFilter) (model.ListItems, error)
	UpdateItem(ctx context.Context, itemUid string, req model.UpdateItemRequest) (model.Item, error)
	UpdateStatus(ctx context.Context, itemUid string, status model.ItemStatus) error
	DeleteItem(ctx context.Context, itemUid string) error
}

type LendingService interface {
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.LoanDetails, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) (model.ListLoans, error)
	ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error)
	ExtendLoan(ctx context.Context, loanUid string, req model.ExtendLoanRequest) (model.Loan, error)
	CheckOverdue(ctx context.Context, loanUid string) (model.LoanDetails, error)
	DeleteLoan(ctx context.Context, loanUid string) error
	HardDeleteLoan(ctx context.Context, loanUid string) error
}

type ReservationService interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest) (model.Reservation, error)
	GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) (model.ListReservations, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	CompleteReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	CheckExpiration(ctx context.Context, reservationUid string) (model.Reservation, error)
	DeleteReservation(ctx context.Context, reservationUid string) error
}

type FineService interface {
	RaiseFine(ctx context.Context, req model.RaiseFineRequest) (model.Fine, error)
	GetFine(ctx context.Context, fineUid string) (model.Fine, error)
	ListFines(ctx context.Context, filter model.FineFilter) (model.ListFines, error)
	MarkPaid(ctx context.Context, fineUid string) (model.Fine, error)
	UnpaidTotal(ctx context.Context, memberID string) (int64, error)
	DeleteFine(ctx context.Context, fineUid string) error
	HardDeleteFine(ctx context.Context, fineUid string) error
}

type PaymentService interface {
	CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (model.Payment, error)
	GetPayment(ctx context.Context, paymentUid string) (model.Payment, error)
	ListPayments(ctx context.Context, filter model.PaymentFilter) (model.ListPayments, error)
	DeletePayment(ctx context.Context, paymentUid string) error
}

var (
	_ ItemService        = (*service.Item)(nil)
	_ LendingService     = (*service.Lending)(nil)
	_ ReservationService = (*service.Reservation)(nil)
	_ FineService        = (*service.Fine)(nil)
	_ PaymentService     = (*service.Payment)(nil)
)

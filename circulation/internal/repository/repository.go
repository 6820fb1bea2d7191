package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/model"
)

type Repository interface {
	ItemRepository
	LoanRepository
	ReservationRepository
	FineRepository
	PaymentRepository
}

type ItemRepository interface {
	CreateItem(ctx context.Context, req model.CreateItemRequest) (model.Item, error)
	GetItem(ctx context.Context, itemUid string) (model.Item, error)
	GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error)
	ListItems(ctx context.Context, filter model.ItemFilter) (model.ListItems, error)
	UpdateItem(ctx context.Context, itemUid string, req model.UpdateItemRequest) (model.Item, error)
	TransitionStatus(ctx context.Context, itemUid string, from, to model.ItemStatus) error
	SoftDeleteItem(ctx context.Context, itemUid string) error
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	GetLoan(ctx context.Context, loanUid string) (model.LoanDetails, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) (model.ListLoans, error)
	ReturnLoan(ctx context.Context, loanUid string) (model.Loan, error)
	ExtendLoan(ctx context.Context, loanUid string, dueDate model.ExtendLoanRequest) (model.Loan, error)
	SoftDeleteLoan(ctx context.Context, loanUid string) error
	HardDeleteLoan(ctx context.Context, loanUid string) error
}

type ReservationRepository interface {
	CreateReservation(ctx context.Context, req model.CreateReservationRequest, expiration ExpireAfter) (model.Reservation, error)
	GetReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) (model.ListReservations, error)
	CancelReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	CompleteReservation(ctx context.Context, reservationUid string) (model.Reservation, error)
	CheckExpiration(ctx context.Context, reservationUid string) (model.Reservation, bool, error)
	SoftDeleteReservation(ctx context.Context, reservationUid string) error
}

type FineRepository interface {
	CreateFine(ctx context.Context, req model.RaiseFineRequest) (model.Fine, error)
	GetFine(ctx context.Context, fineUid string) (model.Fine, error)
	ListFines(ctx context.Context, filter model.FineFilter) (model.ListFines, error)
	MarkFinePaid(ctx context.Context, fineUid string) (model.Fine, error)
	UnpaidTotal(ctx context.Context, memberID string) (int64, error)
	SoftDeleteFine(ctx context.Context, fineUid string) error
	HardDeleteFine(ctx context.Context, fineUid string) error
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, req model.CreatePaymentRequest) (model.Payment, error)
	GetPayment(ctx context.Context, paymentUid string) (model.Payment, error)
	ListPayments(ctx context.Context, filter model.PaymentFilter) (model.ListPayments, error)
	DeletePayment(ctx context.Context, paymentUid string) (model.Payment, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (Repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	itemTableName        = `book_items`
	loanTableName        = `loans`
	reservationTableName = `reservations`
	fineTableName        = `fines`
	paymentTableName     = `payments`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func withPaging(b sq.SelectBuilder, page, size int) sq.SelectBuilder {
	if page != 0 && size != 0 {
		b = b.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}
	return b
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/service"
	"github.com/libris/circulation-service/pkg/kafka"
)

type recordingEnqueuer struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (r *recordingEnqueuer) Enqueue(_ string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v.(kafka.Event))
	return nil
}

func (r *recordingEnqueuer) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

func TestLending_ConcurrentBorrowSingleWinner(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	lending := service.NewLending(repo, service.Emitter{}, zap.NewExample().Named("test"))

	itemUid := repo.addItem(false)
	dueDate := time.Now().Add(14 * 24 * time.Hour)

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := lending.CreateLoan(context.Background(), model.CreateLoanRequest{
				ItemUid:  itemUid,
				MemberID: "member-" + string(rune('a'+i%26)),
				DueDate:  dueDate,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, errs.ErrItemUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, won)
	require.Equal(t, n-1, rejected)
	require.Equal(t, model.ItemLoaned, repo.itemStatus(itemUid))
}

func TestLending_ReturnIdempotent(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	lending := service.NewLending(repo, service.Emitter{}, zap.NewExample().Named("test"))
	ctx := context.Background()

	itemUid := repo.addItem(false)
	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	returned, err := lending.ReturnLoan(ctx, loan.LoanUid)
	require.NoError(t, err)
	require.Equal(t, model.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	require.Equal(t, model.ItemAvailable, repo.itemStatus(itemUid))

	_, err = lending.ReturnLoan(ctx, loan.LoanUid)
	require.ErrorIs(t, err, errs.ErrAlreadyReturned)
	require.Equal(t, model.ItemAvailable, repo.itemStatus(itemUid))

	// the copy is free for the next borrower
	_, err = lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "alice",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
}

func TestLending_ReferenceOnlyNeverLeavesShelf(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	lending := service.NewLending(repo, service.Emitter{}, log)
	reservation := service.NewReservation(repo, 24*time.Hour, service.Emitter{}, log)
	ctx := context.Background()

	itemUid := repo.addItem(true)

	_, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.ErrorIs(t, err, errs.ErrItemUnavailable)

	_, err = reservation.CreateReservation(ctx, model.CreateReservationRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
	})
	require.ErrorIs(t, err, errs.ErrNotReservable)

	require.Equal(t, model.ItemAvailable, repo.itemStatus(itemUid))
}

func TestLending_Extend(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	lending := service.NewLending(repo, service.Emitter{}, zap.NewExample().Named("test"))
	ctx := context.Background()

	itemUid := repo.addItem(false)
	dueDate := time.Now().Add(24 * time.Hour)
	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  dueDate,
	})
	require.NoError(t, err)

	extended, err := lending.ExtendLoan(ctx, loan.LoanUid, model.ExtendLoanRequest{
		DueDate: dueDate.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	require.True(t, extended.DueDate.After(dueDate))

	// the new due date must move forward
	_, err = lending.ExtendLoan(ctx, loan.LoanUid, model.ExtendLoanRequest{
		DueDate: dueDate.Add(time.Hour),
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = lending.ReturnLoan(ctx, loan.LoanUid)
	require.NoError(t, err)

	_, err = lending.ExtendLoan(ctx, loan.LoanUid, model.ExtendLoanRequest{
		DueDate: time.Now().Add(96 * time.Hour),
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestReservation_LazyExpiry(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	// negative hold window makes every hold born expired
	reservation := service.NewReservation(repo, -time.Minute, service.Emitter{}, log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	rsv, err := reservation.CreateReservation(ctx, model.CreateReservationRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
	})
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, rsv.Status)
	require.Equal(t, model.ItemReserved, repo.itemStatus(itemUid))

	got, err := reservation.GetReservation(ctx, rsv.ReservationUid)
	require.NoError(t, err)
	require.Equal(t, model.ReservationExpired, got.Status)
	require.Equal(t, model.ItemAvailable, repo.itemStatus(itemUid))

	// expiry is terminal
	_, err = reservation.CancelReservation(ctx, rsv.ReservationUid)
	require.ErrorIs(t, err, errs.ErrInvalidState)
	_, err = reservation.CompleteReservation(ctx, rsv.ReservationUid)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	got, err = reservation.CheckExpiration(ctx, rsv.ReservationUid)
	require.NoError(t, err)
	require.Equal(t, model.ReservationExpired, got.Status)
}

func TestReservation_ExpireEventEmittedOnce(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	enq := &recordingEnqueuer{}
	reservation := service.NewReservation(repo, -time.Minute, service.NewEmitter(enq, "audit", log), log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	rsv, err := reservation.CreateReservation(ctx, model.CreateReservationRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
	})
	require.NoError(t, err)

	_, err = reservation.CheckExpiration(ctx, rsv.ReservationUid)
	require.NoError(t, err)
	_, err = reservation.CheckExpiration(ctx, rsv.ReservationUid)
	require.NoError(t, err)

	require.Equal(t, []string{"create_reservation", "expire_reservation"}, enq.actions())
}

func TestReservation_CompleteHandsItemBack(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	lending := service.NewLending(repo, service.Emitter{}, log)
	reservation := service.NewReservation(repo, 24*time.Hour, service.Emitter{}, log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	rsv, err := reservation.CreateReservation(ctx, model.CreateReservationRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
	})
	require.NoError(t, err)

	// while the hold is pending nobody else can claim the copy
	_, err = lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "alice",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.ErrorIs(t, err, errs.ErrItemUnavailable)
	_, err = reservation.CreateReservation(ctx, model.CreateReservationRequest{
		ItemUid:  itemUid,
		MemberID: "alice",
	})
	require.ErrorIs(t, err, errs.ErrNotReservable)

	done, err := reservation.CompleteReservation(ctx, rsv.ReservationUid)
	require.NoError(t, err)
	require.Equal(t, model.ReservationCompleted, done.Status)
	require.NotNil(t, done.ReservationDate)
	require.Equal(t, model.ItemAvailable, repo.itemStatus(itemUid))

	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, model.LoanBorrowed, loan.Status)
}

func TestFine_OverdueFlow(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	lending := service.NewLending(repo, service.Emitter{}, log)
	fines := service.NewFine(repo, service.Emitter{}, log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	details, err := lending.CheckOverdue(ctx, loan.LoanUid)
	require.NoError(t, err)
	require.False(t, details.Overdue)

	repo.setDueDate(loan.LoanUid, time.Now().Add(-48*time.Hour))

	details, err = lending.CheckOverdue(ctx, loan.LoanUid)
	require.NoError(t, err)
	require.True(t, details.Overdue)

	_, err = fines.RaiseFine(ctx, model.RaiseFineRequest{
		LoanUid: loan.LoanUid,
		Amount:  -5,
		Reason:  "late return",
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	fine, err := fines.RaiseFine(ctx, model.RaiseFineRequest{
		LoanUid: loan.LoanUid,
		Amount:  300,
		Reason:  "late return",
	})
	require.NoError(t, err)
	require.Equal(t, "bob", fine.MemberID)
	require.Equal(t, model.FineUnpaid, fine.Status)

	total, err := fines.UnpaidTotal(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(300), total)

	// returning does not settle the fine
	_, err = lending.ReturnLoan(ctx, loan.LoanUid)
	require.NoError(t, err)
	total, err = fines.UnpaidTotal(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(300), total)

	paid, err := fines.MarkPaid(ctx, fine.FineUid)
	require.NoError(t, err)
	require.Equal(t, model.FinePaid, paid.Status)

	_, err = fines.MarkPaid(ctx, fine.FineUid)
	require.ErrorIs(t, err, errs.ErrAlreadyPaid)

	total, err = fines.UnpaidTotal(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(0), total)
}

func TestPayment_MatchAndReversal(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	lending := service.NewLending(repo, service.Emitter{}, log)
	fines := service.NewFine(repo, service.Emitter{}, log)
	payments := service.NewPayment(repo, service.Emitter{}, log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	fine, err := fines.RaiseFine(ctx, model.RaiseFineRequest{
		LoanUid: loan.LoanUid,
		Amount:  300,
		Reason:  "damaged cover",
	})
	require.NoError(t, err)

	_, err = payments.CreatePayment(ctx, model.CreatePaymentRequest{
		FineUid: fine.FineUid,
		Amount:  250,
		Method:  model.PaymentCash,
	})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	payment, err := payments.CreatePayment(ctx, model.CreatePaymentRequest{
		FineUid: fine.FineUid,
		Amount:  300,
		Method:  model.PaymentCash,
	})
	require.NoError(t, err)

	got, err := fines.GetFine(ctx, fine.FineUid)
	require.NoError(t, err)
	require.Equal(t, model.FinePaid, got.Status)

	_, err = payments.CreatePayment(ctx, model.CreatePaymentRequest{
		FineUid: fine.FineUid,
		Amount:  300,
		Method:  model.PaymentCash,
	})
	require.ErrorIs(t, err, errs.ErrAlreadyPaid)

	require.NoError(t, payments.DeletePayment(ctx, payment.PaymentUid))
	got, err = fines.GetFine(ctx, fine.FineUid)
	require.NoError(t, err)
	require.Equal(t, model.FineUnpaid, got.Status)
}

func TestPayment_ListByMethod(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	lending := service.NewLending(repo, service.Emitter{}, log)
	fines := service.NewFine(repo, service.Emitter{}, log)
	payments := service.NewPayment(repo, service.Emitter{}, log)
	ctx := context.Background()

	pay := func(method model.PaymentMethod) {
		itemUid := repo.addItem(false)
		loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
			ItemUid:  itemUid,
			MemberID: "bob",
			DueDate:  time.Now().Add(24 * time.Hour),
		})
		require.NoError(t, err)
		fine, err := fines.RaiseFine(ctx, model.RaiseFineRequest{
			LoanUid: loan.LoanUid,
			Amount:  100,
			Reason:  "late",
		})
		require.NoError(t, err)
		_, err = payments.CreatePayment(ctx, model.CreatePaymentRequest{
			FineUid: fine.FineUid,
			Amount:  100,
			Method:  method,
		})
		require.NoError(t, err)
	}
	pay(model.PaymentCash)
	pay(model.PaymentCash)
	pay(model.PaymentOnline)

	list, err := payments.ListPayments(ctx, model.PaymentFilter{Method: model.PaymentCash})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	for _, p := range list.Items {
		require.Equal(t, model.PaymentCash, p.Method)
	}

	list, err = payments.ListPayments(ctx, model.PaymentFilter{Method: model.PaymentOnline, MemberID: "bob"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, model.PaymentOnline, list.Items[0].Method)
}

func TestLending_AuditTrail(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	log := zap.NewExample().Named("test")
	enq := &recordingEnqueuer{}
	lending := service.NewLending(repo, service.NewEmitter(enq, "audit", log), log)
	ctx := context.Background()

	itemUid := repo.addItem(false)
	loan, err := lending.CreateLoan(ctx, model.CreateLoanRequest{
		ItemUid:  itemUid,
		MemberID: "bob",
		DueDate:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = lending.ReturnLoan(ctx, loan.LoanUid)
	require.NoError(t, err)

	require.Equal(t, []string{"create_loan", "return_loan"}, enq.actions())
	require.Equal(t, "system", enq.events[0].Actor)
	require.Equal(t, service.TargetLoan, enq.events[0].TargetType)
}

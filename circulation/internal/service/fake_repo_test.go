package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/circulation/internal/repository"
)

// fakeRepo is an in-memory stand-in for the postgres repository with
// the same state-machine rules: the item status cell only moves through
// compare-and-set, holds expire lazily on read, returns and payments
// are guarded against double application.
type fakeRepo struct {
	mu           sync.Mutex
	items        map[string]*model.Item
	loans        map[string]*model.Loan
	reservations map[string]*model.Reservation
	fines        map[string]*model.Fine
	payments     map[string]*model.Payment
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		items:        make(map[string]*model.Item),
		loans:        make(map[string]*model.Loan),
		reservations: make(map[string]*model.Reservation),
		fines:        make(map[string]*model.Fine),
		payments:     make(map[string]*model.Payment),
	}
}

func (f *fakeRepo) addItem(referenceOnly bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	itemUid := uuid.NewString()
	f.items[itemUid] = &model.Item{
		ItemUid:         itemUid,
		BookUid:         uuid.NewString(),
		Barcode:         "BOOK-" + strings.ToUpper(uuid.NewString()[:8]),
		IsReferenceOnly: referenceOnly,
		Status:          model.ItemAvailable,
		DateOfPurchase:  time.Now().UTC(),
	}
	return itemUid
}

func (f *fakeRepo) setDueDate(loanUid string, due time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans[loanUid].DueDate = due
}

func (f *fakeRepo) itemStatus(itemUid string) model.ItemStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[itemUid].Status
}

// transition is the single synchronization point, the in-memory
// analogue of the conditional UPDATE on book_items.
func (f *fakeRepo) transition(itemUid string, from, to model.ItemStatus) error {
	item, ok := f.items[itemUid]
	if !ok || item.IsDeleted {
		return errs.ErrNotFound
	}
	if from == model.ItemAvailable && item.IsReferenceOnly {
		return errs.ErrReferenceOnly
	}
	if item.Status != from {
		return errs.ErrConflict
	}
	item.Status = to
	return nil
}

// sweep applies lazy expiry; pred of "" means every reservation.
func (f *fakeRepo) sweep(itemUid string) {
	now := time.Now().UTC()
	for _, rsv := range f.reservations {
		if rsv.IsDeleted || rsv.Status != model.ReservationPending {
			continue
		}
		if itemUid != "" && rsv.ItemUid != itemUid {
			continue
		}
		if now.After(rsv.ExpirationDate) {
			rsv.Status = model.ReservationExpired
			_ = f.transition(rsv.ItemUid, model.ItemReserved, model.ItemAvailable)
		}
	}
}

// ItemRepository

func (f *fakeRepo) CreateItem(_ context.Context, req model.CreateItemRequest) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := model.Item{
		ItemUid:         uuid.NewString(),
		BookUid:         req.BookUid,
		Barcode:         "BOOK-" + strings.ToUpper(uuid.NewString()[:8]),
		IsReferenceOnly: req.IsReferenceOnly,
		Price:           req.Price,
		Status:          model.ItemAvailable,
		DateOfPurchase:  time.Now().UTC(),
		RackUid:         req.RackUid,
	}
	f.items[item.ItemUid] = &item
	return item, nil
}

func (f *fakeRepo) GetItem(_ context.Context, itemUid string) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemUid]
	if !ok || item.IsDeleted {
		return model.Item{}, errs.ErrNotFound
	}
	return *item, nil
}

func (f *fakeRepo) GetItemByBarcode(_ context.Context, barcode string) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.Barcode == barcode && !item.IsDeleted {
			return *item, nil
		}
	}
	return model.Item{}, errs.ErrNotFound
}

func (f *fakeRepo) ListItems(_ context.Context, filter model.ItemFilter) (model.ListItems, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Item
	for _, item := range f.items {
		if item.IsDeleted {
			continue
		}
		if filter.BookUid != "" && item.BookUid != filter.BookUid {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, *item)
	}
	return model.ListItems{
		Paging: model.Paging{Page: filter.Page, PageSize: filter.Size, TotalElements: len(out)},
		Items:  out,
	}, nil
}

func (f *fakeRepo) UpdateItem(_ context.Context, itemUid string, req model.UpdateItemRequest) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemUid]
	if !ok || item.IsDeleted {
		return model.Item{}, errs.ErrNotFound
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.RackUid != nil {
		item.RackUid = req.RackUid
	}
	return *item, nil
}

func (f *fakeRepo) TransitionStatus(_ context.Context, itemUid string, from, to model.ItemStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(itemUid, from, to)
}

func (f *fakeRepo) SoftDeleteItem(_ context.Context, itemUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemUid]
	if !ok || item.IsDeleted {
		return errs.ErrNotFound
	}
	if item.Status != model.ItemAvailable {
		return errs.ErrInvalidState
	}
	item.IsDeleted = true
	return nil
}

// LoanRepository

func (f *fakeRepo) CreateLoan(_ context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(req.ItemUid)
	for _, rsv := range f.reservations {
		if !rsv.IsDeleted && rsv.ItemUid == req.ItemUid &&
			rsv.Status == model.ReservationPending && rsv.MemberID != req.MemberID {
			return model.Loan{}, errs.ErrConflict
		}
	}
	if err := f.transition(req.ItemUid, model.ItemAvailable, model.ItemLoaned); err != nil {
		return model.Loan{}, err
	}
	loan := model.Loan{
		LoanUid:      uuid.NewString(),
		ItemUid:      req.ItemUid,
		MemberID:     req.MemberID,
		CreationDate: time.Now().UTC(),
		DueDate:      req.DueDate.UTC(),
		Status:       model.LoanBorrowed,
	}
	f.loans[loan.LoanUid] = &loan
	return loan, nil
}

func (f *fakeRepo) GetLoan(_ context.Context, loanUid string) (model.LoanDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok || loan.IsDeleted {
		return model.LoanDetails{}, errs.ErrNotFound
	}
	details := model.LoanDetails{Loan: *loan, Overdue: loan.Overdue(time.Now().UTC())}
	for _, fine := range f.fines {
		if fine.LoanUid == loanUid && !fine.IsDeleted {
			details.FineUids = append(details.FineUids, fine.FineUid)
		}
	}
	return details, nil
}

func (f *fakeRepo) ListLoans(_ context.Context, filter model.LoanFilter) (model.ListLoans, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var out []model.LoanDetails
	for _, loan := range f.loans {
		if loan.IsDeleted {
			continue
		}
		if filter.MemberID != "" && loan.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && loan.Status != filter.Status {
			continue
		}
		out = append(out, model.LoanDetails{Loan: *loan, Overdue: loan.Overdue(now)})
	}
	return model.ListLoans{
		Paging: model.Paging{Page: filter.Page, PageSize: filter.Size, TotalElements: len(out)},
		Items:  out,
	}, nil
}

func (f *fakeRepo) ReturnLoan(_ context.Context, loanUid string) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok || loan.IsDeleted {
		return model.Loan{}, errs.ErrNotFound
	}
	if loan.Status == model.LoanReturned {
		return model.Loan{}, errs.ErrAlreadyReturned
	}
	now := time.Now().UTC()
	loan.Status = model.LoanReturned
	loan.ReturnDate = &now
	if err := f.transition(loan.ItemUid, model.ItemLoaned, model.ItemAvailable); err != nil {
		return model.Loan{}, err
	}
	return *loan, nil
}

func (f *fakeRepo) ExtendLoan(_ context.Context, loanUid string, req model.ExtendLoanRequest) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok || loan.IsDeleted {
		return model.Loan{}, errs.ErrNotFound
	}
	if loan.Status == model.LoanReturned {
		return model.Loan{}, errs.ErrInvalidState
	}
	if !req.DueDate.After(loan.DueDate) {
		return model.Loan{}, errs.ErrInvalidArgument
	}
	loan.DueDate = req.DueDate.UTC()
	return *loan, nil
}

func (f *fakeRepo) SoftDeleteLoan(_ context.Context, loanUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok || loan.IsDeleted {
		return errs.ErrNotFound
	}
	if loan.Status != model.LoanReturned {
		return errs.ErrInvalidState
	}
	loan.IsDeleted = true
	return nil
}

func (f *fakeRepo) HardDeleteLoan(_ context.Context, loanUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok || !loan.IsDeleted {
		return errs.ErrNotFound
	}
	for _, fine := range f.fines {
		if fine.LoanUid == loanUid {
			return errs.ErrInvalidState
		}
	}
	delete(f.loans, loanUid)
	return nil
}

// ReservationRepository

func (f *fakeRepo) CreateReservation(_ context.Context, req model.CreateReservationRequest, expiration repository.ExpireAfter) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(req.ItemUid)
	if err := f.transition(req.ItemUid, model.ItemAvailable, model.ItemReserved); err != nil {
		return model.Reservation{}, err
	}
	now := time.Now().UTC()
	rsv := model.Reservation{
		ReservationUid: uuid.NewString(),
		ItemUid:        req.ItemUid,
		MemberID:       req.MemberID,
		CreationDate:   now,
		ExpirationDate: now.Add(time.Duration(expiration)),
		Status:         model.ReservationPending,
	}
	f.reservations[rsv.ReservationUid] = &rsv
	return rsv, nil
}

func (f *fakeRepo) GetReservation(_ context.Context, reservationUid string) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rsv, ok := f.reservations[reservationUid]
	if !ok || rsv.IsDeleted {
		return model.Reservation{}, errs.ErrNotFound
	}
	f.sweep(rsv.ItemUid)
	return *rsv, nil
}

func (f *fakeRepo) ListReservations(_ context.Context, filter model.ReservationFilter) (model.ListReservations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep("")
	var out []model.Reservation
	for _, rsv := range f.reservations {
		if rsv.IsDeleted {
			continue
		}
		if filter.MemberID != "" && rsv.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && rsv.Status != filter.Status {
			continue
		}
		out = append(out, *rsv)
	}
	return model.ListReservations{
		Paging: model.Paging{Page: filter.Page, PageSize: filter.Size, TotalElements: len(out)},
		Items:  out,
	}, nil
}

func (f *fakeRepo) CancelReservation(_ context.Context, reservationUid string) (model.Reservation, error) {
	return f.closeReservation(reservationUid, model.ReservationCancelled, false)
}

func (f *fakeRepo) CompleteReservation(_ context.Context, reservationUid string) (model.Reservation, error) {
	return f.closeReservation(reservationUid, model.ReservationCompleted, true)
}

func (f *fakeRepo) closeReservation(reservationUid string, to model.ReservationStatus, fulfil bool) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rsv, ok := f.reservations[reservationUid]
	if !ok || rsv.IsDeleted {
		return model.Reservation{}, errs.ErrNotFound
	}
	f.sweep(rsv.ItemUid)
	if rsv.Status != model.ReservationPending {
		return model.Reservation{}, errs.ErrInvalidState
	}
	rsv.Status = to
	if fulfil {
		now := time.Now().UTC()
		rsv.ReservationDate = &now
	}
	if err := f.transition(rsv.ItemUid, model.ItemReserved, model.ItemAvailable); err != nil {
		return model.Reservation{}, err
	}
	return *rsv, nil
}

func (f *fakeRepo) CheckExpiration(_ context.Context, reservationUid string) (model.Reservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rsv, ok := f.reservations[reservationUid]
	if !ok || rsv.IsDeleted {
		return model.Reservation{}, false, errs.ErrNotFound
	}
	if rsv.Status == model.ReservationPending && time.Now().UTC().After(rsv.ExpirationDate) {
		rsv.Status = model.ReservationExpired
		_ = f.transition(rsv.ItemUid, model.ItemReserved, model.ItemAvailable)
		return *rsv, true, nil
	}
	return *rsv, false, nil
}

func (f *fakeRepo) SoftDeleteReservation(_ context.Context, reservationUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rsv, ok := f.reservations[reservationUid]
	if !ok || rsv.IsDeleted {
		return errs.ErrNotFound
	}
	if !rsv.Status.Terminal() {
		return errs.ErrInvalidState
	}
	rsv.IsDeleted = true
	return nil
}

// FineRepository

func (f *fakeRepo) CreateFine(_ context.Context, req model.RaiseFineRequest) (model.Fine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[req.LoanUid]
	if !ok || loan.IsDeleted {
		return model.Fine{}, errs.ErrNotFound
	}
	fine := model.Fine{
		FineUid:   uuid.NewString(),
		LoanUid:   loan.LoanUid,
		MemberID:  loan.MemberID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		Status:    model.FineUnpaid,
		CreatedAt: time.Now().UTC(),
	}
	f.fines[fine.FineUid] = &fine
	return fine, nil
}

func (f *fakeRepo) GetFine(_ context.Context, fineUid string) (model.Fine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fine, ok := f.fines[fineUid]
	if !ok || fine.IsDeleted {
		return model.Fine{}, errs.ErrNotFound
	}
	return *fine, nil
}

func (f *fakeRepo) ListFines(_ context.Context, filter model.FineFilter) (model.ListFines, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Fine
	for _, fine := range f.fines {
		if fine.IsDeleted {
			continue
		}
		if filter.MemberID != "" && fine.MemberID != filter.MemberID {
			continue
		}
		if filter.Status != "" && fine.Status != filter.Status {
			continue
		}
		out = append(out, *fine)
	}
	return model.ListFines{
		Paging: model.Paging{Page: filter.Page, PageSize: filter.Size, TotalElements: len(out)},
		Items:  out,
	}, nil
}

func (f *fakeRepo) MarkFinePaid(_ context.Context, fineUid string) (model.Fine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fine, ok := f.fines[fineUid]
	if !ok || fine.IsDeleted {
		return model.Fine{}, errs.ErrNotFound
	}
	if fine.Status == model.FinePaid {
		return model.Fine{}, errs.ErrAlreadyPaid
	}
	fine.Status = model.FinePaid
	return *fine, nil
}

func (f *fakeRepo) UnpaidTotal(_ context.Context, memberID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, fine := range f.fines {
		if !fine.IsDeleted && fine.MemberID == memberID && fine.Status == model.FineUnpaid {
			total += fine.Amount
		}
	}
	return total, nil
}

func (f *fakeRepo) SoftDeleteFine(_ context.Context, fineUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fine, ok := f.fines[fineUid]
	if !ok || fine.IsDeleted {
		return errs.ErrNotFound
	}
	fine.IsDeleted = true
	return nil
}

func (f *fakeRepo) HardDeleteFine(_ context.Context, fineUid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fine, ok := f.fines[fineUid]
	if !ok || !fine.IsDeleted {
		return errs.ErrNotFound
	}
	for _, p := range f.payments {
		if p.FineUid == fineUid {
			return errs.ErrInvalidState
		}
	}
	delete(f.fines, fineUid)
	return nil
}

// PaymentRepository

func (f *fakeRepo) CreatePayment(_ context.Context, req model.CreatePaymentRequest) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fine, ok := f.fines[req.FineUid]
	if !ok || fine.IsDeleted {
		return model.Payment{}, errs.ErrNotFound
	}
	if fine.Status == model.FinePaid {
		return model.Payment{}, errs.ErrAlreadyPaid
	}
	if req.Amount != fine.Amount {
		return model.Payment{}, errs.ErrInvalidArgument
	}
	payment := model.Payment{
		PaymentUid:    uuid.NewString(),
		FineUid:       req.FineUid,
		Amount:        req.Amount,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		PaidDate:      time.Now().UTC(),
	}
	f.payments[payment.PaymentUid] = &payment
	fine.Status = model.FinePaid
	return payment, nil
}

func (f *fakeRepo) GetPayment(_ context.Context, paymentUid string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentUid]
	if !ok || payment.IsDeleted {
		return model.Payment{}, errs.ErrNotFound
	}
	return *payment, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, filter model.PaymentFilter) (model.ListPayments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payment
	for _, payment := range f.payments {
		if payment.IsDeleted {
			continue
		}
		if filter.FineUid != "" && payment.FineUid != filter.FineUid {
			continue
		}
		if filter.Method != "" && payment.Method != filter.Method {
			continue
		}
		if filter.MemberID != "" {
			fine, ok := f.fines[payment.FineUid]
			if !ok || fine.MemberID != filter.MemberID {
				continue
			}
		}
		out = append(out, *payment)
	}
	return model.ListPayments{
		Paging: model.Paging{Page: filter.Page, PageSize: filter.Size, TotalElements: len(out)},
		Items:  out,
	}, nil
}

func (f *fakeRepo) DeletePayment(_ context.Context, paymentUid string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentUid]
	if !ok || payment.IsDeleted {
		return model.Payment{}, errs.ErrNotFound
	}
	payment.IsDeleted = true
	if fine, ok := f.fines[payment.FineUid]; ok {
		fine.Status = model.FineUnpaid
	}
	return *payment, nil
}

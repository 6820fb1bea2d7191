package model

import (
	"time"
)

type ItemStatus string

const (
	ItemAvailable ItemStatus = "AVAILABLE"
	ItemLoaned    ItemStatus = "LOANED"
	ItemReserved  ItemStatus = "RESERVED"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemAvailable, ItemLoaned, ItemReserved:
		return true
	}
	return false
}

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
	// LoanOverdue is accepted on imported rows only; the service derives
	// overdue at read time and never writes it.
	LoanOverdue LoanStatus = "OVERDUE"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationExpired
}

type FineStatus string

const (
	FineUnpaid FineStatus = "UNPAID"
	FinePaid   FineStatus = "PAID"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentCredit PaymentMethod = "CREDIT"
	PaymentOnline PaymentMethod = "ONLINE"
)

// Item is one physical copy of a catalog book.
type Item struct {
	ID              int        `json:"-" db:"id"`
	ItemUid         string     `json:"itemUid" db:"item_uid"`
	BookUid         string     `json:"bookUid" db:"book_uid"`
	Barcode         string     `json:"barcode" db:"barcode"`
	IsReferenceOnly bool       `json:"isReferenceOnly" db:"is_reference_only"`
	Price           int64      `json:"price" db:"price"`
	Status          ItemStatus `json:"status" db:"status"`
	DateOfPurchase  time.Time  `json:"dateOfPurchase" db:"date_of_purchase"`
	RackUid         *string    `json:"rackUid,omitempty" db:"rack_uid"`
	IsDeleted       bool       `json:"-" db:"is_deleted"`
}

// ItemDetails enriches an item with catalog data when the catalog
// collaborator is reachable.
type ItemDetails struct {
	Item      `json:",inline"`
	BookTitle string `json:"bookTitle,omitempty"`
}

type Loan struct {
	ID           int        `json:"-" db:"id"`
	LoanUid      string     `json:"loanUid" db:"loan_uid"`
	ItemUid      string     `json:"itemUid" db:"item_uid"`
	MemberID     string     `json:"memberId" db:"member_id"`
	CreationDate time.Time  `json:"creationDate" db:"creation_date"`
	DueDate      time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate   *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status       LoanStatus `json:"status" db:"status"`
	IsDeleted    bool       `json:"-" db:"is_deleted"`
}

// Overdue is the derived predicate, never a stored state.
func (l Loan) Overdue(now time.Time) bool {
	return l.Status == LoanBorrowed && now.After(l.DueDate)
}

// LoanDetails is a loan with its derived overdue flag and fine refs.
type LoanDetails struct {
	Loan     `json:",inline"`
	Overdue  bool     `json:"overdue"`
	FineUids []string `json:"fineUids,omitempty"`
}

type Reservation struct {
	ID              int               `json:"-" db:"id"`
	ReservationUid  string            `json:"reservationUid" db:"reservation_uid"`
	ItemUid         string            `json:"itemUid" db:"item_uid"`
	MemberID        string            `json:"memberId" db:"member_id"`
	CreationDate    time.Time         `json:"creationDate" db:"creation_date"`
	ReservationDate *time.Time        `json:"reservationDate,omitempty" db:"reservation_date"`
	ExpirationDate  time.Time         `json:"expirationDate" db:"expiration_date"`
	Status          ReservationStatus `json:"status" db:"status"`
	IsDeleted       bool              `json:"-" db:"is_deleted"`
}

type Fine struct {
	ID        int        `json:"-" db:"id"`
	FineUid   string     `json:"fineUid" db:"fine_uid"`
	LoanUid   string     `json:"loanUid" db:"loan_uid"`
	MemberID  string     `json:"memberId" db:"member_id"`
	Amount    int64      `json:"amount" db:"amount"`
	Reason    string     `json:"reason" db:"reason"`
	Status    FineStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	IsDeleted bool       `json:"-" db:"is_deleted"`
}

type Payment struct {
	ID            int           `json:"-" db:"id"`
	PaymentUid    string        `json:"paymentUid" db:"payment_uid"`
	FineUid       string        `json:"fineUid" db:"fine_uid"`
	Amount        int64         `json:"amount" db:"amount"`
	Method        PaymentMethod `json:"method" db:"method"`
	TransactionID *string       `json:"transactionId,omitempty" db:"transaction_id"`
	PaidDate      time.Time     `json:"paidDate" db:"paid_date"`
	IsDeleted     bool          `json:"-" db:"is_deleted"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListItems struct {
	Paging `json:",inline"`
	Items  []Item `json:"items"`
}

type ListLoans struct {
	Paging `json:",inline"`
	Items  []LoanDetails `json:"items"`
}

type ListReservations struct {
	Paging `json:",inline"`
	Items  []Reservation `json:"items"`
}

type ListFines struct {
	Paging `json:",inline"`
	Items  []Fine `json:"items"`
}

type ListPayments struct {
	Paging `json:",inline"`
	Items  []Payment `json:"items"`
}

type CreateItemRequest struct {
	BookUid         string  `json:"bookUid" validate:"required,uuid"`
	IsReferenceOnly bool    `json:"isReferenceOnly"`
	Price           int64   `json:"price" validate:"gte=0"`
	RackUid         *string `json:"rackUid,omitempty" validate:"omitempty,uuid"`
}

type UpdateItemRequest struct {
	Price   *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	RackUid *string `json:"rackUid,omitempty" validate:"omitempty,uuid"`
}

type ItemFilter struct {
	BookUid string
	Status  ItemStatus
	Page    int
	Size    int
}

type CreateLoanRequest struct {
	ItemUid  string    `json:"itemUid" validate:"required,uuid"`
	MemberID string    `json:"memberId" validate:"required"`
	DueDate  time.Time `json:"dueDate" validate:"required"`
}

type ExtendLoanRequest struct {
	DueDate time.Time `json:"dueDate" validate:"required"`
}

type LoanFilter struct {
	MemberID string
	Status   LoanStatus
	Page     int
	Size     int
}

type CreateReservationRequest struct {
	ItemUid  string `json:"itemUid" validate:"required,uuid"`
	MemberID string `json:"memberId" validate:"required"`
}

type ReservationFilter struct {
	MemberID string
	Status   ReservationStatus
	Page     int
	Size     int
}

type RaiseFineRequest struct {
	LoanUid string `json:"loanUid" validate:"required,uuid"`
	Amount  int64  `json:"amount" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

type FineFilter struct {
	MemberID string
	Status   FineStatus
	Page     int
	Size     int
}

type CreatePaymentRequest struct {
	FineUid       string        `json:"fineUid" validate:"required,uuid"`
	Amount        int64         `json:"amount" validate:"required,gt=0"`
	Method        PaymentMethod `json:"method" validate:"required,oneof=CASH CREDIT ONLINE"`
	TransactionID *string       `json:"transactionId,omitempty"`
}

type PaymentFilter struct {
	FineUid  string
	MemberID string
	Method   PaymentMethod
	Page     int
	Size     int
}

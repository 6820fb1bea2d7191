package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/circulation/internal/errs"
	"github.com/libris/circulation-service/pkg/auth"
	md "github.com/libris/circulation-service/pkg/middleware"
	"github.com/libris/circulation-service/pkg/validate"
)

type Handler struct {
	itemSvc        ItemService
	lendingSvc     LendingService
	reservationSvc ReservationService
	fineSvc        FineService
	paymentSvc     PaymentService
	log            *zap.Logger
}

func New(itemSvc ItemService, lendingSvc LendingService, reservationSvc ReservationService,
	fineSvc FineService, paymentSvc PaymentService, log *zap.Logger) *Handler {
	return &Handler{
		itemSvc:        itemSvc,
		lendingSvc:     lendingSvc,
		reservationSvc: reservationSvc,
		fineSvc:        fineSvc,
		paymentSvc:     paymentSvc,
		log:            log,
	}
}

// NewRouter builds the HTTP routing table. authn is the identity
// middleware, either bearer-token validation or trusted gateway
// headers depending on deployment.
func (h *Handler) NewRouter(authn echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
		authn,
	)

	staff := md.RequireRoles(auth.RoleLibrarian, auth.RoleAdmin)
	admin := md.RequireRoles(auth.RoleAdmin)

	api.GET("/items", h.ListItems)
	api.GET("/items/:itemUid", h.GetItem)
	api.GET("/items/barcode/:barcode", h.GetItemByBarcode)
	api.POST("/items", h.CreateItem, staff)
	api.PATCH("/items/:itemUid", h.UpdateItem, staff)
	api.PATCH("/items/:itemUid/status", h.UpdateItemStatus, staff)
	api.DELETE("/items/:itemUid", h.DeleteItem, staff)

	api.POST("/loans", h.CreateLoan)
	api.GET("/loans", h.ListLoans)
	api.GET("/loans/:loanUid", h.GetLoan)
	api.GET("/loans/:loanUid/overdue", h.CheckOverdue)
	api.POST("/loans/:loanUid/return", h.ReturnLoan)
	api.POST("/loans/:loanUid/extend", h.ExtendLoan)
	api.DELETE("/loans/:loanUid", h.DeleteLoan, staff)
	api.DELETE("/loans/:loanUid/hard", h.HardDeleteLoan, admin)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations", h.ListReservations)
	api.GET("/reservations/:reservationUid", h.GetReservation)
	api.GET("/reservations/:reservationUid/expiration", h.CheckExpiration)
	api.POST("/reservations/:reservationUid/cancel", h.CancelReservation)
	api.POST("/reservations/:reservationUid/complete", h.CompleteReservation, staff)
	api.DELETE("/reservations/:reservationUid", h.DeleteReservation, staff)

	api.POST("/fines", h.RaiseFine, staff)
	api.GET("/fines", h.ListFines)
	api.GET("/fines/unpaid-total", h.UnpaidTotal)
	api.GET("/fines/:fineUid", h.GetFine)
	api.POST("/fines/:fineUid/pay", h.MarkFinePaid, staff)
	api.DELETE("/fines/:fineUid", h.DeleteFine, staff)
	api.DELETE("/fines/:fineUid/hard", h.HardDeleteFine, admin)

	api.POST("/payments", h.CreatePayment, staff)
	api.GET("/payments", h.ListPayments)
	api.GET("/payments/:paymentUid", h.GetPayment)
	api.DELETE("/payments/:paymentUid", h.DeletePayment, admin)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps the error taxonomy onto statuses; idempotency guards
// stay distinguishable by message.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrItemUnavailable),
		errors.Is(err, errs.ErrNotReservable),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrAlreadyReturned),
		errors.Is(err, errs.ErrAlreadyPaid),
		errors.Is(err, errs.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrInvalidArgument),
		errors.Is(err, errs.ErrReferenceOnly):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func caller(c echo.Context) (auth.Caller, error) {
	cl, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return auth.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return cl, nil
}

func paging(c echo.Context) (page, size int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	size, _ = strconv.Atoi(c.QueryParam("size"))
	return page, size
}

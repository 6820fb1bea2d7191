package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libris/circulation-service/circulation/internal/model"
)

func (h *Handler) CreatePayment(c echo.Context) error {
	var req model.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	payment, err := h.paymentSvc.CreatePayment(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, payment)
}

func (h *Handler) GetPayment(c echo.Context) error {
	payment, err := h.paymentSvc.GetPayment(c.Request().Context(), c.Param("paymentUid"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payment)
}

func (h *Handler) ListPayments(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	page, size := paging(c)
	filter := model.PaymentFilter{
		FineUid:  c.QueryParam("fineUid"),
		MemberID: c.QueryParam("memberId"),
		Method:   model.PaymentMethod(c.QueryParam("method")),
		Page:     page,
		Size:     size,
	}
	if !cl.Role.Staff() {
		filter.MemberID = cl.ID
	}
	payments, err := h.paymentSvc.ListPayments(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) DeletePayment(c echo.Context) error {
	if err := h.paymentSvc.DeletePayment(c.Request().Context(), c.Param("paymentUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

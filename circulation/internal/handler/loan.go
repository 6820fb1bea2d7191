package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/libris/circulation-service/circulation/internal/model"
	"github.com/libris/circulation-service/pkg/auth"
)

func (h *Handler) CreateLoan(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// members borrow for themselves, staff may lend to anyone
	if !cl.Role.Staff() {
		req.MemberID = cl.ID
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	loan, err := h.lendingSvc.CreateLoan(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) GetLoan(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	loan, err := h.lendingSvc.GetLoan(c.Request().Context(), c.Param("loanUid"))
	if err != nil {
		return httpError(err)
	}
	if !cl.Role.Staff() && loan.MemberID != cl.ID {
		return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) ListLoans(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	page, size := paging(c)
	filter := model.LoanFilter{
		MemberID: c.QueryParam("memberId"),
		Status:   model.LoanStatus(c.QueryParam("status")),
		Page:     page,
		Size:     size,
	}
	if !cl.Role.Staff() {
		filter.MemberID = cl.ID
	}
	loans, err := h.lendingSvc.ListLoans(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ReturnLoan(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	loanUid := c.Param("loanUid")
	if !cl.Role.Staff() {
		if err := h.requireLoanOwner(c, cl, loanUid); err != nil {
			return err
		}
	}
	loan, err := h.lendingSvc.ReturnLoan(c.Request().Context(), loanUid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) ExtendLoan(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	loanUid := c.Param("loanUid")
	if !cl.Role.Staff() {
		if err := h.requireLoanOwner(c, cl, loanUid); err != nil {
			return err
		}
	}
	var req model.ExtendLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	loan, err := h.lendingSvc.ExtendLoan(c.Request().Context(), loanUid, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) CheckOverdue(c echo.Context) error {
	cl, err := caller(c)
	if err != nil {
		return err
	}
	loan, err := h.lendingSvc.CheckOverdue(c.Request().Context(), c.Param("loanUid"))
	if err != nil {
		return httpError(err)
	}
	if !cl.Role.Staff() && loan.MemberID != cl.ID {
		return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
	}
	type resp struct {
		LoanUid string `json:"loanUid"`
		Overdue bool   `json:"overdue"`
	}
	return c.JSON(http.StatusOK, resp{LoanUid: loan.LoanUid, Overdue: loan.Overdue})
}

func (h *Handler) DeleteLoan(c echo.Context) error {
	if err := h.lendingSvc.DeleteLoan(c.Request().Context(), c.Param("loanUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HardDeleteLoan(c echo.Context) error {
	if err := h.lendingSvc.HardDeleteLoan(c.Request().Context(), c.Param("loanUid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) requireLoanOwner(c echo.Context, cl auth.Caller, loanUid string) error {
	loan, err := h.lendingSvc.GetLoan(c.Request().Context(), loanUid)
	if err != nil {
		return httpError(err)
	}
	if loan.MemberID != cl.ID {
		return echo.NewHTTPError(http.StatusForbidden, "AccessDenied")
	}
	return nil
}

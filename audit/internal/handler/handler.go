package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/audit/internal/model"
	"github.com/libris/circulation-service/pkg/auth"
	md "github.com/libris/circulation-service/pkg/middleware"
	"github.com/libris/circulation-service/pkg/validate"
)

type Handler struct {
	auditSvc AuditService
	log      *zap.Logger
}

func New(auditSvc AuditService, log *zap.Logger) *Handler {
	return &Handler{
		auditSvc: auditSvc,
		log:      log,
	}
}

func (h *Handler) NewRouter(authn echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{StackSize: 4 << 10}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead},
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
		md.RequireRoles(auth.RoleAdmin),
	)
	api.GET("/audit", h.GetRecords)
	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) GetRecords(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	filter := model.Filter{
		Actor:      c.QueryParam("actor"),
		Action:     c.QueryParam("action"),
		TargetType: c.QueryParam("targetType"),
		TargetUID:  c.QueryParam("targetUid"),
		Page:       page,
		Size:       size,
	}
	if v := c.QueryParam("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from: expected RFC3339 timestamp")
		}
		filter.From = ts
	}
	if v := c.QueryParam("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to: expected RFC3339 timestamp")
		}
		filter.To = ts
	}

	records, err := h.auditSvc.GetRecords(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}

package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleBilling, auth.RoleReception))
	read.GET("/invoices", h.ListInvoices)
	read.GET("/invoices/:id", h.GetInvoice)
	read.GET("/invoices/number/:number", h.GetInvoiceByNumber)
	read.GET("/patients/:id/invoices", h.ListInvoicesByPatient)
	read.GET("/payments/:id", h.GetPayment)
	read.GET("/reports/financial", h.MonthlySummary)

	write := api.Group("", auth.RequireRole(auth.RoleBilling))
	write.POST("/invoices", h.CreateInvoice)
	write.PUT("/invoices/:id/status", h.UpdateInvoiceStatus)
	write.POST("/invoices/:id/cancel", h.CancelInvoice)
	write.POST("/invoices/sweep-overdue", h.SweepOverdue)
	write.POST("/payments", h.AddPayment)
	write.POST("/payments/:id/refund", h.RefundPayment)
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.CreateInvoice(c.Request().Context(), &inv); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) GetInvoiceByNumber(c echo.Context) error {
	inv, err := h.svc.GetInvoiceByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = InvoicePending
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInvoicesByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListInvoicesByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInvoicesByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateInvoiceStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	inv, err := h.svc.UpdateInvoiceStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	inv, err := h.svc.CancelInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) SweepOverdue(c echo.Context) error {
	n, err := h.svc.SweepOverdue(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) AddPayment(c echo.Context) error {
	var p Payment
	if err := c.Bind(&p); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.AddPayment(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	p, err := h.svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RefundPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	p, err := h.svc.RefundPayment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) MonthlySummary(c echo.Context) error {
	monthParam := c.QueryParam("month")
	var year int
	var month time.Month
	if monthParam == "" {
		now := time.Now()
		year, month = now.Year(), now.Month()
	} else {
		parsed, err := time.Parse("2006-01", monthParam)
		if err != nil {
			return apperr.Validation("invalid month, expected YYYY-MM", nil)
		}
		year, month = parsed.Year(), parsed.Month()
	}
	summary, err := h.svc.MonthlySummary(c.Request().Context(), year, month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

package pharmacy

import (
	"net/http"

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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePharmacist))
	read.GET("/medications", h.ListMedications)
	read.GET("/medications/:id", h.GetMedication)

	pharm := api.Group("", auth.RequireRole(auth.RolePharmacist))
	pharm.POST("/medications", h.CreateMedication)
	pharm.PUT("/medications/:id", h.UpdateMedication)

	pharm.GET("/suppliers", h.ListSuppliers)
	pharm.GET("/suppliers/:id", h.GetSupplier)
	pharm.POST("/suppliers", h.CreateSupplier)
	pharm.PUT("/suppliers/:id", h.UpdateSupplier)

	pharm.GET("/inventory/alerts", h.StockAlerts)
	pharm.GET("/inventory/batches/:id", h.GetBatch)
	pharm.GET("/medications/:id/batches", h.ListBatches)
	pharm.POST("/inventory/batches", h.AddBatch)
	pharm.POST("/inventory/batches/:id/adjust", h.AdjustQuantity)
	pharm.POST("/inventory/batches/:id/reserve", h.Reserve)
	pharm.POST("/inventory/batches/:id/release", h.Release)

	pharm.POST("/dispensings", h.Dispense)
	pharm.GET("/dispensings/:id", h.GetDispensing)
	pharm.GET("/prescriptions/:id/dispensings", h.ListDispensings)
}

// -- Medications --

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.CreateMedication(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var m Medication
	if err := c.Bind(&m); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	m.ID = id
	if err := h.svc.UpdateMedication(c.Request().Context(), &m); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("include_inactive") != "true"
	items, total, err := h.svc.ListMedications(c.Request().Context(),
		c.QueryParam("search"), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Suppliers --

func (h *Handler) CreateSupplier(c echo.Context) error {
	var s Supplier
	if err := c.Bind(&s); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.CreateSupplier(c.Request().Context(), &s); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSupplier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	s, err := h.svc.GetSupplier(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) UpdateSupplier(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var s Supplier
	if err := c.Bind(&s); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	s.ID = id
	if err := h.svc.UpdateSupplier(c.Request().Context(), &s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSuppliers(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("include_inactive") != "true"
	items, total, err := h.svc.ListSuppliers(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Inventory --

func (h *Handler) AddBatch(c echo.Context) error {
	var b InventoryBatch
	if err := c.Bind(&b); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.AddBatch(c.Request().Context(), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	b, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBatches(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBatches(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) AdjustQuantity(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req adjustRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	b, err := h.svc.AdjustQuantity(c.Request().Context(), id, req.Delta)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) Reserve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	b, err := h.svc.Reserve(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Release(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	b, err := h.svc.Release(c.Request().Context(), id, req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) StockAlerts(c echo.Context) error {
	alerts, err := h.svc.StockAlerts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alerts)
}

// -- Dispensing --

func (h *Handler) Dispense(c echo.Context) error {
	var d Dispensing
	if err := c.Bind(&d); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if d.DispensedBy == uuid.Nil {
		if id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			d.DispensedBy = id
		}
	}
	if err := h.svc.Dispense(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDispensing(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	d, err := h.svc.GetDispensing(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDispensings(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	items, err := h.svc.ListDispensingsByPrescription(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

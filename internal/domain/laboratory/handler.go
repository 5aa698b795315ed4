package laboratory

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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleLab))
	read.GET("/lab/tests", h.ListTests)
	read.GET("/lab/tests/:id", h.GetTest)
	read.GET("/lab/orders", h.ListOrders)
	read.GET("/lab/orders/:id", h.GetOrder)
	read.GET("/patients/:id/lab-orders", h.ListOrdersByPatient)
	read.GET("/lab/results/:id", h.GetResult)
	read.GET("/lab/results/unverified-critical", h.ListUnverifiedCritical)

	catalog := api.Group("", auth.RequireRole(auth.RoleLab))
	catalog.POST("/lab/tests", h.CreateTest)
	catalog.PUT("/lab/tests/:id", h.UpdateTest)

	ordering := api.Group("", auth.RequireRole(auth.RoleDoctor))
	ordering.POST("/lab/orders", h.CreateOrder)

	bench := api.Group("", auth.RequireRole(auth.RoleLab, auth.RoleNurse))
	bench.POST("/lab/orders/:id/collect-sample", h.CollectSample)

	lab := api.Group("", auth.RequireRole(auth.RoleLab, auth.RoleDoctor))
	lab.POST("/lab/orders/:id/cancel", h.CancelOrder)

	results := api.Group("", auth.RequireRole(auth.RoleLab))
	results.POST("/lab/results", h.AddResult)
	results.POST("/lab/results/:id/verify", h.VerifyResult)
}

// actorID resolves the acting user, preferring the token subject over a
// body-supplied fallback.
func actorID(c echo.Context, fallback uuid.UUID, field string) (uuid.UUID, error) {
	if id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
		return id, nil
	}
	if fallback != uuid.Nil {
		return fallback, nil
	}
	return uuid.Nil, apperr.RequiredField(field)
}

// -- Tests --

func (h *Handler) CreateTest(c echo.Context) error {
	var t LabTest
	if err := c.Bind(&t); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if err := h.svc.CreateTest(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var t LabTest
	if err := c.Bind(&t); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	t.ID = id
	if err := h.svc.UpdateTest(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ListTests(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("include_inactive") != "true"
	items, total, err := h.svc.ListTests(c.Request().Context(),
		c.QueryParam("category"), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Orders --

type createOrderRequest struct {
	PatientID uuid.UUID   `json:"patient_id"`
	DoctorID  uuid.UUID   `json:"doctor_id"`
	RecordID  *uuid.UUID  `json:"record_id"`
	Priority  string      `json:"priority"`
	Notes     *string     `json:"notes"`
	TestIDs   []uuid.UUID `json:"test_ids"`
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	o := &LabOrder{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		RecordID:  req.RecordID,
		Priority:  req.Priority,
		Notes:     req.Notes,
	}
	if err := h.svc.CreateOrder(c.Request().Context(), o, req.TestIDs); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = OrderPending
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOrdersByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListOrdersByPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListOrdersByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type collectSampleRequest struct {
	CollectedBy uuid.UUID `json:"collected_by"`
}

func (h *Handler) CollectSample(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req collectSampleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	by, err := actorID(c, req.CollectedBy, "collected_by")
	if err != nil {
		return err
	}
	o, err := h.svc.CollectSample(c.Request().Context(), id, by)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	o, err := h.svc.CancelOrder(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// -- Results --

func (h *Handler) AddResult(c echo.Context) error {
	var res LabResult
	if err := c.Bind(&res); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	if by, err := actorID(c, res.PerformedBy, "performed_by"); err == nil {
		res.PerformedBy = by
	}
	if err := h.svc.AddResult(c.Request().Context(), &res); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	res, err := h.svc.GetResult(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListUnverifiedCritical(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUnverifiedCritical(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type verifyRequest struct {
	VerifiedBy uuid.UUID `json:"verified_by"`
}

func (h *Handler) VerifyResult(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id", nil)
	}
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(err.Error(), nil)
	}
	by, err := actorID(c, req.VerifiedBy, "verified_by")
	if err != nil {
		return err
	}
	res, err := h.svc.VerifyResult(c.Request().Context(), id, by)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

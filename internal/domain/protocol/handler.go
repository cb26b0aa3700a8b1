package protocol

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/protocol/protocol/internal/domain/labs"
	"github.com/protocol/protocol/internal/platform/auth"
	"github.com/protocol/protocol/internal/platform/metrics"
	"github.com/protocol/protocol/pkg/pagination"
)

// Standard (free-tier) theme colors; everything else requires the
// premium-themes capability.
var standardThemes = map[string]bool{
	"cyan": true, "green": true, "red": true, "white": true, "gold": true,
}

type Handler struct {
	manager *Manager
	plans   auth.PlanResolver
}

func NewHandler(manager *Manager, plans auth.PlanResolver) *Handler {
	return &Handler{manager: manager, plans: plans}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/protocol", h.GetState)
	api.PATCH("/protocol/config", h.PatchConfig)
	api.PATCH("/protocol/schedule", h.PatchSchedule)
	api.PATCH("/protocol/reminders", h.PatchReminders)
	api.PUT("/protocol/lab-date", h.PutLabDate)

	api.POST("/protocol/doses", h.LogDose)
	api.GET("/protocol/doses", h.ListDoses)

	api.POST("/protocol/labs", h.AddLabResult)
	api.GET("/protocol/labs", h.ListLabResults)
	api.DELETE("/protocol/labs/:id", h.DeleteLabResult)
	api.GET("/protocol/labs/dpd", h.GetDPDBuckets)

	api.GET("/protocol/insights", h.GetInsights)

	api.GET("/protocol/theme", h.GetTheme)
	api.PUT("/protocol/theme", h.PutTheme)
}

func (h *Handler) store(c echo.Context) (*Store, error) {
	uid := auth.UserID(c.Request().Context())
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return h.manager.ForUser(c.Request().Context(), uid), nil
}

func (h *Handler) GetState(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (h *Handler) PatchConfig(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var p ConfigPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.UpdateConfig(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.Snapshot().Config)
}

func (h *Handler) PatchSchedule(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var p SchedulePatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.UpdateSchedule(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.Snapshot().Schedule)
}

func (h *Handler) PatchReminders(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var p ReminderPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.UpdateReminders(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.Snapshot().Reminders)
}

type labDateRequest struct {
	Date *string `json:"date"`
}

func (h *Handler) PutLabDate(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var req labDateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var date *time.Time
	if req.Date != nil && *req.Date != "" {
		d, err := time.ParseInLocation("2006-01-02", *req.Date, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = &d
	}
	s.SetLabDate(c.Request().Context(), date)
	return c.JSON(http.StatusOK, map[string]interface{}{"lab_date": s.Snapshot().LabDate})
}

func (h *Handler) LogDose(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var in DoseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry, err := s.LogDose(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	metrics.DosesLogged.Inc()
	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) ListDoses(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	doses := s.Snapshot().Doses

	// Newest first.
	reversed := make([]DoseEntry, len(doses))
	for i, d := range doses {
		reversed[len(doses)-1-i] = d
	}
	total := len(reversed)
	if p.Offset >= total {
		return c.JSON(http.StatusOK, pagination.NewResponse([]DoseEntry{}, total, p.Limit, p.Offset))
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reversed[p.Offset:end], total, p.Limit, p.Offset))
}

func (h *Handler) AddLabResult(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var in LabInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := s.AddLabResult(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	metrics.LabResultsAdded.Inc()
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListLabResults(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	results := s.Snapshot().LabResults
	total := len(results)
	if p.Offset >= total {
		return c.JSON(http.StatusOK, pagination.NewResponse([]labs.Result{}, total, p.Limit, p.Offset))
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(results[p.Offset:end], total, p.Limit, p.Offset))
}

func (h *Handler) DeleteLabResult(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	if err := s.DeleteLabResult(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetDPDBuckets(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	buckets := s.DPDBuckets()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"buckets":   buckets,
		"tightness": labs.ClassifyTightness(labs.AverageStdDev(buckets)),
	})
}

func (h *Handler) GetInsights(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"next_dose_date":    s.NextDoseDate(),
		"is_today_dose_day": s.IsTodayDoseDay(),
		"upcoming_doses":    s.UpcomingDoses(5),
		"current_dpd":       s.CurrentDPD(),
	})
}

func (h *Handler) GetTheme(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"theme": s.Theme(c.Request().Context())})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handler) PutTheme(c echo.Context) error {
	s, err := h.store(c)
	if err != nil {
		return err
	}
	var req themeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Theme == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "theme is required")
	}
	if !standardThemes[req.Theme] {
		uid := auth.UserID(c.Request().Context())
		if !auth.HasCapability(c.Request().Context(), h.plans, uid, auth.CapabilityPremiumThemes) {
			return echo.NewHTTPError(http.StatusForbidden, "premium theme requires a pro plan")
		}
	}
	s.SetTheme(c.Request().Context(), req.Theme)
	return c.JSON(http.StatusOK, map[string]string{"theme": req.Theme})
}

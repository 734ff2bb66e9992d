package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/event-weather-alerts/internal/alerting"
	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
	"github.com/mr1hm/event-weather-alerts/internal/risk"
)

const (
	eventKey     = "event"
	defaultLimit = 20
	maxLimit     = 100
)

type Handler struct {
	svc   *alerting.Service
	store repository.Store
	auth  *Authenticator
}

func NewHandler(svc *alerting.Service, store repository.Store, auth *Authenticator) *Handler {
	return &Handler{
		svc:   svc,
		store: store,
		auth:  auth,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	api := r.Group("/api", h.auth.Middleware())

	event := api.Group("/events/:id/weather", h.requireEnabled, h.requireEventAccess)
	event.GET("/config", h.getConfig)
	event.PUT("/config", h.putConfig)
	event.DELETE("/config", h.requireSuperAdmin, h.deleteConfig)
	event.POST("/check", h.checkWeather)
	event.GET("/current", h.currentWeather)
	event.GET("/forecast", h.forecast)
	event.GET("/alerts", h.listAlerts)
	event.GET("/stats", h.eventStats)

	weather := api.Group("/weather")
	weather.GET("/system", h.requireSuperAdmin, h.getSystemConfig)
	weather.PUT("/system", h.requireSuperAdmin, h.putSystemConfig)
	weather.PATCH("/alerts/:alertId/acknowledge", h.requireEnabled, h.acknowledgeAlert)
	weather.GET("/stats", h.requireEnabled, h.requireSuperAdmin, h.globalStats)
	weather.GET("/approvals", h.requireEnabled, h.requireSuperAdmin, h.listApprovals)
	weather.POST("/alerts/:alertId/actions/:index/approve", h.requireEnabled, h.requireSuperAdmin, h.approveAction)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireEnabled rejects callers while alerts are switched off system-wide
// or when their role has not been granted access.
func (h *Handler) requireEnabled(c *gin.Context) {
	sys, err := h.store.GetSystemConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	if !sys.Enabled {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "weather alerts are disabled"})
		return
	}
	if !sys.RoleAllowed(currentUser(c).Role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role is not allowed to manage weather alerts"})
		return
	}
	c.Next()
}

func (h *Handler) requireEventAccess(c *gin.Context) {
	event, err := h.store.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	if !currentUser(c).CanManage(event) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed to manage this event"})
		return
	}
	c.Set(eventKey, event)
	c.Next()
}

func (h *Handler) requireSuperAdmin(c *gin.Context) {
	if currentUser(c).Role != models.RoleSuperAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "super admin access required"})
		return
	}
	c.Next()
}

func (h *Handler) getConfig(c *gin.Context) {
	cfg, err := repository.AlertConfigOrDefault(c.Request.Context(), h.store, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// putConfig merges the request body over the stored (or default) config.
// Fields absent from the body keep their current values.
func (h *Handler) putConfig(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, invalid("failed to read request body"))
		return
	}

	cfg, err := h.store.UpsertAlertConfig(c.Request.Context(), c.Param("id"), currentUser(c).ID, func(cfg *models.AlertConfig) error {
		persisted, lastChecked := cfg.Persisted, cfg.LastChecked
		createdBy, createdAt := cfg.CreatedBy, cfg.CreatedAt

		if err := json.Unmarshal(body, cfg); err != nil {
			return invalid("invalid config: " + err.Error())
		}
		if cfg.Units != "" && !cfg.Units.Valid() {
			return invalid("units must be metric or imperial")
		}
		if err := risk.ValidateTemplate(cfg.Template); err != nil {
			return invalid(err.Error())
		}

		cfg.Persisted, cfg.LastChecked = persisted, lastChecked
		cfg.CreatedBy, cfg.CreatedAt = createdBy, createdAt
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) deleteConfig(c *gin.Context) {
	if err := h.store.DeleteAlertConfig(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "weather alert config deleted"})
}

type checkRequest struct {
	ForceNotify bool `json:"forceNotify"`
}

func (h *Handler) checkWeather(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, invalid("invalid request body"))
		return
	}

	res, err := h.svc.Trigger(c.Request.Context(), c.Param("id"), currentUser(c).ID, req.ForceNotify)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) currentWeather(c *gin.Context) {
	cur, err := h.svc.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

func (h *Handler) forecast(c *gin.Context) {
	days, err := h.svc.Forecast(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"forecast": days})
}

func (h *Handler) listAlerts(c *gin.Context) {
	filter, page, err := parseAlertFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.EventID = c.Param("id")
	h.writeAlertPage(c, filter, page)
}

func (h *Handler) listApprovals(c *gin.Context) {
	filter, page, err := parseAlertFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.PendingOnly = true
	h.writeAlertPage(c, filter, page)
}

func (h *Handler) writeAlertPage(c *gin.Context, filter repository.AlertLogFilter, page int) {
	ctx := c.Request.Context()
	logs, err := h.store.ListAlertLogs(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := h.store.CountAlertLogs(ctx, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []models.AlertLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": logs,
		"total":  total,
		"page":   page,
		"limit":  filter.Limit,
	})
}

func parseAlertFilter(c *gin.Context) (repository.AlertLogFilter, int, error) {
	filter := repository.AlertLogFilter{Limit: defaultLimit}
	page := 1

	if s := c.Query("severity"); s != "" {
		sev := models.Severity(s)
		if !sev.Valid() {
			return filter, 0, invalid("severity must be info, caution or warning")
		}
		filter.Severity = &sev
	}
	if t := c.Query("type"); t != "" {
		filter.AlertType = t
	}
	if a := c.Query("acknowledged"); a != "" {
		ack, err := strconv.ParseBool(a)
		if err != nil {
			return filter, 0, invalid("acknowledged must be true or false")
		}
		filter.Acknowledged = &ack
	}
	since, err := parseSince(c)
	if err != nil {
		return filter, 0, err
	}
	filter.Since = since
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			filter.Limit = lim
		}
	}
	if p := c.Query("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	filter.Offset = (page - 1) * filter.Limit
	return filter, page, nil
}

// parseSince accepts a date (2006-01-02) or an RFC 3339 timestamp. An
// absent value is nil and leaves the window to Service.Stats.
func parseSince(c *gin.Context) (*time.Time, error) {
	s := c.Query("since")
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, invalid("since must be a date or RFC 3339 timestamp")
}

func (h *Handler) eventStats(c *gin.Context) {
	h.writeStats(c, c.Param("id"))
}

func (h *Handler) globalStats(c *gin.Context) {
	h.writeStats(c, "")
}

func (h *Handler) writeStats(c *gin.Context, eventID string) {
	since, err := parseSince(c)
	if err != nil {
		writeError(c, err)
		return
	}
	st, err := h.svc.Stats(c.Request.Context(), eventID, since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) acknowledgeAlert(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	alert, err := h.store.GetAlertLog(ctx, c.Param("alertId"))
	if err != nil {
		writeError(c, err)
		return
	}

	// Logs outlive their event's config; orphans are super-admin only.
	event, err := h.store.GetEvent(ctx, alert.EventID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if user.Role != models.RoleSuperAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage this event"})
			return
		}
	case err != nil:
		writeError(c, err)
		return
	case !user.CanManage(event):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to manage this event"})
		return
	}

	acked, err := h.svc.Acknowledge(ctx, alert.ID, user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acked)
}

func (h *Handler) approveAction(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, models.ErrInvalidActionIndex)
		return
	}

	alert, err := h.svc.Approve(c.Request.Context(), c.Param("alertId"), index, currentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) getSystemConfig(c *gin.Context) {
	sys, err := h.store.GetSystemConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sys)
}

func (h *Handler) putSystemConfig(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, invalid("failed to read request body"))
		return
	}

	sys, err := h.store.UpdateSystemConfig(c.Request.Context(), currentUser(c).ID, func(s *models.SystemConfig) error {
		if err := json.Unmarshal(body, s); err != nil {
			return invalid("invalid system config: " + err.Error())
		}
		for _, r := range s.AllowedRoles {
			switch r {
			case models.RoleSuperAdmin, models.RoleEventAdmin, models.RoleAdmin, models.RoleStaff, models.RoleAttendee:
			default:
				return invalid("unknown role: " + string(r))
			}
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sys)
}

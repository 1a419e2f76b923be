package alerts

import (
	"net/http"
	"strconv"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PollIntervalHeader tells clients how long to wait before polling again, in seconds.
const PollIntervalHeader = "X-Poll-Interval"

// Handler serves the alert feed
type Handler struct {
	svc          *Service
	pollInterval time.Duration
}

// NewHandler creates a new alerts handler
func NewHandler(svc *Service, pollInterval time.Duration) *Handler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Handler{svc: svc, pollInterval: pollInterval}
}

// RegisterRoutes registers the alert routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/:id/read", h.MarkRead)
}

func viewerFrom(c *gin.Context) (Viewer, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return Viewer{}, false
	}
	requested := c.Query("actingRole")
	if requested == "" {
		requested = c.GetHeader("X-Acting-Role")
	}
	actor, err := domain.ResolveActor(identity.UserID(), identity.Roles(), requested, identity.CustomerID())
	if httpkit.HandleError(c, err) {
		return Viewer{}, false
	}
	return Viewer{UserID: actor.UserID, Role: actor.Role, CustomerID: actor.CustomerID}, true
}

// List handles GET /api/v1/alerts?since=
func (h *Handler) List(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "since must be an RFC 3339 timestamp", nil)
			return
		}
		since = parsed
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		httpkit.Error(c, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}

	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}

	items, err := h.svc.Feed(c.Request.Context(), viewer, since, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header(PollIntervalHeader, strconv.Itoa(int(h.pollInterval/time.Second)))
	httpkit.OK(c, gin.H{"items": items})
}

// MarkRead handles POST /api/v1/alerts/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	viewer, ok := viewerFrom(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.MarkRead(c.Request.Context(), viewer, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

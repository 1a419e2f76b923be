package handler

import (
	"net/http"
	"strings"

	"fleet_service_backend/internal/servicerequests/bulk"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/internal/servicerequests/lifecycle"
	"fleet_service_backend/internal/servicerequests/scheduling"
	"fleet_service_backend/internal/servicerequests/transport"
	"fleet_service_backend/platform/httpkit"
	"fleet_service_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for service requests
type Handler struct {
	engine     *lifecycle.Engine
	negotiator *scheduling.Negotiator
	bulk       *bulk.Coordinator
	val        *validator.Validator
}

// New creates a new service requests handler
func New(engine *lifecycle.Engine, negotiator *scheduling.Negotiator, coordinator *bulk.Coordinator, val *validator.Validator) *Handler {
	return &Handler{engine: engine, negotiator: negotiator, bulk: coordinator, val: val}
}

// RegisterRoutes registers the service request routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/bulk-schedule", httpkit.RequireAnyRole(string(domain.RoleDispatch)), h.BulkSchedule)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/inspection", h.GetInspection)
	rg.GET("/:id/entries", h.ListEntries)
	rg.POST("/:id/transition", h.Transition)
	rg.POST("/:id/confirm", h.Confirm)
}

// RegisterStatusRoutes registers the read-only status registry route
func (h *Handler) RegisterStatusRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListStatuses)
}

// mustGetActor resolves the acting role of the caller. On failure the
// response has been written and ok is false.
func mustGetActor(c *gin.Context, requested string) (domain.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return domain.Actor{}, false
	}
	if requested == "" {
		requested = c.GetHeader("X-Acting-Role")
	}
	actor, err := domain.ResolveActor(identity.UserID(), identity.Roles(), requested, identity.CustomerID())
	if httpkit.HandleError(c, err) {
		return domain.Actor{}, false
	}
	return actor, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handler) validate(c *gin.Context, req interface{}) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

// Create handles POST /api/v1/service-requests
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateServiceRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	actor, ok := mustGetActor(c, req.ActingRole)
	if !ok {
		return
	}

	in := domain.NewRequest{
		VehicleID:     req.VehicleID,
		Title:         req.Title,
		Description:   req.Description,
		InitialStatus: domain.Status(req.InitialStatus),
	}
	if req.CustomerID != nil {
		in.CustomerID = *req.CustomerID
	}

	created, err := h.engine.Create(c.Request.Context(), actor, in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, h.toResponse(created, actor))
}

// List handles GET /api/v1/service-requests
func (h *Handler) List(c *gin.Context) {
	var req transport.ListServiceRequestsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}

	actor, ok := mustGetActor(c, req.ActingRole)
	if !ok {
		return
	}

	filter := domain.Filter{Page: req.Page, PageSize: req.PageSize}
	for _, s := range req.Status {
		filter.Statuses = append(filter.Statuses, domain.Status(s))
	}
	if req.Category != "" {
		category := domain.Category(req.Category)
		filter.Category = &category
	}
	if req.CustomerID != "" {
		id := uuid.MustParse(req.CustomerID)
		filter.CustomerID = &id
	}
	if req.TechnicianID != "" {
		id := uuid.MustParse(req.TechnicianID)
		filter.TechnicianID = &id
	}

	items, total, err := h.engine.List(c.Request.Context(), actor, filter)
	if httpkit.HandleError(c, err) {
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}

	resp := transport.ServiceRequestListResponse{
		Items:      make([]transport.ServiceRequestResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, h.toResponse(item, actor))
	}

	httpkit.OK(c, resp)
}

// GetByID handles GET /api/v1/service-requests/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor, ok := mustGetActor(c, c.Query("actingRole"))
	if !ok {
		return
	}

	req, err := h.engine.Get(c.Request.Context(), id, actor)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, h.toResponse(req, actor))
}

// GetInspection handles GET /api/v1/service-requests/:id/inspection
func (h *Handler) GetInspection(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor, ok := mustGetActor(c, c.Query("actingRole"))
	if !ok {
		return
	}

	req, err := h.engine.Get(c.Request.Context(), id, actor)
	if httpkit.HandleError(c, err) {
		return
	}

	decoded := h.engine.Decider().Codec().Decode(req.Notes)
	findings := decoded.Findings()
	if entry, ok := req.LatestInspection(); ok && len(entry.Findings) > 0 {
		findings = entry.Findings
	}

	httpkit.OK(c, transport.InspectionResponse{
		RequestID: req.ID,
		Summary:   decoded.Summary(),
		Decoded:   decoded,
		Findings:  findings,
	})
}

// ListEntries handles GET /api/v1/service-requests/:id/entries
func (h *Handler) ListEntries(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actor, ok := mustGetActor(c, c.Query("actingRole"))
	if !ok {
		return
	}

	req, err := h.engine.Get(c.Request.Context(), id, actor)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]domain.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if actor.Role == domain.RoleCustomer && e.Kind == domain.EntryOfficeNote {
			continue
		}
		items = append(items, e)
	}

	httpkit.OK(c, transport.EntryListResponse{Items: items})
}

// Transition handles POST /api/v1/service-requests/:id/transition
func (h *Handler) Transition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	actor, ok := mustGetActor(c, req.ActingRole)
	if !ok {
		return
	}

	payload := toPayload(req)

	var err error
	action := domain.Action(req.Action)
	if action == "" {
		action, err = domain.ResolveAction(actor.Role, payload.TargetStatus, payload)
		if httpkit.HandleError(c, err) {
			return
		}
	}

	var updated *domain.ServiceRequest
	ctx := c.Request.Context()
	if action == domain.ActionSchedule {
		assignment := scheduling.Assignment{
			LeadTechnicianID:  payload.LeadTechnicianID,
			BuddyTechnicianID: payload.BuddyTechnicianID,
			When:              payload.ScheduledAt,
			ExpectedVersion:   payload.ExpectedVersion,
			Note:              payload.NoteDelta,
		}
		if payload.ForceMode {
			updated, err = h.negotiator.Force(ctx, actor, id, assignment)
		} else {
			updated, err = h.negotiator.Propose(ctx, actor, id, assignment)
		}
	} else {
		updated, err = h.engine.Transition(ctx, id, actor, domain.Command{Action: action, Payload: payload})
	}
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, h.toResponse(updated, actor))
}

// Confirm handles POST /api/v1/service-requests/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if !h.validate(c, req) {
		return
	}

	actor, ok := mustGetActor(c, string(domain.RoleCustomer))
	if !ok {
		return
	}

	// An empty key location is a lifecycle precondition, not a binding error.
	updated, err := h.negotiator.Confirm(c.Request.Context(), actor, id, req.KeyLocation, req.ExpectedVersion)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, h.toResponse(updated, actor))
}

// BulkSchedule handles POST /api/v1/service-requests/bulk-schedule
func (h *Handler) BulkSchedule(c *gin.Context) {
	var req transport.BulkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	actor, ok := mustGetActor(c, string(domain.RoleDispatch))
	if !ok {
		return
	}

	result, err := h.bulk.ApplyBulk(c.Request.Context(), actor, bulk.Request{
		IDs:               req.RequestIDs,
		LeadTechnicianID:  req.LeadTechnicianID,
		BuddyTechnicianID: req.BuddyTechnicianID,
		When:              req.When,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.Partial() {
		status = http.StatusMultiStatus
	}
	httpkit.JSON(c, status, result)
}

// ListStatuses handles GET /api/v1/statuses
func (h *Handler) ListStatuses(c *gin.Context) {
	infos := domain.AllStatuses()
	out := make([]transport.StatusResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toStatusResponse(info))
	}
	httpkit.OK(c, gin.H{"items": out})
}

func toPayload(req transport.TransitionRequest) domain.Payload {
	p := domain.Payload{
		LeadTechnicianID:  req.LeadTechnicianID,
		BuddyTechnicianID: req.BuddyTechnicianID,
		ScheduledAt:       req.ScheduledAt,
		ForceMode:         req.ForceMode,
		NoteDelta:         req.NoteDelta,
		ShopName:          req.ShopName,
		ShopPhone:         req.ShopPhone,
		DeclineReason:     req.DeclineReason,
		RescheduleReason:  req.RescheduleReason,
		KeyLocation:       req.KeyLocation,
		Title:             req.Title,
		Description:       req.Description,
		ExpectedVersion:   req.ExpectedVersion,
	}
	if req.TargetStatus != nil {
		target := domain.Status(strings.TrimSpace(*req.TargetStatus))
		p.TargetStatus = &target
	}
	if len(req.Findings) > 0 {
		// Unparseable severities are kept as given so the checklist reports them.
		p.Findings = make(inspection.Findings, len(req.Findings))
		for point, raw := range req.Findings {
			severity, err := inspection.ParseSeverity(raw)
			if err != nil {
				severity = inspection.Severity(raw)
			}
			p.Findings[point] = severity
		}
	}
	return p
}

func toStatusResponse(info domain.StatusInfo) transport.StatusResponse {
	return transport.StatusResponse{
		Code:     string(info.Code),
		Label:    info.Label,
		Category: string(info.Category),
		Known:    info.Known,
	}
}

func (h *Handler) toResponse(req *domain.ServiceRequest, actor domain.Actor) transport.ServiceRequestResponse {
	resp := transport.ServiceRequestResponse{
		ID:                req.ID,
		Status:            toStatusResponse(h.engine.Registry().Describe(string(req.Status))),
		CustomerID:        req.CustomerID,
		VehicleID:         req.VehicleID,
		LeadTechnicianID:  req.LeadTechnicianID,
		BuddyTechnicianID: req.BuddyTechnicianID,
		ScheduledAt:       req.ScheduledAt,
		Title:             req.Title,
		Description:       req.Description,
		Notes:             req.Notes,
		KeyLocation:       req.KeyLocation,
		ShopName:          req.ShopName,
		ShopPhone:         req.ShopPhone,
		CreatedAt:         req.CreatedAt,
		StartedAt:         req.StartedAt,
		CompletedAt:       req.CompletedAt,
		UpdatedAt:         req.UpdatedAt,
		Version:           req.Version,
		Badges:            h.engine.Decider().Codec().Decode(req.Notes).Summary(),
		AvailableActions:  domain.AvailableActions(actor.Role, req.Status),
	}
	if actor.Role != domain.RoleCustomer {
		notes := req.OfficeNotes
		resp.OfficeNotes = &notes
	}
	return resp
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/metrics"
	"github.com/salesrouter/backend/internal/models"
)

// Store is everything the HTTP surface needs from persistence beyond what it
// reaches through the engine. Satisfied by both memstore.Store and db.Store.
type Store interface {
	Ping(ctx context.Context) error

	CreateLead(ctx context.Context, l models.Lead) error
	GetLead(ctx context.Context, id string) (models.Lead, error)

	CreateRep(ctx context.Context, r models.SalesRep) error
	GetRep(ctx context.Context, id string) (models.SalesRep, error)
	ListReps(ctx context.Context) ([]models.SalesRep, error)
	UpdateRepSettings(ctx context.Context, id string, available *bool, maxCapacity *int) (models.SalesRep, error)
	ListEligible(ctx context.Context, q engine.EligibilityQuery) ([]models.SalesRep, error)

	CreateRule(ctx context.Context, r models.RoutingRule) error
	GetRule(ctx context.Context, id string) (models.RoutingRule, error)
	ListRules(ctx context.Context) ([]models.RoutingRule, error)
	UpdateRule(ctx context.Context, r models.RoutingRule) error
	DeleteRule(ctx context.Context, id string) error
	ActiveRulesOrdered(ctx context.Context) ([]models.RoutingRule, error)

	Get(ctx context.Context, id string) (models.LeadAssignment, error)
	List(ctx context.Context, f engine.AssignmentFilter) ([]models.LeadAssignment, error)
}

type Handler struct {
	Store     Store
	Engine    *engine.Engine
	Monitor   *engine.Monitor
	Metrics   *metrics.Aggregator
	Validator *validator.Validate
	Logger    zerolog.Logger
	AdminKey  string
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- leads ---

type createLeadRequest struct {
	ID          string   `json:"id"`
	CompanyName string   `json:"company_name" validate:"required"`
	CompanySize int      `json:"company_size" validate:"gte=0"`
	Region      string   `json:"region"`
	Industry    string   `json:"industry"`
	Source      string   `json:"source"`
	Priority    string   `json:"priority" validate:"omitempty,oneof=urgent standard"`
	Needs       []string `json:"needs"`
}

// @Summary Create a lead and route it
// @Tags leads
// @Accept json
// @Produce json
// @Success 201 {object} engine.RouteResult
// @Router /api/leads [post]
func (h *Handler) LeadCreate(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	lead := models.Lead{
		ID:          req.ID,
		CompanyName: req.CompanyName,
		CompanySize: req.CompanySize,
		Region:      req.Region,
		Industry:    req.Industry,
		Source:      req.Source,
		Priority:    req.Priority,
		Needs:       req.Needs,
		CreatedAt:   time.Now().UTC(),
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Priority == "" {
		lead.Priority = "standard"
	}

	ctx := c.Request.Context()
	if err := h.Store.CreateLead(ctx, lead); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Lead create failed", err.Error())
		return
	}

	result, err := h.Engine.Route(ctx, lead)
	if err != nil {
		h.routeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lead": lead, "routing": result})
}

// @Summary Route an existing lead
// @Tags leads
// @Produce json
// @Router /api/leads/{id}/route [post]
func (h *Handler) LeadRoute(c *gin.Context) {
	ctx := c.Request.Context()
	lead, err := h.Store.GetLead(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Lead lookup failed", err.Error())
		return
	}

	result, err := h.Engine.Route(ctx, lead)
	if err != nil {
		h.routeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) routeError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrAlreadyAssigned) {
		writeError(c, http.StatusConflict, "ALREADY_ASSIGNED", "Lead already has an active assignment", nil)
		return
	}
	writeError(c, http.StatusInternalServerError, "ROUTING_ERROR", "Routing failed", err.Error())
}

// --- assignments ---

func (h *Handler) AssignmentGet(c *gin.Context) {
	a, err := h.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Assignment not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Assignment lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) AssignmentsList(c *gin.Context) {
	f := engine.AssignmentFilter{
		LeadID: c.Query("lead_id"),
		RepID:  c.Query("rep_id"),
		RuleID: c.Query("rule_id"),
		Status: models.AssignmentStatus(c.Query("status")),
	}
	out, err := h.Store.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Assignment list failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out, "count": len(out)})
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id string) (models.LeadAssignment, error)) {
	a, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Assignment not found", nil)
		case errors.Is(err, engine.ErrInvalidTransition):
			writeError(c, http.StatusConflict, "INVALID_TRANSITION", "Transition not allowed from current status", nil)
		default:
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Transition failed", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) AssignmentAccept(c *gin.Context)  { h.transition(c, h.Engine.Accept) }
func (h *Handler) AssignmentReject(c *gin.Context)  { h.transition(c, h.Engine.Reject) }
func (h *Handler) AssignmentConvert(c *gin.Context) { h.transition(c, h.Engine.Convert) }
func (h *Handler) AssignmentCancel(c *gin.Context)  { h.transition(c, h.Engine.Cancel) }

// --- reps ---

type createRepRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" validate:"required"`
	Available       bool     `json:"available"`
	MaxCapacity     int      `json:"max_capacity" validate:"required,gt=0"`
	Specializations []string `json:"specializations"`
	Territories     []string `json:"territories"`
}

func (h *Handler) RepCreate(c *gin.Context) {
	var req createRepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	rep := models.SalesRep{
		ID:              req.ID,
		Name:            req.Name,
		Available:       req.Available,
		MaxCapacity:     req.MaxCapacity,
		Specializations: req.Specializations,
		Territories:     req.Territories,
		UpdatedAt:       time.Now().UTC(),
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if err := h.Store.CreateRep(c.Request.Context(), rep); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rep create failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (h *Handler) RepsList(c *gin.Context) {
	reps, err := h.Store.ListReps(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rep list failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"reps": reps, "count": len(reps)})
}

type updateRepRequest struct {
	Available   *bool `json:"available"`
	MaxCapacity *int  `json:"max_capacity" validate:"omitempty,gt=0"`
}

func (h *Handler) RepUpdate(c *gin.Context) {
	var req updateRepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}
	rep, err := h.Store.UpdateRepSettings(c.Request.Context(), c.Param("id"), req.Available, req.MaxCapacity)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rep not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rep update failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, rep)
}

// --- rules ---

type ruleRequest struct {
	ID                      string                `json:"id"`
	Name                    string                `json:"name" validate:"required"`
	Priority                int                   `json:"priority"`
	IsActive                bool                  `json:"is_active"`
	RoutingType             models.RoutingType    `json:"routing_type" validate:"required,oneof=round_robin weighted skill_based territory ai"`
	Conditions              models.RuleConditions `json:"conditions"`
	EligibleRepIDs          []string              `json:"eligible_rep_ids"`
	RequiredSpecializations []string              `json:"required_specializations"`
}

func (h *Handler) RuleCreate(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	rule := models.RoutingRule{
		ID:                      req.ID,
		Name:                    req.Name,
		Priority:                req.Priority,
		IsActive:                req.IsActive,
		RoutingType:             req.RoutingType,
		Conditions:              req.Conditions,
		EligibleRepIDs:          req.EligibleRepIDs,
		RequiredSpecializations: req.RequiredSpecializations,
		CreatedAt:               time.Now().UTC(),
		UpdatedAt:               time.Now().UTC(),
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := h.Store.CreateRule(c.Request.Context(), rule); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule create failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) RulesList(c *gin.Context) {
	rules, err := h.Store.ListRules(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule list failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (h *Handler) RuleGet(c *gin.Context) {
	rule, err := h.Store.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) RuleUpdate(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	rule := models.RoutingRule{
		ID:                      c.Param("id"),
		Name:                    req.Name,
		Priority:                req.Priority,
		IsActive:                req.IsActive,
		RoutingType:             req.RoutingType,
		Conditions:              req.Conditions,
		EligibleRepIDs:          req.EligibleRepIDs,
		RequiredSpecializations: req.RequiredSpecializations,
	}
	if err := h.Store.UpdateRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule update failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) RuleDelete(c *gin.Context) {
	if err := h.Store.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule delete failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- metrics ---

func (h *Handler) MetricsGet(c *gin.Context) {
	q := metrics.Query{
		RepID:  c.Query("rep_id"),
		RuleID: c.Query("rule_id"),
	}
	if w := c.Query("window"); w != "" {
		d, err := time.ParseDuration(w)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "window must be a duration like 24h", err.Error())
			return
		}
		q.Since = time.Now().UTC().Add(-d)
	}

	ctx := c.Request.Context()
	switch c.Query("group_by") {
	case "rep":
		reps, err := h.Store.ListReps(ctx)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rep list failed", err.Error())
			return
		}
		ids := make([]string, 0, len(reps))
		for _, r := range reps {
			ids = append(ids, r.ID)
		}
		out, err := h.Metrics.PerRep(ctx, ids, q)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Metrics computation failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"by_rep": out})
	case "rule":
		rules, err := h.Store.ListRules(ctx)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule list failed", err.Error())
			return
		}
		ids := make([]string, 0, len(rules))
		for _, r := range rules {
			ids = append(ids, r.ID)
		}
		out, err := h.Metrics.PerRule(ctx, ids, q)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Metrics computation failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"by_rule": out})
	default:
		m, err := h.Metrics.Compute(ctx, q)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Metrics computation failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// --- escalations ---

func (h *Handler) SweepTrigger(c *gin.Context) {
	summary, err := h.Monitor.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "SWEEP_ERROR", "Escalation sweep failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- debug ---

// RoutePreview traces rule matching and candidate counts for a lead without
// reserving capacity or creating anything.
func (h *Handler) RoutePreview(c *gin.Context) {
	ctx := c.Request.Context()
	lead, err := h.Store.GetLead(ctx, c.Query("lead_id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Lead not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Lead lookup failed", err.Error())
		return
	}

	rules, err := h.Store.ActiveRulesOrdered(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Rule snapshot failed", err.Error())
		return
	}

	var trace []gin.H
	for _, rule := range rules {
		entry := gin.H{
			"rule_id":      rule.ID,
			"rule_name":    rule.Name,
			"priority":     rule.Priority,
			"routing_type": rule.RoutingType,
			"matched":      rule.MatchesLead(lead),
		}
		if rule.MatchesLead(lead) {
			candidates, err := h.Store.ListEligible(ctx, engine.EligibilityQuery{
				RepIDs:          rule.EligibleRepIDs,
				Specializations: rule.RequiredSpecializations,
			})
			if err == nil {
				ids := make([]string, 0, len(candidates))
				for _, r := range candidates {
					ids = append(ids, r.ID)
				}
				entry["candidates"] = ids
			}
		}
		trace = append(trace, entry)
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead, "rules": trace})
}

package main

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/leadflow"
	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/policy"
	"github.com/leadstack/go-crm-system/shared/utils"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CreateLeadRequest creates a lead. Agents always create leads for
// themselves; admins must name an agent of their organization.
type CreateLeadRequest struct {
	AgentID     *uuid.UUID          `json:"agent_id"`
	FirstName   string              `json:"first_name" binding:"required"`
	LastName    string              `json:"last_name" binding:"required"`
	Email       string              `json:"email" binding:"required,email"`
	PhoneNumber string              `json:"phone_number"`
	Address     string              `json:"address"`
	Age         *int                `json:"age"`
	Category    models.LeadCategory `json:"category"`
}

// UpdateLeadRequest carries mutable lead fields. Category is deliberately
// absent: category changes go through the transition endpoint.
type UpdateLeadRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	Age         *int    `json:"age"`
}

// TransitionRequest moves a lead to a new category.
type TransitionRequest struct {
	Category models.LeadCategory `json:"category" binding:"required"`
}

// handleListLeads lists leads in the principal's scope with pagination and
// optional name/email/category filters.
func handleListLeads(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		scoped, err := policy.ScopeLeads(db.Model(&models.Lead{}), principal)
		if err != nil {
			utils.ForbiddenResponse(c, "Not authorized to list leads")
			return
		}

		if name := c.Query("name"); name != "" {
			pattern := "%" + name + "%"
			scoped = scoped.Where("first_name ILIKE ? OR last_name ILIKE ?", pattern, pattern)
		}
		if email := c.Query("email"); email != "" {
			scoped = scoped.Where("email ILIKE ?", "%"+email+"%")
		}
		if category := c.Query("category"); category != "" {
			code, err := strconv.Atoi(category)
			if err != nil || !models.LeadCategory(code).Valid() {
				utils.BadRequestResponse(c, "Invalid category filter")
				return
			}
			scoped = scoped.Where("category = ?", code)
		}

		page, pageSize := paginationParams(c)

		var total int64
		if err := scoped.Count(&total).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to count leads")
			return
		}

		var leads []models.Lead
		err = scoped.Order("created_at DESC").
			Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&leads).Error
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch leads")
			return
		}

		utils.OKResponse(c, "Leads retrieved successfully", utils.PagedData{
			Items:      leads,
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
		})
	}
}

// handleCreateLead creates a lead owned by the principal (agent) or a named
// agent of the admin's organization.
func handleCreateLead(db *gorm.DB, engine *leadflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		var req CreateLeadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var agentID uuid.UUID
		switch {
		case principal.IsAgent():
			agentID = *principal.AgentID
		case principal.IsAdmin():
			if req.AgentID == nil {
				utils.BadRequestResponse(c, "agent_id is required")
				return
			}
			var agent models.Agent
			err := db.Where("id = ? AND organization_id = ?", *req.AgentID, principal.OrganizationID).
				First(&agent).Error
			if err != nil {
				utils.NotFoundResponse(c, "Agent not found")
				return
			}
			agentID = agent.ID
		default:
			utils.ForbiddenResponse(c, "Not authorized to create leads")
			return
		}

		lead := models.Lead{
			AgentID:        agentID,
			OrganizationID: principal.OrganizationID,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Email:          req.Email,
			PhoneNumber:    req.PhoneNumber,
			Address:        req.Address,
			Age:            req.Age,
			Category:       req.Category,
		}

		if err := engine.CreateLead(c.Request.Context(), &lead); err != nil {
			switch {
			case errors.Is(err, leadflow.ErrInvalidInitialState):
				utils.UnprocessableResponse(c, "A lead cannot be created as converted")
			case errors.Is(err, leadflow.ErrDuplicateLead):
				utils.ConflictResponse(c, "A lead with this email already exists in your organization")
			default:
				utils.BadRequestResponse(c, err.Error())
			}
			return
		}

		utils.CreatedResponse(c, "Lead created successfully", lead)
	}
}

// handleGetLead returns one lead in the principal's scope.
func handleGetLead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		lead, ok := findLeadInScope(c, db, principal)
		if !ok {
			return
		}

		utils.OKResponse(c, "Lead retrieved successfully", lead)
	}
}

// handleUpdateLead updates lead contact fields. Category changes are
// rejected here and must use the transition endpoint.
func handleUpdateLead(db *gorm.DB, engine *leadflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		lead, ok := findLeadInScope(c, db, principal)
		if !ok {
			return
		}
		if err := policy.CanAccessLead(principal, lead, policy.ActionWrite); err != nil {
			utils.NotFoundResponse(c, "Lead not found")
			return
		}

		var req UpdateLeadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.FirstName != nil {
			lead.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			lead.LastName = *req.LastName
		}
		if req.Email != nil {
			lead.Email = *req.Email
		}
		if req.PhoneNumber != nil {
			lead.PhoneNumber = *req.PhoneNumber
		}
		if req.Address != nil {
			lead.Address = *req.Address
		}
		if req.Age != nil {
			lead.Age = req.Age
		}

		if err := engine.UpdateLead(c.Request.Context(), lead); err != nil {
			switch {
			case errors.Is(err, leadflow.ErrDuplicateLead):
				utils.ConflictResponse(c, "A lead with this email already exists in your organization")
			case errors.Is(err, leadflow.ErrConcurrentModification):
				utils.ConflictResponse(c, "Lead was modified by another request, reload and retry")
			default:
				utils.BadRequestResponse(c, err.Error())
			}
			return
		}

		utils.OKResponse(c, "Lead updated successfully", lead)
	}
}

// handleTransitionLead applies a category transition; a transition into
// Converted provisions the customer account in the same unit of work.
func handleTransitionLead(db *gorm.DB, engine *leadflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		lead, ok := findLeadInScope(c, db, principal)
		if !ok {
			return
		}
		if err := policy.CanAccessLead(principal, lead, policy.ActionWrite); err != nil {
			utils.NotFoundResponse(c, "Lead not found")
			return
		}

		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		from := lead.Category
		customer, err := engine.Transition(c.Request.Context(), lead, req.Category)
		if err != nil {
			switch {
			case errors.Is(err, leadflow.ErrInvalidTransition):
				utils.UnprocessableResponse(c, leadflow.DescribeTransitionError(from, req.Category))
			case errors.Is(err, leadflow.ErrConcurrentModification):
				utils.ConflictResponse(c, "Lead was modified by another request, reload and retry")
			case errors.Is(err, leadflow.ErrProvisioning):
				utils.InternalServerErrorResponse(c, "Failed to provision customer, transition rolled back")
			default:
				utils.InternalServerErrorResponse(c, "Failed to transition lead")
			}
			return
		}

		payload := map[string]interface{}{"lead": lead}
		if customer != nil {
			payload["customer"] = customer
		}
		utils.OKResponse(c, "Lead transitioned successfully", payload)
	}
}

// handleDeleteLead removes a lead (explicit delete by its owner or admin).
func handleDeleteLead(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		lead, ok := findLeadInScope(c, db, principal)
		if !ok {
			return
		}
		if err := policy.CanAccessLead(principal, lead, policy.ActionWrite); err != nil {
			utils.NotFoundResponse(c, "Lead not found")
			return
		}

		if err := db.Delete(lead).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete lead")
			return
		}

		utils.OKResponse(c, "Lead deleted successfully", nil)
	}
}

// findLeadInScope loads a lead by path id restricted to the principal's
// visibility. Leads outside the scope answer as not found, which keeps
// other tenants' (and other agents') lead ids unprobeable.
func findLeadInScope(c *gin.Context, db *gorm.DB, principal *models.Principal) (*models.Lead, bool) {
	scoped, err := policy.ScopeLeads(db.Model(&models.Lead{}), principal)
	if err != nil {
		utils.ForbiddenResponse(c, "Not authorized to access leads")
		return nil, false
	}

	var lead models.Lead
	err = scoped.Where("leads.id = ?", c.Param("id")).First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Lead not found")
		} else {
			utils.InternalServerErrorResponse(c, "Failed to fetch lead")
		}
		return nil, false
	}
	return &lead, true
}

// paginationParams parses page/page_size query values with sane bounds.
func paginationParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

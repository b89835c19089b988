package main

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/leadflow"
	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/policy"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// UpdateOrganizationRequest carries the mutable organization fields.
type UpdateOrganizationRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	PhoneNumber *string `json:"phone_number"`
	Website     *string `json:"website"`
	LogoURL     *string `json:"logo_url"`
}

// CreateAgentRequest creates an agent account in the admin's organization.
// The agent's password is generated, never chosen by the admin, and is
// delivered to the agent's email address.
type CreateAgentRequest struct {
	FirstName string     `json:"first_name" binding:"required"`
	LastName  string     `json:"last_name" binding:"required"`
	Email     string     `json:"email" binding:"required,email"`
	Phone     string     `json:"phone_number"`
	HireDate  *time.Time `json:"hire_date"`
}

// UpdateAgentRequest carries the mutable agent fields.
type UpdateAgentRequest struct {
	HireDate *time.Time `json:"hire_date"`
	Phone    *string    `json:"phone_number"`
	IsActive *bool      `json:"is_active"`
}

// handleGetOrganization returns the admin's own organization.
func handleGetOrganization(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		var org models.Organization
		if err := db.Where("id = ?", principal.OrganizationID).First(&org).Error; err != nil {
			utils.NotFoundResponse(c, "Organization not found")
			return
		}
		if err := policy.CanAccessOrganization(principal, &org, policy.ActionRead); err != nil {
			utils.NotFoundResponse(c, "Organization not found")
			return
		}

		utils.OKResponse(c, "Organization retrieved successfully", org)
	}
}

// handleUpdateOrganization updates the admin's own organization.
func handleUpdateOrganization(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		var org models.Organization
		if err := db.Where("id = ?", principal.OrganizationID).First(&org).Error; err != nil {
			utils.NotFoundResponse(c, "Organization not found")
			return
		}
		if err := policy.CanAccessOrganization(principal, &org, policy.ActionWrite); err != nil {
			utils.NotFoundResponse(c, "Organization not found")
			return
		}

		var req UpdateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.Name != nil {
			var other models.Organization
			if err := db.Where("name = ? AND id != ?", *req.Name, org.ID).
				First(&other).Error; err == nil {
				utils.ConflictResponse(c, "Organization name already exists")
				return
			}
			org.Name = *req.Name
		}
		if req.Email != nil {
			org.Email = *req.Email
		}
		if req.Address != nil {
			org.Address = *req.Address
		}
		if req.PhoneNumber != nil {
			org.PhoneNumber = *req.PhoneNumber
		}
		if req.Website != nil {
			org.Website = *req.Website
		}
		if req.LogoURL != nil {
			org.LogoURL = *req.LogoURL
		}

		if err := db.Save(&org).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update organization")
			return
		}

		utils.OKResponse(c, "Organization updated successfully", org)
	}
}

// handleListAgents lists the agents visible to the principal: the whole
// organization for admins, only themselves for agents.
func handleListAgents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		scoped, err := policy.ScopeAgents(db.Model(&models.Agent{}), principal)
		if err != nil {
			utils.ForbiddenResponse(c, "Not authorized to list agents")
			return
		}

		var agents []models.Agent
		if err := scoped.Preload("User").Find(&agents).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch agents")
			return
		}

		utils.OKResponse(c, "Agents retrieved successfully", agents)
	}
}

// handleCreateAgent creates the agent's user account with generated
// credentials and its profile row, then mails the credentials to the agent.
// Username generation shares the provisioner's bounded retry, so a suffix
// collision surfaces as a conflict instead of a failed transaction.
func handleCreateAgent(db *gorm.DB, deliverer leadflow.Deliverer) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		var req CreateAgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var (
			user  *models.User
			creds *leadflow.Credentials
			agent models.Agent
		)
		err = db.Transaction(func(tx *gorm.DB) error {
			user, creds, err = leadflow.CreateUserWithCredentials(tx, models.User{
				FirstName:   req.FirstName,
				LastName:    req.LastName,
				Email:       req.Email,
				PhoneNumber: req.Phone,
				Role:        models.RoleAgent,
			})
			if err != nil {
				return err
			}
			agent = models.Agent{
				UserID:         user.ID,
				OrganizationID: principal.OrganizationID,
				HireDate:       req.HireDate,
			}
			return tx.Create(&agent).Error
		})
		if err != nil {
			if errors.Is(err, leadflow.ErrUsernameExhausted) {
				utils.ConflictResponse(c, "Could not allocate a unique username for the agent, retry")
				return
			}
			logrus.WithError(err).Error("Agent creation failed")
			utils.InternalServerErrorResponse(c, "Failed to create agent")
			return
		}

		// One-time credential delivery; the plaintext password is dropped
		// after this call.
		if err := deliverer.DeliverCredentials(c.Request.Context(), *creds); err != nil {
			logrus.WithError(err).WithField("agent_id", agent.ID).
				Error("Failed to deliver agent credentials")
		}

		agent.User = user
		utils.CreatedResponse(c, "Agent created successfully", agent)
	}
}

// handleGetAgent returns one agent, subject to the access policy.
func handleGetAgent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		agent, ok := findAgentInScope(c, db, principal)
		if !ok {
			return
		}

		utils.OKResponse(c, "Agent retrieved successfully", agent)
	}
}

// handleUpdateAgent updates an agent's profile (admin only; the route is
// gated, the policy re-checks organization membership).
func handleUpdateAgent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		agent, ok := findAgentInScope(c, db, principal)
		if !ok {
			return
		}
		if err := policy.CanAccessAgent(principal, agent, policy.ActionWrite); err != nil {
			utils.ForbiddenResponse(c, "Not authorized to modify this agent")
			return
		}

		var req UpdateAgentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		if req.HireDate != nil {
			agent.HireDate = req.HireDate
		}
		if err := db.Save(agent).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to update agent")
			return
		}
		if agent.User != nil && (req.Phone != nil || req.IsActive != nil) {
			if req.Phone != nil {
				agent.User.PhoneNumber = *req.Phone
			}
			if req.IsActive != nil {
				agent.User.IsActive = *req.IsActive
			}
			if err := db.Save(agent.User).Error; err != nil {
				utils.InternalServerErrorResponse(c, "Failed to update agent account")
				return
			}
		}

		utils.OKResponse(c, "Agent updated successfully", agent)
	}
}

// handleDeleteAgent removes an agent profile and its user account.
func handleDeleteAgent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		agent, ok := findAgentInScope(c, db, principal)
		if !ok {
			return
		}
		if err := policy.CanAccessAgent(principal, agent, policy.ActionWrite); err != nil {
			utils.ForbiddenResponse(c, "Not authorized to delete this agent")
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Agent{}, "id = ?", agent.ID).Error; err != nil {
				return err
			}
			return tx.Delete(&models.User{}, "id = ?", agent.UserID).Error
		})
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to delete agent")
			return
		}

		utils.OKResponse(c, "Agent deleted successfully", nil)
	}
}

// findAgentInScope loads an agent by path id restricted to the principal's
// visibility. Out-of-scope agents answer as not found so other tenants'
// agent ids cannot be probed.
func findAgentInScope(c *gin.Context, db *gorm.DB, principal *models.Principal) (*models.Agent, bool) {
	scoped, err := policy.ScopeAgents(db.Model(&models.Agent{}), principal)
	if err != nil {
		utils.ForbiddenResponse(c, "Not authorized to access agents")
		return nil, false
	}

	var agent models.Agent
	err = scoped.Preload("User").Where("agents.id = ?", c.Param("id")).First(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Agent not found")
		} else {
			utils.InternalServerErrorResponse(c, "Failed to fetch agent")
		}
		return nil, false
	}
	return &agent, true
}

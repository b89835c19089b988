package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

const sessionTTL = 24 * time.Hour

// SignupRequest bootstraps an organization together with its single admin.
type SignupRequest struct {
	OrgName    string `json:"org_name" binding:"required"`
	OrgEmail   string `json:"org_email" binding:"required,email"`
	OrgAddress string `json:"org_address"`
	OrgPhone   string `json:"org_phone"`
	OrgWebsite string `json:"org_website"`

	AdminFirstName string `json:"admin_first_name" binding:"required"`
	AdminLastName  string `json:"admin_last_name" binding:"required"`
	AdminEmail     string `json:"admin_email" binding:"required,email"`
	AdminUsername  string `json:"admin_username" binding:"required,min=3"`
	Password       string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents the login request. Login accepts the username or
// the account email.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleSignup creates an organization and its admin account in one
// transaction.
func handleSignup(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var existingOrg models.Organization
		if err := db.Where("name = ? OR email = ?", req.OrgName, req.OrgEmail).
			First(&existingOrg).Error; err == nil {
			utils.ConflictResponse(c, "Organization name or email already exists")
			return
		}

		var existingUser models.User
		if err := db.Where("username = ?", req.AdminUsername).
			First(&existingUser).Error; err == nil {
			utils.ConflictResponse(c, "Username already taken")
			return
		}

		passwordHash, err := utils.HashPassword(req.Password)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to process password")
			return
		}

		org := models.Organization{
			Name:        req.OrgName,
			Email:       req.OrgEmail,
			Address:     req.OrgAddress,
			PhoneNumber: req.OrgPhone,
			Website:     req.OrgWebsite,
		}
		user := models.User{
			FirstName:    req.AdminFirstName,
			LastName:     req.AdminLastName,
			Username:     req.AdminUsername,
			Email:        req.AdminEmail,
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&org).Error; err != nil {
				return err
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			admin := models.Admin{UserID: user.ID, OrganizationID: org.ID}
			return tx.Create(&admin).Error
		})
		if err != nil {
			logrus.WithError(err).Error("Organization signup failed")
			utils.InternalServerErrorResponse(c, "Failed to create organization")
			return
		}

		utils.CreatedResponse(c, "Organization created successfully", map[string]interface{}{
			"organization": org,
			"admin":        user,
		})
	}
}

// handleLogin verifies credentials, resolves the principal once and opens a
// Redis-backed session for the issued token.
func handleLogin(db *gorm.DB, am *middleware.AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		var user models.User
		identifier := strings.TrimSpace(req.Username)
		err := db.Where("username = ? OR email = ?", identifier, identifier).
			First(&user).Error
		if err != nil || !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
			// Same answer for unknown account and wrong password.
			utils.UnauthorizedResponse(c, "Invalid credentials")
			return
		}

		principal, err := resolvePrincipal(db, &user)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).
				Error("Account role has no matching profile")
			utils.InternalServerErrorResponse(c, "Account is misconfigured, contact your administrator")
			return
		}

		token, err := am.IssueToken(principal, sessionTTL)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to issue token")
			return
		}

		session, err := utils.CreateTokenSession(token, *principal, sessionTTL)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to create session")
			return
		}

		utils.OKResponse(c, "Login successful", map[string]interface{}{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   int64(sessionTTL.Seconds()),
			"principal":    principal,
			"session_id":   session.SessionID,
		})
	}
}

// handleLogout revokes the session behind the presented token.
func handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if err := utils.RevokeTokenSession(token); err != nil {
			utils.InternalServerErrorResponse(c, "Failed to revoke session")
			return
		}
		utils.OKResponse(c, "Logged out", nil)
	}
}

// handleMe returns the resolved principal of the current request.
func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}
		utils.OKResponse(c, "Current principal", principal)
	}
}

// resolvePrincipal loads the single profile row matching the user's role.
// A role tag without its profile is a configuration fault and yields an
// error rather than a partially-populated principal.
func resolvePrincipal(db *gorm.DB, user *models.User) (*models.Principal, error) {
	principal := &models.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}

	switch user.Role {
	case models.RoleAdmin:
		var admin models.Admin
		if err := db.Where("user_id = ?", user.ID).First(&admin).Error; err != nil {
			return nil, profileErr("admin", err)
		}
		principal.AdminID = &admin.ID
		principal.OrganizationID = admin.OrganizationID

	case models.RoleAgent:
		var agent models.Agent
		if err := db.Where("user_id = ?", user.ID).First(&agent).Error; err != nil {
			return nil, profileErr("agent", err)
		}
		principal.AgentID = &agent.ID
		principal.OrganizationID = agent.OrganizationID

	case models.RoleCustomer:
		var customer models.Customer
		if err := db.Where("user_id = ?", user.ID).First(&customer).Error; err != nil {
			return nil, profileErr("customer", err)
		}
		principal.CustomerID = &customer.ID
		principal.OrganizationID = customer.OrganizationID

	default:
		return nil, fmt.Errorf("unknown role %d", user.Role)
	}

	return principal, nil
}

func profileErr(role string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user has role %s but no %s profile", role, role)
	}
	return fmt.Errorf("failed to load %s profile: %w", role, err)
}

package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/policy"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// handleListCustomers lists customers in the principal's scope: the whole
// organization for admins, own conversions for agents, self for customers.
func handleListCustomers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		scoped, err := policy.ScopeCustomers(db.Model(&models.Customer{}), principal)
		if err != nil {
			utils.ForbiddenResponse(c, "Not authorized to list customers")
			return
		}

		page, pageSize := paginationParams(c)

		var total int64
		if err := scoped.Count(&total).Error; err != nil {
			utils.InternalServerErrorResponse(c, "Failed to count customers")
			return
		}

		var customers []models.Customer
		err = scoped.Preload("User").Preload("Lead").
			Order("created_at DESC").
			Offset((page - 1) * pageSize).Limit(pageSize).
			Find(&customers).Error
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to fetch customers")
			return
		}

		utils.OKResponse(c, "Customers retrieved successfully", utils.PagedData{
			Items:      customers,
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
		})
	}
}

// handleGetCustomer returns one customer in the principal's scope.
func handleGetCustomer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := middleware.GetPrincipal(c)
		if err != nil {
			utils.UnauthorizedResponse(c, "Principal not resolved")
			return
		}

		scoped, err := policy.ScopeCustomers(db.Model(&models.Customer{}), principal)
		if err != nil {
			utils.ForbiddenResponse(c, "Not authorized to access customers")
			return
		}

		var customer models.Customer
		err = scoped.Preload("User").Preload("Lead").
			Where("customers.id = ?", c.Param("id")).First(&customer).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "Customer not found")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to fetch customer")
			}
			return
		}

		if err := policy.CanAccessCustomer(principal, &customer, policy.ActionRead); err != nil {
			utils.NotFoundResponse(c, "Customer not found")
			return
		}

		utils.OKResponse(c, "Customer retrieved successfully", customer)
	}
}

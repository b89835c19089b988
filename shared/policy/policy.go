// Package policy enforces per-tenant data isolation. Every list query goes
// through a Scope* helper that narrows it to what the principal may see, and
// every single-resource access goes through a Can* check. All checks fail
// closed: a principal whose role has no matching profile is rejected with
// ErrMisconfigured rather than silently granted or denied.
package policy

import (
	"errors"

	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/models"
)

var (
	// ErrDenied means the principal has no rights over the resource. Handlers
	// translate it to 404 for reads of records outside the principal's scope,
	// so the existence of other tenants' data never leaks.
	ErrDenied = errors.New("access denied")
	// ErrMisconfigured means the principal's role has no matching profile
	// row. This is a configuration fault, not an ordinary denial.
	ErrMisconfigured = errors.New("principal has no profile for its role")
)

// Action distinguishes reads from writes where the rule sets differ.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// check validates that the principal's role and profile association agree.
func check(p *models.Principal) error {
	switch p.Role {
	case models.RoleAdmin:
		if p.AdminID == nil {
			return ErrMisconfigured
		}
	case models.RoleAgent:
		if p.AgentID == nil {
			return ErrMisconfigured
		}
	case models.RoleCustomer:
		if p.CustomerID == nil {
			return ErrMisconfigured
		}
	default:
		return ErrMisconfigured
	}
	return nil
}

// ScopeLeads narrows a lead query to the principal's visibility: admins see
// their whole organization, agents only the leads they own.
func ScopeLeads(db *gorm.DB, p *models.Principal) (*gorm.DB, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	switch {
	case p.IsAdmin():
		return db.Where("organization_id = ?", p.OrganizationID), nil
	case p.IsAgent():
		return db.Where("agent_id = ?", *p.AgentID), nil
	}
	return nil, ErrDenied
}

// ScopeCustomers narrows a customer query: admins see their organization,
// agents the customers converted from their own leads, customers only
// themselves.
func ScopeCustomers(db *gorm.DB, p *models.Principal) (*gorm.DB, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	switch {
	case p.IsAdmin():
		return db.Where("organization_id = ?", p.OrganizationID), nil
	case p.IsAgent():
		return db.Where("agent_id = ?", *p.AgentID), nil
	case p.IsCustomer():
		return db.Where("id = ?", *p.CustomerID), nil
	}
	return nil, ErrDenied
}

// ScopeAgents narrows an agent query: admins see their organization's
// agents, agents only their own profile.
func ScopeAgents(db *gorm.DB, p *models.Principal) (*gorm.DB, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	switch {
	case p.IsAdmin():
		return db.Where("organization_id = ?", p.OrganizationID), nil
	case p.IsAgent():
		return db.Where("id = ?", *p.AgentID), nil
	}
	return nil, ErrDenied
}

// CanAccessLead authorizes an action on one lead. Agents may read and write
// only leads they own; admins anything inside their organization.
func CanAccessLead(p *models.Principal, lead *models.Lead, action Action) error {
	if err := check(p); err != nil {
		return err
	}
	switch {
	case p.IsAdmin():
		if lead.OrganizationID == p.OrganizationID {
			return nil
		}
	case p.IsAgent():
		if lead.AgentID == *p.AgentID {
			return nil
		}
	}
	return ErrDenied
}

// CanAccessCustomer authorizes an action on one customer record. Customers
// themselves get read-only access.
func CanAccessCustomer(p *models.Principal, customer *models.Customer, action Action) error {
	if err := check(p); err != nil {
		return err
	}
	switch {
	case p.IsAdmin():
		if customer.OrganizationID == p.OrganizationID {
			return nil
		}
	case p.IsAgent():
		if customer.AgentID != nil && *customer.AgentID == *p.AgentID {
			return nil
		}
	case p.IsCustomer():
		if customer.ID == *p.CustomerID && action == ActionRead {
			return nil
		}
	}
	return ErrDenied
}

// CanAccessAgent authorizes an action on one agent profile. An agent may
// read its own profile but only admins may change agent records.
func CanAccessAgent(p *models.Principal, agent *models.Agent, action Action) error {
	if err := check(p); err != nil {
		return err
	}
	switch {
	case p.IsAdmin():
		if agent.OrganizationID == p.OrganizationID {
			return nil
		}
	case p.IsAgent():
		if agent.ID == *p.AgentID && action == ActionRead {
			return nil
		}
	}
	return ErrDenied
}

// CanAccessOrganization authorizes an action on the organization record
// itself. Only the organization's admin may read or change it.
func CanAccessOrganization(p *models.Principal, org *models.Organization, action Action) error {
	if err := check(p); err != nil {
		return err
	}
	if p.IsAdmin() && org.ID == p.OrganizationID {
		return nil
	}
	return ErrDenied
}

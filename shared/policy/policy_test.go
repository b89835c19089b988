package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/leadstack/go-crm-system/shared/models"
)

func adminPrincipal(orgID uuid.UUID) *models.Principal {
	adminID := uuid.New()
	return &models.Principal{
		UserID:         uuid.New(),
		Role:           models.RoleAdmin,
		OrganizationID: orgID,
		AdminID:        &adminID,
	}
}

func agentPrincipal(orgID, agentID uuid.UUID) *models.Principal {
	return &models.Principal{
		UserID:         uuid.New(),
		Role:           models.RoleAgent,
		OrganizationID: orgID,
		AgentID:        &agentID,
	}
}

func customerPrincipal(orgID, customerID uuid.UUID) *models.Principal {
	return &models.Principal{
		UserID:         uuid.New(),
		Role:           models.RoleCustomer,
		OrganizationID: orgID,
		CustomerID:     &customerID,
	}
}

func TestCanAccessLead_AdminScope(t *testing.T) {
	orgID := uuid.New()
	admin := adminPrincipal(orgID)

	inOrg := &models.Lead{ID: uuid.New(), OrganizationID: orgID, AgentID: uuid.New()}
	assert.NoError(t, CanAccessLead(admin, inOrg, ActionRead))
	assert.NoError(t, CanAccessLead(admin, inOrg, ActionWrite))

	otherOrg := &models.Lead{ID: uuid.New(), OrganizationID: uuid.New(), AgentID: uuid.New()}
	assert.ErrorIs(t, CanAccessLead(admin, otherOrg, ActionRead), ErrDenied)
}

func TestCanAccessLead_AgentOwnsOnly(t *testing.T) {
	orgID := uuid.New()
	agentID := uuid.New()
	agent := agentPrincipal(orgID, agentID)

	own := &models.Lead{ID: uuid.New(), OrganizationID: orgID, AgentID: agentID}
	assert.NoError(t, CanAccessLead(agent, own, ActionRead))
	assert.NoError(t, CanAccessLead(agent, own, ActionWrite))

	// Same organization, different owner: still denied.
	colleague := &models.Lead{ID: uuid.New(), OrganizationID: orgID, AgentID: uuid.New()}
	assert.ErrorIs(t, CanAccessLead(agent, colleague, ActionRead), ErrDenied)
}

func TestCanAccessLead_CustomerDenied(t *testing.T) {
	orgID := uuid.New()
	customer := customerPrincipal(orgID, uuid.New())

	lead := &models.Lead{ID: uuid.New(), OrganizationID: orgID, AgentID: uuid.New()}
	assert.ErrorIs(t, CanAccessLead(customer, lead, ActionRead), ErrDenied)
}

func TestCanAccessLead_FailsClosedWithoutProfile(t *testing.T) {
	orgID := uuid.New()
	lead := &models.Lead{ID: uuid.New(), OrganizationID: orgID, AgentID: uuid.New()}

	// Role claims admin but no admin profile is attached.
	broken := &models.Principal{
		UserID:         uuid.New(),
		Role:           models.RoleAdmin,
		OrganizationID: orgID,
	}
	assert.ErrorIs(t, CanAccessLead(broken, lead, ActionRead), ErrMisconfigured)

	// Unknown role value.
	unknown := &models.Principal{
		UserID:         uuid.New(),
		Role:           models.Role(42),
		OrganizationID: orgID,
	}
	assert.ErrorIs(t, CanAccessLead(unknown, lead, ActionRead), ErrMisconfigured)
}

func TestCanAccessCustomer(t *testing.T) {
	orgID := uuid.New()
	agentID := uuid.New()
	customerID := uuid.New()

	record := &models.Customer{
		ID:             customerID,
		OrganizationID: orgID,
		AgentID:        &agentID,
	}

	admin := adminPrincipal(orgID)
	assert.NoError(t, CanAccessCustomer(admin, record, ActionRead))
	assert.NoError(t, CanAccessCustomer(admin, record, ActionWrite))

	owner := agentPrincipal(orgID, agentID)
	assert.NoError(t, CanAccessCustomer(owner, record, ActionRead))

	other := agentPrincipal(orgID, uuid.New())
	assert.ErrorIs(t, CanAccessCustomer(other, record, ActionRead), ErrDenied)

	// Customers may read their own record but never write it.
	self := customerPrincipal(orgID, customerID)
	assert.NoError(t, CanAccessCustomer(self, record, ActionRead))
	assert.ErrorIs(t, CanAccessCustomer(self, record, ActionWrite), ErrDenied)

	stranger := customerPrincipal(orgID, uuid.New())
	assert.ErrorIs(t, CanAccessCustomer(stranger, record, ActionRead), ErrDenied)
}

func TestCanAccessCustomer_NoOwningAgent(t *testing.T) {
	orgID := uuid.New()
	record := &models.Customer{ID: uuid.New(), OrganizationID: orgID, AgentID: nil}

	agent := agentPrincipal(orgID, uuid.New())
	assert.ErrorIs(t, CanAccessCustomer(agent, record, ActionRead), ErrDenied)
}

func TestCanAccessAgent(t *testing.T) {
	orgID := uuid.New()
	agentID := uuid.New()
	profile := &models.Agent{ID: agentID, OrganizationID: orgID}

	admin := adminPrincipal(orgID)
	assert.NoError(t, CanAccessAgent(admin, profile, ActionRead))
	assert.NoError(t, CanAccessAgent(admin, profile, ActionWrite))

	foreignAdmin := adminPrincipal(uuid.New())
	assert.ErrorIs(t, CanAccessAgent(foreignAdmin, profile, ActionRead), ErrDenied)

	// Agents read their own profile but cannot change it.
	self := agentPrincipal(orgID, agentID)
	assert.NoError(t, CanAccessAgent(self, profile, ActionRead))
	assert.ErrorIs(t, CanAccessAgent(self, profile, ActionWrite), ErrDenied)

	colleague := agentPrincipal(orgID, uuid.New())
	assert.ErrorIs(t, CanAccessAgent(colleague, profile, ActionRead), ErrDenied)
}

func TestCanAccessOrganization(t *testing.T) {
	orgID := uuid.New()
	org := &models.Organization{ID: orgID}

	assert.NoError(t, CanAccessOrganization(adminPrincipal(orgID), org, ActionWrite))
	assert.ErrorIs(t, CanAccessOrganization(adminPrincipal(uuid.New()), org, ActionRead), ErrDenied)
	assert.ErrorIs(t, CanAccessOrganization(agentPrincipal(orgID, uuid.New()), org, ActionRead), ErrDenied)
	assert.ErrorIs(t, CanAccessOrganization(customerPrincipal(orgID, uuid.New()), org, ActionRead), ErrDenied)
}

func TestScopeHelpers_FailClosed(t *testing.T) {
	broken := &models.Principal{
		UserID: uuid.New(),
		Role:   models.RoleAgent,
		// AgentID missing
	}

	_, err := ScopeLeads(nil, broken)
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = ScopeCustomers(nil, broken)
	assert.ErrorIs(t, err, ErrMisconfigured)

	_, err = ScopeAgents(nil, broken)
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestScopeLeads_CustomerDenied(t *testing.T) {
	customer := customerPrincipal(uuid.New(), uuid.New())

	_, err := ScopeLeads(nil, customer)
	assert.ErrorIs(t, err, ErrDenied)

	_, err = ScopeAgents(nil, customer)
	assert.ErrorIs(t, err, ErrDenied)
}

package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// seed fills the database with fake organizations, admins, agents, leads and
// a few converted customers for local development. All seeded accounts share
// the password printed at the end.
func main() {
	orgCount := flag.Int("orgs", 3, "number of organizations to create")
	agentsPerOrg := flag.Int("agents", 4, "agents per organization")
	leadsPerAgent := flag.Int("leads", 10, "leads per agent")
	seedValue := flag.Int64("seed", 0, "fake data seed (0 means random)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if *seedValue != 0 {
		if err := gofakeit.Seed(*seedValue); err != nil {
			logrus.Fatal("Failed to seed fake data generator: ", err)
		}
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	if err := config.MigrateDatabase(db); err != nil {
		logrus.Fatal("Failed to migrate database: ", err)
	}

	password := utils.RandomString(12)
	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		logrus.Fatal("Failed to hash password: ", err)
	}

	created := 0
	for o := 0; o < *orgCount; o++ {
		if err := seedOrganization(db, passwordHash, *agentsPerOrg, *leadsPerAgent); err != nil {
			logrus.WithError(err).Warn("Skipping organization")
			continue
		}
		created++
	}

	fmt.Printf("Seeded %d organizations\n", created)
	fmt.Printf("Password for all seeded accounts: %s\n", password)
}

func seedOrganization(db *gorm.DB, passwordHash string, agents, leadsPerAgent int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		company := gofakeit.Company()
		org := models.Organization{
			Name:        fmt.Sprintf("%s %s", company, utils.RandomString(4)),
			Email:       gofakeit.Email(),
			Address:     gofakeit.Address().Address,
			PhoneNumber: gofakeit.Phone(),
			Website:     gofakeit.URL(),
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		adminUser, err := seedUser(tx, passwordHash, models.RoleAdmin)
		if err != nil {
			return err
		}
		admin := models.Admin{UserID: adminUser.ID, OrganizationID: org.ID}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create admin profile: %w", err)
		}

		for a := 0; a < agents; a++ {
			agentUser, err := seedUser(tx, passwordHash, models.RoleAgent)
			if err != nil {
				return err
			}
			now := time.Now()
			hireDate := gofakeit.DateRange(now.AddDate(-3, 0, 0), now)
			agent := models.Agent{
				UserID:         agentUser.ID,
				OrganizationID: org.ID,
				HireDate:       &hireDate,
			}
			if err := tx.Create(&agent).Error; err != nil {
				return fmt.Errorf("failed to create agent profile: %w", err)
			}

			for l := 0; l < leadsPerAgent; l++ {
				if err := seedLead(tx, passwordHash, &org, &agent); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func seedUser(tx *gorm.DB, passwordHash string, role models.Role) (*models.User, error) {
	first := gofakeit.FirstName()
	last := gofakeit.LastName()
	user := models.User{
		FirstName:    first,
		LastName:     last,
		Username:     fmt.Sprintf("%s.%s_%s", strings.ToLower(first), strings.ToLower(last), utils.RandomString(3)),
		Email:        gofakeit.Email(),
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		PhoneNumber:  gofakeit.Phone(),
		Address:      gofakeit.Address().Address,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s user: %w", role, err)
	}
	return &user, nil
}

// seedLead creates one lead in a random lifecycle state. Converted leads get
// their customer account created alongside so the conversion invariant holds.
func seedLead(tx *gorm.DB, passwordHash string, org *models.Organization, agent *models.Agent) error {
	age := gofakeit.Number(models.LeadMinAge, models.LeadMaxAge)
	categories := []models.LeadCategory{
		models.CategoryNew, models.CategoryNew, models.CategoryContacted,
		models.CategoryUnconverted, models.CategoryConverted,
	}
	category := categories[gofakeit.Number(0, len(categories)-1)]

	lead := models.Lead{
		AgentID:        agent.ID,
		OrganizationID: org.ID,
		FirstName:      gofakeit.FirstName(),
		LastName:       gofakeit.LastName(),
		Email:          gofakeit.Email(),
		PhoneNumber:    gofakeit.Phone(),
		Address:        gofakeit.Address().Address,
		Age:            &age,
		Category:       category,
	}
	if err := tx.Create(&lead).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	if category != models.CategoryConverted {
		return nil
	}

	user := models.User{
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Username:     fmt.Sprintf("%s.%s_%s", strings.ToLower(lead.FirstName), strings.ToLower(lead.LastName), utils.RandomString(3)),
		Email:        lead.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create customer user: %w", err)
	}

	customer := models.Customer{
		UserID:         user.ID,
		OrganizationID: org.ID,
		LeadID:         &lead.ID,
		AgentID:        &agent.ID,
		TotalPurchases: decimal.NewFromFloat(gofakeit.Price(0, 5000)),
	}
	if err := tx.Create(&customer).Error; err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

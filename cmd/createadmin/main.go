package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// createadmin bootstraps a new organization with its administrator account
// from the command line, for operators who cannot use the signup endpoint.
// The generated password is printed once to stdout and never stored.
func main() {
	orgName := flag.String("org-name", "", "organization name (required)")
	orgEmail := flag.String("org-email", "", "organization contact email (required)")
	firstName := flag.String("first-name", "", "admin first name (required)")
	lastName := flag.String("last-name", "", "admin last name (required)")
	email := flag.String("email", "", "admin email (required)")
	username := flag.String("username", "", "admin username (defaults to the admin email)")
	flag.Parse()

	if *orgName == "" || *orgEmail == "" || *firstName == "" || *lastName == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *username == "" {
		*username = *email
	}

	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
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

	var org models.Organization
	err = db.Transaction(func(tx *gorm.DB) error {
		org = models.Organization{
			Name:  *orgName,
			Email: *orgEmail,
		}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		user := models.User{
			FirstName:    *firstName,
			LastName:     *lastName,
			Username:     *username,
			Email:        *email,
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		admin := models.Admin{
			UserID:         user.ID,
			OrganizationID: org.ID,
		}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create admin profile: %w", err)
		}
		return nil
	})
	if err != nil {
		logrus.Fatal(err)
	}

	fmt.Printf("Organization %q created (%s)\n", org.Name, org.ID)
	fmt.Printf("Admin username: %s\n", *username)
	fmt.Printf("Admin password: %s\n", password)
}

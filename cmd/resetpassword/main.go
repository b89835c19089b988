package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// resetpassword sets a fresh random password on an account and revokes all of
// its active sessions. The new password is printed once and never stored.
func main() {
	username := flag.String("username", "", "username of the account to reset (required)")
	flag.Parse()

	if *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	if err := utils.InitRedis(); err != nil {
		logrus.Fatal("Failed to connect to Redis: ", err)
	}
	defer utils.CloseRedis()

	var user models.User
	if err := db.Where("username = ?", *username).First(&user).Error; err != nil {
		logrus.Fatalf("No user with username %q", *username)
	}

	password := utils.RandomString(12)
	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		logrus.Fatal("Failed to hash password: ", err)
	}

	if err := db.Model(&user).Update("password_hash", passwordHash).Error; err != nil {
		logrus.Fatal("Failed to update password: ", err)
	}

	if err := utils.RevokeAllUserSessions(user.ID); err != nil {
		logrus.WithError(err).Warn("Failed to revoke existing sessions")
	}

	fmt.Printf("Password for %s reset\n", user.Username)
	fmt.Printf("New password: %s\n", password)
}

package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/notify"
	"github.com/leadstack/go-crm-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize Redis for session management
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize database
	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := config.MigrateDatabase(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Credential delivery channel for newly created agents
	mailer, err := notify.NewSESMailer()
	if err != nil {
		log.Fatal("Failed to initialize mailer:", err)
	}

	// Initialize authentication middleware
	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Org service is healthy", nil)
	})

	orgs := router.Group("/organizations")
	orgs.Use(authMiddleware.RequireAuth())
	{
		orgs.GET("/me", authMiddleware.RequireAdmin(), handleGetOrganization(db))
		orgs.PUT("/me", authMiddleware.RequireAdmin(), handleUpdateOrganization(db))
	}

	agents := router.Group("/agents")
	agents.Use(authMiddleware.RequireAuth())
	{
		agents.GET("/", authMiddleware.RequireAgentOrAdmin(), handleListAgents(db))
		agents.POST("/", authMiddleware.RequireAdmin(), handleCreateAgent(db, mailer))
		agents.GET("/:id", authMiddleware.RequireAgentOrAdmin(), handleGetAgent(db))
		agents.PUT("/:id", authMiddleware.RequireAdmin(), handleUpdateAgent(db))
		agents.DELETE("/:id", authMiddleware.RequireAdmin(), handleDeleteAgent(db))
	}

	// Start server
	port := os.Getenv("ORG_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Org service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start org service:", err)
	}
}

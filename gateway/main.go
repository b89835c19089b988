package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/middleware"
	"github.com/leadstack/go-crm-system/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	// Initialize Redis for session lookups
	if err := utils.InitRedis(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer utils.CloseRedis()

	// Initialize authentication middleware
	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize service clients
	serviceClients := &ServiceClients{
		AuthService: NewServiceClient(os.Getenv("AUTH_SERVICE_URL")),
		OrgService:  NewServiceClient(os.Getenv("ORG_SERVICE_URL")),
		CRMService:  NewServiceClient(os.Getenv("CRM_SERVICE_URL")),
	}

	// Initialize Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "API Gateway is healthy", nil)
	})

	// Authentication routes (signup and login are public)
	auth := router.Group("/auth")
	{
		auth.POST("/signup", serviceClients.AuthService.ProxyRequest)
		auth.POST("/login", serviceClients.AuthService.ProxyRequest)
		auth.POST("/logout", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
		auth.GET("/me", authMiddleware.RequireAuth(), serviceClients.AuthService.ProxyRequest)
	}

	// Organization and agent management
	orgs := router.Group("/organizations")
	orgs.Use(authMiddleware.RequireAuth())
	{
		orgs.Any("/*path", serviceClients.OrgService.ProxyRequest)
	}
	agents := router.Group("/agents")
	agents.Use(authMiddleware.RequireAuth())
	{
		agents.Any("/*path", serviceClients.OrgService.ProxyRequest)
	}

	// Lead and customer management
	leads := router.Group("/leads")
	leads.Use(authMiddleware.RequireAuth())
	{
		leads.Any("/*path", serviceClients.CRMService.ProxyRequest)
	}
	customers := router.Group("/customers")
	customers.Use(authMiddleware.RequireAuth())
	{
		customers.Any("/*path", serviceClients.CRMService.ProxyRequest)
	}

	// Start server
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("API Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start gateway:", err)
	}
}

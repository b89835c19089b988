package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/leadflow"
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

	// Credential delivery for conversions
	mailer, err := notify.NewSESMailer()
	if err != nil {
		log.Fatal("Failed to initialize mailer:", err)
	}

	// Lead event producer
	broker := os.Getenv("KAFKA_BROKER")
	if broker == "" {
		broker = "localhost:9092"
	}
	producer, err := notify.NewProducer(broker)
	if err != nil {
		log.Fatal("Failed to initialize Kafka producer:", err)
	}
	defer producer.Close()

	engine := leadflow.NewEngine(db, mailer, producer)

	// Initialize authentication middleware
	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "CRM service is healthy", nil)
	})

	leads := router.Group("/leads")
	leads.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAgentOrAdmin())
	{
		leads.GET("/", handleListLeads(db))
		leads.POST("/", handleCreateLead(db, engine))
		leads.GET("/:id", handleGetLead(db))
		leads.PUT("/:id", handleUpdateLead(db, engine))
		leads.POST("/:id/transition", handleTransitionLead(db, engine))
		leads.DELETE("/:id", handleDeleteLead(db))
	}

	customers := router.Group("/customers")
	customers.Use(authMiddleware.RequireAuth())
	{
		customers.GET("/", handleListCustomers(db))
		customers.GET("/:id", handleGetCustomer(db))
	}

	// Start server
	port := os.Getenv("CRM_SERVICE_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("CRM service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start CRM service:", err)
	}
}

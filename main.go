package main

import (
	"net/http"
	"os"

	"feastflow-api/config"
	"feastflow-api/delivery"
	"feastflow-api/handlers"
	"feastflow-api/notify"
	"feastflow-api/payments"
	"feastflow-api/routes"
	"feastflow-api/ws"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	// Set Gin mode
	mode := os.Getenv("GIN_MODE")
	if mode == "" {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database
	config.InitDB()

	// Live tracking hub
	hub := ws.NewHub(log)
	go hub.Run()

	handlers.Init(handlers.Deps{
		Log:       log,
		Hub:       hub,
		Notifier:  notify.NewLogNotifier(log),
		Gateway:   payments.NewDevGateway(log),
		Estimator: delivery.NewEstimator(delivery.StraightLineRoute(config.DriverSpeedKmh())),
	})

	// Create Gin router with default middleware (logger + recovery)
	r := gin.Default()

	// CORS middleware for frontend integration
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "FeastFlow Order API",
			"version": "1.0.0",
		})
	})

	// Welcome
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the FeastFlow Order & Delivery API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []string{"customer", "restaurant", "driver", "admin"},
		})
	})

	// Register all routes
	routes.SetupRoutes(r)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Infof("Server running on http://localhost:%s", port)
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}

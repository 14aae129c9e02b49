package handlers

import (
	"net/http"

	"feastflow-api/config"
	"feastflow-api/models"
	"feastflow-api/statemachine"

	"github.com/gin-gonic/gin"
)

// ListRestaurants returns all restaurants (public), with optional filters.
func ListRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	query := config.DB.Model(&models.Restaurant{})

	if cuisine := c.Query("cuisine"); cuisine != "" {
		query = query.Where("cuisine LIKE ?", "%"+cuisine+"%")
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if open := c.Query("open"); open == "true" {
		query = query.Where("is_open = ?", true)
	}

	query.Find(&restaurants)
	respondOK(c, http.StatusOK, gin.H{"restaurants": restaurants})
}

// GetRestaurant returns a single restaurant with its menu.
func GetRestaurant(c *gin.Context) {
	var restaurant models.Restaurant
	if err := config.DB.Preload("MenuItems").First(&restaurant, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Restaurant not found"})
		return
	}
	respondOK(c, http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the menu for a specific restaurant (public).
func GetMenu(c *gin.Context) {
	restaurantID := c.Param("id")
	var restaurant models.Restaurant
	if err := config.DB.First(&restaurant, restaurantID).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Restaurant not found"})
		return
	}

	var items []models.MenuItem
	query := config.DB.Where("restaurant_id = ?", restaurantID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if isVeg := c.Query("is_veg"); isVeg == "true" {
		query = query.Where("is_veg = ?", true)
	}
	query.Find(&items)

	respondOK(c, http.StatusOK, gin.H{
		"restaurant": restaurant.Name,
		"menu":       items,
	})
}

// GetStateMachineInfo returns the full transition table for documentation.
func GetStateMachineInfo(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{
		"state_machine":   statemachine.Transitions(),
		"terminal_states": []models.OrderStatus{models.StatusDelivered, models.StatusCancelled},
		"description":     "FeastFlow order lifecycle state machine",
	})
}

// TrackOrders upgrades to a websocket carrying live status updates.
func TrackOrders(c *gin.Context) {
	hub.HandleWebSocket(c.Writer, c.Request)
}

package handlers

import (
	"net/http"

	"feastflow-api/config"
	"feastflow-api/middleware"
	"feastflow-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ── Restaurant Management ────────────────────────────────────────────────────

type CreateRestaurantRequest struct {
	Name           string  `json:"name" binding:"required"`
	Cuisine        string  `json:"cuisine"`
	Description    string  `json:"description"`
	AvgPrepMinutes int     `json:"avg_prep_minutes" binding:"omitempty,gt=0"`
	Street         string  `json:"street" binding:"required"`
	City           string  `json:"city" binding:"required"`
	State          string  `json:"state"`
	Country        string  `json:"country"`
	PostalCode     string  `json:"postal_code"`
	Latitude       float64 `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude      float64 `json:"longitude" binding:"gte=-180,lte=180"`
}

// CreateRestaurant lets a restaurant-role user create their restaurant
func CreateRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var req CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}

	prep := req.AvgPrepMinutes
	if prep == 0 {
		prep = 20
	}
	restaurant := models.Restaurant{
		OwnerID:        ownerID,
		Name:           req.Name,
		Cuisine:        req.Cuisine,
		Description:    req.Description,
		AvgPrepMinutes: prep,
		IsOpen:         true,
		Address: models.Address{
			Street:     req.Street,
			City:       req.City,
			State:      req.State,
			Country:    req.Country,
			PostalCode: req.PostalCode,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
		},
	}
	if err := config.DB.Create(&restaurant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: "Failed to create restaurant"})
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"restaurant": restaurant})
}

// GetMyRestaurant fetches the restaurant owned by the logged-in user
func GetMyRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var restaurant models.Restaurant
	if err := config.DB.Preload("MenuItems").Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "No restaurant found for your account"})
		return
	}
	respondOK(c, http.StatusOK, gin.H{"restaurant": restaurant})
}

// UpdateRestaurant updates restaurant details
func UpdateRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var restaurant models.Restaurant
	if err := config.DB.Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Restaurant not found"})
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	// Only allow safe fields
	allowed := map[string]bool{
		"name": true, "cuisine": true, "description": true,
		"is_open": true, "avg_prep_minutes": true,
	}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	config.DB.Model(&restaurant).Updates(update)
	respondOK(c, http.StatusOK, gin.H{"restaurant": restaurant})
}

// ── Menu Management ─────────────────────────────────────────────────────────

type CreateMenuItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Category    string  `json:"category"`
	IsVeg       bool    `json:"is_veg"`
}

// AddMenuItem adds a new item to the restaurant's menu
func AddMenuItem(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var restaurant models.Restaurant
	if err := config.DB.Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Create a restaurant first before adding menu items"})
		return
	}

	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}

	item := models.MenuItem{
		RestaurantID: restaurant.ID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        decimal.NewFromFloat(req.Price),
		Category:     req.Category,
		IsVeg:        req.IsVeg,
		IsAvailable:  true,
	}
	if err := config.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: "Failed to add menu item"})
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"item": item})
}

// ownedMenuItem loads a menu item and verifies the caller owns its restaurant.
func ownedMenuItem(c *gin.Context, ownerID uint) (*models.MenuItem, bool) {
	var item models.MenuItem
	if err := config.DB.First(&item, c.Param("itemId")).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "Menu item not found"})
		return nil, false
	}
	var restaurant models.Restaurant
	if err := config.DB.Where("id = ? AND owner_id = ?", item.RestaurantID, ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "You don't own this menu item"})
		return nil, false
	}
	return &item, true
}

// UpdateMenuItem updates a menu item (only by the owner)
func UpdateMenuItem(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	item, ok := ownedMenuItem(c, ownerID)
	if !ok {
		return
	}

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	allowed := map[string]bool{
		"name": true, "description": true, "price": true,
		"category": true, "is_available": true, "is_veg": true,
	}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	config.DB.Model(item).Updates(update)
	respondOK(c, http.StatusOK, gin.H{"item": item})
}

// DeleteMenuItem removes a menu item
func DeleteMenuItem(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	item, ok := ownedMenuItem(c, ownerID)
	if !ok {
		return
	}
	config.DB.Delete(item)
	respondOK(c, http.StatusOK, gin.H{"deleted": item.ID})
}

package handlers

import (
	"net/http"

	"feastflow-api/config"
	"feastflow-api/middleware"
	"feastflow-api/models"
	"feastflow-api/statemachine"
	"feastflow-api/validation"

	"github.com/gin-gonic/gin"
)

// GetRestaurantOrders returns all orders for the restaurant owner, with a
// dashboard summary of status counts.
func GetRestaurantOrders(c *gin.Context) {
	ownerID := middleware.GetUserID(c)

	var restaurant models.Restaurant
	if err := config.DB.Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "No restaurant found for your account"})
		return
	}

	page, limit := parsePagination(c)
	query := config.DB.Model(&models.Order{}).Where("restaurant_id = ?", restaurant.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Preload("Items").Preload("Customer").Preload("Driver").
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders)

	summary := map[string]int{}
	for _, o := range orders {
		summary[string(o.Status)]++
	}

	respondPage(c, gin.H{
		"restaurant":    restaurant.Name,
		"order_summary": summary,
		"orders":        orders,
	}, Pagination{
		Page: page, Limit: limit, Total: total,
		HasMore: int64(page*limit) < total,
	})
}

// UpdateOrderStatus handles the restaurant's state transitions.
func UpdateOrderStatus(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	orderID := c.Param("id")

	var in validation.UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateStatusUpdate(orderID, &in); err != nil {
		respondErr(c, err)
		return
	}

	var restaurant models.Restaurant
	if err := config.DB.Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		c.JSON(http.StatusNotFound, envelope{Success: false, Error: "No restaurant found for your account"})
		return
	}

	order, err := loadOrder(config.DB, orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.RestaurantID != restaurant.ID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to your restaurant"})
		return
	}

	requested, _ := models.ParseOrderStatus(in.Status)
	cmd := statemachine.Command{
		To:      requested,
		Actor:   statemachine.ActorRestaurant,
		ActorID: ownerID,
		Note:    in.Note,
	}
	if in.Location != nil {
		cmd.Location = &models.GeoPoint{Latitude: in.Location.Latitude, Longitude: in.Location.Longitude}
	}

	prev := order.Status
	if _, err := persistTransition(config.DB, order, cmd); err != nil {
		respondErr(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"order_id":        order.ID,
		"previous_status": prev,
		"current_status":  order.Status,
	})
}

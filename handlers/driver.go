package handlers

import (
	"net/http"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/config"
	"feastflow-api/delivery"
	"feastflow-api/middleware"
	"feastflow-api/models"
	"feastflow-api/statemachine"
	"feastflow-api/validation"

	"github.com/gin-gonic/gin"
)

// GetAvailableOrders shows orders READY_FOR_PICKUP that have no driver assigned
func GetAvailableOrders(c *gin.Context) {
	var orders []models.Order
	config.DB.Preload("Restaurant").Preload("Customer").
		Where("status = ? AND driver_id IS NULL", models.StatusReadyForPickup).
		Order("created_at asc").
		Find(&orders)
	respondOK(c, http.StatusOK, gin.H{"orders": orders})
}

// GetMyDeliveries returns all orders assigned to the logged-in driver
func GetMyDeliveries(c *gin.Context) {
	driverID := middleware.GetUserID(c)
	var orders []models.Order
	config.DB.Preload("Items").Preload("Restaurant").Preload("Customer").
		Where("driver_id = ?", driverID).
		Order("updated_at desc").
		Find(&orders)
	respondOK(c, http.StatusOK, gin.H{"orders": orders})
}

// AcceptOrder claims an unassigned order for the driver. Assignment is a
// separate step from the OUT_FOR_DELIVERY transition: the state machine
// requires a driver before the order can leave the restaurant.
func AcceptOrder(c *gin.Context) {
	driverID := middleware.GetUserID(c)

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.DriverID != nil {
		respondErr(c, &apperrors.PreconditionError{Rule: "driver_unassigned", Message: "order has already been claimed by another driver"})
		return
	}
	if order.Status != models.StatusReadyForPickup {
		respondErr(c, &apperrors.InvalidStateError{Operation: "driver assignment", Status: string(order.Status)})
		return
	}

	// The version guard doubles as the two-drivers race check
	if err := casUpdate(config.DB, order, map[string]any{"driver_id": driverID}); err != nil {
		respondErr(c, err)
		return
	}
	order.DriverID = &driverID

	respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "driver_id": driverID})
}

// PickupOrder transitions READY_FOR_PICKUP to OUT_FOR_DELIVERY for the
// assigned driver.
func PickupOrder(c *gin.Context) {
	driverID := middleware.GetUserID(c)

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "You are not the assigned driver for this order"})
		return
	}

	if _, err := persistTransition(config.DB, order, statemachine.Command{
		To:      models.StatusOutForDelivery,
		Actor:   statemachine.ActorDriver,
		ActorID: driverID,
		Note:    "Driver picked up the order",
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "status": order.Status})
}

// DeliverOrder transitions OUT_FOR_DELIVERY to DELIVERED.
func DeliverOrder(c *gin.Context) {
	driverID := middleware.GetUserID(c)

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "You are not the assigned driver for this order"})
		return
	}

	if _, err := persistTransition(config.DB, order, statemachine.Command{
		To:      models.StatusDelivered,
		Actor:   statemachine.ActorDriver,
		ActorID: driverID,
		Note:    "Order delivered to customer",
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"order_id":    order.ID,
		"status":      order.Status,
		"actual_time": order.Delivery.ActualTime,
	})
}

// LocationPing records a driver position sample. Pings are telemetry: they
// update the stored driver location and refresh the delivery estimate but
// never touch the tracking history, and stale samples are dropped.
func LocationPing(c *gin.Context) {
	driverID := middleware.GetUserID(c)
	orderID := c.Param("id")

	var in validation.LocationPingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateLocationPing(orderID, &in); err != nil {
		respondErr(c, err)
		return
	}

	order, err := loadOrder(config.DB, orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "You are not the assigned driver for this order"})
		return
	}

	now := time.Now()
	applied, err := delivery.RecordLocationPing(order, models.GeoPoint{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}, now)
	if err != nil {
		respondErr(c, err)
		return
	}
	if !applied {
		respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "applied": false})
		return
	}

	updates := map[string]any{
		"delivery_driver_latitude":  in.Latitude,
		"delivery_driver_longitude": in.Longitude,
		"delivery_driver_pinged_at": now,
	}
	if eta := estimator.EstimateDeliveryTime(c.Request.Context(), order, &order.Restaurant); eta != nil {
		order.Delivery.EstimatedTime = eta
		updates["delivery_estimated_time"] = *eta
	}
	// Last write wins: pings are not serialized against status transitions,
	// so no version guard here
	if err := config.DB.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "store location ping", Err: err})
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"order_id":       order.ID,
		"applied":        true,
		"estimated_time": order.Delivery.EstimatedTime,
	})
}

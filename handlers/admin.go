package handlers

import (
	"net/http"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/config"
	"feastflow-api/middleware"
	"feastflow-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminGetAllOrders returns orders filtered by status, parties and date
// range, with the dashboard aggregates.
func AdminGetAllOrders(c *gin.Context) {
	page, limit := parsePagination(c)
	query := config.DB.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if start := c.Query("start_date"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			query = query.Where("created_at >= ?", t)
		} else {
			respondErr(c, apperrors.NewValidationError("start_date", "must be RFC3339"))
			return
		}
	}
	if end := c.Query("end_date"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			query = query.Where("created_at <= ?", t)
		} else {
			respondErr(c, apperrors.NewValidationError("end_date", "must be RFC3339"))
			return
		}
	}

	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Preload("Items").Preload("Customer").Preload("Restaurant").Preload("Driver").
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders)

	summary := map[string]int{}
	revenue := decimal.Zero
	for _, o := range orders {
		summary[string(o.Status)]++
		if o.Status == models.StatusDelivered {
			revenue = revenue.Add(o.Totals.Total)
		}
	}

	respondPage(c, gin.H{
		"order_summary": summary,
		"total_revenue": revenue,
		"orders":        orders,
	}, Pagination{
		Page: page, Limit: limit, Total: total,
		HasMore: int64(page*limit) < total,
	})
}

// AdminGetAllUsers returns all users (admin only).
func AdminGetAllUsers(c *gin.Context) {
	var users []models.User
	query := config.DB
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	query.Find(&users)
	respondOK(c, http.StatusOK, gin.H{"users": users})
}

// AdminGetAllRestaurants returns all restaurants (admin only).
func AdminGetAllRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	config.DB.Preload("Owner").Preload("MenuItems").Find(&restaurants)
	respondOK(c, http.StatusOK, gin.H{"restaurants": restaurants})
}

type ForceOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

// AdminForceOrderStatus lets an admin override the transition table in an
// emergency. The tracking history is still appended and the version guard
// still applies.
func AdminForceOrderStatus(c *gin.Context) {
	adminID := middleware.GetUserID(c)

	var req ForceOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if _, ok := models.ParseOrderStatus(string(req.Status)); !ok {
		respondErr(c, apperrors.NewValidationError("status", "unknown order status"))
		return
	}

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}

	prev := order.Status
	if err := casUpdate(config.DB, order, map[string]any{"status": req.Status}); err != nil {
		respondErr(c, err)
		return
	}
	order.Status = req.Status

	event := models.TrackingEvent{
		OrderID:    order.ID,
		FromStatus: prev,
		Status:     req.Status,
		ChangedBy:  adminID,
		Note:       "[ADMIN OVERRIDE] " + req.Reason,
		CreatedAt:  time.Now(),
	}
	if err := config.DB.Create(&event).Error; err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "append tracking event", Err: err})
		return
	}
	if hub != nil {
		hub.BroadcastStatus(order, event)
	}
	if notifier != nil {
		notifier.OrderStatusChanged(order, event)
	}

	respondOK(c, http.StatusOK, gin.H{
		"order_id":        order.ID,
		"previous_status": prev,
		"new_status":      req.Status,
	})
}

type ResolveRefundRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Note   string `json:"note"`
}

// AdminResolveRefund approves or rejects a pending refund. Approval settles
// through the payment gateway and marks the payment REFUNDED.
func AdminResolveRefund(c *gin.Context) {
	var req ResolveRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.Refund.Status != models.RefundPending {
		respondErr(c, &apperrors.InvalidStateError{Operation: "refund resolution", Status: string(order.Refund.Status)})
		return
	}

	now := time.Now()
	if req.Action == "reject" {
		if err := casUpdate(config.DB, order, map[string]any{
			"refund_status":       models.RefundRejected,
			"refund_processed_at": now,
		}); err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "refund_status": models.RefundRejected})
		return
	}

	if err := gateway.Refund(c.Request.Context(), order.PaymentRef, order.Refund.Amount); err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "refund payment", Err: err})
		return
	}
	if err := casUpdate(config.DB, order, map[string]any{
		"refund_status":       models.RefundApproved,
		"refund_processed_at": now,
		"payment_status":      models.PaymentRefunded,
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"order_id":       order.ID,
		"refund_status":  models.RefundApproved,
		"payment_status": models.PaymentRefunded,
	})
}

package handlers

import (
	"net/http"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/billing"
	"feastflow-api/config"
	"feastflow-api/middleware"
	"feastflow-api/models"
	"feastflow-api/statemachine"
	"feastflow-api/validation"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PlaceOrder creates a new order in PENDING (customer only). Totals are
// computed from menu prices snapshotted at order time.
func PlaceOrder(c *gin.Context) {
	customerID := middleware.GetUserID(c)

	var in validation.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateCreateOrder(&in); err != nil {
		respondErr(c, err)
		return
	}

	var restaurant models.Restaurant
	if err := config.DB.First(&restaurant, in.RestaurantID).Error; err != nil {
		respondErr(c, &apperrors.NotFoundError{Resource: "restaurant"})
		return
	}
	if !restaurant.IsOpen {
		respondErr(c, &apperrors.PreconditionError{Rule: "restaurant_open", Message: "restaurant is currently closed"})
		return
	}

	items, err := buildOrderItems(in.RestaurantID, in.Items)
	if err != nil {
		respondErr(c, err)
		return
	}

	totals, err := billing.ComputeTotals(billing.Input{
		Items:          items,
		TaxRate:        config.TaxRate(),
		DeliveryFee:    config.DeliveryFee(),
		Tip:            decimal.NewFromFloat(in.Tip),
		DiscountCode:   in.DiscountCode,
		DiscountAmount: decimal.NewFromFloat(in.DiscountAmount),
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	contact := models.ContactPreference(in.ContactPreference)
	if contact == "" {
		contact = models.ContactNone
	}

	now := time.Now()
	order := models.Order{
		OrderNumber:     genOrderNumber(now),
		CustomerID:      customerID,
		RestaurantID:    in.RestaurantID,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		PaymentMethodID: in.PaymentMethodID,
		Items:           items,
		Totals:          totals,
		Delivery: models.DeliveryDetails{
			Address: models.Address{
				Street:     in.DeliveryAddress.Street,
				City:       in.DeliveryAddress.City,
				State:      in.DeliveryAddress.State,
				Country:    in.DeliveryAddress.Country,
				PostalCode: in.DeliveryAddress.PostalCode,
				Latitude:   in.DeliveryAddress.Latitude,
				Longitude:  in.DeliveryAddress.Longitude,
			},
			Instructions:      in.Instructions,
			ContactPreference: contact,
		},
	}
	if err := config.DB.Create(&order).Error; err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "create order", Err: err})
		return
	}

	// Initial tracking entry: the audit trail includes order creation
	created := models.TrackingEvent{
		OrderID:   order.ID,
		Status:    models.StatusPending,
		ChangedBy: customerID,
		Note:      "Order placed by customer",
		CreatedAt: now,
	}
	if err := config.DB.Create(&created).Error; err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "append tracking event", Err: err})
		return
	}
	order.TrackingHistory = append(order.TrackingHistory, created)

	respondOK(c, http.StatusCreated, gin.H{"order": order})
}

// buildOrderItems snapshots menu names and prices into order line items.
func buildOrderItems(restaurantID uint, inputs []validation.CreateOrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for _, reqItem := range inputs {
		var menuItem models.MenuItem
		if err := config.DB.First(&menuItem, reqItem.MenuItemID).Error; err != nil {
			return nil, &apperrors.NotFoundError{Resource: "menu item"}
		}
		if menuItem.RestaurantID != restaurantID {
			return nil, &apperrors.PreconditionError{Rule: "menu_ownership", Message: "menu item does not belong to this restaurant"}
		}
		if !menuItem.IsAvailable {
			return nil, &apperrors.PreconditionError{Rule: "menu_available", Message: "menu item '" + menuItem.Name + "' is not available"}
		}

		customizations := make([]models.Customization, 0, len(reqItem.Customizations))
		for _, cust := range reqItem.Customizations {
			customizations = append(customizations, models.Customization{
				Name:  cust.Name,
				Price: decimal.NewFromFloat(cust.Price),
			})
		}
		items = append(items, models.OrderItem{
			MenuItemID:     menuItem.ID,
			Name:           menuItem.Name,
			Quantity:       reqItem.Quantity,
			UnitPrice:      menuItem.Price,
			Customizations: customizations,
			Instructions:   reqItem.Instructions,
		})
	}
	return items, nil
}

// GetMyOrders returns the logged-in customer's orders, newest first.
func GetMyOrders(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	query := config.DB.Model(&models.Order{}).Where("customer_id = ?", customerID)
	var total int64
	query.Count(&total)

	var orders []models.Order
	query.Preload("Items").Preload("Restaurant").
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders)

	respondPage(c, gin.H{"orders": orders}, Pagination{
		Page: page, Limit: limit, Total: total,
		HasMore: int64(page*limit) < total,
	})
}

// GetOrderDetail returns a single order with its full tracking history and,
// when the driver position is known, a live delivery estimate.
func GetOrderDetail(c *gin.Context) {
	customerID := middleware.GetUserID(c)

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.CustomerID != customerID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to you"})
		return
	}
	config.DB.Preload("MenuItems").First(&order.Restaurant, order.RestaurantID)

	if eta := estimator.EstimateDeliveryTime(c.Request.Context(), order, &order.Restaurant); eta != nil {
		order.Delivery.EstimatedTime = eta
	}
	respondOK(c, http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels a customer's own order. Once payment is captured the
// cancel must carry a refund request or it is rejected by the state machine.
func CancelOrder(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	orderID := c.Param("id")

	var in validation.CancelOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateCancel(orderID, &in); err != nil {
		respondErr(c, err)
		return
	}

	order, err := loadOrder(config.DB, orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.CustomerID != customerID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to you"})
		return
	}

	cmd := statemachine.Command{
		To:      models.StatusCancelled,
		Actor:   statemachine.ActorCustomer,
		ActorID: customerID,
		Note:    in.Reason,
	}
	if in.Refund != nil {
		cmd.RequestRefund = &statemachine.RefundRequest{
			Amount: decimal.NewFromFloat(in.Refund.Amount),
			Reason: in.Refund.Reason,
		}
	}

	if _, err := persistTransition(config.DB, order, cmd); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "status": order.Status})
}

// RateOrder records the post-delivery rating. Only accepted once the order is
// DELIVERED, and only once.
func RateOrder(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	orderID := c.Param("id")

	var in validation.RateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateRate(orderID, &in); err != nil {
		respondErr(c, err)
		return
	}

	order, err := loadOrder(config.DB, orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.CustomerID != customerID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to you"})
		return
	}
	if order.Status != models.StatusDelivered {
		respondErr(c, &apperrors.InvalidStateError{Operation: "rating", Status: string(order.Status)})
		return
	}
	if order.Rating.Set() {
		respondErr(c, &apperrors.PreconditionError{Rule: "not_rated", Message: "order has already been rated"})
		return
	}

	if err := casUpdate(config.DB, order, map[string]any{
		"rating_food":     in.FoodRating,
		"rating_delivery": in.DeliveryRating,
		"rating_comment":  in.Comment,
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "rating": gin.H{
		"food":     in.FoodRating,
		"delivery": in.DeliveryRating,
		"comment":  in.Comment,
	}})
}

// RequestRefund initiates a refund on a captured payment.
func RequestRefund(c *gin.Context) {
	customerID := middleware.GetUserID(c)
	orderID := c.Param("id")

	var in validation.RefundOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}
	if err := validation.ValidateRefund(orderID, &in); err != nil {
		respondErr(c, err)
		return
	}

	order, err := loadOrder(config.DB, orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.CustomerID != customerID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to you"})
		return
	}
	if order.PaymentStatus != models.PaymentCaptured {
		respondErr(c, &apperrors.InvalidStateError{Operation: "refund request", Status: string(order.PaymentStatus)})
		return
	}
	if order.Refund.Requested() {
		respondErr(c, &apperrors.PreconditionError{Rule: "refund_once", Message: "a refund has already been requested for this order"})
		return
	}

	amount := decimal.NewFromFloat(in.Amount)
	if amount.GreaterThan(order.Totals.Total) {
		respondErr(c, apperrors.NewValidationError("amount", "must not exceed the order total"))
		return
	}

	now := time.Now()
	if err := casUpdate(config.DB, order, map[string]any{
		"refund_amount":       amount,
		"refund_reason":       in.Reason,
		"refund_status":       models.RefundPending,
		"refund_requested_at": now,
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"order_id": order.ID, "refund_status": models.RefundPending})
}

// PayOrder authorizes and captures the order amount through the payment
// gateway.
func PayOrder(c *gin.Context) {
	customerID := middleware.GetUserID(c)

	order, err := loadOrder(config.DB, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if order.CustomerID != customerID {
		c.JSON(http.StatusForbidden, envelope{Success: false, Error: "This order does not belong to you"})
		return
	}
	if order.PaymentStatus != models.PaymentPending {
		respondErr(c, &apperrors.InvalidStateError{Operation: "payment", Status: string(order.PaymentStatus)})
		return
	}

	ctx := c.Request.Context()
	ref, err := gateway.Authorize(ctx, order.OrderNumber, order.Totals.Total, order.PaymentMethodID)
	if err != nil {
		config.DB.Model(order).Update("payment_status", models.PaymentFailed)
		respondErr(c, &apperrors.DependencyError{Operation: "authorize payment", Err: err})
		return
	}
	if err := casUpdate(config.DB, order, map[string]any{
		"payment_status": models.PaymentAuthorized,
		"payment_ref":    ref,
	}); err != nil {
		respondErr(c, err)
		return
	}

	if err := gateway.Capture(ctx, ref); err != nil {
		respondErr(c, &apperrors.DependencyError{Operation: "capture payment", Err: err})
		return
	}
	if err := casUpdate(config.DB, order, map[string]any{
		"payment_status": models.PaymentCaptured,
	}); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"order_id":       order.ID,
		"payment_status": models.PaymentCaptured,
		"payment_ref":    ref,
	})
}

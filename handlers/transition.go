package handlers

import (
	"strings"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/models"
	"feastflow-api/statemachine"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// genOrderNumber produces the human-readable unique order number.
func genOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "FF-" + now.Format("20060102") + "-" + suffix
}

// loadOrder fetches an order with its associations by path ID.
func loadOrder(db *gorm.DB, orderID string) (*models.Order, error) {
	var order models.Order
	err := db.
		Preload("Items").
		Preload("TrackingHistory", func(q *gorm.DB) *gorm.DB { return q.Order("created_at asc, id asc") }).
		First(&order, "id = ?", orderID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &apperrors.NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, &apperrors.DependencyError{Operation: "load order", Err: err}
	}
	return &order, nil
}

// casUpdate writes the given columns only if the aggregate version is still
// the one the caller observed, bumping the version on success. Zero affected
// rows means another actor won the race.
func casUpdate(db *gorm.DB, order *models.Order, updates map[string]any) error {
	observed := order.Version
	updates["version"] = observed + 1
	res := db.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, observed).
		Updates(updates)
	if res.Error != nil {
		return &apperrors.DependencyError{Operation: "update order", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &apperrors.ConcurrentModificationError{OrderID: order.ID}
	}
	order.Version = observed + 1
	return nil
}

// persistTransition runs a command through the state machine and makes the
// result durable: the order row is CAS-updated on the observed version and
// the tracking event appended. On success the transition is broadcast and
// handed to the notifier.
func persistTransition(db *gorm.DB, order *models.Order, cmd statemachine.Command) (*models.TrackingEvent, error) {
	event, err := statemachine.Apply(order, cmd)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"status": order.Status}
	if order.Status == models.StatusDelivered && order.Delivery.ActualTime != nil {
		updates["delivery_actual_time"] = *order.Delivery.ActualTime
	}
	if order.Status == models.StatusCancelled && cmd.RequestRefund != nil {
		updates["refund_amount"] = order.Refund.Amount
		updates["refund_reason"] = order.Refund.Reason
		updates["refund_status"] = order.Refund.Status
		updates["refund_requested_at"] = order.Refund.RequestedAt
	}
	if err := casUpdate(db, order, updates); err != nil {
		return nil, err
	}

	if err := db.Create(event).Error; err != nil {
		return nil, &apperrors.DependencyError{Operation: "append tracking event", Err: err}
	}

	if hub != nil {
		hub.BroadcastStatus(order, *event)
	}
	if notifier != nil {
		notifier.OrderStatusChanged(order, *event)
	}
	return event, nil
}

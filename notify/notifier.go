// Package notify is the seam for the push/SMS dispatcher. Delivery of the
// actual notifications is an external collaborator; the service only reports
// status changes through the Notifier contract.
package notify

import (
	"feastflow-api/models"

	"github.com/sirupsen/logrus"
)

// Notifier receives every successful status transition. Implementations must
// not block the request path; failures are a notification concern, never an
// order concern.
type Notifier interface {
	OrderStatusChanged(order *models.Order, event models.TrackingEvent)
}

// LogNotifier writes status changes to the structured log. It stands in for
// the push/SMS dispatcher in development.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OrderStatusChanged(order *models.Order, event models.TrackingEvent) {
	n.log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"from_status":  string(event.FromStatus),
		"status":       string(event.Status),
		"changed_by":   event.ChangedBy,
	}).Info("order status changed")
}

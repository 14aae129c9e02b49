package statemachine

import (
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/models"

	"github.com/shopspring/decimal"
)

// Actors that may drive transitions. Admin overrides bypass the table through
// a separate endpoint; "system" covers automation such as an external
// auto-cancel scheduler.
const (
	ActorCustomer   = "customer"
	ActorRestaurant = "restaurant"
	ActorDriver     = "driver"
	ActorSystem     = "system"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor string             `json:"actor"`
}

// validTransitions is the authoritative state machine definition. Delivery is
// only reachable via the full forward chain; cancellation is permitted from
// every non-terminal state.
var validTransitions = []Transition{
	// Forward chain, driven by the kitchen until hand-off to the driver
	{From: models.StatusPending, To: models.StatusConfirmed, Actor: ActorRestaurant},
	{From: models.StatusConfirmed, To: models.StatusPreparing, Actor: ActorRestaurant},
	{From: models.StatusPreparing, To: models.StatusReadyForPickup, Actor: ActorRestaurant},
	{From: models.StatusReadyForPickup, To: models.StatusOutForDelivery, Actor: ActorDriver},
	{From: models.StatusOutForDelivery, To: models.StatusDelivered, Actor: ActorDriver},
}

func init() {
	// Cancellation edges from every non-terminal state, for customer and
	// restaurant alike
	for _, s := range models.AllStatuses {
		if s.Terminal() {
			continue
		}
		validTransitions = append(validTransitions,
			Transition{From: s, To: models.StatusCancelled, Actor: ActorCustomer},
			Transition{From: s, To: models.StatusCancelled, Actor: ActorRestaurant},
		)
	}
	// System automation may drive any legal edge
	seen := map[Transition]bool{}
	for _, t := range validTransitions {
		key := Transition{From: t.From, To: t.To, Actor: ActorSystem}
		if !seen[key] {
			validTransitions = append(validTransitions, key)
			seen[key] = true
		}
	}
	// Build the lookup map here rather than in a package-level var
	// initializer: vars are initialized before init functions run, so a
	// var-based map would miss the edges appended above.
	for _, t := range validTransitions {
		transitionMap[transitionKey{t.From, t.To, t.Actor}] = true
	}
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
}

var transitionMap = make(map[transitionKey]bool)

// AllowedFrom returns all valid next states from a given state, regardless of
// actor.
func AllowedFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move from one state to another.
func CanTransition(from, to models.OrderStatus, actor string) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return &apperrors.IllegalTransitionError{
		From:  from,
		To:    to,
		Actor: actor,
		Valid: AllowedFrom(from),
	}
}

// Transitions returns the full state machine for documentation.
func Transitions() []Transition {
	return validTransitions
}

// RefundRequest initiates a refund alongside a cancellation, so a captured
// payment is never left orphaned.
type RefundRequest struct {
	Amount decimal.Decimal
	Reason string
}

// Command is one requested status transition against an order aggregate.
type Command struct {
	To            models.OrderStatus
	Actor         string
	ActorID       uint
	Note          string
	Location      *models.GeoPoint
	RequestRefund *RefundRequest
	Now           time.Time // zero means time.Now()
}

// Apply runs a single transition against the aggregate. It is a pure function
// over the order: the caller is responsible for durable storage. On success
// the order status is advanced and the tracking event is appended to the
// aggregate's history; the returned event is the appended entry.
func Apply(order *models.Order, cmd Command) (*models.TrackingEvent, error) {
	if err := CanTransition(order.Status, cmd.To, cmd.Actor); err != nil {
		return nil, err
	}

	if cmd.To == models.StatusOutForDelivery && order.DriverID == nil {
		return nil, &apperrors.PreconditionError{
			Rule:    "driver_assigned",
			Message: "a driver must be assigned before the order can go out for delivery",
		}
	}
	if cmd.To == models.StatusCancelled &&
		order.PaymentStatus == models.PaymentCaptured &&
		cmd.RequestRefund == nil && !order.Refund.Requested() {
		return nil, &apperrors.PreconditionError{
			Rule:    "refund_required",
			Message: "cancelling a captured payment requires an accompanying refund request",
		}
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}

	from := order.Status
	order.Status = cmd.To

	if cmd.To == models.StatusDelivered {
		t := now
		order.Delivery.ActualTime = &t
	}
	if cmd.To == models.StatusCancelled && cmd.RequestRefund != nil && !order.Refund.Requested() {
		t := now
		order.Refund = models.Refund{
			Amount:      cmd.RequestRefund.Amount,
			Reason:      cmd.RequestRefund.Reason,
			Status:      models.RefundPending,
			RequestedAt: &t,
		}
	}

	event := models.TrackingEvent{
		OrderID:    order.ID,
		FromStatus: from,
		Status:     cmd.To,
		ChangedBy:  cmd.ActorID,
		Note:       cmd.Note,
		CreatedAt:  now,
	}
	if cmd.Location != nil {
		lat, lng := cmd.Location.Latitude, cmd.Location.Longitude
		event.Latitude, event.Longitude = &lat, &lng
	}
	order.TrackingHistory = append(order.TrackingHistory, event)

	return &order.TrackingHistory[len(order.TrackingHistory)-1], nil
}

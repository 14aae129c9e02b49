package delivery

import (
	"context"
	"math"
	"time"

	"feastflow-api/apperrors"
	"feastflow-api/models"
)

// RouteDurationFunc resolves travel time between two points. Routing is an
// external collaborator; callers supply timeouts through ctx.
type RouteDurationFunc func(ctx context.Context, origin, dest models.GeoPoint) (time.Duration, error)

// Estimator derives estimated delivery times from driver telemetry and the
// injected routing collaborator.
type Estimator struct {
	Route RouteDurationFunc
	Now   func() time.Time
}

func NewEstimator(route RouteDurationFunc) *Estimator {
	return &Estimator{Route: route, Now: time.Now}
}

func (e *Estimator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// EstimateDeliveryTime computes now + remaining preparation time + routed
// travel time. It returns nil when the driver location is unknown or routing
// fails (including timeouts): callers must treat nil as "unknown", never as a
// default guess.
func (e *Estimator) EstimateDeliveryTime(ctx context.Context, order *models.Order, restaurant *models.Restaurant) *time.Time {
	if e == nil || e.Route == nil {
		return nil
	}
	driverLoc := order.Delivery.DriverLocation()
	if driverLoc == nil {
		return nil
	}
	travel, err := e.Route(ctx, *driverLoc, order.Delivery.Address.Location())
	if err != nil {
		return nil
	}
	now := e.now()
	eta := now.Add(remainingPrep(order, restaurant, now)).Add(travel)
	return &eta
}

// remainingPrep is how much of the restaurant's average preparation time is
// still ahead of the order. Zero once the kitchen has handed the order off.
func remainingPrep(order *models.Order, restaurant *models.Restaurant, now time.Time) time.Duration {
	switch order.Status {
	case models.StatusPending, models.StatusConfirmed, models.StatusPreparing:
	default:
		return 0
	}
	if restaurant == nil || restaurant.AvgPrepMinutes <= 0 {
		return 0
	}
	prep := time.Duration(restaurant.AvgPrepMinutes) * time.Minute
	elapsed := now.Sub(order.CreatedAt)
	if elapsed >= prep {
		return 0
	}
	return prep - elapsed
}

// RecordLocationPing stores a driver location sample on the aggregate. Pings
// are accepted only while the order is OUT_FOR_DELIVERY and never touch the
// tracking history. A ping older than the stored one is discarded: last write
// wins, ties included, since network delivery guarantees no ordering. The
// returned bool reports whether the sample was applied.
func RecordLocationPing(order *models.Order, loc models.GeoPoint, ts time.Time) (bool, error) {
	if order.Status != models.StatusOutForDelivery {
		return false, &apperrors.InvalidStateError{
			Operation: "location ping",
			Status:    string(order.Status),
		}
	}
	if cur := order.Delivery.DriverPingedAt; cur != nil && ts.Before(*cur) {
		return false, nil
	}
	lat, lng, when := loc.Latitude, loc.Longitude, ts
	order.Delivery.DriverLatitude = &lat
	order.Delivery.DriverLongitude = &lng
	order.Delivery.DriverPingedAt = &when
	return true, nil
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two points.
func haversineKm(a, b models.GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// StraightLineRoute is a development routing collaborator: great-circle
// distance at a fixed average speed. Production deployments inject a real
// routing provider instead.
func StraightLineRoute(speedKmh float64) RouteDurationFunc {
	return func(ctx context.Context, origin, dest models.GeoPoint) (time.Duration, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		hours := haversineKm(origin, dest) / speedKmh
		return time.Duration(hours * float64(time.Hour)), nil
	}
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

// AllStatuses lists every order status in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Terminal reports whether no further status transitions are accepted.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ParseOrderStatus maps a raw string to a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// PaymentStatus is the payment lifecycle, independent of the order status.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentCaptured   PaymentStatus = "CAPTURED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// RefundStatus is the lifecycle of a refund request.
type RefundStatus string

const (
	RefundPending  RefundStatus = "pending"
	RefundApproved RefundStatus = "approved"
	RefundRejected RefundStatus = "rejected"
)

// ContactPreference is how the customer wants to be reached on delivery.
type ContactPreference string

const (
	ContactCall ContactPreference = "call"
	ContactText ContactPreference = "text"
	ContactNone ContactPreference = "none"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is a full postal address with a routing coordinate.
type Address struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	Country    string  `json:"country"`
	PostalCode string  `json:"postal_code"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Location returns the address coordinate as a GeoPoint.
func (a Address) Location() GeoPoint {
	return GeoPoint{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Customization is a priced modification of a single order item unit.
type Customization struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type OrderItem struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	OrderID        uint            `json:"order_id" gorm:"not null;index"`
	MenuItemID     uint            `json:"menu_item_id" gorm:"not null"`
	MenuItem       MenuItem        `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID"`
	Name           string          `json:"name"` // snapshot name at order time
	Quantity       int             `json:"quantity" gorm:"not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"not null"` // snapshot price at order time
	Customizations []Customization `json:"customizations,omitempty" gorm:"serializer:json"`
	Instructions   string          `json:"instructions,omitempty"`
}

// OrderTotals is the derived billing breakdown of an order. Immutable once the
// order leaves PENDING.
type OrderTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Tip            decimal.Decimal `json:"tip"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// DeliveryDetails is the delivery sub-record owned 1:1 by an order. Driver
// location fields are high-frequency telemetry, written by pings rather than
// status transitions.
type DeliveryDetails struct {
	Address           Address           `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	Instructions      string            `json:"instructions,omitempty"`
	ContactPreference ContactPreference `json:"contact_preference" gorm:"default:'none'"`
	EstimatedTime     *time.Time        `json:"estimated_time"`
	ActualTime        *time.Time        `json:"actual_time"`
	DriverLatitude    *float64          `json:"driver_latitude,omitempty"`
	DriverLongitude   *float64          `json:"driver_longitude,omitempty"`
	DriverPingedAt    *time.Time        `json:"driver_pinged_at,omitempty"`
}

// DriverLocation returns the last pinged driver position, or nil when unknown.
func (d DeliveryDetails) DriverLocation() *GeoPoint {
	if d.DriverLatitude == nil || d.DriverLongitude == nil {
		return nil
	}
	return &GeoPoint{Latitude: *d.DriverLatitude, Longitude: *d.DriverLongitude}
}

// Rating is the post-delivery customer rating.
type Rating struct {
	Food     *int   `json:"food,omitempty"`
	Delivery *int   `json:"delivery,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Set reports whether the order has been rated.
func (r Rating) Set() bool {
	return r.Food != nil && r.Delivery != nil
}

// Refund is the refund sub-record. Monetary adjustments after PENDING are
// expressed here, never by mutating totals.
type Refund struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Status      RefundStatus    `json:"status,omitempty"`
	RequestedAt *time.Time      `json:"requested_at,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// Requested reports whether a refund has been initiated for the order.
func (r Refund) Requested() bool {
	return r.Status != ""
}

// Order is the aggregate root: the unit of consistency for one purchase.
// Orders are never deleted; cancellation and refunds are status and sub-record
// changes. Version backs optimistic concurrency on every mutation.
type Order struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	OrderNumber     string          `json:"order_number" gorm:"uniqueIndex;not null"`
	CustomerID      uint            `json:"customer_id" gorm:"not null;index"`
	Customer        User            `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	RestaurantID    uint            `json:"restaurant_id" gorm:"not null;index"`
	Restaurant      Restaurant      `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID"`
	DriverID        *uint           `json:"driver_id"`
	Driver          *User           `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Status          OrderStatus     `json:"status" gorm:"not null;default:'PENDING';index"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"not null;default:'PENDING'"`
	PaymentMethodID string          `json:"payment_method_id"`
	PaymentRef      string          `json:"payment_ref,omitempty"`
	Items           []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Delivery        DeliveryDetails `json:"delivery" gorm:"embedded;embeddedPrefix:delivery_"`
	Totals          OrderTotals     `json:"totals" gorm:"embedded;embeddedPrefix:totals_"`
	Rating          Rating          `json:"rating" gorm:"embedded;embeddedPrefix:rating_"`
	Refund          Refund          `json:"refund" gorm:"embedded;embeddedPrefix:refund_"`
	Version         uint            `json:"version" gorm:"not null;default:0"`
	TrackingHistory []TrackingEvent `json:"tracking_history,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TrackingEvent is one entry of the append-only status audit trail. Rows are
// only ever inserted, never updated or reordered.
type TrackingEvent struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"not null;index"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	Status     OrderStatus `json:"status" gorm:"not null"`
	ChangedBy  uint        `json:"changed_by"` // user ID who triggered the transition
	Note       string      `json:"note,omitempty"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

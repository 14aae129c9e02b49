// Package validation rejects structurally invalid mutation requests before
// they reach business logic. Checks here are structural only: legality of a
// status transition belongs to the statemachine package. All functions are
// pure over their input and never touch persistence.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"feastflow-api/apperrors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type GeoInput struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type AddressInput struct {
	Street     string  `json:"street" validate:"required"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	Country    string  `json:"country" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Latitude   float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type CustomizationInput struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

type CreateOrderItemInput struct {
	MenuItemID     uint                 `json:"menu_item_id" validate:"required"`
	Quantity       int                  `json:"quantity" validate:"required,min=1"`
	Customizations []CustomizationInput `json:"customizations" validate:"omitempty,dive"`
	Instructions   string               `json:"instructions"`
}

type CreateOrderInput struct {
	RestaurantID      uint                   `json:"restaurant_id" validate:"required"`
	Items             []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress   AddressInput           `json:"delivery_address" validate:"required"`
	Instructions      string                 `json:"instructions"`
	ContactPreference string                 `json:"contact_preference" validate:"omitempty,oneof=call text none"`
	PaymentMethodID   string                 `json:"payment_method_id" validate:"required"`
	Tip               float64                `json:"tip" validate:"gte=0"`
	DiscountCode      string                 `json:"discount_code"`
	DiscountAmount    float64                `json:"discount_amount" validate:"gte=0"`
}

type UpdateOrderStatusInput struct {
	Status   string    `json:"status" validate:"required,oneof=PENDING CONFIRMED PREPARING READY_FOR_PICKUP OUT_FOR_DELIVERY DELIVERED CANCELLED"`
	Note     string    `json:"note"`
	Location *GeoInput `json:"location" validate:"omitempty"`
}

type RefundOrderInput struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required"`
}

type CancelOrderInput struct {
	Reason string            `json:"reason" validate:"required"`
	Refund *RefundOrderInput `json:"refund" validate:"omitempty"`
}

type RateOrderInput struct {
	FoodRating     int    `json:"food_rating" validate:"required,min=1,max=5"`
	DeliveryRating int    `json:"delivery_rating" validate:"required,min=1,max=5"`
	Comment        string `json:"comment"`
}

type LocationPingInput struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// ValidateCreateOrder checks a checkout submission.
func ValidateCreateOrder(in *CreateOrderInput) error {
	return run(in)
}

// ValidateStatusUpdate checks a status-transition request; whether the
// transition is legal from the current state is the state machine's concern.
func ValidateStatusUpdate(orderID string, in *UpdateOrderStatusInput) error {
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	return run(in)
}

func ValidateCancel(orderID string, in *CancelOrderInput) error {
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	return run(in)
}

func ValidateRate(orderID string, in *RateOrderInput) error {
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	return run(in)
}

func ValidateRefund(orderID string, in *RefundOrderInput) error {
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	return run(in)
}

func ValidateLocationPing(orderID string, in *LocationPingInput) error {
	if err := requireOrderID(orderID); err != nil {
		return err
	}
	return run(in)
}

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return apperrors.NewValidationError("order_id", "must not be empty")
	}
	return nil
}

// run translates validator failures into field-path errors.
func run(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, f := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fieldPath(f),
			Message: describe(f),
		})
	}
	return &apperrors.ValidationError{Fields: fields}
}

// fieldPath strips the root struct name from the validator namespace, leaving
// the dotted path into the request body.
func fieldPath(f validator.FieldError) string {
	ns := f.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + f.Param()
	case "max":
		return "must be at most " + f.Param()
	case "gt":
		return "must be greater than " + f.Param()
	case "gte":
		return "must be at least " + f.Param()
	case "lte":
		return "must be at most " + f.Param()
	case "oneof":
		return "must be one of: " + f.Param()
	}
	return fmt.Sprintf("failed %s validation", f.Tag())
}

package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"feastflow-api/models"
)

// FieldError pins a validation failure to a specific input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input. HTTP 400.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NotFoundError reports an unknown resource. HTTP 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// IllegalTransitionError reports a status not reachable from the current
// state. HTTP 409.
type IllegalTransitionError struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
	Valid []models.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	msg := "invalid transition: " + string(e.From) + " -> " + string(e.To)
	if e.Actor != "" {
		msg += " is not allowed for actor '" + e.Actor + "'"
	}
	if len(e.Valid) == 0 {
		return msg + ". " + string(e.From) + " is a terminal state"
	}
	nexts := make([]string, len(e.Valid))
	for i, s := range e.Valid {
		nexts[i] = string(s)
	}
	return msg + ". Valid transitions from " + string(e.From) + " are: " + strings.Join(nexts, ", ")
}

// PreconditionError reports a transition that is legal in shape but has an
// unmet business requirement. HTTP 409.
type PreconditionError struct {
	Rule    string
	Message string
}

func (e *PreconditionError) Error() string {
	return "precondition " + e.Rule + " not met: " + e.Message
}

// ConcurrentModificationError reports a stale-version write. Recoverable by
// re-reading the order and retrying. HTTP 409.
type ConcurrentModificationError struct {
	OrderID uint
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("order %d was modified concurrently; re-read and retry", e.OrderID)
}

// InvalidStateError reports an operation attempted outside its valid
// lifecycle phase. HTTP 422.
type InvalidStateError struct {
	Operation string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return e.Operation + " is not valid in state " + e.Status
}

// InvalidDiscountError reports a discount exceeding the subtotal. HTTP 409.
type InvalidDiscountError struct {
	Discount string
	Subtotal string
}

func (e *InvalidDiscountError) Error() string {
	return "discount " + e.Discount + " exceeds subtotal " + e.Subtotal
}

// DependencyError wraps a failure from an external collaborator with the
// originating operation name, keeping it distinguishable from core-logic
// errors. HTTP 502.
type DependencyError struct {
	Operation string
	Err       error
}

func (e *DependencyError) Error() string {
	return e.Operation + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a core error to its response status code.
func HTTPStatus(err error) int {
	var (
		validation  *ValidationError
		notFound    *NotFoundError
		illegal     *IllegalTransitionError
		precond     *PreconditionError
		concurrent  *ConcurrentModificationError
		invalState  *InvalidStateError
		invDiscount *InvalidDiscountError
		dependency  *DependencyError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &illegal), errors.As(err, &precond),
		errors.As(err, &concurrent), errors.As(err, &invDiscount):
		return http.StatusConflict
	case errors.As(err, &invalState):
		return http.StatusUnprocessableEntity
	case errors.As(err, &dependency):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindStore
	KindUpstream
)

// Conflict codes.
const (
	CodeSoldOut           = "sold_out"
	CodeInsufficientStock = "insufficient_stock"
)

// Error is an application error with a client-safe message.
type Error struct {
	Kind      Kind
	Code      string
	Field     string
	Message   string
	ProductID string
	Available int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Code so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Status maps the error kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrSoldOut           = &Error{Kind: KindConflict, Code: CodeSoldOut}
	ErrInsufficientStock = &Error{Kind: KindConflict, Code: CodeInsufficientStock}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrStore             = &Error{Kind: KindStore}
	ErrUpstream          = &Error{Kind: KindUpstream}
)

func Invalid(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func SoldOut(productID string) *Error {
	return &Error{Kind: KindConflict, Code: CodeSoldOut, ProductID: productID, Message: "Sold out"}
}

func InsufficientStock(productID string, available int) *Error {
	return &Error{
		Kind:      KindConflict,
		Code:      CodeInsufficientStock,
		ProductID: productID,
		Available: available,
		Message:   fmt.Sprintf("Only %d left", available),
	}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// StoreFailure wraps a database error. The message never carries driver text.
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStore, Code: op, Message: "store failure", Err: err}
}

func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: op, Message: "upstream failure", Err: err}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

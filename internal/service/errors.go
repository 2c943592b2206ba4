package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingPrice       = errors.New("product has no price")
	ErrMissingOrderNumber = errors.New("checkout session has no order number")
	ErrSessionInProgress  = errors.New("checkout session is already being processed")
	ErrOrderConflict      = errors.New("order number already used by another session")
	ErrIllegalTransition  = errors.New("illegal order status transition")
)

package domain

import "errors"

var (
	ErrStockExceeded   = errors.New("requested amount exceeds stock")
	ErrItemNotFound    = errors.New("item not in cart")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidRecord   = errors.New("invalid cart record")
	ErrInvalidStock    = errors.New("invalid stock")
)

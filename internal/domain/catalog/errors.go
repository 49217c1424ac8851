package catalog

import "errors"

var (
	ErrEmptyPayload   = errors.New("catalog: empty product payload")
	ErrInvalidPayload = errors.New("catalog: invalid product payload")
	ErrMissingProduct = errors.New("catalog: payload has no product id")
)

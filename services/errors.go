package services

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrUnauthorized        = errors.New("invalid credentials")
	ErrForbidden           = errors.New("forbidden")
	ErrQuotaExceeded       = errors.New("daily scan quota exceeded")
	ErrPaymentNotSettled   = errors.New("payment not settled yet")
	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrAnalyzerUnavailable = errors.New("nutrition analyzer unavailable")
	ErrValidation          = errors.New("validation failed")
	ErrNoFoodDetected      = errors.New("no food detected")
)

package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind classifies a failed operation so transports can map it
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
)

// ServiceError is a classified engine failure. errors.Is matches another
// ServiceError of the same kind whose message is empty or equal.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Kind-wide sentinels
var (
	ErrNotFound   = &ServiceError{Kind: KindNotFound}
	ErrConflict   = &ServiceError{Kind: KindConflict}
	ErrValidation = &ServiceError{Kind: KindValidation}
)

// Specific failures
var (
	ErrPlanNotFound          = &ServiceError{Kind: KindNotFound, Message: "plan not found"}
	ErrEntryNotFound         = &ServiceError{Kind: KindNotFound, Message: "installment not found"}
	ErrCustomerNotFound      = &ServiceError{Kind: KindNotFound, Message: "customer not found"}
	ErrProductNotFound       = &ServiceError{Kind: KindNotFound, Message: "product not found"}
	ErrGuarantorNotFound     = &ServiceError{Kind: KindNotFound, Message: "guarantor not found"}
	ErrInsufficientInventory = &ServiceError{Kind: KindConflict, Message: "insufficient inventory"}
	ErrAlreadySettled        = &ServiceError{Kind: KindConflict, Message: "installment already settled"}
	ErrPlanNotActive         = &ServiceError{Kind: KindConflict, Message: "plan is not active"}
)

// KindOf returns the classification of err, or "" for unclassified errors
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func invalid(format string, args ...any) error {
	return &ServiceError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func invalidErr(err error) error {
	return &ServiceError{Kind: KindValidation, Message: err.Error()}
}

// lookupErr maps a missing row to sentinel and wraps anything else
func lookupErr(err error, sentinel *ServiceError, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

package crud

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a client error. Issues are collected across the whole
// request where structurally possible, so a single response can report every
// problem at once.
type ValidationError struct {
	Detail string
	Issues []string
}

func NewValidationError(issues ...string) *ValidationError {
	return &ValidationError{
		Detail: "Your submission had issues",
		Issues: issues,
	}
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Detail
	}

	return fmt.Sprintf("%s: %s", e.Detail, strings.Join(e.Issues, "; "))
}

// NotFoundError is returned when a primary key lookup finds no visible row.
type NotFoundError struct {
	Resource string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%v' not found", e.Resource, e.Key)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func validationIssues(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Issues
	}

	return nil
}

// Package web defines common components for a web application.
package web

import (
	"github.com/go-playground/validator/v10"
)

// JSONError provides type for explicit json encoded error response.
//
// Kind is stable across releases and meant for programmatic handling,
// Message is human readable.
type JSONError struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Error wraps a given err into json frinedly struct.
func Error(kind string, err error) *JSONError {
	return &JSONError{Kind: kind, Message: err.Error()}
}

// Response holds the common response type for all APIs.
type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *JSONError `json:"error,omitempty"`
}

// GetErrorMsg returns human readable message for the failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "min":
		return " must be at least " + fe.Param()
	case "max":
		return " must be at most " + fe.Param()
	case "currency":
		return " is not supported"
	case "amount":
		return " must be a positive decimal"
	case "oneof":
		return " must be one of: " + fe.Param()
	}

	return " is invalid"
}

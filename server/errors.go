package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/openpolls/api.openpolls.dev/model"
)

// APIError is one entry of the structured error envelope.
type APIError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

type errorResponse struct {
	Errors []APIError `json:"errors"`
}

func formatErrors(errs ...APIError) errorResponse {
	return errorResponse{Errors: errs}
}

func accessDenied(description string) APIError {
	return APIError{Error: "access_denied", Description: description}
}

func invalidRequest(description string) APIError {
	return APIError{Error: "invalid_request", Description: description}
}

func notFound(description string) APIError {
	return APIError{Error: "not_found", Description: description}
}

func serverError() APIError {
	return APIError{Error: "server_error", Description: "Internal server error"}
}

// translateValidation maps a model validation failure to one
// validation_failed entry per invalid field.
func translateValidation(err error) []APIError {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]APIError, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, APIError{Error: "validation_failed", Description: f.Message})
	}
	return out
}

func sendNotFound(c *fiber.Ctx, description string) error {
	return c.Status(fiber.StatusNotFound).JSON(formatErrors(notFound(description)))
}

func sendAccessDenied(c *fiber.Ctx, description string) error {
	return c.Status(fiber.StatusForbidden).JSON(formatErrors(accessDenied(description)))
}

func sendValidation(c *fiber.Ctx, err error) error {
	if translated := translateValidation(err); translated != nil {
		return c.Status(fiber.StatusBadRequest).JSON(formatErrors(translated...))
	}
	return err
}
